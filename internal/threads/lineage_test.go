package threads

import "testing"

func TestParentFirstWriterWins(t *testing.T) {
	s := newTestStore()
	if !s.SetParent("child", "parent-1") {
		t.Fatalf("first edge should be accepted")
	}
	if s.SetParent("child", "parent-2") {
		t.Fatalf("second edge must be rejected")
	}
	if got := s.Parent("child"); got != "parent-1" {
		t.Fatalf("expected parent-1, got %q", got)
	}
}

func TestParentRejectsSelfEdge(t *testing.T) {
	s := newTestStore()
	if s.SetParent("t-1", "t-1") {
		t.Fatalf("self edge must be rejected")
	}
}

func TestParentRejectsCycle(t *testing.T) {
	s := newTestStore()
	if !s.SetParent("b", "a") {
		t.Fatalf("a->b edge rejected")
	}
	if !s.SetParent("c", "b") {
		t.Fatalf("b->c edge rejected")
	}
	if s.SetParent("a", "c") {
		t.Fatalf("edge closing the cycle a->b->c->a must be rejected")
	}
}

func TestAncestryWalk(t *testing.T) {
	s := newTestStore()
	s.SetParent("b", "a")
	s.SetParent("c", "b")
	got := s.Ancestry("c")
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("unexpected ancestry %v", got)
	}
}

func TestChildren(t *testing.T) {
	s := newTestStore()
	s.SetParent("b", "a")
	s.SetParent("c", "a")
	kids := s.Children("a")
	if len(kids) != 2 {
		t.Fatalf("expected 2 children, got %v", kids)
	}
}

func TestEnsurePicksUpRecordedParent(t *testing.T) {
	s := newTestStore()
	s.SetParent("child", "parent")
	s.EnsureThread("child", "ws", "")
	if got := s.Thread("child").ParentID; got != "parent" {
		t.Fatalf("thread should carry its recorded parent, got %q", got)
	}
}
