package store

import (
	"path/filepath"
	"testing"
	"time"

	"cockpit/internal/types"
)

func openTestRepo(t *testing.T) *BoltRepository {
	t.Helper()
	repo, err := OpenBolt(filepath.Join(t.TempDir(), "overlays.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestThreadMetaRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	pinned := time.Now().UTC().Truncate(time.Second)
	meta := &types.ThreadMeta{
		WorkspaceID: "ws-1",
		ThreadID:    "t-1",
		CustomName:  "refactor session",
		PinnedAt:    &pinned,
	}
	if err := repo.SaveThreadMeta(meta); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := repo.LoadThreadMeta("ws-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].CustomName != "refactor session" {
		t.Fatalf("unexpected load: %+v", loaded)
	}
	if loaded[0].PinnedAt == nil || !loaded[0].PinnedAt.Equal(pinned) {
		t.Fatalf("pin timestamp lost: %+v", loaded[0].PinnedAt)
	}
}

func TestThreadMetaWorkspaceScoping(t *testing.T) {
	repo := openTestRepo(t)
	_ = repo.SaveThreadMeta(&types.ThreadMeta{WorkspaceID: "ws-1", ThreadID: "t-1"})
	_ = repo.SaveThreadMeta(&types.ThreadMeta{WorkspaceID: "ws-2", ThreadID: "t-2"})
	loaded, err := repo.LoadThreadMeta("ws-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ThreadID != "t-1" {
		t.Fatalf("scoping broken: %+v", loaded)
	}
	all, err := repo.LoadThreadMeta("")
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
}

func TestThreadMetaDelete(t *testing.T) {
	repo := openTestRepo(t)
	_ = repo.SaveThreadMeta(&types.ThreadMeta{WorkspaceID: "ws-1", ThreadID: "t-1"})
	if err := repo.DeleteThreadMeta("ws-1", "t-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	loaded, _ := repo.LoadThreadMeta("ws-1")
	if len(loaded) != 0 {
		t.Fatalf("entry should be gone: %+v", loaded)
	}
}

func TestApprovalRulesAccumulate(t *testing.T) {
	repo := openTestRepo(t)
	for _, tokens := range [][]string{{"npm", "install"}, {"go", "test"}} {
		err := repo.SaveApprovalRule(&types.ApprovalRule{
			WorkspaceID: "ws-1",
			Tokens:      tokens,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	rules, err := repo.LoadApprovalRules("ws-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if err := repo.DeleteApprovalRules("ws-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rules, _ = repo.LoadApprovalRules("ws-1")
	if len(rules) != 0 {
		t.Fatalf("rules should be deleted")
	}
}

func TestBookmarkRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	err := repo.SaveBookmark(&types.Bookmark{
		WorkspaceID: "ws-1",
		ThreadID:    "t-1",
		ItemID:      "i-9",
		Note:        "the fix",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	marks, err := repo.LoadBookmarks("ws-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(marks) != 1 || marks[0].Note != "the fix" {
		t.Fatalf("unexpected bookmarks: %+v", marks)
	}
	if err := repo.DeleteBookmark("ws-1", "t-1", "i-9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	marks, _ = repo.LoadBookmarks("ws-1")
	if len(marks) != 0 {
		t.Fatalf("bookmark should be gone")
	}
}

func TestLastActiveThreadRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	if got, _ := repo.LoadLastActiveThread("ws-1"); got != "" {
		t.Fatalf("expected empty before save, got %q", got)
	}
	if err := repo.SaveLastActiveThread("ws-1", "t-7"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.LoadLastActiveThread("ws-1")
	if err != nil || got != "t-7" {
		t.Fatalf("load: got (%q, %v)", got, err)
	}
	// Empty thread id clears the bookmark.
	if err := repo.SaveLastActiveThread("ws-1", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := repo.LoadLastActiveThread("ws-1"); got != "" {
		t.Fatalf("expected cleared, got %q", got)
	}
}

func TestSaveRejectsIncompleteRecords(t *testing.T) {
	repo := openTestRepo(t)
	if err := repo.SaveThreadMeta(&types.ThreadMeta{WorkspaceID: "ws-1"}); err == nil {
		t.Fatalf("meta without thread id must be rejected")
	}
	if err := repo.SaveApprovalRule(&types.ApprovalRule{WorkspaceID: "ws-1"}); err == nil {
		t.Fatalf("rule without tokens must be rejected")
	}
	if err := repo.SaveBookmark(&types.Bookmark{ThreadID: "t-1"}); err == nil {
		t.Fatalf("bookmark without item id must be rejected")
	}
}
