package approvals

import (
	"sync"
	"testing"

	"cockpit/internal/router"
	"cockpit/internal/types"
)

type recordingResponder struct {
	mu        sync.Mutex
	responses map[string]string
}

func (r *recordingResponder) RespondApproval(requestID, decision string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responses == nil {
		r.responses = map[string]string{}
	}
	r.responses[requestID] = decision
	return nil
}

func (r *recordingResponder) decision(requestID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responses[requestID]
}

type memoryRules struct {
	rules []*types.ApprovalRule
}

func (m *memoryRules) SaveApprovalRule(rule *types.ApprovalRule) error {
	m.rules = append(m.rules, rule.Clone())
	return nil
}

func (m *memoryRules) LoadApprovalRules(workspaceID string) ([]*types.ApprovalRule, error) {
	var out []*types.ApprovalRule
	for _, rule := range m.rules {
		if rule.WorkspaceID == workspaceID {
			out = append(out, rule.Clone())
		}
	}
	return out, nil
}

func (m *memoryRules) DeleteApprovalRules(workspaceID string) error {
	var kept []*types.ApprovalRule
	for _, rule := range m.rules {
		if rule.WorkspaceID != workspaceID {
			kept = append(kept, rule)
		}
	}
	m.rules = kept
	return nil
}

func request(id, command string) router.ApprovalRequested {
	return router.ApprovalRequested{
		WorkspaceID: "ws-1",
		RequestID:   id,
		Method:      "execCommandApproval/requestApproval",
		Params:      map[string]any{"command": command},
	}
}

func TestUnknownCommandParksPending(t *testing.T) {
	responder := &recordingResponder{}
	g := NewGatekeeper(nil, responder, nil)
	if g.HandleRequest(request("1", "rm -rf build")) {
		t.Fatalf("unknown command must not auto-accept")
	}
	pending := g.Pending()
	if len(pending) != 1 || pending[0].RequestID != "1" {
		t.Fatalf("expected pending request, got %+v", pending)
	}
	if responder.decision("1") != "" {
		t.Fatalf("no decision should be sent yet")
	}
}

func TestResolveSendsDecision(t *testing.T) {
	responder := &recordingResponder{}
	g := NewGatekeeper(nil, responder, nil)
	g.HandleRequest(request("1", "make deploy"))
	if err := g.Resolve("1", DecisionDecline); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if responder.decision("1") != DecisionDecline {
		t.Fatalf("decision not sent")
	}
	if len(g.Pending()) != 0 {
		t.Fatalf("request should leave the pending set")
	}
}

func TestRememberAndAutoAccept(t *testing.T) {
	responder := &recordingResponder{}
	rules := &memoryRules{}
	g := NewGatekeeper(nil, responder, rules)

	g.HandleRequest(request("1", "npm install left-pad"))
	if err := g.RememberAndAccept("1", 2); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if responder.decision("1") != DecisionAccept {
		t.Fatalf("remembered request should be accepted")
	}
	if len(rules.rules) != 1 || len(rules.rules[0].Tokens) != 2 {
		t.Fatalf("rule not persisted: %+v", rules.rules)
	}

	// Same prefix, different package: auto-accepted without pending.
	if !g.HandleRequest(request("2", "npm install right-pad")) {
		t.Fatalf("matching prefix should auto-accept")
	}
	if responder.decision("2") != DecisionAccept {
		t.Fatalf("auto-accept decision not sent")
	}
	if len(g.Pending()) != 0 {
		t.Fatalf("auto-accepted request must not be pending")
	}
}

func TestPrefixMatchIsTokenwise(t *testing.T) {
	responder := &recordingResponder{}
	g := NewGatekeeper(nil, responder, &memoryRules{})
	g.HandleRequest(request("1", "npm install left-pad"))
	if err := g.RememberAndAccept("1", 2); err != nil {
		t.Fatalf("remember: %v", err)
	}
	// "npm uninstall" shares a string prefix but not a token prefix.
	if g.HandleRequest(request("2", "npm uninstall left-pad")) {
		t.Fatalf("npm uninstall must not match the npm install rule")
	}
}

func TestRulesAreWorkspaceScoped(t *testing.T) {
	responder := &recordingResponder{}
	g := NewGatekeeper(nil, responder, &memoryRules{})
	g.HandleRequest(request("1", "go test ./..."))
	if err := g.RememberAndAccept("1", 2); err != nil {
		t.Fatalf("remember: %v", err)
	}
	other := request("2", "go test ./...")
	other.WorkspaceID = "ws-2"
	if g.HandleRequest(other) {
		t.Fatalf("rule must not leak across workspaces")
	}
}

func TestLoadRulesRestoresPersistedPrefixes(t *testing.T) {
	responder := &recordingResponder{}
	rules := &memoryRules{}
	first := NewGatekeeper(nil, responder, rules)
	first.HandleRequest(request("1", "cargo build --release"))
	if err := first.RememberAndAccept("1", 2); err != nil {
		t.Fatalf("remember: %v", err)
	}

	second := NewGatekeeper(nil, responder, rules)
	if err := second.LoadRules("ws-1"); err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if !second.HandleRequest(request("2", "cargo build --offline")) {
		t.Fatalf("restored rule should auto-accept")
	}
}

func TestParsedCommandListPreferred(t *testing.T) {
	params := map[string]any{
		"command":   "sh -c 'echo hi'",
		"parsedCmd": []any{"echo", "hi"},
	}
	tokens := CommandTokens(params)
	if len(tokens) != 2 || tokens[0] != "echo" {
		t.Fatalf("parsed list should win over the joined string: %v", tokens)
	}
}

func TestForgetRules(t *testing.T) {
	responder := &recordingResponder{}
	rules := &memoryRules{}
	g := NewGatekeeper(nil, responder, rules)
	g.HandleRequest(request("1", "npm install x"))
	if err := g.RememberAndAccept("1", 2); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := g.ForgetRules("ws-1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if g.HandleRequest(request("2", "npm install y")) {
		t.Fatalf("forgotten rule must not match")
	}
	if len(rules.rules) != 0 {
		t.Fatalf("persisted rules should be deleted")
	}
}
