// Package approvals answers server-initiated approval requests: it tracks
// pending prompts, remembers per-workspace command prefixes the user has
// approved, and auto-accepts matching requests without surfacing them.
package approvals

import (
	"sort"
	"strings"
	"sync"
	"time"

	"cockpit/internal/logging"
	"cockpit/internal/payload"
	"cockpit/internal/router"
	"cockpit/internal/types"
)

// Decision values sent back on the approval response frame.
const (
	DecisionAccept  = "accept"
	DecisionDecline = "decline"
)

// Responder sends the decision back over the wire for a given request id.
type Responder interface {
	RespondApproval(requestID, decision string) error
}

// RuleStore persists remembered approval rules across runs.
type RuleStore interface {
	SaveApprovalRule(rule *types.ApprovalRule) error
	LoadApprovalRules(workspaceID string) ([]*types.ApprovalRule, error)
	DeleteApprovalRules(workspaceID string) error
}

// Gatekeeper mediates approval requests. Requests matching a remembered
// rule are accepted immediately; everything else parks in the pending set
// until the user resolves it.
type Gatekeeper struct {
	logger    logging.Logger
	responder Responder
	rules     RuleStore

	// OnPending fires when a request needs a user decision. Called outside
	// the gatekeeper lock.
	OnPending func(req *types.ApprovalRequest)

	mu       sync.Mutex
	pending  map[string]*types.ApprovalRequest
	prefixes map[string][][]string
}

func NewGatekeeper(logger logging.Logger, responder Responder, rules RuleStore) *Gatekeeper {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Gatekeeper{
		logger:    logger,
		responder: responder,
		rules:     rules,
		pending:   map[string]*types.ApprovalRequest{},
		prefixes:  map[string][][]string{},
	}
}

// LoadRules pulls the persisted rules for a workspace into memory. Safe to
// call repeatedly; the in-memory set is replaced.
func (g *Gatekeeper) LoadRules(workspaceID string) error {
	if g.rules == nil {
		return nil
	}
	rules, err := g.rules.LoadApprovalRules(workspaceID)
	if err != nil {
		return err
	}
	prefixes := make([][]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule.Tokens) > 0 {
			prefixes = append(prefixes, append([]string{}, rule.Tokens...))
		}
	}
	g.mu.Lock()
	g.prefixes[workspaceID] = prefixes
	g.mu.Unlock()
	return nil
}

// HandleRequest processes one routed approval event. It returns true when
// the request was auto-accepted.
func (g *Gatekeeper) HandleRequest(ev router.ApprovalRequested) bool {
	req := &types.ApprovalRequest{
		WorkspaceID: ev.WorkspaceID,
		RequestID:   ev.RequestID,
		Method:      ev.Method,
		Params:      ev.Params,
		CreatedAt:   time.Now().UTC(),
	}
	tokens := CommandTokens(ev.Params)
	if len(tokens) > 0 && g.matches(ev.WorkspaceID, tokens) {
		if err := g.respond(req.RequestID, DecisionAccept); err != nil {
			g.logger.Warn("approval_auto_accept_failed",
				logging.F("request", req.RequestID),
				logging.F("error", err))
		} else {
			g.logger.Info("approval_auto_accepted",
				logging.F("request", req.RequestID),
				logging.F("command", strings.Join(tokens, " ")))
			return true
		}
	}
	g.mu.Lock()
	g.pending[req.RequestID] = req
	g.mu.Unlock()
	if g.OnPending != nil {
		g.OnPending(req)
	}
	return false
}

// Pending returns the open requests, oldest first.
func (g *Gatekeeper) Pending() []*types.ApprovalRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*types.ApprovalRequest, 0, len(g.pending))
	for _, req := range g.pending {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Resolve answers a pending request with the given decision.
func (g *Gatekeeper) Resolve(requestID, decision string) error {
	g.mu.Lock()
	_, ok := g.pending[requestID]
	delete(g.pending, requestID)
	g.mu.Unlock()
	if !ok {
		return nil
	}
	return g.respond(requestID, decision)
}

// RememberAndAccept accepts a pending request and records its command
// prefix so future requests with the same leading tokens skip the prompt.
func (g *Gatekeeper) RememberAndAccept(requestID string, prefixLen int) error {
	g.mu.Lock()
	req := g.pending[requestID]
	delete(g.pending, requestID)
	g.mu.Unlock()
	if req == nil {
		return nil
	}
	tokens := CommandTokens(req.Params)
	if prefixLen > 0 && prefixLen < len(tokens) {
		tokens = tokens[:prefixLen]
	}
	if len(tokens) > 0 {
		rule := &types.ApprovalRule{
			WorkspaceID: req.WorkspaceID,
			Tokens:      tokens,
			CreatedAt:   time.Now().UTC(),
		}
		g.mu.Lock()
		g.prefixes[req.WorkspaceID] = append(g.prefixes[req.WorkspaceID], tokens)
		g.mu.Unlock()
		if g.rules != nil {
			if err := g.rules.SaveApprovalRule(rule); err != nil {
				g.logger.Warn("approval_rule_save_failed", logging.F("error", err))
			}
		}
	}
	return g.respond(requestID, DecisionAccept)
}

// ForgetRules drops all remembered rules for a workspace.
func (g *Gatekeeper) ForgetRules(workspaceID string) error {
	g.mu.Lock()
	delete(g.prefixes, workspaceID)
	g.mu.Unlock()
	if g.rules == nil {
		return nil
	}
	return g.rules.DeleteApprovalRules(workspaceID)
}

func (g *Gatekeeper) respond(requestID, decision string) error {
	if g.responder == nil {
		return nil
	}
	return g.responder.RespondApproval(requestID, decision)
}

// matches reports whether any remembered prefix for the workspace equals
// the leading tokens of the command. Matching is token-wise: a rule for
// ["npm","install"] never matches ["npm","uninstall"].
func (g *Gatekeeper) matches(workspaceID string, tokens []string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, prefix := range g.prefixes[workspaceID] {
		if len(prefix) > len(tokens) {
			continue
		}
		match := true
		for i, tok := range prefix {
			if tokens[i] != tok {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// CommandTokens extracts the command being approved as a token list. The
// server spells it several ways across request kinds; a pre-split list is
// preferred over whitespace-splitting the joined string.
func CommandTokens(params map[string]any) []string {
	for _, key := range []string{"parsedCmd", "argv", "command"} {
		if list := payload.StringList(params, key); len(list) > 0 {
			return list
		}
	}
	command := payload.String(params, "command", "cmd")
	if command == "" {
		return nil
	}
	return strings.Fields(command)
}
