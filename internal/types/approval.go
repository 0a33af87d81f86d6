package types

import "time"

// ApprovalRequest is a server-initiated question asking whether a
// privileged action may proceed. The composite (WorkspaceID, RequestID)
// identifies it; RequestID keeps the wire spelling (numeric ids are
// rendered in decimal).
type ApprovalRequest struct {
	WorkspaceID string         `json:"workspace_id"`
	RequestID   string         `json:"request_id"`
	Method      string         `json:"method"`
	Params      map[string]any `json:"params,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ApprovalRule is a remembered command token prefix. Any future command
// request whose leading tokens equal Tokens in order is auto-accepted for
// the rule's workspace.
type ApprovalRule struct {
	WorkspaceID string    `json:"workspace_id"`
	Tokens      []string  `json:"tokens"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *ApprovalRule) Clone() *ApprovalRule {
	if r == nil {
		return nil
	}
	out := *r
	if r.Tokens != nil {
		out.Tokens = append([]string{}, r.Tokens...)
	}
	return &out
}
