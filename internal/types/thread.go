package types

import (
	"strings"
	"time"
)

// Thread is one ongoing conversation with the remote agent, scoped to a
// workspace. Items are append-ordered by first-seen position; individual
// items are mutated in place as deltas and completions arrive.
type Thread struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	// CustomName overrides the derived preview when set.
	CustomName string `json:"custom_name,omitempty"`
	Preview    string `json:"preview,omitempty"`
	Cwd        string `json:"cwd,omitempty"`
	ParentID   string `json:"parent_id,omitempty"`

	UpdatedAt time.Time           `json:"updated_at"`
	Items     []*ConversationItem `json:"items"`

	IsProcessing        bool       `json:"is_processing"`
	HasUnread           bool       `json:"has_unread"`
	IsReviewing         bool       `json:"is_reviewing"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	LastDurationMs      int64      `json:"last_duration_ms,omitempty"`

	ActiveTurnID string            `json:"active_turn_id,omitempty"`
	Plan         *TurnPlan         `json:"plan,omitempty"`
	TokenUsage   *ThreadTokenUsage `json:"token_usage,omitempty"`
	PinnedAt     *time.Time        `json:"pinned_at,omitempty"`
}

// DisplayName returns the custom name when set, otherwise the derived
// preview.
func (t *Thread) DisplayName() string {
	if t == nil {
		return ""
	}
	if name := strings.TrimSpace(t.CustomName); name != "" {
		return name
	}
	return strings.TrimSpace(t.Preview)
}

func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	out := *t
	if t.Items != nil {
		out.Items = make([]*ConversationItem, 0, len(t.Items))
		for _, item := range t.Items {
			out.Items = append(out.Items, item.Clone())
		}
	}
	if t.ProcessingStartedAt != nil {
		ts := *t.ProcessingStartedAt
		out.ProcessingStartedAt = &ts
	}
	if t.PinnedAt != nil {
		ts := *t.PinnedAt
		out.PinnedAt = &ts
	}
	out.Plan = t.Plan.Clone()
	out.TokenUsage = t.TokenUsage.Clone()
	return &out
}

type TurnPlan struct {
	TurnID      string     `json:"turn_id,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
	Steps       []PlanStep `json:"steps,omitempty"`
}

type PlanStep struct {
	Step   string `json:"step"`
	Status string `json:"status,omitempty"`
}

func (p *TurnPlan) Clone() *TurnPlan {
	if p == nil {
		return nil
	}
	out := *p
	if p.Steps != nil {
		out.Steps = append([]PlanStep{}, p.Steps...)
	}
	return &out
}
