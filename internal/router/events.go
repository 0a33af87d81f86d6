package router

import "cockpit/internal/types"

// Event is the closed set of typed domain events produced from push
// notifications. Each notification yields zero or one event.
type Event interface {
	event()
}

type WorkspaceConnected struct {
	WorkspaceID string
}

// ItemUpdate carries the raw item payload; the thread store builds the
// typed ConversationItem so the router stays free of item semantics.
type ItemUpdate struct {
	ThreadID string
	Item     map[string]any
	Started  bool
}

type AgentDelta struct {
	ThreadID string
	ItemID   string
	Delta    string
}

type ReasoningDelta struct {
	ThreadID string
	ItemID   string
	Delta    string
	Summary  bool
}

type ToolOutputDelta struct {
	ThreadID string
	ItemID   string
	Delta    string
}

type TurnStarted struct {
	ThreadID string
	TurnID   string
}

type TurnCompleted struct {
	ThreadID string
	TurnID   string
}

type PlanUpdated struct {
	ThreadID    string
	TurnID      string
	Explanation string
	Steps       []types.PlanStep
}

type TokenUsageUpdated struct {
	ThreadID string
	Usage    types.ThreadTokenUsage
}

type RateLimitsUpdated struct {
	WorkspaceID string
	Snapshot    types.RateLimitSnapshot
}

type ApprovalRequested struct {
	WorkspaceID string
	RequestID   string
	Method      string
	Params      map[string]any
}

type TurnError struct {
	ThreadID  string
	Message   string
	WillRetry bool
}

func (WorkspaceConnected) event() {}
func (ItemUpdate) event()         {}
func (AgentDelta) event()         {}
func (ReasoningDelta) event()     {}
func (ToolOutputDelta) event()    {}
func (TurnStarted) event()        {}
func (TurnCompleted) event()      {}
func (PlanUpdated) event()        {}
func (TokenUsageUpdated) event()  {}
func (RateLimitsUpdated) event()  {}
func (ApprovalRequested) event()  {}
func (TurnError) event()          {}
