package types

import "time"

// ThreadTokenUsage is a last-known-wins snapshot keyed by thread id. It is
// replaced wholesale on each update notification, never merged field by
// field.
type ThreadTokenUsage struct {
	InputTokens       int64 `json:"input_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens,omitempty"`
	OutputTokens      int64 `json:"output_tokens"`
	TotalTokens       int64 `json:"total_tokens"`
	ContextWindow     int64 `json:"context_window,omitempty"`
}

func (u *ThreadTokenUsage) Clone() *ThreadTokenUsage {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

// RateLimitSnapshot is a last-known-wins snapshot keyed by workspace id.
type RateLimitSnapshot struct {
	Primary   *RateLimitWindow `json:"primary,omitempty"`
	Secondary *RateLimitWindow `json:"secondary,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type RateLimitWindow struct {
	UsedPercent   float64    `json:"used_percent"`
	WindowMinutes int64      `json:"window_minutes,omitempty"`
	ResetsAt      *time.Time `json:"resets_at,omitempty"`
}

func (s *RateLimitSnapshot) Clone() *RateLimitSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Primary != nil {
		window := *s.Primary
		out.Primary = &window
	}
	if s.Secondary != nil {
		window := *s.Secondary
		out.Secondary = &window
	}
	return &out
}
