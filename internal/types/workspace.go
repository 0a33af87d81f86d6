package types

import "time"

// Workspace is a project root that scopes threads, approvals and rate-limit
// snapshots.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	RootPath  string    `json:"root_path"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadMeta is the persisted overlay for one thread: pin timestamp, custom
// name and last-activity stamp. Read back at startup, written best-effort.
type ThreadMeta struct {
	WorkspaceID    string     `json:"workspace_id"`
	ThreadID       string     `json:"thread_id"`
	CustomName     string     `json:"custom_name,omitempty"`
	PinnedAt       *time.Time `json:"pinned_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

func (m *ThreadMeta) Clone() *ThreadMeta {
	if m == nil {
		return nil
	}
	out := *m
	if m.PinnedAt != nil {
		ts := *m.PinnedAt
		out.PinnedAt = &ts
	}
	if m.LastActivityAt != nil {
		ts := *m.LastActivityAt
		out.LastActivityAt = &ts
	}
	return &out
}
