package types

import "time"

// Bookmark marks one conversation item so it can be found again later.
type Bookmark struct {
	WorkspaceID string    `json:"workspace_id"`
	ThreadID    string    `json:"thread_id"`
	ItemID      string    `json:"item_id"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (b *Bookmark) Clone() *Bookmark {
	if b == nil {
		return nil
	}
	out := *b
	return &out
}
