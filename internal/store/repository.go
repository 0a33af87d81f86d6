// Package store persists the client's local overlays: thread metadata,
// remembered approval rules and bookmarks. Everything here is best-effort
// local state; the server remains the source of truth for conversations.
package store

import "cockpit/internal/types"

type ThreadMetaStore interface {
	SaveThreadMeta(meta *types.ThreadMeta) error
	LoadThreadMeta(workspaceID string) ([]*types.ThreadMeta, error)
	DeleteThreadMeta(workspaceID, threadID string) error
}

type ApprovalRuleStore interface {
	SaveApprovalRule(rule *types.ApprovalRule) error
	LoadApprovalRules(workspaceID string) ([]*types.ApprovalRule, error)
	DeleteApprovalRules(workspaceID string) error
}

type BookmarkStore interface {
	SaveBookmark(bookmark *types.Bookmark) error
	LoadBookmarks(workspaceID string) ([]*types.Bookmark, error)
	DeleteBookmark(workspaceID, threadID, itemID string) error
}

// LastActiveStore remembers which thread the user was last viewing per
// workspace, so a restart can land back on it.
type LastActiveStore interface {
	SaveLastActiveThread(workspaceID, threadID string) error
	LoadLastActiveThread(workspaceID string) (string, error)
}

// Repository is the full overlay persistence surface.
type Repository interface {
	ThreadMetaStore
	ApprovalRuleStore
	BookmarkStore
	LastActiveStore
	Close() error
}
