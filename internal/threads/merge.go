package threads

import (
	"cockpit/internal/types"
)

// MergeHistory folds a fetched thread history into the live thread. With
// replace set the remote items displace local state wholesale; otherwise
// the two lists are merged per item, keeping whichever copy carries more
// streamed content while treating remote status fields as authoritative.
func (s *Store) MergeHistory(threadID string, remote []*types.ConversationItem, replace bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureLocked(threadID)
	if replace {
		t.Items = remote
		s.enforceBoundsLocked(t)
		return
	}
	t.Items = mergeItems(t.Items, remote)
	s.dedupeReviewEchoLocked(t)
	s.enforceBoundsLocked(t)
}

// mergeItems combines local and remote item lists. Remote order wins for
// shared items; local-only items (streaming partials the server has not
// persisted yet) are appended after, in their local order. When no ids
// overlap at all, the remote list wins outright: the local state belonged
// to a different epoch of the thread.
func mergeItems(local, remote []*types.ConversationItem) []*types.ConversationItem {
	if len(local) == 0 {
		return remote
	}
	if len(remote) == 0 {
		return local
	}
	localByID := make(map[string]*types.ConversationItem, len(local))
	for _, item := range local {
		localByID[item.ID] = item
	}
	overlap := false
	for _, item := range remote {
		if localByID[item.ID] != nil {
			overlap = true
			break
		}
	}
	if !overlap {
		return remote
	}
	remoteIDs := make(map[string]bool, len(remote))
	out := make([]*types.ConversationItem, 0, len(local)+len(remote))
	for _, remoteItem := range remote {
		remoteIDs[remoteItem.ID] = true
		if localItem := localByID[remoteItem.ID]; localItem != nil {
			out = append(out, mergeItem(localItem, remoteItem))
			continue
		}
		out = append(out, remoteItem)
	}
	for _, localItem := range local {
		if !remoteIDs[localItem.ID] {
			out = append(out, localItem)
		}
	}
	return out
}

// mergeItem picks between the local and remote copy of one item. The copy
// with strictly more streamed content is kept; ties go to the remote. The
// remote's status and file-change fields win regardless, since the server
// knows the true outcome of a command or diff.
func mergeItem(local, remote *types.ConversationItem) *types.ConversationItem {
	if local.ContentLength() <= remote.ContentLength() {
		return remote
	}
	out := local
	if remote.Tool != nil && out.Tool != nil {
		if remote.Tool.Status != "" {
			out.Tool.Status = remote.Tool.Status
		}
		if len(remote.Tool.Changes) > 0 {
			out.Tool.Changes = remote.Tool.Changes
		}
		if remote.Tool.DurationMs > 0 {
			out.Tool.DurationMs = remote.Tool.DurationMs
		}
	}
	if remote.Diff != nil && out.Diff != nil && remote.Diff.Status != "" {
		out.Diff.Status = remote.Diff.Status
	}
	if remote.Review != nil && out.Review != nil && remote.Review.State != "" {
		out.Review.State = remote.Review.State
	}
	return out
}
