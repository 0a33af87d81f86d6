package threads

import "strings"

// SetParent records that child was spawned from parent. The relation is
// first-writer-wins: once a child has a parent the edge never changes.
// Self-edges and edges that would close a cycle are rejected.
func (s *Store) SetParent(childID, parentID string) bool {
	childID = strings.TrimSpace(childID)
	parentID = strings.TrimSpace(parentID)
	if childID == "" || parentID == "" || childID == parentID {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parents[childID] != "" {
		return false
	}
	// Walk up from the proposed parent; finding the child means the edge
	// would close a cycle. The seen set guards against a corrupted chain.
	seen := map[string]bool{}
	for cursor := parentID; cursor != ""; cursor = s.parents[cursor] {
		if cursor == childID {
			return false
		}
		if seen[cursor] {
			break
		}
		seen[cursor] = true
	}
	s.parents[childID] = parentID
	if t := s.threads[childID]; t != nil {
		t.ParentID = parentID
	}
	return true
}

// Parent returns the recorded parent of a thread, or "".
func (s *Store) Parent(threadID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parents[threadID]
}

// Children returns the threads whose recorded parent is threadID.
func (s *Store) Children(threadID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for child, parent := range s.parents {
		if parent == threadID {
			out = append(out, child)
		}
	}
	return out
}

// Ancestry returns the chain from threadID up to its root, starting with
// the thread's own parent. The walk is bounded by a seen set.
func (s *Store) Ancestry(threadID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	seen := map[string]bool{threadID: true}
	for cursor := s.parents[threadID]; cursor != ""; cursor = s.parents[cursor] {
		if seen[cursor] {
			break
		}
		seen[cursor] = true
		out = append(out, cursor)
	}
	return out
}
