// Package threads holds the authoritative in-memory conversation model:
// threads, their ordered items, turn status, overlays, the message flow
// queue and the thread parent relation. All mutations funnel through one
// store-wide mutex because the flow controller and approval plumbing read
// and write cross-thread aggregate state.
package threads

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cockpit/internal/logging"
	"cockpit/internal/router"
	"cockpit/internal/types"
)

// PinSoftLimit is the advisory pin count per workspace; exceeding it logs
// a warning, it is not enforced.
const PinSoftLimit = 5

type Hooks struct {
	// OnInterruptReady fires when turn/started arrives for a thread that
	// was marked for interrupt before the server acknowledged the turn.
	// Called outside the store lock.
	OnInterruptReady func(threadID, turnID string)
}

type Store struct {
	logger logging.Logger
	hooks  Hooks

	mu               sync.Mutex
	threads          map[string]*types.Thread
	lastAgentMessage map[string]string
	rateLimits       map[string]*types.RateLimitSnapshot
	parents          map[string]string
	activeThreadID   string
	pendingInterrupt map[string]bool

	// flow controller state, see flow.go
	sender   SendFunc
	queues   map[string][]*types.QueuedMessage
	inFlight map[string]bool
	draining map[string]bool
}

func NewStore(logger logging.Logger, hooks Hooks) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{
		logger:           logger,
		hooks:            hooks,
		threads:          map[string]*types.Thread{},
		lastAgentMessage: map[string]string{},
		rateLimits:       map[string]*types.RateLimitSnapshot{},
		parents:          map[string]string{},
		pendingInterrupt: map[string]bool{},
		queues:           map[string][]*types.QueuedMessage{},
		inFlight:         map[string]bool{},
		draining:         map[string]bool{},
	}
}

// Apply folds one routed event into the model. It is the single event
// delivery path; see the concurrency notes on Store.
func (s *Store) Apply(ev router.Event) {
	if s == nil || ev == nil {
		return
	}
	var (
		interruptThread string
		interruptTurn   string
		drainThread     string
	)
	s.mu.Lock()
	switch event := ev.(type) {
	case router.TurnStarted:
		t := s.ensureLocked(event.ThreadID)
		now := time.Now().UTC()
		t.IsProcessing = true
		t.ProcessingStartedAt = &now
		t.ActiveTurnID = event.TurnID
		if s.pendingInterrupt[event.ThreadID] {
			delete(s.pendingInterrupt, event.ThreadID)
			interruptThread = event.ThreadID
			interruptTurn = event.TurnID
		}
	case router.AgentDelta:
		t := s.ensureLocked(event.ThreadID)
		if !t.IsProcessing {
			// Defensive: turn/started may have been missed. Stamp the start
			// time too so the turn still gets a duration.
			now := time.Now().UTC()
			t.IsProcessing = true
			t.ProcessingStartedAt = &now
		}
		s.applyAgentDeltaLocked(t, event.ItemID, event.Delta)
	case router.ReasoningDelta:
		t := s.ensureLocked(event.ThreadID)
		s.applyReasoningDeltaLocked(t, event.ItemID, event.Delta, event.Summary)
	case router.ToolOutputDelta:
		t := s.ensureLocked(event.ThreadID)
		s.applyToolOutputDeltaLocked(t, event.ItemID, event.Delta)
	case router.ItemUpdate:
		t := s.ensureLocked(event.ThreadID)
		s.applyItemUpdateLocked(t, event.Item, event.Started)
	case router.TurnCompleted:
		t := s.ensureLocked(event.ThreadID)
		s.finishTurnLocked(t)
		drainThread = event.ThreadID
	case router.TurnError:
		if event.ThreadID == "" {
			s.logger.Warn("turn_error_without_thread", logging.F("message", event.Message))
			break
		}
		if event.WillRetry {
			// The server retries on its own; no user-visible error and
			// processing stays true.
			break
		}
		t := s.ensureLocked(event.ThreadID)
		s.finishTurnLocked(t)
		t.IsReviewing = false
		s.appendErrorItemLocked(t, event.Message)
		if t.ID != s.activeThreadID {
			t.HasUnread = true
		}
		drainThread = event.ThreadID
	case router.PlanUpdated:
		t := s.ensureLocked(event.ThreadID)
		t.Plan = &types.TurnPlan{
			TurnID:      event.TurnID,
			Explanation: event.Explanation,
			Steps:       append([]types.PlanStep{}, event.Steps...),
		}
	case router.TokenUsageUpdated:
		t := s.ensureLocked(event.ThreadID)
		usage := event.Usage
		t.TokenUsage = &usage
	case router.RateLimitsUpdated:
		snapshot := event.Snapshot
		s.rateLimits[event.WorkspaceID] = &snapshot
	}
	s.mu.Unlock()

	if interruptThread != "" && s.hooks.OnInterruptReady != nil {
		s.hooks.OnInterruptReady(interruptThread, interruptTurn)
	}
	if drainThread != "" {
		s.Drain(drainThread)
	}
}

func (s *Store) finishTurnLocked(t *types.Thread) {
	if t.ProcessingStartedAt != nil {
		t.LastDurationMs = time.Since(*t.ProcessingStartedAt).Milliseconds()
	}
	t.IsProcessing = false
	t.ProcessingStartedAt = nil
	t.ActiveTurnID = ""
	delete(s.inFlight, t.ID)
	t.UpdatedAt = time.Now().UTC()
}

// EnsureThread registers a thread id, keeping existing state when already
// known.
func (s *Store) EnsureThread(threadID, workspaceID, cwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureLocked(threadID)
	if workspaceID != "" {
		t.WorkspaceID = workspaceID
	}
	if cwd != "" {
		t.Cwd = cwd
	}
}

func (s *Store) ensureLocked(threadID string) *types.Thread {
	t := s.threads[threadID]
	if t == nil {
		t = &types.Thread{ID: threadID, UpdatedAt: time.Now().UTC()}
		if parent := s.parents[threadID]; parent != "" {
			t.ParentID = parent
		}
		s.threads[threadID] = t
	}
	return t
}

// Thread returns a snapshot of one thread, or nil when unknown.
func (s *Store) Thread(threadID string) *types.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads[threadID].Clone()
}

// Threads returns snapshots for a workspace, pinned threads first (oldest
// pin first), then by most recent update.
func (s *Store) Threads(workspaceID string) []*types.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Thread, 0)
	for _, t := range s.threads {
		if workspaceID != "" && t.WorkspaceID != workspaceID {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		iPinned := out[i].PinnedAt != nil
		jPinned := out[j].PinnedAt != nil
		if iPinned != jPinned {
			return iPinned
		}
		if iPinned && jPinned {
			return out[i].PinnedAt.Before(*out[j].PinnedAt)
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// SetActiveThread marks the thread the user is looking at; events for it no
// longer flag unread, and entering it clears the flag.
func (s *Store) SetActiveThread(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeThreadID = threadID
	if t := s.threads[threadID]; t != nil {
		t.HasUnread = false
	}
}

func (s *Store) ActiveThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeThreadID
}

// LastAgentMessage returns the text of the last completed assistant message
// for a thread.
func (s *Store) LastAgentMessage(threadID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAgentMessage[threadID]
}

func (s *Store) RateLimits(workspaceID string) *types.RateLimitSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimits[workspaceID].Clone()
}

// SetPreview records a server-derived preview line, keeping any existing
// preview when the new one is empty.
func (s *Store) SetPreview(threadID, preview string) {
	preview = strings.TrimSpace(preview)
	if preview == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureLocked(threadID)
	t.Preview = previewText(preview)
}

// AppendError adds a visible error item to the thread.
func (s *Store) AppendError(threadID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureLocked(threadID)
	s.appendErrorItemLocked(t, message)
}

// SetCustomName applies the custom-name overlay.
func (s *Store) SetCustomName(threadID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureLocked(threadID)
	t.CustomName = strings.TrimSpace(name)
}

// SetPinned applies the pin overlay and returns the resulting pin count
// for the thread's workspace so the caller can warn past the soft limit.
func (s *Store) SetPinned(threadID string, pinnedAt *time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureLocked(threadID)
	if pinnedAt != nil {
		ts := pinnedAt.UTC()
		t.PinnedAt = &ts
	} else {
		t.PinnedAt = nil
	}
	count := 0
	for _, other := range s.threads {
		if other.WorkspaceID == t.WorkspaceID && other.PinnedAt != nil {
			count++
		}
	}
	return count
}

// ApplyMeta folds a persisted overlay entry back in at startup.
func (s *Store) ApplyMeta(meta *types.ThreadMeta) {
	if meta == nil || strings.TrimSpace(meta.ThreadID) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureLocked(meta.ThreadID)
	if meta.WorkspaceID != "" {
		t.WorkspaceID = meta.WorkspaceID
	}
	if meta.CustomName != "" {
		t.CustomName = meta.CustomName
	}
	if meta.PinnedAt != nil {
		ts := meta.PinnedAt.UTC()
		t.PinnedAt = &ts
	}
	if meta.LastActivityAt != nil && meta.LastActivityAt.After(t.UpdatedAt) {
		t.UpdatedAt = meta.LastActivityAt.UTC()
	}
}

// Remove forgets a thread entirely (archive).
func (s *Store) Remove(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	delete(s.lastAgentMessage, threadID)
	delete(s.queues, threadID)
	delete(s.inFlight, threadID)
	delete(s.draining, threadID)
	delete(s.pendingInterrupt, threadID)
}

// MarkPendingInterrupt requests an interrupt. When the active turn id is
// already known it is returned for immediate dispatch; otherwise the
// interrupt latches until turn/started arrives.
func (s *Store) MarkPendingInterrupt(threadID string) (turnID string, dispatchNow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureLocked(threadID)
	if t.ActiveTurnID != "" {
		return t.ActiveTurnID, true
	}
	s.pendingInterrupt[threadID] = true
	return "", false
}

func (s *Store) appendErrorItemLocked(t *types.Thread, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "The agent reported an unknown error."
	}
	item := &types.ConversationItem{
		ID:   "local-" + uuid.NewString(),
		Kind: types.ItemKindMessage,
		Message: &types.MessageItem{
			Role: types.MessageRoleAssistant,
			Text: message,
		},
	}
	t.Items = append(t.Items, item)
	s.enforceBoundsLocked(t)
	t.UpdatedAt = time.Now().UTC()
}
