package threads

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"cockpit/internal/logging"
	"cockpit/internal/types"
)

// SendFunc performs the actual turn/start call for a dequeued message. It
// blocks until the server acknowledges or rejects the send.
type SendFunc func(threadID string, msg *types.QueuedMessage) error

// maxSendRetries bounds automatic resends of one message; past it the
// message is dropped with an error item instead of being requeued.
const maxSendRetries = 3

// SetSender installs the function used to dispatch queued messages.
func (s *Store) SetSender(send SendFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = send
}

// QueueMessage appends a message to the thread's FIFO queue and triggers a
// drain. The returned id identifies the queued message.
func (s *Store) QueueMessage(threadID, text string, images []types.ImageAttachment, accessMode string) string {
	msg := &types.QueuedMessage{
		ID:         uuid.NewString(),
		Text:       text,
		CreatedAt:  time.Now().UTC(),
		Images:     images,
		AccessMode: accessMode,
	}
	s.mu.Lock()
	s.ensureLocked(threadID)
	s.queues[threadID] = append(s.queues[threadID], msg)
	s.mu.Unlock()
	s.Drain(threadID)
	return msg.ID
}

// QueuedMessages returns a snapshot of the thread's pending queue.
func (s *Store) QueuedMessages(threadID string) []*types.QueuedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queues[threadID]
	out := make([]*types.QueuedMessage, 0, len(queue))
	for _, msg := range queue {
		out = append(out, msg.Clone())
	}
	return out
}

// ClearQueue drops all pending messages for a thread.
func (s *Store) ClearQueue(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, threadID)
}

// Drain attempts to dispatch the head of the thread's queue. It is a no-op
// while a turn is in flight, while the thread is processing, or while
// another drain for the thread is already running. At most one message is
// dispatched per idle transition.
func (s *Store) Drain(threadID string) {
	s.mu.Lock()
	if s.sender == nil || s.draining[threadID] || s.inFlight[threadID] {
		s.mu.Unlock()
		return
	}
	t := s.threads[threadID]
	if t == nil || t.IsProcessing {
		s.mu.Unlock()
		return
	}
	queue := s.queues[threadID]
	if len(queue) == 0 {
		s.mu.Unlock()
		return
	}
	msg := queue[0]
	s.queues[threadID] = queue[1:]
	s.draining[threadID] = true
	s.inFlight[threadID] = true
	send := s.sender
	s.mu.Unlock()

	go s.dispatch(threadID, msg, send)
}

func (s *Store) dispatch(threadID string, msg *types.QueuedMessage, send SendFunc) {
	err := send(threadID, msg)

	s.mu.Lock()
	delete(s.draining, threadID)
	if err == nil {
		// inFlight stays set until turn completion clears it.
		s.mu.Unlock()
		return
	}
	delete(s.inFlight, threadID)
	t := s.ensureLocked(threadID)
	msg.SendRetries++
	requeued := msg.SendRetries <= maxSendRetries
	if requeued {
		s.queues[threadID] = append([]*types.QueuedMessage{msg}, s.queues[threadID]...)
	}
	s.appendErrorItemLocked(t, sendFailureText(err, requeued))
	s.mu.Unlock()

	s.logger.Warn("message_send_failed",
		logging.F("thread", threadID),
		logging.F("retries", msg.SendRetries),
		logging.F("error", err))
}

func sendFailureText(err error, requeued bool) string {
	text := strings.TrimSpace(err.Error())
	if text == "" {
		text = "send failed"
	}
	if requeued {
		return "Failed to send message: " + text + ". It will be retried."
	}
	return "Failed to send message: " + text + ". Giving up after repeated failures."
}
