package types

import "time"

// QueuedMessage is a user message waiting for its thread to go idle. It is
// consumed exactly once, in FIFO order, and re-inserted at the front of the
// queue when the send attempt fails.
type QueuedMessage struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	CreatedAt   time.Time         `json:"created_at"`
	Images      []ImageAttachment `json:"images,omitempty"`
	AccessMode  string            `json:"access_mode,omitempty"`
	SendRetries int               `json:"send_retries,omitempty"`
}

type ImageAttachment struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

func (m *QueuedMessage) Clone() *QueuedMessage {
	if m == nil {
		return nil
	}
	out := *m
	if m.Images != nil {
		out.Images = make([]ImageAttachment, 0, len(m.Images))
		for _, img := range m.Images {
			copy := img
			if img.Data != nil {
				copy.Data = append([]byte{}, img.Data...)
			}
			out.Images = append(out.Images, copy)
		}
	}
	return &out
}
