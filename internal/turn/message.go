package turn

import (
	"context"
	"errors"
)

// ErrNoTarget is returned when a pipeline tries to update a turn that has no
// live message. This is a programming error surfaced as a regular error so
// the boundary wrap reports it like any other failure.
var ErrNoTarget = errors.New("operation has no target to update")

// Publisher receives live-message checkpoints. Implementations push them to
// the client (the SSE handler in production, a recorder in tests).
type Publisher interface {
	// Publish sends the full current text of the live message.
	Publish(ctx context.Context, text string) error

	// PublishImage announces a generated image saved at path.
	PublishImage(ctx context.Context, path string) error
}

// Message accumulates the streamed response text for one turn and mirrors
// checkpoints to a Publisher. It is used by exactly one pipeline goroutine at
// a time, so it carries no lock.
type Message struct {
	pub    Publisher
	text   string
	images []string
}

// NewMessage builds a live message bound to a publisher.
func NewMessage(pub Publisher) *Message {
	return &Message{pub: pub}
}

// SetText replaces the accumulated text.
func (m *Message) SetText(text string) error {
	if m == nil {
		return ErrNoTarget
	}
	m.text = text
	return nil
}

// Append adds a delta to the accumulated text.
func (m *Message) Append(delta string) error {
	if m == nil {
		return ErrNoTarget
	}
	m.text += delta
	return nil
}

// Text returns the accumulated text.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return m.text
}

// Images returns the attached image paths in attach order.
func (m *Message) Images() []string {
	if m == nil {
		return nil
	}
	return m.images
}

// Publish mirrors the current text to the publisher.
func (m *Message) Publish(ctx context.Context) error {
	if m == nil {
		return ErrNoTarget
	}
	return m.pub.Publish(ctx, m.text)
}

// AttachImage records a generated image and announces it to the publisher.
func (m *Message) AttachImage(ctx context.Context, path string) error {
	if m == nil {
		return ErrNoTarget
	}
	m.images = append(m.images, path)
	return m.pub.PublishImage(ctx, path)
}
