// Package history assembles and maintains the rolling conversation history
// sent to completion backends.
//
// Messages are provider-neutral: a role plus ordered parts, where a part is
// either text or an inline image data URL. Attachment conversion goes through
// the Converter port so document extraction stays an external collaborator.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType discriminates message part payloads.
type PartType string

// Part types.
const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// MaxMessages is the history window. After an assistant turn the history is
// pruned to the most recent MaxMessages entries.
const MaxMessages = 10

// Part is one unit of message content.
type Part struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// Message is one conversation entry.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// TextMessage builds a single-part text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Type: PartText, Text: text}}}
}

// Text concatenates the text parts of a message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Attachment is a client-staged file to fold into a user message.
type Attachment struct {
	Name string
	MIME string
	Path string

	// Base64 holds the raw content for inline transport, populated for
	// images.
	Base64 string
}

// Converter extracts markdown text from a document on disk.
type Converter interface {
	ToMarkdown(ctx context.Context, path string) (string, error)
}

// WrapFileContent wraps extracted document text in the file-name envelope the
// model uses to attribute content to its source.
func WrapFileContent(name, content string) string {
	return fmt.Sprintf("<file_name:%s>\n%s\n</file_name:%s>", name, content, name)
}

// Builder folds attachments into messages and maintains the history window.
type Builder struct {
	converter Converter
	logger    *slog.Logger
}

// NewBuilder creates a Builder. A nil logger falls back to slog.Default().
func NewBuilder(converter Converter, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{converter: converter, logger: logger}
}

// UserMessage builds a user message from text plus attachments.
//
// Images become inline data-URL parts. Every other file is run through the
// converter and appended as a text part wrapped in
// "<file_name:NAME>...</file_name:NAME>" so the model can attribute content
// to its source. The returned map carries the extracted text per file name
// for reuse by callers that cache document contents.
func (b *Builder) UserMessage(ctx context.Context, text string, attachments []Attachment) (Message, map[string]string, error) {
	msg := Message{Role: RoleUser, Parts: []Part{{Type: PartText, Text: text}}}
	contents := make(map[string]string)

	for _, att := range attachments {
		if strings.HasPrefix(att.MIME, "image/") && att.Base64 != "" {
			msg.Parts = append(msg.Parts, Part{
				Type:     PartImageURL,
				ImageURL: fmt.Sprintf("data:%s;base64,%s", att.MIME, att.Base64),
			})
			continue
		}

		if att.Path == "" {
			continue
		}
		markdown, err := b.converter.ToMarkdown(ctx, att.Path)
		if err != nil {
			return Message{}, nil, fmt.Errorf("converting attachment %q: %w", att.Name, err)
		}
		contents[att.Name] = markdown
		msg.Parts = append(msg.Parts, Part{
			Type: PartText,
			Text: WrapFileContent(att.Name, markdown),
		})
	}

	return msg, contents, nil
}

// Append adds a message to the history. After an assistant message the
// history is pruned to the most recent MaxMessages entries so long
// conversations cannot grow the prompt without bound.
func (b *Builder) Append(messages []Message, msg Message) []Message {
	messages = append(messages, msg)
	if msg.Role == RoleAssistant && len(messages) > MaxMessages {
		pruned := len(messages) - MaxMessages
		messages = messages[pruned:]
		b.logger.Debug("pruned history", "dropped", pruned, "kept", len(messages))
	}
	return messages
}

// WithSystem returns the prompt for a turn: exactly one system message built
// from the current instructions, followed by the history. The history itself
// never stores a system message, so settings changes take effect immediately.
func WithSystem(instructions string, messages []Message) []Message {
	prompt := make([]Message, 0, len(messages)+1)
	prompt = append(prompt, TextMessage(RoleSystem, instructions))
	prompt = append(prompt, messages...)
	return prompt
}
