package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/turn"
)

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // Full live-message text after a delta
	EventImage = "image" // Generated image attached to the live message
	EventDone  = "done"  // Turn completed successfully
	EventError = "error" // Turn failed; the UI renders this as an error message
)

// ChunkPayload is the SSE data payload for live-message checkpoints. The text
// is the complete message so far, not a delta: the UI replaces, never appends.
type ChunkPayload struct {
	Text string `json:"text"`
}

// ImagePayload announces a generated image persisted on the server.
type ImagePayload struct {
	Name string `json:"name"`
}

// DonePayload is the SSE data payload when a turn completes successfully.
type DonePayload struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// ErrorPayload is the SSE data payload when a turn fails.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatInput is the request body for one conversation turn.
type ChatInput struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`

	// UseTools attaches the web-search function tool on direct-completion
	// turns. Off by default.
	UseTools bool `json:"useTools,omitempty"`
}

// chatHandler runs conversation turns over SSE.
type chatHandler struct {
	store   *session.Store
	builder *history.Builder
	direct  DirectPipeline
	agent   AgentPipeline
	logger  *slog.Logger
}

// stream handles one conversation turn as an SSE response.
//
// The turn is synchronous with the request: the user message is folded into
// the history, routed to the pipeline the session's provider selects, and the
// live message is streamed back as chunk events. A successful turn ends with
// a done event; any failure is reported as a single error event and already
// streamed text stays visible on the client.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var input ChatInput
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "invalid_request",
			Message: "invalid request body",
		})
		return
	}
	if input.SessionID == "" {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "missing_session_id", Message: "sessionId is required"})
		return
	}
	if input.Message == "" {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "missing_message", Message: "message is required"})
		return
	}

	sessionID, err := uuid.Parse(input.SessionID)
	if err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "invalid_session_id", Message: "invalid session ID"})
		return
	}
	sess, err := h.store.Get(sessionID)
	if err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "session_not_found", Message: "session not found"})
		return
	}

	ctx := r.Context()
	logger := h.logger.With("session_id", input.SessionID)
	live := turn.NewMessage(&ssePublisher{w: w, flusher: flusher})
	tr := turn.New(sess, logger, live)

	logger.Debug("SSE stream started", "provider", sess.Settings().ModelProvider)

	// Staged uploads and extracted contents belong to exactly one turn.
	defer func() {
		sess.TakeUploads()
		sess.ClearFileContents()
	}()

	messages, err := h.foldUserMessage(ctx, sess, input.Message)
	if err != nil {
		logger.Error("folding user message", "error", err)
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "attachment_failed",
			Message: fmt.Sprintf("An error occurred: %s", err),
		})
		return
	}

	response, err := h.respond(ctx, tr, input, messages)
	if err != nil {
		logger.Error("turn failed", "error", err)
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    errorCode(err),
			Message: fmt.Sprintf("An error occurred: %s", err),
		})
		return
	}

	sess.SetHistory(h.builder.Append(sess.History(),
		history.TextMessage(history.RoleAssistant, response)))

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:  response,
		SessionID: input.SessionID,
	})
	logger.Info("SSE stream completed", "elapsed", tr.Elapsed())
}

// foldUserMessage converts the staged uploads into attachment parts, records
// extracted document text on the session for the agent pipeline, and appends
// the resulting user message to the history.
func (h *chatHandler) foldUserMessage(ctx context.Context, sess *session.Session, text string) ([]history.Message, error) {
	uploads := sess.PendingUploads()
	attachments := make([]history.Attachment, 0, len(uploads))
	for _, u := range uploads {
		attachments = append(attachments, history.Attachment{
			Name:   u.Name,
			MIME:   u.MIME,
			Path:   u.Path,
			Base64: u.Base64,
		})
	}

	userMsg, contents, err := h.builder.UserMessage(ctx, text, attachments)
	if err != nil {
		return nil, err
	}

	// New extractions replace whatever a previous turn left behind, in
	// attachment order.
	sess.ClearFileContents()
	for _, att := range attachments {
		if content, ok := contents[att.Name]; ok {
			sess.AddFileContent(history.WrapFileContent(att.Name, content))
		}
	}

	messages := h.builder.Append(sess.History(), userMsg)
	sess.SetHistory(messages)
	return messages, nil
}

// respond routes the turn to the pipeline selected by the session's provider.
func (h *chatHandler) respond(ctx context.Context, tr *turn.Turn, input ChatInput, messages []history.Message) (string, error) {
	settings := tr.Session.Settings()
	if settings.ModelProvider == config.ProviderFoundry {
		return h.agent.Respond(ctx, tr, input.Message)
	}
	prompt := history.WithSystem(settings.Instructions, messages)
	return h.direct.Respond(ctx, tr, prompt, input.UseTools)
}

// errorCode maps a turn failure to a stable machine-readable code.
func errorCode(err error) string {
	var turnErr *turn.Error
	if errors.As(err, &turnErr) {
		switch turnErr.Pipeline {
		case "agent":
			return "agent_failed"
		case "chat completion":
			return "completion_failed"
		}
	}
	return "stream_error"
}

// ssePublisher pushes live-message checkpoints to the client as SSE events.
type ssePublisher struct {
	w       io.Writer
	flusher http.Flusher
}

func (p *ssePublisher) Publish(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("client gone: %w", err)
	}
	return writeEvent(p.w, p.flusher, EventChunk, ChunkPayload{Text: text})
}

func (p *ssePublisher) PublishImage(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("client gone: %w", err)
	}
	return writeEvent(p.w, p.flusher, EventImage, ImagePayload{Name: filepath.Base(path)})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
