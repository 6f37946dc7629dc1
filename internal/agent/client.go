package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	apiVersion = "v1"

	// uploadPollInterval paces the upload-and-wait status checks.
	uploadPollInterval = 500 * time.Millisecond

	// sseBufferSize caps one SSE line; delta payloads can be large.
	sseBufferSize = 1024 * 1024
)

// Client implements Service over the agent service's REST and SSE surface.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a Client bound to one backend endpoint. A nil logger
// falls back to slog.Default().
func NewClient(endpoint string, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{},
		logger:   logger,
	}
}

// NewServiceFactory returns the production ServiceFactory.
func NewServiceFactory(logger *slog.Logger) ServiceFactory {
	return func(endpoint, apiKey string) Service {
		return NewClient(endpoint, apiKey, logger)
	}
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s%s?api-version=%s", c.endpoint, path, apiVersion)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (gjson.Result, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("calling agent service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, fmt.Errorf("agent service %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	return gjson.ParseBytes(data), nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// CreateThread opens a new conversation thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	result, err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]any{})
	if err != nil {
		return "", err
	}
	id := result.Get("id").String()
	if id == "" {
		return "", fmt.Errorf("thread response carried no id: %s", result.Raw)
	}
	return id, nil
}

// UploadFile uploads a local file for agent use and waits until processing
// completes.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from our own upload staging
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("writing purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copying upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finishing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/files"), &buf)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("agent service upload: status %d: %s", resp.StatusCode, data)
	}

	fileID := gjson.GetBytes(data, "id").String()
	if fileID == "" {
		return "", fmt.Errorf("upload response carried no id: %s", data)
	}
	return fileID, c.waitForFile(ctx, fileID)
}

// waitForFile polls until the uploaded file leaves its pending state.
func (c *Client) waitForFile(ctx context.Context, fileID string) error {
	ticker := time.NewTicker(uploadPollInterval)
	defer ticker.Stop()

	for {
		result, err := c.doJSON(ctx, http.MethodGet, "/files/"+fileID, nil)
		if err != nil {
			return err
		}
		switch status := result.Get("status").String(); status {
		case "processed":
			return nil
		case "error", "deleted":
			return fmt.Errorf("file %s ended in status %q", fileID, status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role string, blocks []ContentBlock, attachments []Attachment) error {
	content := make([]map[string]any, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case BlockImageFile:
			content = append(content, map[string]any{
				"type": "image_file",
				"image_file": map[string]any{
					"file_id": block.FileID,
					"detail":  block.Detail,
				},
			})
		default:
			content = append(content, map[string]any{
				"type": "text",
				"text": block.Text,
			})
		}
	}

	wireAttachments := make([]map[string]any, 0, len(attachments))
	for _, att := range attachments {
		tools := make([]map[string]string, 0, len(att.Tools))
		for _, tool := range att.Tools {
			tools = append(tools, map[string]string{"type": tool})
		}
		wireAttachments = append(wireAttachments, map[string]any{
			"file_id": att.FileID,
			"tools":   tools,
		})
	}

	_, err := c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/messages", map[string]any{
		"role":        role,
		"content":     content,
		"attachments": wireAttachments,
	})
	return err
}

// StreamRun starts a streaming run on the thread.
func (c *Client) StreamRun(ctx context.Context, threadID, agentID string) (RunStream, error) {
	payload, err := json.Marshal(map[string]any{
		"assistant_id": agentID,
		"stream":       true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/threads/"+threadID+"/runs"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("agent service run: status %d: %s", resp.StatusCode, data)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), sseBufferSize)
	return &runStream{body: resp.Body, scanner: scanner}, nil
}

// runStream parses the run's server-sent events into the Event union.
type runStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	err     error
	done    bool
}

func (s *runStream) Next() (Event, bool) {
	if s.done {
		return nil, false
	}

	var eventType string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				s.done = true
				return nil, false
			}
			if event, ok := mapEvent(eventType, data); ok {
				return event, true
			}

		case line == "":
			eventType = ""
		}
	}
	s.done = true
	s.err = s.scanner.Err()
	return nil, false
}

// mapEvent converts one wire event into the Event union. Events outside the
// union (step updates, message lifecycle) are dropped.
func mapEvent(eventType, data string) (Event, bool) {
	switch {
	case eventType == "error":
		return StreamError{Payload: data}, true

	case eventType == "done":
		return nil, false

	case eventType == "thread.message.delta":
		var sb strings.Builder
		for _, part := range gjson.Get(data, "delta.content").Array() {
			sb.WriteString(part.Get("text.value").String())
		}
		return MessageDelta{Text: sb.String()}, true

	case gjson.Get(data, "object").String() == "thread.run":
		return RunStatus{
			Status:    gjson.Get(data, "status").String(),
			LastError: gjson.Get(data, "last_error.message").String(),
		}, true
	}
	return nil, false
}

func (s *runStream) Err() error {
	return s.err
}

func (s *runStream) Close() error {
	return s.body.Close()
}

// ListMessages returns the thread's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	result, err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/messages", nil)
	if err != nil {
		return nil, err
	}

	var messages []ThreadMessage
	for _, raw := range result.Get("data").Array() {
		msg := ThreadMessage{Role: raw.Get("role").String()}
		for _, block := range raw.Get("content").Array() {
			if block.Get("type").String() == "image_file" {
				msg.ImageFileIDs = append(msg.ImageFileIDs, block.Get("image_file.file_id").String())
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// LastMessageByRole returns the text of the most recent message for a role,
// nil when the thread has none.
func (c *Client) LastMessageByRole(ctx context.Context, threadID, role string) (*AgentText, error) {
	result, err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/messages", nil)
	if err != nil {
		return nil, err
	}

	for _, raw := range result.Get("data").Array() {
		if raw.Get("role").String() != role {
			continue
		}

		// The authoritative value is the message's last text block.
		var text gjson.Result
		found := false
		for _, block := range raw.Get("content").Array() {
			if block.Get("type").String() == "text" {
				text = block.Get("text")
				found = true
			}
		}
		if !found {
			continue
		}

		out := &AgentText{Text: text.Get("value").String()}
		for _, ann := range text.Get("annotations").Array() {
			switch ann.Get("type").String() {
			case "url_citation":
				out.Annotations = append(out.Annotations, URLCitation{
					Marker: ann.Get("text").String(),
					Title:  ann.Get("url_citation.title").String(),
					URL:    ann.Get("url_citation.url").String(),
				})
			case "file_path":
				out.Annotations = append(out.Annotations, FilePathCitation{
					Marker: ann.Get("text").String(),
					FileID: ann.Get("file_path.file_id").String(),
				})
			}
		}
		return out, nil
	}
	return nil, nil
}

// SaveFileContent downloads a backend file to a local path.
func (c *Client) SaveFileContent(ctx context.Context, fileID, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/files/"+fileID+"/content"), nil)
	if err != nil {
		return fmt.Errorf("creating content request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching file content: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agent service file content: status %d: %s", resp.StatusCode, data)
	}

	out, err := os.Create(path) // #nosec G304 -- path is derived from the file ID inside our work dir
	if err != nil {
		return fmt.Errorf("creating local file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing local file: %w", err)
	}
	return nil
}
