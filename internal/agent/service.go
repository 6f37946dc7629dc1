// Package agent implements the stateful pipeline: one turn against an agent
// service holding server-side threads, with tool-augmented runs, generated
// images and annotated citations reconciled into the final message.
package agent

import "context"

// Message roles on the agent thread.
const (
	RoleUser  = "user"
	RoleAgent = "assistant"
)

// BlockType discriminates outbound content blocks.
type BlockType string

// Content block types.
const (
	BlockText      BlockType = "text"
	BlockImageFile BlockType = "image_file"
)

// ContentBlock is one unit of an outbound thread message.
type ContentBlock struct {
	Type BlockType

	// Text is set for BlockText.
	Text string

	// FileID and Detail are set for BlockImageFile.
	FileID string
	Detail string
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageFileBlock builds a high-detail image-file reference block.
func ImageFileBlock(fileID string) ContentBlock {
	return ContentBlock{Type: BlockImageFile, FileID: fileID, Detail: "high"}
}

// ToolCodeInterpreter is the attachment capability granted to uploads.
const ToolCodeInterpreter = "code_interpreter"

// Attachment binds an uploaded file to a message with tool capabilities.
type Attachment struct {
	FileID string
	Tools  []string
}

// Annotation is backend-attached metadata on a finalized message pointing at
// a cited source. It is a closed union: URLCitation or FilePathCitation,
// decided once at ingestion.
type Annotation interface {
	isAnnotation()
}

// URLCitation points at an external URL (or, for reserved pseudo-URLs, an
// uploaded document). Marker is the literal substring the backend wove into
// the message text.
type URLCitation struct {
	Marker string
	Title  string
	URL    string
}

// FilePathCitation points at an uploaded file by identifier.
type FilePathCitation struct {
	Marker string
	FileID string
}

func (URLCitation) isAnnotation()      {}
func (FilePathCitation) isAnnotation() {}

// AgentText is the authoritative text of a finalized thread message.
type AgentText struct {
	Text        string
	Annotations []Annotation
}

// ThreadMessage is one message on a thread, reduced to what finalization
// needs: its role and the file IDs of any image content blocks, in block
// order.
type ThreadMessage struct {
	Role         string
	ImageFileIDs []string
}

// RunStream is a scoped stream of run events. Close must be called on every
// exit path.
type RunStream interface {
	// Next returns the next event, or false when the stream is exhausted or
	// failed. Check Err after a false return.
	Next() (Event, bool)

	// Err reports the terminal stream error, nil on clean exhaustion.
	Err() error

	Close() error
}

// Service is the agent-service collaborator: threads, files, messages and
// run streams.
type Service interface {
	// CreateThread opens a new conversation thread and returns its ID.
	CreateThread(ctx context.Context) (string, error)

	// UploadFile uploads a local file and waits until it is processed,
	// returning the backend file ID.
	UploadFile(ctx context.Context, path string) (string, error)

	// CreateMessage appends a message to a thread.
	CreateMessage(ctx context.Context, threadID, role string, blocks []ContentBlock, attachments []Attachment) error

	// StreamRun starts an agent run on the thread and streams its events.
	StreamRun(ctx context.Context, threadID, agentID string) (RunStream, error)

	// ListMessages returns all messages on the thread, newest first.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)

	// LastMessageByRole fetches the most recent message text for a role, nil
	// when the thread has none.
	LastMessageByRole(ctx context.Context, threadID, role string) (*AgentText, error)

	// SaveFileContent persists a backend file's content to a local path.
	SaveFileContent(ctx context.Context, fileID, path string) error
}

// ServiceFactory builds a Service bound to a backend endpoint. The endpoint
// comes from the selected model's catalog descriptor, so it is resolved per
// turn rather than at startup.
type ServiceFactory func(endpoint, apiKey string) Service
