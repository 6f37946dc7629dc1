// Package session holds per-conversation state for the lifetime of a client
// connection: the selected model profile, tunable settings, staged file
// uploads, agent-thread bookkeeping and the rolling message history.
//
// State lives in memory only. A session disappears when the process exits or
// the client abandons it; nothing is persisted.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/history"
)

// Sentinel errors for session operations, checked with errors.Is().
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// Settings are the per-session tunables a client may adjust between turns.
type Settings struct {
	// Temperature is the sampling temperature forwarded to the backend.
	Temperature float64 `json:"temperature"`

	// Instructions is the system prompt prefixed to every turn.
	Instructions string `json:"instructions"`

	// ModelProvider and ModelName identify the selected deployment
	// ("provider/name"). Either half may be consulted independently.
	ModelProvider string `json:"model_provider"`
	ModelName     string `json:"model_name"`
}

// Upload is a file staged by the client for the next turn.
type Upload struct {
	// Name is the client-supplied file name.
	Name string `json:"name"`

	// MIME is the declared content type.
	MIME string `json:"mime"`

	// Path is where the staged bytes live on disk.
	Path string `json:"path"`

	// Base64 holds the raw content encoded for inline transport. Populated
	// for images so they can be embedded in history as data URLs.
	Base64 string `json:"-"`
}

// Session is the mutable state of one conversation.
//
// All exported fields are guarded by the embedded mutex; callers outside the
// package go through the accessor methods.
type Session struct {
	mu sync.RWMutex

	// ID is the session key handed to the client.
	ID uuid.UUID

	// UserName and UserID identify the authenticated principal.
	UserName string
	UserID   string

	// Profile is the selected model deployment ("provider/name").
	Profile string

	// StartTime anchors elapsed-time measurements for the session.
	StartTime time.Time

	settings Settings

	// uploads are files staged for the next turn, cleared once consumed.
	uploads []Upload

	// fileContents holds extracted text per staged document, in arrival order.
	fileContents []string

	// threadID is the remote agent thread bound to this session, empty until
	// the first agent turn creates one.
	threadID string

	// fileNames maps remote file IDs to the names they were uploaded under.
	fileNames map[string]string

	// messages is the rolling conversation history.
	messages []history.Message
}

// newSession builds a session with defaulted settings.
func newSession(id uuid.UUID, userName, userID string) *Session {
	return &Session{
		ID:        id,
		UserName:  userName,
		UserID:    userID,
		StartTime: time.Now(),
		settings: Settings{
			Temperature:  config.DefaultTemperature,
			Instructions: config.DefaultInstructions,
		},
		fileNames: make(map[string]string),
	}
}

// Settings returns a copy of the current settings.
func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces the session settings. Zero temperature falls back
// to the default so a partial client payload cannot silence sampling.
func (s *Session) UpdateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.Temperature == 0 {
		settings.Temperature = config.DefaultTemperature
	}
	s.settings = settings
}

// SetProfile records the selected model deployment.
func (s *Session) SetProfile(profile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Profile = profile
}

// CurrentProfile returns the selected model deployment.
func (s *Session) CurrentProfile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Profile
}

// StageUpload adds a file to the pending uploads for the next turn.
func (s *Session) StageUpload(u Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, u)
}

// PendingUploads returns the staged uploads in arrival order.
func (s *Session) PendingUploads() []Upload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Upload, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// TakeUploads returns the staged uploads and clears the staging area.
func (s *Session) TakeUploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.uploads
	s.uploads = nil
	return out
}

// AddFileContent appends extracted document text for the next turn.
func (s *Session) AddFileContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileContents = append(s.fileContents, content)
}

// FileContents returns the extracted texts in arrival order.
func (s *Session) FileContents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.fileContents))
	copy(out, s.fileContents)
	return out
}

// ClearFileContents drops the extracted texts once a turn has consumed them.
func (s *Session) ClearFileContents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileContents = nil
}

// ThreadID returns the bound agent thread, empty if none exists yet.
func (s *Session) ThreadID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threadID
}

// SetThreadID binds the session to a remote agent thread.
func (s *Session) SetThreadID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadID = id
}

// RememberFileName records the name a remote file ID was uploaded under.
func (s *Session) RememberFileName(fileID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileNames[fileID] = name
}

// FileName resolves a remote file ID to its upload name.
func (s *Session) FileName(fileID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.fileNames[fileID]
	return name, ok
}

// History returns a copy of the conversation history.
func (s *Session) History() []history.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]history.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetHistory replaces the conversation history.
func (s *Session) SetHistory(messages []history.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = messages
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.StartTime)
}
