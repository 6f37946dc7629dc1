package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/turn"
)

// pipelineName is the boundary-error prefix for this pipeline.
const pipelineName = "agent"

// CatalogFunc loads the current model catalog. Called per turn so catalog
// changes take effect without a restart.
type CatalogFunc func() (config.Catalog, error)

// Agent runs turns against the agent service.
type Agent struct {
	services ServiceFactory
	catalog  CatalogFunc

	// linkBase is the document-repository base for synthesized file-citation
	// links.
	linkBase string

	// workDir is where generated image files are persisted.
	workDir string
}

// New builds an Agent.
func New(services ServiceFactory, catalog CatalogFunc, linkBase, workDir string) *Agent {
	return &Agent{
		services: services,
		catalog:  catalog,
		linkBase: linkBase,
		workDir:  workDir,
	}
}

// Respond runs one agent turn for the user's input and returns the final
// text. Any failure anywhere in the pipeline (upload, message creation,
// streaming, finalization) is wrapped once with the pipeline name; there is
// no partial-success return.
func (a *Agent) Respond(ctx context.Context, tr *turn.Turn, userInput string) (string, error) {
	text, err := a.respond(ctx, tr, userInput)
	if err != nil {
		return "", turn.Wrap(pipelineName, err)
	}
	return text, nil
}

func (a *Agent) respond(ctx context.Context, tr *turn.Turn, userInput string) (string, error) {
	settings := tr.Session.Settings()

	if err := tr.Live.SetText(fmt.Sprintf("[%s] thinking...", settings.ModelName)); err != nil {
		return "", err
	}
	if err := tr.Live.Publish(ctx); err != nil {
		return "", err
	}

	catalog, err := a.catalog()
	if err != nil {
		return "", fmt.Errorf("loading model catalog: %w", err)
	}
	profile := tr.Session.CurrentProfile()
	descriptor, ok := catalog.ByDeployment(profile)
	if !ok || descriptor.AgentID == "" {
		return "", fmt.Errorf("profile %q has no agent deployment", profile)
	}

	svc := a.services(descriptor.APIEndpoint, descriptor.APIKey)

	threadID := tr.Session.ThreadID()
	if threadID == "" {
		threadID, err = svc.CreateThread(ctx)
		if err != nil {
			return "", fmt.Errorf("creating thread: %w", err)
		}
		tr.Session.SetThreadID(threadID)
		tr.Logger.Info("created thread", "thread_id", threadID)
	}

	blocks, attachments, err := a.buildContent(ctx, svc, tr, userInput)
	if err != nil {
		return "", err
	}
	tr.Logger.Debug("outbound message assembled",
		"blocks", len(blocks), "attachments", len(attachments))

	if err := svc.CreateMessage(ctx, threadID, RoleUser, blocks, attachments); err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}

	if err := a.consumeRun(ctx, svc, tr, threadID, descriptor.AgentID); err != nil {
		return "", err
	}

	return a.finalize(ctx, svc, tr, threadID)
}

// buildContent assembles the outbound content blocks and attachments for one
// message: the user text, one text block per pre-extracted file content, and
// an attachment per pending upload.
//
// An image upload REPLACES the block list with exactly the user text and an
// image-file reference. Across multiple images the last one processed wins;
// this mirrors the backend's observed wire behavior and is kept for
// compatibility.
func (a *Agent) buildContent(ctx context.Context, svc Service, tr *turn.Turn, userInput string) ([]ContentBlock, []Attachment, error) {
	blocks := []ContentBlock{TextBlock(userInput)}
	for _, content := range tr.Session.FileContents() {
		blocks = append(blocks, TextBlock(content))
	}

	var attachments []Attachment
	for _, upload := range tr.Session.PendingUploads() {
		tr.Logger.Info("file upload", "name", upload.Name, "mime", upload.MIME)
		if upload.Path == "" {
			continue
		}

		fileID, err := svc.UploadFile(ctx, upload.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("uploading %q: %w", upload.Name, err)
		}
		tr.Logger.Info("file uploaded", "file_id", fileID)

		attachments = append(attachments, Attachment{
			FileID: fileID,
			Tools:  []string{ToolCodeInterpreter},
		})

		if strings.HasPrefix(upload.MIME, "image/") {
			blocks = []ContentBlock{
				TextBlock(userInput),
				ImageFileBlock(fileID),
			}
		}
	}

	return blocks, attachments, nil
}

// resolveFileName finds the display name for a cited file ID: the session
// cache first, then the first pending upload's declared name (cached for
// reuse), then a generic placeholder.
func resolveFileName(sess *session.Session, fileID string) string {
	if name, ok := sess.FileName(fileID); ok {
		return name
	}

	for _, upload := range sess.PendingUploads() {
		if upload.Path == "" {
			continue
		}
		name := upload.Name
		if name == "" {
			name = "Document"
		}
		sess.RememberFileName(fileID, name)
		return name
	}

	return "Document"
}
