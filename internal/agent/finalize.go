package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/parleyhq/parley/internal/turn"
)

// finalize fetches the authoritative response after a completed run: the last
// agent message replaces whatever the deltas accumulated, generated images
// are persisted and attached, and annotations become the Sources block.
func (a *Agent) finalize(ctx context.Context, svc Service, tr *turn.Turn, threadID string) (string, error) {
	messages, err := svc.ListMessages(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("listing messages: %w", err)
	}

	// Each message contributes at most its last image block.
	for _, message := range messages {
		if len(message.ImageFileIDs) == 0 {
			continue
		}
		fileID := message.ImageFileIDs[len(message.ImageFileIDs)-1]
		path := filepath.Join(a.workDir, fileID+"_image_file.png")
		if err := svc.SaveFileContent(ctx, fileID, path); err != nil {
			return "", fmt.Errorf("saving image %s: %w", fileID, err)
		}
		if err := tr.Live.AttachImage(ctx, path); err != nil {
			return "", err
		}
		tr.Logger.Info("saved generated image", "file_id", fileID, "path", path)
	}

	final, err := svc.LastMessageByRole(ctx, threadID, RoleAgent)
	if err != nil {
		return "", fmt.Errorf("fetching final message: %w", err)
	}
	if final == nil {
		return "", errors.New("No response from the model.")
	}

	text, sources := a.collectCitations(tr, final)
	if len(sources) > 0 {
		text = strings.TrimSpace(text) + renderSources(sources)
	}

	if err := tr.Live.SetText(text); err != nil {
		return "", err
	}
	if err := tr.Live.Publish(ctx); err != nil {
		return "", err
	}
	return tr.Live.Text(), nil
}
