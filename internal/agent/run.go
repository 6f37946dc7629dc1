package agent

import (
	"context"
	"errors"

	"github.com/parleyhq/parley/internal/turn"
)

// consumeRun streams one agent run into the live message.
//
// Deltas exist for perceived responsiveness only; the authoritative text is
// fetched afterwards in finalize. A failed run status or a raw error event is
// terminal. The stream is closed on every exit path.
func (a *Agent) consumeRun(ctx context.Context, svc Service, tr *turn.Turn, threadID, agentID string) error {
	stream, err := svc.StreamRun(ctx, threadID, agentID)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	if err := tr.Live.SetText(""); err != nil {
		return err
	}

	thinking := true
	for {
		event, ok := stream.Next()
		if !ok {
			break
		}

		switch e := event.(type) {
		case MessageDelta:
			if err := tr.Live.Append(e.Text); err != nil {
				return err
			}
			if err := tr.Live.Publish(ctx); err != nil {
				return err
			}
			if thinking {
				tr.Logger.Info("first delta received", "elapsed", tr.Elapsed())
				thinking = false
			}

		case RunStatus:
			if e.Status == StatusFailed {
				tr.Logger.Error("run failed", "last_error", e.LastError)
				return errors.New(e.LastError)
			}
			// Other statuses, completed included, need no action here.

		case StreamError:
			tr.Logger.Error("run stream error", "data", e.Payload)
			return errors.New(e.Payload)
		}
	}
	return stream.Err()
}
