// Package completion implements the direct streaming pipeline: one turn
// against a hosted chat-completion provider, consumed chunk by chunk into the
// live message, with provider citations rendered as a trailing Sources block.
package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/turn"
)

// pipelineName is the boundary-error prefix for this pipeline.
const pipelineName = "chat completion"

// Thinking-block delimiters some models emit before their answer.
const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// CatalogFunc loads the current model catalog. Called per turn so catalog
// changes take effect without a restart.
type CatalogFunc func() (config.Catalog, error)

// Completer runs direct-completion turns.
type Completer struct {
	client  Client
	catalog CatalogFunc
}

// NewCompleter builds a Completer over a streaming client and catalog source.
func NewCompleter(client Client, catalog CatalogFunc) *Completer {
	return &Completer{client: client, catalog: catalog}
}

// Respond runs one turn: streams the completion into the live message and
// returns the final text. Any failure is wrapped once with the pipeline name;
// text already pushed to the client stays visible.
func (c *Completer) Respond(ctx context.Context, tr *turn.Turn, messages []history.Message, useTools bool) (string, error) {
	text, err := c.respond(ctx, tr, messages, useTools)
	if err != nil {
		return "", turn.Wrap(pipelineName, err)
	}
	return text, nil
}

func (c *Completer) respond(ctx context.Context, tr *turn.Turn, messages []history.Message, useTools bool) (string, error) {
	settings := tr.Session.Settings()

	if err := tr.Live.SetText(fmt.Sprintf("[%s] thinking...", settings.ModelName)); err != nil {
		return "", err
	}
	if err := tr.Live.Publish(ctx); err != nil {
		return "", err
	}

	catalog, err := c.catalog()
	if err != nil {
		return "", fmt.Errorf("loading model catalog: %w", err)
	}
	profile := tr.Session.CurrentProfile()
	descriptor, _ := catalog.ByDeployment(profile)

	params := BuildParams(profile, descriptor, settings, messages, useTools)
	tr.Logger.Info("chat parameters",
		"model", params.Model,
		"stream", params.Stream,
		"tools", len(params.Tools) > 0)

	stream, err := c.client.Stream(ctx, params)
	if err != nil {
		return "", err
	}
	defer func() { _ = stream.Close() }()

	thinking := true
	var citations []string

	for {
		chunk, ok := stream.Next()
		if !ok {
			break
		}

		if thinking {
			if err := tr.Live.SetText(""); err != nil {
				return "", err
			}
			thinking = false
			tr.Logger.Info("first chunk received", "elapsed", tr.Elapsed())
		}

		if chunk.Content != "" {
			if err := tr.Live.Append(chunk.Content); err != nil {
				return "", err
			}
			if err := tr.Live.Publish(ctx); err != nil {
				return "", err
			}
		}

		// Last citation-bearing chunk wins; lists are not merged.
		if chunk.Citations != nil {
			citations = chunk.Citations
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}

	if citations != nil {
		var sb strings.Builder
		sb.WriteString("\n\n**Sources:**")
		for _, citation := range citations {
			fmt.Fprintf(&sb, "\n[%s](%s)", citation, citation)
		}
		if err := tr.Live.Append(sb.String()); err != nil {
			return "", err
		}
	}

	if text := tr.Live.Text(); strings.HasPrefix(text, thinkOpen) {
		segments := strings.Split(text, thinkClose)
		if err := tr.Live.SetText(strings.TrimSpace(segments[len(segments)-1])); err != nil {
			return "", err
		}
	}

	if err := tr.Live.Publish(ctx); err != nil {
		return "", err
	}
	return tr.Live.Text(), nil
}
