// Package convert extracts markdown text from uploaded documents so they can
// be folded into model prompts. It handles the text-based formats the backend
// accepts; binary formats it cannot represent are rejected with an error the
// caller reports to the client.
package convert

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat indicates a document whose format cannot be converted
// to text.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// maxDocumentSize caps how much of a document is extracted.
const maxDocumentSize = 8 << 20

// Markdown converts documents on disk to markdown text.
type Markdown struct {
	logger *slog.Logger
}

// New creates a Markdown converter. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Markdown {
	if logger == nil {
		logger = slog.Default()
	}
	return &Markdown{logger: logger}
}

// ToMarkdown extracts the text content of the document at path.
//
// CSV becomes a markdown table, JSON a fenced code block, markdown and plain
// text pass through as-is. Anything else is accepted when it holds valid
// UTF-8 text and rejected otherwise.
func (m *Markdown) ToMarkdown(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("conversion canceled: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("inspecting document: %w", err)
	}
	if info.Size() > maxDocumentSize {
		return "", fmt.Errorf("document too large (%d bytes)", info.Size())
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is a staged upload we wrote ourselves
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	m.logger.Debug("converting document", "path", path, "ext", ext, "bytes", len(data))

	switch ext {
	case ".csv":
		return csvToTable(data)
	case ".json":
		return jsonToBlock(data)
	case ".md", ".markdown", ".txt", ".log":
		return string(data), nil
	default:
		if !isText(data) {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
		}
		return string(data), nil
	}
}

// csvToTable renders CSV records as a markdown table, first record as header.
func csvToTable(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for _, cell := range row {
			sb.WriteString(" ")
			sb.WriteString(strings.ReplaceAll(cell, "|", "\\|"))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(records[0])
	sb.WriteString("|")
	sb.WriteString(strings.Repeat(" --- |", len(records[0])))
	sb.WriteString("\n")
	for _, row := range records[1:] {
		writeRow(row)
	}
	return sb.String(), nil
}

// jsonToBlock re-indents JSON and wraps it in a fenced code block.
func jsonToBlock(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return "", fmt.Errorf("parsing json: %w", err)
	}
	return "```json\n" + buf.String() + "\n```", nil
}

// isText reports whether data looks like readable text: valid UTF-8 with no
// NUL bytes.
func isText(data []byte) bool {
	return utf8.Valid(data) && !bytes.ContainsRune(data, 0)
}
