package agent

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/parleyhq/parley/internal/turn"
)

// docPrefix is the reserved pseudo-URL prefix the backend uses for uploaded
// document references inside URL-citation annotations.
const docPrefix = "doc_"

// Citation source kinds.
const (
	sourceURL  = "url"
	sourceFile = "file"
)

// citationSource is the normalized representation of an annotation, ready
// for rendering.
type citationSource struct {
	kind string

	// name is the title for URL sources and the display name for files.
	name string

	// link is the external URL, or the synthesized repository link for
	// files (empty when synthesis failed).
	link string

	// fileID is set for file sources only.
	fileID string
}

// collectCitations walks the annotations in original order, stripping every
// occurrence of each annotation's literal marker from the text and
// classifying the annotation into a normalized source.
func (a *Agent) collectCitations(tr *turn.Turn, final *AgentText) (string, []citationSource) {
	text := final.Text
	var sources []citationSource

	for _, annotation := range final.Annotations {
		switch c := annotation.(type) {
		case URLCitation:
			if c.Marker != "" {
				text = strings.ReplaceAll(text, c.Marker, "")
			}
			if strings.HasPrefix(c.URL, docPrefix) {
				// The backend encodes uploaded-file references as pseudo-URLs;
				// treat them as file citations under the annotation title.
				sources = append(sources, citationSource{
					kind:   sourceFile,
					name:   c.Title,
					link:   a.repositoryLink(tr, c.Title),
					fileID: c.URL,
				})
			} else {
				sources = append(sources, citationSource{
					kind: sourceURL,
					name: c.Title,
					link: c.URL,
				})
			}

		case FilePathCitation:
			if c.Marker != "" {
				text = strings.ReplaceAll(text, c.Marker, "")
			}
			name := resolveFileName(tr.Session, c.FileID)
			sources = append(sources, citationSource{
				kind:   sourceFile,
				name:   name,
				link:   a.repositoryLink(tr, name),
				fileID: c.FileID,
			})
		}
	}

	return text, sources
}

// repositoryLink synthesizes the external document-repository link for a file
// name. Failures are logged and degrade to no link for that citation only.
func (a *Agent) repositoryLink(tr *turn.Turn, name string) string {
	link, err := synthesizeLink(a.linkBase, name)
	if err != nil {
		tr.Logger.Error("failed to generate repository link", "name", name, "error", err)
		return ""
	}
	tr.Logger.Info("generated repository link", "name", name, "link", link)
	return link
}

func synthesizeLink(base, name string) (string, error) {
	if base == "" {
		return "", errors.New("empty repository link base")
	}
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("parsing repository base: %w", err)
	}
	return base + url.PathEscape(name), nil
}

// renderSources renders the Sources block, deduplicating by
// (kind, name, link) in first-seen order.
func renderSources(sources []citationSource) string {
	var sb strings.Builder
	sb.WriteString("\n\n**Sources:**")

	type sourceKey struct {
		kind, name, link string
	}
	seen := make(map[sourceKey]struct{})

	for _, s := range sources {
		key := sourceKey{s.kind, s.name, s.link}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		switch s.kind {
		case sourceURL:
			fmt.Fprintf(&sb, "\n- [%s](%s)", s.name, s.link)
		case sourceFile:
			if s.link != "" {
				fmt.Fprintf(&sb, "\n- 📄 [%s](%s)", s.name, s.link)
			} else {
				fmt.Fprintf(&sb, "\n- 📄 **%s** (File ID: `%s`)", s.name, s.fileID)
			}
		}
	}
	return sb.String()
}
