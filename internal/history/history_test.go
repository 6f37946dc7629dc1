package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverter struct {
	err error
}

func (f *fakeConverter) ToMarkdown(_ context.Context, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "markdown of " + path, nil
}

func TestBuilder_UserMessage_TextOnly(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&fakeConverter{}, nil)

	msg, contents, err := b.UserMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, msg.Role)
	require.Len(t, msg.Parts, 1)
	assert.Equal(t, "hello", msg.Parts[0].Text)
	assert.Empty(t, contents)
}

func TestBuilder_UserMessage_ImageInlined(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&fakeConverter{}, nil)

	msg, contents, err := b.UserMessage(context.Background(), "look", []Attachment{
		{Name: "chart.png", MIME: "image/png", Base64: "aGVsbG8="},
	})
	require.NoError(t, err)
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, PartImageURL, msg.Parts[1].Type)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", msg.Parts[1].ImageURL)
	assert.Empty(t, contents, "images are not run through the converter")
}

func TestBuilder_UserMessage_DocumentWrapped(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&fakeConverter{}, nil)

	msg, contents, err := b.UserMessage(context.Background(), "summarize", []Attachment{
		{Name: "report.pdf", MIME: "application/pdf", Path: "/tmp/report.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, PartText, msg.Parts[1].Type)
	assert.Equal(t,
		"<file_name:report.pdf>\nmarkdown of /tmp/report.pdf\n</file_name:report.pdf>",
		msg.Parts[1].Text)
	assert.Equal(t, "markdown of /tmp/report.pdf", contents["report.pdf"])
}

func TestBuilder_UserMessage_ConverterFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	b := NewBuilder(&fakeConverter{err: boom}, nil)

	_, _, err := b.UserMessage(context.Background(), "x", []Attachment{
		{Name: "bad.docx", MIME: "application/msword", Path: "/tmp/bad.docx"},
	})
	assert.ErrorIs(t, err, boom)
}

func TestBuilder_UserMessage_PathlessAttachmentSkipped(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&fakeConverter{err: errors.New("must not be called")}, nil)

	msg, _, err := b.UserMessage(context.Background(), "x", []Attachment{
		{Name: "ghost.txt", MIME: "text/plain"},
	})
	require.NoError(t, err)
	assert.Len(t, msg.Parts, 1)
}

func TestBuilder_Append_PrunesAfterAssistantTurn(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&fakeConverter{}, nil)

	var msgs []Message
	for i := range MaxMessages + 4 {
		msgs = b.Append(msgs, TextMessage(RoleUser, fmt.Sprintf("q%d", i)))
	}
	assert.Len(t, msgs, MaxMessages+4, "user messages never trigger pruning")

	msgs = b.Append(msgs, TextMessage(RoleAssistant, "answer"))
	assert.Len(t, msgs, MaxMessages)
	assert.Equal(t, "answer", msgs[MaxMessages-1].Text(), "newest messages survive")
}

func TestBuilder_Append_NoPruneUnderLimit(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&fakeConverter{}, nil)

	msgs := b.Append(nil, TextMessage(RoleUser, "hi"))
	msgs = b.Append(msgs, TextMessage(RoleAssistant, "hello"))
	assert.Len(t, msgs, 2)
}

func TestWithSystem(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		TextMessage(RoleUser, "hi"),
		TextMessage(RoleAssistant, "hello"),
	}

	prompt := WithSystem("be terse", msgs)
	require.Len(t, prompt, 3)
	assert.Equal(t, RoleSystem, prompt[0].Role)
	assert.Equal(t, "be terse", prompt[0].Text())

	systemCount := 0
	for _, m := range prompt {
		if m.Role == RoleSystem {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)

	assert.Len(t, msgs, 2, "input history is not mutated")
}

func TestMessage_Text(t *testing.T) {
	t.Parallel()

	msg := Message{Role: RoleUser, Parts: []Part{
		{Type: PartText, Text: "a"},
		{Type: PartImageURL, ImageURL: "data:image/png;base64,xx"},
		{Type: PartText, Text: "b"},
	}}
	assert.Equal(t, "ab", msg.Text())
}
