package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/turn"
)

type fakeStream struct {
	chunks []Chunk
	pos    int
	err    error
	closed int
}

func (f *fakeStream) Next() (Chunk, bool) {
	if f.pos >= len(f.chunks) {
		return Chunk{}, false
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, true
}

func (f *fakeStream) Err() error   { return f.err }
func (f *fakeStream) Close() error { f.closed++; return nil }

type fakeClient struct {
	stream  *fakeStream
	openErr error
	got     Params
}

func (f *fakeClient) Stream(_ context.Context, p Params) (ChunkStream, error) {
	f.got = p
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

type recordingPublisher struct {
	texts []string
}

func (r *recordingPublisher) Publish(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingPublisher) PublishImage(context.Context, string) error { return nil }

func testCatalog() (config.Catalog, error) {
	return config.Catalog{
		{Deployment: "azure/gpt-4o", APIKey: "key", APIEndpoint: "https://test.openai.azure.com", APIVersion: "2024-06-01"},
	}, nil
}

func newTurn(t *testing.T) (*turn.Turn, *recordingPublisher) {
	t.Helper()

	sess := session.NewStore(nil).Create("alice", "user-1")
	sess.SetProfile("azure/gpt-4o")
	sess.UpdateSettings(session.Settings{
		Temperature:   0.7,
		ModelProvider: "azure",
		ModelName:     "gpt-4o",
	})

	pub := &recordingPublisher{}
	return turn.New(sess, nil, turn.NewMessage(pub)), pub
}

func TestCompleter_Respond_StreamsContent(t *testing.T) {
	t.Parallel()

	client := &fakeClient{stream: &fakeStream{chunks: []Chunk{
		{Content: "Hello"},
		{Content: " world!"},
		{},
	}}}
	c := NewCompleter(client, testCatalog)
	tr, pub := newTurn(t)

	text, err := c.Respond(context.Background(), tr, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Hello world!", text)

	// Placeholder first, then the growing buffer, then the final publish.
	require.NotEmpty(t, pub.texts)
	assert.Equal(t, "[gpt-4o] thinking...", pub.texts[0])
	assert.Equal(t, "Hello world!", pub.texts[len(pub.texts)-1])
	assert.Equal(t, 1, client.stream.closed)
}

func TestCompleter_Respond_CitationsOnly(t *testing.T) {
	t.Parallel()

	client := &fakeClient{stream: &fakeStream{chunks: []Chunk{
		{Citations: []string{"https://x.com/a", "https://x.com/b"}},
	}}}
	c := NewCompleter(client, testCatalog)
	tr, _ := newTurn(t)

	text, err := c.Respond(context.Background(), tr, nil, false)
	require.NoError(t, err)
	assert.Contains(t, text, "**Sources:**")
	assert.Contains(t, text, "[https://x.com/a](https://x.com/a)")
	assert.Contains(t, text, "[https://x.com/b](https://x.com/b)")
}

func TestCompleter_Respond_LastCitationsWin(t *testing.T) {
	t.Parallel()

	client := &fakeClient{stream: &fakeStream{chunks: []Chunk{
		{Content: "Answer", Citations: []string{"https://first.example"}},
		{Citations: []string{"https://second.example"}},
	}}}
	c := NewCompleter(client, testCatalog)
	tr, _ := newTurn(t)

	text, err := c.Respond(context.Background(), tr, nil, false)
	require.NoError(t, err)
	assert.NotContains(t, text, "first.example")
	assert.Contains(t, text, "[https://second.example](https://second.example)")
}

func TestCompleter_Respond_DuplicateCitationsKept(t *testing.T) {
	t.Parallel()

	client := &fakeClient{stream: &fakeStream{chunks: []Chunk{
		{Content: "A", Citations: []string{"https://x.com/a", "https://x.com/a"}},
	}}}
	c := NewCompleter(client, testCatalog)
	tr, _ := newTurn(t)

	text, err := c.Respond(context.Background(), tr, nil, false)
	require.NoError(t, err)
	assert.Equal(t,
		"A\n\n**Sources:**\n[https://x.com/a](https://x.com/a)\n[https://x.com/a](https://x.com/a)",
		text)
}

func TestCompleter_Respond_StripsThinkingBlock(t *testing.T) {
	t.Parallel()

	t.Run("leading block removed", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{stream: &fakeStream{chunks: []Chunk{
			{Content: "<think>chain of thought</think>\nAnswer"},
		}}}
		c := NewCompleter(client, testCatalog)
		tr, _ := newTurn(t)

		text, err := c.Respond(context.Background(), tr, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "Answer", text)
	})

	t.Run("text without opening marker unchanged", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{stream: &fakeStream{chunks: []Chunk{
			{Content: "plain answer mentioning </think> inline"},
		}}}
		c := NewCompleter(client, testCatalog)
		tr, _ := newTurn(t)

		text, err := c.Respond(context.Background(), tr, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "plain answer mentioning </think> inline", text)
	})
}

func TestCompleter_Respond_FirstChunkClearsPlaceholder(t *testing.T) {
	t.Parallel()

	// First chunk carries no content; the placeholder must still be cleared.
	client := &fakeClient{stream: &fakeStream{chunks: []Chunk{
		{},
		{Content: "late"},
	}}}
	c := NewCompleter(client, testCatalog)
	tr, _ := newTurn(t)

	text, err := c.Respond(context.Background(), tr, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "late", text)
}

func TestCompleter_Respond_OpenErrorWrapped(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	c := NewCompleter(&fakeClient{openErr: cause}, testCatalog)
	tr, _ := newTurn(t)

	_, err := c.Respond(context.Background(), tr, nil, false)
	require.Error(t, err)
	assert.Equal(t, "generating response in chat completion: connection refused", err.Error())

	var te *turn.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "chat completion", te.Pipeline)
}

func TestCompleter_Respond_MidStreamErrorClosesOnce(t *testing.T) {
	t.Parallel()

	stream := &fakeStream{
		chunks: []Chunk{{Content: "partial"}},
		err:    errors.New("stream reset"),
	}
	c := NewCompleter(&fakeClient{stream: stream}, testCatalog)
	tr, pub := newTurn(t)

	_, err := c.Respond(context.Background(), tr, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream reset")
	assert.Equal(t, 1, stream.closed)

	// Partial text pushed before the failure stays visible.
	assert.Contains(t, pub.texts, "partial")
}

func TestCompleter_Respond_NilLiveMessage(t *testing.T) {
	t.Parallel()

	c := NewCompleter(&fakeClient{stream: &fakeStream{}}, testCatalog)
	sess := session.NewStore(nil).Create("alice", "user-1")
	tr := turn.New(sess, nil, nil)

	_, err := c.Respond(context.Background(), tr, nil, false)
	assert.ErrorIs(t, err, turn.ErrNoTarget)
}

func TestCompleter_Respond_ForwardsParams(t *testing.T) {
	t.Parallel()

	client := &fakeClient{stream: &fakeStream{}}
	c := NewCompleter(client, testCatalog)
	tr, _ := newTurn(t)

	messages := []history.Message{history.TextMessage(history.RoleUser, "hi")}
	_, err := c.Respond(context.Background(), tr, messages, true)
	require.NoError(t, err)

	assert.Equal(t, "azure/gpt-4o", client.got.Model)
	assert.Equal(t, "key", client.got.APIKey)
	assert.Equal(t, "2024-06-01", client.got.APIVersion)
	assert.Equal(t, messages, client.got.Messages)
	require.Len(t, client.got.Tools, 1)
	assert.Equal(t, "search_web", client.got.Tools[0].Name)
}
