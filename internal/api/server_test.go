package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/log"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/turn"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDirect is a DirectPipeline that streams canned checkpoints.
type fakeDirect struct {
	chunks   []string
	response string
	err      error

	gotMessages []history.Message
	gotTools    bool
}

func (f *fakeDirect) Respond(ctx context.Context, tr *turn.Turn, messages []history.Message, useTools bool) (string, error) {
	f.gotMessages = messages
	f.gotTools = useTools
	if f.err != nil {
		return "", f.err
	}
	for _, chunk := range f.chunks {
		if err := tr.Live.SetText(chunk); err != nil {
			return "", err
		}
		if err := tr.Live.Publish(ctx); err != nil {
			return "", err
		}
	}
	return f.response, nil
}

// fakeAgent is an AgentPipeline that records its input.
type fakeAgent struct {
	response string
	err      error

	gotInput string
}

func (f *fakeAgent) Respond(ctx context.Context, tr *turn.Turn, userInput string) (string, error) {
	f.gotInput = userInput
	if f.err != nil {
		return "", f.err
	}
	if err := tr.Live.SetText(f.response); err != nil {
		return "", err
	}
	if err := tr.Live.Publish(ctx); err != nil {
		return "", err
	}
	return f.response, nil
}

// fakeConverter extracts a fixed marker per document.
type fakeConverter struct{}

func (fakeConverter) ToMarkdown(_ context.Context, path string) (string, error) {
	return "converted:" + path, nil
}

func testCatalog() (config.Catalog, error) {
	return config.Catalog{
		{Deployment: "azure/gpt-4o", Description: "General purpose"},
		{Deployment: "foundry/gpt-4o-agent", Description: "Tool-augmented agent", AgentID: "agent_123"},
	}, nil
}

type testEnv struct {
	server  *Server
	store   *session.Store
	direct  *fakeDirect
	agent   *fakeAgent
	handler http.Handler
	uploads string
}

func newTestEnv(t *testing.T, mutate func(*ServerConfig)) *testEnv {
	t.Helper()

	store := session.NewStore(log.NewNop())
	direct := &fakeDirect{chunks: []string{"Hel", "Hello"}, response: "Hello"}
	agent := &fakeAgent{response: "Agent says hi"}
	uploads := t.TempDir()

	cfg := ServerConfig{
		Logger:    log.NewNop(),
		Sessions:  store,
		Builder:   history.NewBuilder(fakeConverter{}, log.NewNop()),
		Catalog:   testCatalog,
		Direct:    direct,
		Agent:     agent,
		UploadDir: uploads,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	server, err := NewServer(cfg)
	require.NoError(t, err)

	return &testEnv{
		server:  server,
		store:   store,
		direct:  direct,
		agent:   agent,
		handler: server.Handler(),
		uploads: uploads,
	}
}

func TestNewServer_RequiredDependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"missing sessions", func(cfg *ServerConfig) { cfg.Sessions = nil }},
		{"missing builder", func(cfg *ServerConfig) { cfg.Builder = nil }},
		{"missing catalog", func(cfg *ServerConfig) { cfg.Catalog = nil }},
		{"missing direct pipeline", func(cfg *ServerConfig) { cfg.Direct = nil }},
		{"missing agent pipeline", func(cfg *ServerConfig) { cfg.Agent = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := ServerConfig{
				Sessions: session.NewStore(log.NewNop()),
				Builder:  history.NewBuilder(fakeConverter{}, log.NewNop()),
				Catalog:  testCatalog,
				Direct:   &fakeDirect{},
				Agent:    &fakeAgent{},
			}
			tt.mutate(&cfg)

			_, err := NewServer(cfg)
			assert.Error(t, err)
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	t.Parallel()

	t.Run("catalog available", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.InDelta(t, 2, body["models"], 0.0001)
	})

	t.Run("catalog unavailable", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, func(cfg *ServerConfig) {
			cfg.Catalog = func() (config.Catalog, error) {
				return nil, assert.AnError
			}
		})
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestListProfiles(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var profiles []Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profiles))
	require.Len(t, profiles, 2)
	assert.Equal(t, Profile{Name: "azure/gpt-4o", Description: "General purpose"}, profiles[0])
	assert.Equal(t, Profile{Name: "foundry/gpt-4o-agent", Description: "Tool-augmented agent"}, profiles[1])
}

func TestListStarters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/starters", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got []Starter
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 4)
	assert.Equal(t, "Morning routine ideation", got[0].Label)
	assert.Equal(t, "Help me learn about [topic]", got[3].Message)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.CORSOrigins = []string{"http://localhost:4200"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/profiles", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOrigin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.CORSOrigins = []string{"http://localhost:4200"}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.RateBurst = 2
	})

	statuses := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/starters", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
}

func TestRateLimit_HealthExempt(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.RateBurst = 1
	})

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/starters", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPreserved(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/starters", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.Catalog = func() (config.Catalog, error) { panic("boom") }
	})

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Error)
}
