package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/session"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

// sessionHandler serves session CRUD.
type sessionHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// SessionView is the JSON shape of a session.
type SessionView struct {
	ID       string           `json:"id"`
	UserName string           `json:"user_name"`
	UserID   string           `json:"user_id"`
	Profile  string           `json:"profile,omitempty"`
	Settings session.Settings `json:"settings"`
}

func sessionView(sess *session.Session) SessionView {
	return SessionView{
		ID:       sess.ID.String(),
		UserName: sess.UserName,
		UserID:   sess.UserID,
		Profile:  sess.CurrentProfile(),
		Settings: sess.Settings(),
	}
}

// createSession creates a session for the request principal. An optional
// profile selects the model deployment up front; the provider/name halves are
// folded into the settings the way the UI expects them.
func (h *sessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "identity_missing", "request principal not resolved")
		return
	}

	var body struct {
		Profile string `json:"profile"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	// An empty body is fine: the profile can be selected later.
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	sess := h.store.Create(identity.Name, identity.ID)
	if body.Profile != "" {
		applyProfile(sess, body.Profile)
	}

	h.logger.Info("session created",
		"session_id", sess.ID, "user", identity.Name, "profile", body.Profile)
	writeJSON(w, http.StatusCreated, sessionView(sess))
}

func (h *sessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

// updateSettings replaces the session settings. The zero-temperature default
// is applied by the session itself.
func (h *sessionHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}

	var settings session.Settings
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	sess.UpdateSettings(settings)
	writeJSON(w, http.StatusOK, sess.Settings())
}

// sessionFromPath resolves the {id} path segment to a session, writing the
// error response itself on failure.
func (h *sessionHandler) sessionFromPath(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid session ID")
		return nil, false
	}

	sess, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
		return nil, false
	}
	return sess, true
}

// applyProfile records the deployment selection and mirrors its halves into
// the settings, matching what the UI reads back.
func applyProfile(sess *session.Session, profile string) {
	sess.SetProfile(profile)
	d := config.ModelDescriptor{Deployment: profile}
	settings := sess.Settings()
	settings.ModelProvider = d.Provider()
	settings.ModelName = d.ModelName()
	sess.UpdateSettings(settings)
}
