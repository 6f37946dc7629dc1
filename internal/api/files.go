package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/session"
)

// maxUploadSize caps one multipart staging request.
const maxUploadSize = 32 << 20

// fileHandler stages client attachments for the next chat turn.
type fileHandler struct {
	store     *session.Store
	uploadDir string
	logger    *slog.Logger
}

// stageFiles accepts a multipart form with one or more "files" parts, writes
// each to the staging directory and records it on the session. The staged
// uploads are consumed by the next turn and cleared when it finishes.
func (h *fileHandler) stageFiles(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid session ID")
		return
	}
	sess, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form", "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "no_files", "no files in request")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		h.logger.Error("creating upload directory", "dir", h.uploadDir, "error", err)
		writeError(w, http.StatusInternalServerError, "staging_failed", "failed to stage files")
		return
	}

	staged := make([]string, 0, len(parts))
	for _, part := range parts {
		upload, err := h.stageOne(sess, part)
		if err != nil {
			h.logger.Error("staging upload", "name", part.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "staging_failed", "failed to stage files")
			return
		}
		staged = append(staged, upload.Name)
	}

	h.logger.Info("files staged", "session_id", sess.ID, "count", len(staged))
	writeJSON(w, http.StatusOK, map[string]any{"staged": staged})
}

// stageOne writes a single part to disk and records it on the session.
// Images additionally carry their base64 content for inline history embedding.
func (h *fileHandler) stageOne(sess *session.Session, part *multipart.FileHeader) (session.Upload, error) {
	src, err := part.Open()
	if err != nil {
		return session.Upload{}, fmt.Errorf("opening part: %w", err)
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		return session.Upload{}, fmt.Errorf("reading part: %w", err)
	}

	// A UUID prefix keeps same-named uploads from clobbering each other.
	name := filepath.Base(part.Filename)
	path := filepath.Join(h.uploadDir, uuid.New().String()+"_"+name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return session.Upload{}, fmt.Errorf("writing staged file: %w", err)
	}

	upload := session.Upload{
		Name: name,
		MIME: partMIME(part, name),
		Path: path,
	}
	if strings.HasPrefix(upload.MIME, "image/") {
		upload.Base64 = base64.StdEncoding.EncodeToString(data)
	}

	sess.StageUpload(upload)
	return upload, nil
}

// partMIME resolves the content type of a part: the declared header first,
// then the file extension.
func partMIME(part *multipart.FileHeader, name string) string {
	if ct := part.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
