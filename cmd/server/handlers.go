package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/provado/provado"
)

type handler struct {
	engine provado.Engine
}

func newHandler(e provado.Engine) *handler {
	return &handler{engine: e}
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "UP",
	})
}

// POST /chat
// Accepts {"question": "..."} and returns the verdict with cited evidence.
func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Empty question")
		return
	}

	result, err := h.engine.Validate(ctx, req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "validation failed")
		slog.Error("chat error", "question", req.Question, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /ingest
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)

			tmpPath := filepath.Join(os.TempDir(), safeName)
			dst, err := os.Create(tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()
			defer os.Remove(tmpPath)

			docID, err := h.engine.Ingest(ctx, tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "ingestion failed")
				slog.Error("ingest error", "error", err)
				return
			}

			writeJSON(w, http.StatusOK, map[string]interface{}{
				"document_id": docID,
				"filename":    safeName,
			})
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path    string            `json:"path"`
		Options map[string]string `json:"options,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "path must be an existing file or directory")
		return
	}

	var opts []provado.IngestOption
	if req.Options != nil {
		if _, ok := req.Options["force"]; ok {
			opts = append(opts, provado.WithForceReparse())
		}
		if _, ok := req.Options["skip_facts"]; ok {
			opts = append(opts, provado.WithSkipFacts())
		}
	}

	if info.IsDir() {
		results, err := h.engine.IngestDir(ctx, absPath, opts...)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "ingestion failed")
			slog.Error("ingest dir error", "path", absPath, "error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"results": results,
		})
		return
	}

	docID, err := h.engine.Ingest(ctx, absPath, opts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		slog.Error("ingest error", "path", absPath, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": docID,
		"path":        absPath,
	})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
	})
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete error", "document_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		slog.Error("stats error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// POST /reset
func (h *handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "reset failed")
		slog.Error("reset error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
