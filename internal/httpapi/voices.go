package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voxdesk/voxdesk/internal/voices"
)

const maxUploadBytes = 64 << 20 // generous for a 20s clip in any container

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	names := s.voices.List()
	out := make([]voices.Info, 0, len(names))
	for _, name := range names {
		if info, ok := s.voices.Get(name); ok {
			out = append(out, info)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetVoice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, ok := s.voices.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, "voice_not_found", "Voice "+name+" not found.")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleUploadVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "Voice name is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", "audio file is required")
		return
	}
	defer file.Close()

	// Stage the upload in a temp file so the store validates a real path.
	tmp, err := os.CreateTemp("", "voxdesk-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if err := tmp.Close(); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	ok, msg := s.voices.AddVoice(name, tmpPath)
	if !ok {
		respondError(w, http.StatusBadRequest, "add_voice_failed", msg)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

func (s *Server) handleDeleteVoice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok, msg := s.voices.DeleteVoice(name)
	if !ok {
		status := http.StatusBadRequest
		if strings.Contains(msg, "not found") {
			status = http.StatusNotFound
		}
		respondError(w, status, "delete_voice_failed", msg)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}
