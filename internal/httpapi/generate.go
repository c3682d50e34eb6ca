package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/voxdesk/voxdesk/internal/audio"
	"github.com/voxdesk/voxdesk/internal/engine"
	"github.com/voxdesk/voxdesk/internal/synth"
)

type generateRequest struct {
	Text         string   `json:"text"`
	Voice        string   `json:"voice"`
	Exaggeration *float64 `json:"exaggeration"`
	CFGWeight    *float64 `json:"cfg_weight"`
}

type generateResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	AudioData      string  `json:"audio_data,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	GenerationTime float64 `json:"generation_time,omitempty"`
	SampleRate     int     `json:"sample_rate,omitempty"`
	Chunks         int     `json:"chunks,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// Missing controls mean the model defaults, not zero.
	exaggeration, cfgWeight := 0.5, 0.5
	if req.Exaggeration != nil {
		exaggeration = *req.Exaggeration
	}
	if req.CFGWeight != nil {
		cfgWeight = *req.CFGWeight
	}

	res, err := s.synth.GenerateSpeech(r.Context(), synth.Request{
		Text:         req.Text,
		Voice:        req.Voice,
		Exaggeration: exaggeration,
		CFGWeight:    cfgWeight,
	})
	if err != nil {
		status, code := statusForSynthError(err)
		respondError(w, status, code, err.Error())
		return
	}

	wav, err := audio.EncodeWAV(res.Samples, res.SampleRate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, generateResponse{
		Success: true,
		Message: fmt.Sprintf("Generated %.1fs audio in %.1fs",
			res.AudioSeconds, res.GenerationTime.Seconds()),
		AudioData:      base64.StdEncoding.EncodeToString(wav),
		Duration:       res.AudioSeconds,
		GenerationTime: res.GenerationTime.Seconds(),
		SampleRate:     res.SampleRate,
		Chunks:         res.Chunks,
	})
}

func statusForSynthError(err error) (int, string) {
	var (
		verr    *synth.ValidationError
		loadErr *engine.LoadError
		genErr  *synth.GenerationError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable, "model_load_failed"
	case errors.Is(err, engine.ErrShutDown):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.As(err, &genErr):
		return http.StatusBadGateway, "generation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) handlePreloadModel(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.Acquire(r.Context()); err != nil {
		status, code := statusForSynthError(err)
		respondError(w, status, code, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Model loaded successfully",
		"device":  s.engine.Stats().Device,
	})
}
