package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/voxdesk/voxdesk/internal/observability"
)

type statusResponse struct {
	ModelLoaded    bool    `json:"model_loaded"`
	Device         string  `json:"device"`
	RAMUsagePct    float64 `json:"ram_usage_percent"`
	GPUAvailable   bool    `json:"gpu_available"`
	VRAMUsedMB     uint64  `json:"vram_used_mb,omitempty"`
	VRAMTotalMB    uint64  `json:"vram_total_mb,omitempty"`
	VRAMUsagePct   float64 `json:"vram_usage_percent,omitempty"`
	LastUsed       string  `json:"last_used,omitempty"`
	IdleTTLSeconds float64 `json:"idle_ttl_seconds"`
	VoiceCount     int     `json:"voice_count"`
	HistoryStore   string  `json:"history_store"`
}

func (s *Server) currentStatus() statusResponse {
	st := s.engine.Stats()
	out := statusResponse{
		ModelLoaded:    st.IsLoaded,
		Device:         st.Device,
		RAMUsagePct:    st.HostRAMPercent,
		GPUAvailable:   st.HasAccelerator,
		VRAMUsedMB:     st.VRAMUsedMB,
		VRAMTotalMB:    st.VRAMTotalMB,
		VRAMUsagePct:   st.VRAMPercent,
		IdleTTLSeconds: st.IdleTTLSeconds,
		VoiceCount:     s.voices.Count(),
		HistoryStore:   s.historyStoreMode(),
	}
	if !st.LastUsed.IsZero() {
		out.LastUsed = st.LastUsed.UTC().Format(time.RFC3339)
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.currentStatus())
}

// maxHistoryLimit caps one history page; the postgres store passes the
// limit straight into the query.
const maxHistoryLimit = 200

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "history store not configured")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	recs, err := s.hist.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"history": recs})
}

// handlePerf serves recent per-stage latency quantiles for installs
// without a Prometheus scraper.
func (s *Server) handlePerf(w http.ResponseWriter, _ *http.Request) {
	var window *observability.StageWindow
	if s.metrics != nil {
		window = s.metrics.Stages
	}
	respondJSON(w, http.StatusOK, window.Snapshot())
}

type statusEvent struct {
	Type string         `json:"type"`
	Data statusResponse `json:"data"`
}

// handleStatusWS pushes residency stats to the UI every few seconds so
// the status panel updates without polling.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1 << 16)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(statusEvent{Type: "status_update", Data: s.currentStatus()}); err != nil {
			return
		}
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
