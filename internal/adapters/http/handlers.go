package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/landsatlook/internal/application"
	"github.com/jobrunner/landsatlook/internal/domain"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status   string                  `json:"status"`
	Mode     string                  `json:"mode,omitempty"`
	Uptime   string                  `json:"uptime"`
	Interval string                  `json:"poll_interval,omitempty"`
	LastPoll *application.PollResult `json:"last_poll,omitempty"`
}

// handleHealth reports the process state and the last poll.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Mode:   s.config.Mode,
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}

	if s.poller != nil {
		resp.Interval = s.poller.Interval().String()
		if last, ok := s.poller.LastResult(); ok {
			resp.LastPoll = &last
			if last.Error != "" {
				resp.Status = "degraded"
			}
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleLiveness reports that the process is running.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListDownloads lists index records, optionally for one scene_id.
func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	records, err := s.index.List(r.Context(), r.URL.Query().Get("scene_id"))
	if err != nil {
		s.logger.Error("listing downloads failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Listing downloads failed")
		return
	}
	if records == nil {
		records = []domain.DownloadedAsset{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"downloads": records,
		"count":     len(records),
	})
}

// handleGetScene returns the recorded bands of one scene.
func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	records, err := s.index.List(r.Context(), sceneID)
	if err != nil {
		s.logger.Error("listing downloads failed", "scene", sceneID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Listing downloads failed")
		return
	}
	if len(records) == 0 {
		s.writeError(w, http.StatusNotFound, "Scene not found")
		return
	}

	bands := make([]string, 0, len(records))
	for _, rec := range records {
		bands = append(bands, rec.Band)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"scene_id":  sceneID,
		"bands":     bands,
		"downloads": records,
	})
}

// handlePoll runs a poll immediately.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	result, err := s.poller.TriggerPoll(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrPollInProgress) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusConflict, "A poll is already running")
			return
		}
		s.logger.Error("poll failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "Poll failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": message,
	})
}
