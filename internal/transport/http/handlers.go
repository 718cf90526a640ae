package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"health-monitor/ingestion/internal/domain"
	"health-monitor/ingestion/internal/store"
)

const defaultWindowHours = 24

// handleIngest receives one reading over the request channel. The outcome is
// echoed back: rejected payloads map to 400, committed readings to 202, and
// storage unavailability to 503. The 202 is sent only after the commit has
// durably succeeded.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	outcome, err := s.ingestor.Ingest(r.Context(), payload, time.Now().UTC())
	if err != nil {
		s.log.Error("ingestion failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
		return
	}
	if !outcome.Accepted {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": outcome.Reason})
		return
	}

	resp := map[string]interface{}{
		"status":     "accepted",
		"record_id":  outcome.RecordID,
		"is_anomaly": outcome.Verdict.IsAnomaly,
	}
	if outcome.Verdict.IsAnomaly {
		resp["anomaly_type"] = string(outcome.Verdict.AnomalyType)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storage := "ok"
	status := http.StatusOK
	if err := s.reads.Ping(ctx); err != nil {
		storage = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"status":       "running",
		"model_loaded": s.modelLoaded(),
		"storage":      storage,
	})
}

// handleDevices lists the registry with liveness derived from last_seen at
// read time; the stored status is never transitioned by the pipeline.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.reads.ListDevices(r.Context())
	if err != nil {
		s.log.Error("list devices failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
		return
	}

	now := time.Now().UTC()
	for i := range devices {
		devices[i].Status = domain.DeriveStatus(devices[i].LastSeen, now, s.livenessWindow)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices, "count": len(devices)})
}

func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	stats, err := s.reads.DeviceStats(r.Context(), deviceID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown device"})
		return
	}
	stats.Status = domain.DeriveStatus(stats.LastSeen, time.Now().UTC(), s.livenessWindow)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultWindowHours)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	deviceID := r.URL.Query().Get("device_id")

	records, err := s.reads.RecentAnomalies(r.Context(), since, deviceID, 500)
	if err != nil {
		s.log.Error("query anomalies failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"anomalies": records, "count": len(records)})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultWindowHours)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	alerts, err := s.reads.ActiveAlerts(r.Context(), since)
	if err != nil {
		s.log.Error("query alerts failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid alert id"})
		return
	}

	if err := s.reads.ResolveAlert(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
			return
		}
		s.log.Error("resolve alert failed", "id", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
