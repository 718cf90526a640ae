package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"health-monitor/ingestion/internal/domain"
)

// StateMirror is the advisory side of the store: live device state plus the
// pub/sub channels the dashboard subscribes to.
type StateMirror interface {
	PublishReading(ctx context.Context, r *domain.Reading, v domain.Verdict) error
	CheckAlertDedup(ctx context.Context, deviceID string, alertType domain.AnomalyType) (bool, error)
	SetAlertDedup(ctx context.Context, deviceID string, alertType domain.AnomalyType) error
	PublishAlert(ctx context.Context, payload []byte) error
}

// StateWriter drains committed readings onto the live-state mirror. It runs
// after commit and off the ingestion path; failures here are logged, never
// surfaced, because the durable record already exists.
type StateWriter struct {
	ch     <-chan *StateUpdate
	mirror StateMirror
	log    *slog.Logger
}

func NewStateWriter(ch <-chan *StateUpdate, mirror StateMirror, log *slog.Logger) *StateWriter {
	return &StateWriter{ch: ch, mirror: mirror, log: log}
}

func (w *StateWriter) Run(ctx context.Context) {
	for {
		select {
		case update, ok := <-w.ch:
			if !ok {
				return
			}
			w.apply(context.Background(), update)

		case <-ctx.Done():
			return
		}
	}
}

func (w *StateWriter) apply(ctx context.Context, update *StateUpdate) {
	if err := w.mirror.PublishReading(ctx, update.Reading, update.Verdict); err != nil {
		w.log.Warn("live state update failed",
			"device_id", update.Reading.DeviceID, "error", err)
	}

	if !update.Verdict.IsAnomaly {
		return
	}
	severity, ok := domain.AlertSeverityFor(update.Verdict.AnomalyType)
	if !ok {
		return
	}

	deviceID := update.Reading.DeviceID
	alertType := update.Verdict.AnomalyType

	isDuplicate, err := w.mirror.CheckAlertDedup(ctx, deviceID, alertType)
	if err != nil {
		w.log.Warn("alert dedup check failed",
			"device_id", deviceID, "alert_type", string(alertType), "error", err)
		return
	}
	if isDuplicate {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"device_id":    deviceID,
		"alert_type":   string(alertType),
		"severity":     string(severity),
		"triggered_at": time.Now().Unix(),
	})
	if err := w.mirror.PublishAlert(ctx, payload); err != nil {
		w.log.Warn("alert publish failed",
			"device_id", deviceID, "alert_type", string(alertType), "error", err)
		return
	}
	if err := w.mirror.SetAlertDedup(ctx, deviceID, alertType); err != nil {
		w.log.Warn("alert dedup set failed",
			"device_id", deviceID, "alert_type", string(alertType), "error", err)
	}
}
