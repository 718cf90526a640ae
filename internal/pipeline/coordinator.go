package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"health-monitor/ingestion/internal/domain"
	"health-monitor/ingestion/internal/engine"
	"health-monitor/ingestion/internal/metrics"
	"health-monitor/ingestion/internal/validate"
)

// Gateway is the durable side of a commit. The concrete implementation is
// the Postgres store; tests substitute fakes.
type Gateway interface {
	Commit(ctx context.Context, r *domain.Reading, v domain.Verdict) (int64, error)
}

// StateUpdate is a committed reading handed to the live-state mirror.
type StateUpdate struct {
	Reading *domain.Reading
	Verdict domain.Verdict
}

// Coordinator is the single ingestion entry point shared by both transports.
// It validates, classifies, and commits one reading per call. Only storage
// unavailability surfaces as an error; bad data comes back as a rejected
// Outcome so transports can map it to a client-error response.
type Coordinator struct {
	engine  *engine.Engine
	gateway Gateway
	states  chan<- *StateUpdate
	log     *slog.Logger
}

func NewCoordinator(eng *engine.Engine, gw Gateway, states chan<- *StateUpdate, log *slog.Logger) *Coordinator {
	return &Coordinator{
		engine:  eng,
		gateway: gw,
		states:  states,
		log:     log,
	}
}

// Ingest processes one decoded payload. The reading's ObservedAt is the
// arrival time supplied by the transport, never a device-reported timestamp.
//
// A call aborted before Commit leaves no state behind; the commit itself is
// a single transaction, so there is no partial-state window to cancel into.
func (c *Coordinator) Ingest(ctx context.Context, payload map[string]interface{}, arrival time.Time) (domain.Outcome, error) {
	metrics.ReadingsReceived.Add(1)

	if err := ctx.Err(); err != nil {
		return domain.Outcome{}, err
	}

	reading, err := validate.Payload(payload, arrival)
	if err != nil {
		metrics.ReadingsRejected.Add(1)
		return domain.Outcome{Reason: err.Error()}, nil
	}

	verdict := c.engine.Classify(ctx, reading)

	recordID, err := c.gateway.Commit(ctx, reading, verdict)
	if err != nil {
		metrics.CommitFailures.Add(1)
		return domain.Outcome{}, fmt.Errorf("commit reading from %s: %w", reading.DeviceID, err)
	}
	metrics.ReadingsAccepted.Add(1)

	if verdict.IsAnomaly {
		metrics.AnomaliesDetected.Add(1)
		c.log.Warn("anomaly detected",
			"device_id", reading.DeviceID,
			"anomaly_type", string(verdict.AnomalyType),
			"source", string(verdict.Source),
			"record_id", recordID,
		)
	}

	// Live-state dispatch is advisory; never block ingestion on the mirror.
	if c.states != nil {
		select {
		case c.states <- &StateUpdate{Reading: reading, Verdict: verdict}:
		default:
			metrics.StateChannelDrops.Add(1)
		}
	}

	return domain.Outcome{
		Accepted: true,
		RecordID: recordID,
		Verdict:  verdict,
	}, nil
}
