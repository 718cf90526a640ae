package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"health-monitor/ingestion/internal/domain"
	"health-monitor/ingestion/internal/store"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeIngestor struct {
	outcome     domain.Outcome
	err         error
	lastPayload map[string]interface{}
}

func (f *fakeIngestor) Ingest(ctx context.Context, payload map[string]interface{}, arrival time.Time) (domain.Outcome, error) {
	f.lastPayload = payload
	return f.outcome, f.err
}

type fakeReads struct {
	pingErr    error
	devices    []domain.DeviceRecord
	resolveErr error
}

func (f *fakeReads) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeReads) ListDevices(ctx context.Context) ([]domain.DeviceRecord, error) {
	return f.devices, nil
}

func (f *fakeReads) DeviceStats(ctx context.Context, deviceID string) (domain.DeviceStats, error) {
	if deviceID == "dev-01" {
		return domain.DeviceStats{
			DeviceRecord: domain.DeviceRecord{DeviceID: "dev-01", LastSeen: time.Now(), TotalReadings: 10},
			AnomalyCount: 2,
			AnomalyRate:  20,
		}, nil
	}
	return domain.DeviceStats{}, errors.New("no rows")
}

func (f *fakeReads) RecentAnomalies(ctx context.Context, since time.Time, deviceID string, limit int) ([]domain.AnomalyRecord, error) {
	return nil, nil
}

func (f *fakeReads) ActiveAlerts(ctx context.Context, since time.Time) ([]domain.Alert, error) {
	return nil, nil
}

func (f *fakeReads) ResolveAlert(ctx context.Context, id int64) error { return f.resolveErr }

func newTestServer(ingestor Ingestor, reads Reads) *Server {
	return NewServer(":0", ingestor, reads, func() bool { return true }, 5*time.Minute, testLog)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestIngestAccepted(t *testing.T) {
	ingestor := &fakeIngestor{outcome: domain.Outcome{
		Accepted: true,
		RecordID: 42,
		Verdict:  domain.Verdict{IsAnomaly: true, AnomalyType: domain.AnomalyOutOfRangeHR, Source: domain.SourceRule},
	}}
	s := newTestServer(ingestor, &fakeReads{})

	rec := doRequest(t, s, http.MethodPost, "/api/telemetry", `{"device_id":"dev-01","heart_rate":150}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["record_id"].(float64) != 42 || resp["anomaly_type"] != "OUT_OF_RANGE_HR" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if ingestor.lastPayload["device_id"] != "dev-01" {
		t.Fatal("payload not forwarded to coordinator")
	}
}

func TestIngestInvalidJSON(t *testing.T) {
	s := newTestServer(&fakeIngestor{}, &fakeReads{})
	rec := doRequest(t, s, http.MethodPost, "/api/telemetry", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

// Validation failures are client errors.
func TestIngestRejectedOutcome(t *testing.T) {
	ingestor := &fakeIngestor{outcome: domain.Outcome{Reason: "bad payload: heart_rate"}}
	s := newTestServer(ingestor, &fakeReads{})

	rec := doRequest(t, s, http.MethodPost, "/api/telemetry", `{"heart_rate":"fast"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bad payload") {
		t.Fatalf("reason not echoed: %s", rec.Body.String())
	}
}

// Persistence failures are server errors.
func TestIngestStorageFailure(t *testing.T) {
	ingestor := &fakeIngestor{err: errors.New("commit failed")}
	s := newTestServer(ingestor, &fakeReads{})

	rec := doRequest(t, s, http.MethodPost, "/api/telemetry", `{"device_id":"dev-01"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeIngestor{}, &fakeReads{})
	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["model_loaded"] != true || resp["storage"] != "ok" {
		t.Fatalf("unexpected health body: %v", resp)
	}
}

func TestHealthStorageDown(t *testing.T) {
	s := newTestServer(&fakeIngestor{}, &fakeReads{pingErr: errors.New("down")})
	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
}

// Liveness is derived from last_seen at read time, whatever is stored.
func TestDevicesDeriveLiveness(t *testing.T) {
	now := time.Now()
	reads := &fakeReads{devices: []domain.DeviceRecord{
		{DeviceID: "fresh", LastSeen: now.Add(-time.Minute), Status: domain.StatusActive},
		{DeviceID: "stale", LastSeen: now.Add(-time.Hour), Status: domain.StatusActive},
	}}
	s := newTestServer(&fakeIngestor{}, reads)

	rec := doRequest(t, s, http.MethodGet, "/api/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp struct {
		Devices []domain.DeviceRecord `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Devices[0].Status != domain.StatusActive {
		t.Fatalf("fresh device: got %s", resp.Devices[0].Status)
	}
	if resp.Devices[1].Status != domain.StatusInactive {
		t.Fatalf("stale device: got %s", resp.Devices[1].Status)
	}
}

func TestDeviceStats(t *testing.T) {
	s := newTestServer(&fakeIngestor{}, &fakeReads{})
	rec := doRequest(t, s, http.MethodGet, "/api/devices/dev-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/devices/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device: got %d, want 404", rec.Code)
	}
}

func TestResolveAlert(t *testing.T) {
	s := newTestServer(&fakeIngestor{}, &fakeReads{})
	rec := doRequest(t, s, http.MethodPost, "/api/alerts/7/resolve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	s = newTestServer(&fakeIngestor{}, &fakeReads{resolveErr: store.ErrAlertNotFound})
	rec = doRequest(t, s, http.MethodPost, "/api/alerts/7/resolve", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing alert: got %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/alerts/abc/resolve", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: got %d, want 400", rec.Code)
	}
}
