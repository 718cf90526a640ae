package domain

import "time"

// Reading is one decoded vital-sign sample from a device. It is constructed
// once by the validator and never mutated afterwards.
type Reading struct {
	DeviceID string

	// ObservedAt is assigned at acceptance time. Device clocks are not
	// trusted, so any timestamp in the payload is ignored.
	ObservedAt time.Time

	// The four vitals are optional at the payload level. A nil pointer means
	// the field was absent from the payload, which is distinct from zero.
	HeartRate      *float64
	BodyTemp       *float64
	SignalStrength *float64
	BatteryLevel   *float64

	// RawPayload holds the original decoded payload re-serialized as JSON,
	// kept verbatim for audit and export.
	RawPayload []byte
}

// Complete reports whether all four vitals were present in the payload.
// Incomplete readings short-circuit classification to MISSING_FIELDS.
func (r *Reading) Complete() bool {
	return r.HeartRate != nil && r.BodyTemp != nil &&
		r.SignalStrength != nil && r.BatteryLevel != nil
}

// FeatureVector returns the fixed-order model input
// [heart_rate, body_temp, signal_strength, battery_level].
// Only valid on complete readings.
func (r *Reading) FeatureVector() []float64 {
	return []float64{*r.HeartRate, *r.BodyTemp, *r.SignalStrength, *r.BatteryLevel}
}

type AnomalyType string

const (
	AnomalyMissingFields  AnomalyType = "MISSING_FIELDS"
	AnomalyOutOfRangeHR   AnomalyType = "OUT_OF_RANGE_HR"
	AnomalyOutOfRangeTemp AnomalyType = "OUT_OF_RANGE_TEMP"
	AnomalyLowBattery     AnomalyType = "LOW_BATTERY"
	AnomalyWeakSignal     AnomalyType = "WEAK_SIGNAL"
	AnomalyML             AnomalyType = "ML_ANOMALY"
)

// VerdictSource identifies which detector stage produced a classification.
type VerdictSource string

const (
	SourceRule VerdictSource = "RULE"
	SourceML   VerdictSource = "ML"
	SourceNone VerdictSource = "NONE"
)

// Verdict is the classification outcome for one Reading. It is embedded in
// the audit record at commit time and never persisted on its own.
type Verdict struct {
	IsAnomaly   bool
	AnomalyType AnomalyType // empty when IsAnomaly is false
	Source      VerdictSource

	// Violations preserves the full rule-violation set in precedence order;
	// AnomalyType is its first element when Source is RULE.
	Violations []AnomalyType
}

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// AlertSeverityFor maps an anomaly type to its escalation severity. Types
// outside the map (MISSING_FIELDS, or none) never escalate to an alert.
func AlertSeverityFor(t AnomalyType) (AlertSeverity, bool) {
	switch t {
	case AnomalyOutOfRangeHR, AnomalyOutOfRangeTemp, AnomalyML:
		return SeverityCritical, true
	case AnomalyLowBattery, AnomalyWeakSignal:
		return SeverityWarning, true
	default:
		return "", false
	}
}

type DeviceStatus string

const (
	StatusActive   DeviceStatus = "ACTIVE"
	StatusInactive DeviceStatus = "INACTIVE"
)

// DeriveStatus computes liveness from last_seen at read time. The pipeline
// never transitions a stored status; consumers derive it from this.
func DeriveStatus(lastSeen, now time.Time, window time.Duration) DeviceStatus {
	if now.Sub(lastSeen) > window {
		return StatusInactive
	}
	return StatusActive
}

// DeviceRecord is the per-device aggregate kept in the registry table.
type DeviceRecord struct {
	DeviceID      string       `json:"device_id"`
	FirstSeen     time.Time    `json:"first_seen"`
	LastSeen      time.Time    `json:"last_seen"`
	TotalReadings int64        `json:"total_readings"`
	Status        DeviceStatus `json:"status"`
}

// DeviceStats is the read-side aggregate served to the dashboard.
type DeviceStats struct {
	DeviceRecord
	AnomalyCount int64   `json:"anomaly_count"`
	AnomalyRate  float64 `json:"anomaly_rate"` // percent of readings flagged
}

// AnomalyRecord is one row of the audit log: a Reading plus its Verdict.
// Non-anomalous readings are stored in the same shape with IsAnomaly false.
type AnomalyRecord struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	DeviceID       string    `json:"device_id"`
	HeartRate      *float64  `json:"heart_rate"`
	BodyTemp       *float64  `json:"body_temp"`
	SignalStrength *float64  `json:"signal_strength"`
	BatteryLevel   *float64  `json:"battery_level"`
	IsAnomaly      bool      `json:"is_anomaly"`
	AnomalyType    *string   `json:"anomaly_type"`
	RawData        string    `json:"raw_data"`
}

// Alert is an escalation artifact derived from a CRITICAL or WARNING verdict.
// Resolution is a separate explicit mutation, never done by the pipeline.
type Alert struct {
	ID         int64         `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	DeviceID   string        `json:"device_id"`
	AlertType  AnomalyType   `json:"alert_type"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	IsResolved bool          `json:"is_resolved"`
}

// Outcome is what one ingestion call reports back to its transport.
// Business-level failures (bad data) are rejected Outcomes, not errors.
type Outcome struct {
	Accepted bool
	Reason   string // populated when rejected
	RecordID int64
	Verdict  Verdict
}
