package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"health-monitor/ingestion/internal/domain"
)

// UnknownDevice is recorded when a payload carries no device_id. Malformed
// traffic is still logged and counted rather than dropped.
const UnknownDevice = "UNKNOWN"

// ErrBadPayload marks a payload that is structurally unusable: a vital field
// present with a non-numeric value, or a non-string device_id. This is a
// request-level error, distinct from a field being absent (which yields an
// incomplete Reading and a MISSING_FIELDS verdict downstream).
var ErrBadPayload = errors.New("bad payload")

var vitalFields = []string{"heart_rate", "body_temp", "signal_strength", "battery_level"}

// Payload normalizes a decoded key/value payload into a typed Reading.
// Absent vitals stay nil on the Reading; extra keys are preserved only in
// RawPayload and ignored by classification.
func Payload(payload map[string]interface{}, arrival time.Time) (*domain.Reading, error) {
	reading := &domain.Reading{
		DeviceID:   UnknownDevice,
		ObservedAt: arrival,
	}

	if raw, ok := payload["device_id"]; ok {
		id, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: device_id must be a string, got %T", ErrBadPayload, raw)
		}
		if id != "" {
			reading.DeviceID = id
		}
	}

	for _, field := range vitalFields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		value, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, field, err)
		}
		switch field {
		case "heart_rate":
			reading.HeartRate = &value
		case "body_temp":
			reading.BodyTemp = &value
		case "signal_strength":
			reading.SignalStrength = &value
		case "battery_level":
			reading.BatteryLevel = &value
		}
	}

	rawJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: re-serialize payload: %v", ErrBadPayload, err)
	}
	reading.RawPayload = rawJSON

	return reading, nil
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("non-numeric value %v (%T)", raw, raw)
	}
}
