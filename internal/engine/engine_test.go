package engine

import (
	"context"
	"testing"

	"health-monitor/ingestion/internal/domain"
	"health-monitor/ingestion/internal/model"
)

func f(v float64) *float64 { return &v }

// opinionFunc lets each case pin the statistical stage's answer.
type opinionFunc func() model.Opinion

func (fn opinionFunc) Classify(ctx context.Context, features []float64) model.Opinion {
	return fn()
}

func fixed(o model.Opinion) model.Classifier {
	return opinionFunc(func() model.Opinion { return o })
}

func reading(hr, temp, signal, battery float64) *domain.Reading {
	return &domain.Reading{
		DeviceID:       "dev-01",
		HeartRate:      f(hr),
		BodyTemp:       f(temp),
		SignalStrength: f(signal),
		BatteryLevel:   f(battery),
	}
}

func TestNormalReadingNormalModel(t *testing.T) {
	e := New(fixed(model.Normal))
	v := e.Classify(context.Background(), reading(72, 36.8, -60, 80))
	if v.IsAnomaly {
		t.Fatalf("got anomaly %v, want normal", v.AnomalyType)
	}
	if v.Source != domain.SourceNone || v.AnomalyType != "" {
		t.Fatalf("normal verdict malformed: %+v", v)
	}
}

// Incomplete readings short-circuit regardless of the remaining values and
// regardless of what the model would say.
func TestMissingFieldsShortCircuits(t *testing.T) {
	e := New(fixed(model.Anomalous))
	r := &domain.Reading{DeviceID: "dev-01", HeartRate: f(150)}
	v := e.Classify(context.Background(), r)
	if !v.IsAnomaly || v.AnomalyType != domain.AnomalyMissingFields || v.Source != domain.SourceNone {
		t.Fatalf("got %+v, want {true MISSING_FIELDS NONE}", v)
	}
}

// heart_rate=150 plus battery_level=5 must report OUT_OF_RANGE_HR, never
// LOW_BATTERY: precedence, not last-writer-wins.
func TestRulePrecedence(t *testing.T) {
	e := New(fixed(model.Normal))
	v := e.Classify(context.Background(), reading(150, 36.8, -60, 5))
	if v.AnomalyType != domain.AnomalyOutOfRangeHR {
		t.Fatalf("got %v, want OUT_OF_RANGE_HR", v.AnomalyType)
	}
	if v.Source != domain.SourceRule {
		t.Fatalf("got source %v, want RULE", v.Source)
	}
	if len(v.Violations) != 2 || v.Violations[1] != domain.AnomalyLowBattery {
		t.Fatalf("full violation set not preserved: %v", v.Violations)
	}
}

// A rule violation beats an anomalous model verdict.
func TestRuleBeatsModel(t *testing.T) {
	e := New(fixed(model.Anomalous))
	v := e.Classify(context.Background(), reading(150, 36.8, -60, 80))
	if v.AnomalyType != domain.AnomalyOutOfRangeHR || v.Source != domain.SourceRule {
		t.Fatalf("got %+v, want rule verdict", v)
	}
}

func TestModelOnlyAnomaly(t *testing.T) {
	e := New(fixed(model.Anomalous))
	v := e.Classify(context.Background(), reading(75, 36.9, -60, 80))
	if !v.IsAnomaly || v.AnomalyType != domain.AnomalyML || v.Source != domain.SourceML {
		t.Fatalf("got %+v, want {true ML_ANOMALY ML}", v)
	}
}

// NoOpinion counts as normal for the statistical stage only; a rule-normal
// reading stays normal when the model is unavailable.
func TestNoOpinionDegradesToNormal(t *testing.T) {
	e := New(fixed(model.NoOpinion))
	v := e.Classify(context.Background(), reading(72, 36.8, -60, 80))
	if v.IsAnomaly {
		t.Fatalf("got %+v, want normal verdict under degraded model", v)
	}
}

func TestNilClassifier(t *testing.T) {
	e := New(nil)
	v := e.Classify(context.Background(), reading(72, 36.8, -60, 80))
	if v.IsAnomaly {
		t.Fatalf("got %+v, want normal", v)
	}
}
