package domain

import (
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }

func TestComplete(t *testing.T) {
	r := &Reading{HeartRate: f(72), BodyTemp: f(36.8), SignalStrength: f(-60), BatteryLevel: f(80)}
	if !r.Complete() {
		t.Fatal("reading with all four vitals should be complete")
	}

	r.BatteryLevel = nil
	if r.Complete() {
		t.Fatal("reading missing battery_level should be incomplete")
	}
}

func TestFeatureVectorOrder(t *testing.T) {
	r := &Reading{HeartRate: f(72), BodyTemp: f(36.8), SignalStrength: f(-60), BatteryLevel: f(80)}
	got := r.FeatureVector()
	want := []float64{72, 36.8, -60, 80}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("feature %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAlertSeverityFor(t *testing.T) {
	cases := []struct {
		anomalyType AnomalyType
		severity    AlertSeverity
		escalates   bool
	}{
		{AnomalyOutOfRangeHR, SeverityCritical, true},
		{AnomalyOutOfRangeTemp, SeverityCritical, true},
		{AnomalyML, SeverityCritical, true},
		{AnomalyLowBattery, SeverityWarning, true},
		{AnomalyWeakSignal, SeverityWarning, true},
		{AnomalyMissingFields, "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		severity, ok := AlertSeverityFor(tc.anomalyType)
		if ok != tc.escalates || severity != tc.severity {
			t.Errorf("AlertSeverityFor(%q) = %q, %v; want %q, %v",
				tc.anomalyType, severity, ok, tc.severity, tc.escalates)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	now := time.Now()
	window := 5 * time.Minute

	if got := DeriveStatus(now.Add(-time.Minute), now, window); got != StatusActive {
		t.Fatalf("recent device: got %s, want ACTIVE", got)
	}
	if got := DeriveStatus(now.Add(-10*time.Minute), now, window); got != StatusInactive {
		t.Fatalf("stale device: got %s, want INACTIVE", got)
	}
}
