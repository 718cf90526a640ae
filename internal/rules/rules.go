package rules

import "health-monitor/ingestion/internal/domain"

// Rule is one medical reference-range check. Violated must only consult
// fields that are explicitly present; presence is the pointer, never the
// zero value, so battery_level=0 and signal_strength=0 are evaluated.
type Rule struct {
	Code     domain.AnomalyType
	Violated func(r *domain.Reading) bool
}

// Defaults is the fixed reference-range table in precedence order. The
// engine reports the first violated rule; the full set is kept for audit.
var Defaults = []Rule{
	{
		Code: domain.AnomalyOutOfRangeHR,
		Violated: func(r *domain.Reading) bool {
			return r.HeartRate != nil && (*r.HeartRate < 60 || *r.HeartRate > 100)
		},
	},
	{
		Code: domain.AnomalyOutOfRangeTemp,
		Violated: func(r *domain.Reading) bool {
			return r.BodyTemp != nil && (*r.BodyTemp < 36.0 || *r.BodyTemp > 37.5)
		},
	},
	{
		Code: domain.AnomalyLowBattery,
		Violated: func(r *domain.Reading) bool {
			return r.BatteryLevel != nil && *r.BatteryLevel < 10
		},
	},
	{
		Code: domain.AnomalyWeakSignal,
		Violated: func(r *domain.Reading) bool {
			return r.SignalStrength != nil && *r.SignalStrength < -100
		},
	},
}

// Evaluate returns every violated rule code, in precedence order. A nil
// result means the reading is rule-normal.
func Evaluate(r *domain.Reading) []domain.AnomalyType {
	var violations []domain.AnomalyType
	for _, rule := range Defaults {
		if rule.Violated(r) {
			violations = append(violations, rule.Code)
		}
	}
	return violations
}
