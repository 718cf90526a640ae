package model

import "context"

// Opinion is the statistical stage's view of one feature vector. NoOpinion
// covers every degraded condition: artifact missing, evaluation error, or
// deadline exceeded. The engine treats NoOpinion as normal for this stage
// only, so the statistical model can never block rule-based classification.
type Opinion int

const (
	NoOpinion Opinion = iota
	Normal
	Anomalous
)

func (o Opinion) String() string {
	switch o {
	case Normal:
		return "NORMAL"
	case Anomalous:
		return "ANOMALOUS"
	default:
		return "NO_OPINION"
	}
}

// Classifier is the port over an externally trained anomaly model. The input
// is the fixed-order vector [heart_rate, body_temp, signal_strength,
// battery_level]. Implementations must degrade to NoOpinion rather than
// return an error; the pipeline has no recovery path for inference failures.
type Classifier interface {
	Classify(ctx context.Context, features []float64) Opinion
}
