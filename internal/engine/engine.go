package engine

import (
	"context"

	"health-monitor/ingestion/internal/domain"
	"health-monitor/ingestion/internal/metrics"
	"health-monitor/ingestion/internal/model"
	"health-monitor/ingestion/internal/rules"
)

// Engine combines the rule classifier and the statistical classifier into a
// single deterministic verdict. Rule violations always win over the model:
// explainable safety thresholds take precedence over opaque model output.
type Engine struct {
	classifier model.Classifier
}

func New(classifier model.Classifier) *Engine {
	return &Engine{classifier: classifier}
}

// Classify produces the verdict for one reading.
//
// Incomplete readings short-circuit to MISSING_FIELDS without running either
// stage. Otherwise the rule set is evaluated first and its highest-precedence
// violation reported; the statistical stage is consulted only for rule-normal
// readings, where NoOpinion counts as normal.
func (e *Engine) Classify(ctx context.Context, r *domain.Reading) domain.Verdict {
	if !r.Complete() {
		return domain.Verdict{
			IsAnomaly:   true,
			AnomalyType: domain.AnomalyMissingFields,
			Source:      domain.SourceNone,
		}
	}

	if violations := rules.Evaluate(r); len(violations) > 0 {
		return domain.Verdict{
			IsAnomaly:   true,
			AnomalyType: violations[0],
			Source:      domain.SourceRule,
			Violations:  violations,
		}
	}

	if e.classifier != nil {
		switch e.classifier.Classify(ctx, r.FeatureVector()) {
		case model.Anomalous:
			return domain.Verdict{
				IsAnomaly:   true,
				AnomalyType: domain.AnomalyML,
				Source:      domain.SourceML,
			}
		case model.NoOpinion:
			metrics.ModelNoOpinion.Add(1)
		}
	}

	return domain.Verdict{Source: domain.SourceNone}
}
