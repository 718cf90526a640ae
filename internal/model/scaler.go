package model

import "fmt"

// ScalerParams is the standard-scaler transform persisted alongside the
// model by the training job. Inference must apply the exact transform the
// artifact was trained with, so the parameters travel inside the artifact.
type ScalerParams struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (p *ScalerParams) validate(nFeatures int) error {
	if len(p.Mean) != nFeatures || len(p.Scale) != nFeatures {
		return fmt.Errorf("scaler expects %d features, artifact has mean=%d scale=%d",
			nFeatures, len(p.Mean), len(p.Scale))
	}
	return nil
}

// Transform applies standard scaling. A zero scale degenerates to centering,
// matching what the training-side scaler does for constant features.
func (p *ScalerParams) Transform(features []float64) []float64 {
	scaled := make([]float64, len(features))
	for i, v := range features {
		if i >= len(p.Mean) {
			scaled[i] = v
			continue
		}
		if p.Scale[i] != 0 {
			scaled[i] = (v - p.Mean[i]) / p.Scale[i]
		} else {
			scaled[i] = v - p.Mean[i]
		}
	}
	return scaled
}
