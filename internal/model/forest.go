package model

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"
)

// FeatureCount is the fixed width of the model input vector.
const FeatureCount = 4

const leafNode = -2 // sentinel used by the exporter for leaf features

// Tree is one isolation tree in flattened node-array form, as exported by
// the training job. Index 0 is the root; Feature[i] == leafNode marks leaves.
type Tree struct {
	Feature     []int     `json:"feature"`
	Threshold   []float64 `json:"threshold"`
	Left        []int     `json:"children_left"`
	Right       []int     `json:"children_right"`
	NodeSamples []int     `json:"n_node_samples"`
}

func (t *Tree) validate() error {
	n := len(t.Feature)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.NodeSamples) != n {
		return fmt.Errorf("tree arrays disagree on node count")
	}
	for i := 0; i < n; i++ {
		if t.Feature[i] == leafNode {
			continue
		}
		if t.Feature[i] < 0 || t.Feature[i] >= FeatureCount {
			return fmt.Errorf("node %d: feature index %d out of range", i, t.Feature[i])
		}
		if t.Left[i] < 0 || t.Left[i] >= n || t.Right[i] < 0 || t.Right[i] >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

// pathLength walks x down the tree and returns the isolation depth, with the
// usual average-path correction added at the leaf.
func (t *Tree) pathLength(x []float64) float64 {
	node := 0
	depth := 0.0
	for t.Feature[node] != leafNode {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
		depth++
	}
	return depth + averagePathLength(t.NodeSamples[node])
}

// Artifact is the trained, pre-scaled isolation-forest model as persisted by
// the offline training job: the fitted scaler, the trees, the subsample size
// each tree was grown on, and the decision-function offset.
type Artifact struct {
	Scaler     ScalerParams `json:"scaler"`
	Trees      []Tree       `json:"trees"`
	MaxSamples int          `json:"max_samples"`
	Offset     float64      `json:"offset"`
}

func (a *Artifact) validate() error {
	if err := a.Scaler.validate(FeatureCount); err != nil {
		return err
	}
	if len(a.Trees) == 0 {
		return fmt.Errorf("artifact has no trees")
	}
	if a.MaxSamples < 1 {
		return fmt.Errorf("max_samples must be positive, got %d", a.MaxSamples)
	}
	for i := range a.Trees {
		if err := a.Trees[i].validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// decision is the signed anomaly score: negative means anomalous, matching
// the -1/1 convention of the training side. ctx is checked between trees so
// a deadline cuts evaluation short.
func (a *Artifact) decision(ctx context.Context, x []float64) (float64, error) {
	total := 0.0
	for i := range a.Trees {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		total += a.Trees[i].pathLength(x)
	}
	avgDepth := total / float64(len(a.Trees))
	score := math.Exp2(-avgDepth / averagePathLength(a.MaxSamples))
	return -score - a.Offset, nil
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// BST search over n samples.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		const eulerGamma = 0.5772156649015329
		h := math.Log(float64(n-1)) + eulerGamma
		return 2*h - 2*float64(n-1)/float64(n)
	}
}

// IsolationForest classifies feature vectors against a locally loaded
// artifact. A forest without an artifact is still usable; it simply has no
// opinion, so model unavailability never becomes a pipeline failure.
type IsolationForest struct {
	artifact *Artifact
	timeout  time.Duration
	log      *slog.Logger
}

// Load reads the artifact at path. A missing or corrupt artifact is logged
// and leaves the forest opinion-less rather than failing startup.
func Load(path string, timeout time.Duration, log *slog.Logger) *IsolationForest {
	f := &IsolationForest{timeout: timeout, log: log}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("model artifact unavailable, statistical stage disabled",
			"path", path, "error", err)
		return f
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		log.Error("model artifact unreadable, statistical stage disabled",
			"path", path, "error", err)
		return f
	}
	if err := artifact.validate(); err != nil {
		log.Error("model artifact invalid, statistical stage disabled",
			"path", path, "error", err)
		return f
	}

	f.artifact = &artifact
	log.Info("model artifact loaded", "path", path, "trees", len(artifact.Trees))
	return f
}

// Loaded reports whether an artifact is available, for the health endpoint.
func (f *IsolationForest) Loaded() bool {
	return f != nil && f.artifact != nil
}

// Classify implements Classifier. Every failure path is NoOpinion.
func (f *IsolationForest) Classify(ctx context.Context, features []float64) Opinion {
	if !f.Loaded() || len(features) != FeatureCount {
		return NoOpinion
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	scaled := f.artifact.Scaler.Transform(features)
	decision, err := f.artifact.decision(ctx, scaled)
	if err != nil {
		f.log.Warn("model inference aborted", "error", err)
		return NoOpinion
	}
	if decision < 0 {
		return Anomalous
	}
	return Normal
}
