package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	ReadingsReceived  atomic.Int64
	ReadingsAccepted  atomic.Int64
	ReadingsRejected  atomic.Int64
	AnomaliesDetected atomic.Int64
	CommitFailures    atomic.Int64
	ModelNoOpinion    atomic.Int64
	StateChannelDrops atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "ingestion_readings_received_total %d\n", ReadingsReceived.Load())
	fmt.Fprintf(w, "ingestion_readings_accepted_total %d\n", ReadingsAccepted.Load())
	fmt.Fprintf(w, "ingestion_readings_rejected_total %d\n", ReadingsRejected.Load())
	fmt.Fprintf(w, "ingestion_anomalies_detected_total %d\n", AnomaliesDetected.Load())
	fmt.Fprintf(w, "ingestion_commit_failures_total %d\n", CommitFailures.Load())
	fmt.Fprintf(w, "ingestion_model_no_opinion_total %d\n", ModelNoOpinion.Load())
	fmt.Fprintf(w, "ingestion_state_channel_drops_total %d\n", StateChannelDrops.Load())
}
