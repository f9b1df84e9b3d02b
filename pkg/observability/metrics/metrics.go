package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	capturesAccepted      atomic.Int64
	capturesRejected      atomic.Int64
	safetyGateTriggered   atomic.Int64
	proposalsCreated      atomic.Int64
	proposalsConfirmed    atomic.Int64
	proposalsRejected     atomic.Int64
	proposalsExpired      atomic.Int64
	anomaliesDetected     atomic.Int64
	anomaliesDeduplicated atomic.Int64
	detectionRuns         atomic.Int64
)

func IncCapturesAccepted()      { capturesAccepted.Add(1) }
func IncCapturesRejected()      { capturesRejected.Add(1) }
func IncSafetyGateTriggered()   { safetyGateTriggered.Add(1) }
func IncProposalsCreated()      { proposalsCreated.Add(1) }
func IncProposalsConfirmed()    { proposalsConfirmed.Add(1) }
func IncProposalsRejected()     { proposalsRejected.Add(1) }
func AddProposalsExpired(n int) { proposalsExpired.Add(int64(n)) }
func IncAnomaliesDetected()     { anomaliesDetected.Add(1) }
func IncAnomaliesDeduplicated() { anomaliesDeduplicated.Add(1) }
func IncDetectionRuns()         { detectionRuns.Add(1) }

func writeCounter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeCounter(w, "vitalis_signals_captures_accepted_total", "Signal captures validated and persisted.", capturesAccepted.Load())
	writeCounter(w, "vitalis_signals_captures_rejected_total", "Signal captures rejected during validation.", capturesRejected.Load())
	writeCounter(w, "vitalis_signals_safety_gate_triggered_total", "Captures paused by the extreme-value safety gate.", safetyGateTriggered.Load())
	writeCounter(w, "vitalis_proposals_created_total", "AI signal proposals created.", proposalsCreated.Load())
	writeCounter(w, "vitalis_proposals_confirmed_total", "AI signal proposals confirmed into instances.", proposalsConfirmed.Load())
	writeCounter(w, "vitalis_proposals_rejected_total", "AI signal proposals rejected by users.", proposalsRejected.Load())
	writeCounter(w, "vitalis_proposals_expired_total", "AI signal proposals expired by the sweeper.", proposalsExpired.Load())
	writeCounter(w, "vitalis_anomalies_detected_total", "Anomalies produced by detection runs before de-duplication.", anomaliesDetected.Load())
	writeCounter(w, "vitalis_anomalies_deduplicated_total", "Detections dropped against an existing active anomaly.", anomaliesDeduplicated.Load())
	writeCounter(w, "vitalis_detection_runs_total", "Per-user anomaly detection runs completed.", detectionRuns.Load())
}

// Handler serves the counters at /metrics.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WritePrometheus(w)
	})
}
