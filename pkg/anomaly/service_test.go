package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/baseline"
	"github.com/vitalis-health/platform/pkg/common/models"
)

// fakeWindows serves canned per-metric averages. The recent window is the
// trailing slice, the baseline window everything before it.
type fakeWindows struct {
	recent       map[string][]float64
	baselineAvgs map[string][]float64
	refreshErrs  map[string]error
}

func newFakeWindows() *fakeWindows {
	return &fakeWindows{
		recent:       make(map[string][]float64),
		baselineAvgs: make(map[string][]float64),
		refreshErrs:  make(map[string]error),
	}
}

func (f *fakeWindows) RefreshBaseline(ctx context.Context, userID uuid.UUID, metric string, windowDays int) (models.UserBaseline, error) {
	if err := f.refreshErrs[metric]; err != nil {
		return models.UserBaseline{}, err
	}
	return models.UserBaseline{UserID: userID, MetricName: metric}, nil
}

func (f *fakeWindows) WindowAverage(ctx context.Context, userID uuid.UUID, metric string, from, to time.Time) (float64, int, error) {
	// The recent window ends at now; the baseline window ends earlier.
	var values []float64
	if time.Since(to) < time.Minute {
		values = f.recent[metric]
	} else {
		values = f.baselineAvgs[metric]
	}
	if len(values) == 0 {
		return 0, 0, nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), len(values), nil
}

// fakeAnomalyStore enforces the one-active-anomaly-per-metric rule the way
// the conditional insert does.
type fakeAnomalyStore struct {
	anomalies map[uuid.UUID]models.Anomaly
	inserts   int
}

func newFakeAnomalyStore() *fakeAnomalyStore {
	return &fakeAnomalyStore{anomalies: make(map[uuid.UUID]models.Anomaly)}
}

func (f *fakeAnomalyStore) InsertIfNoneActive(ctx context.Context, a models.Anomaly, dedupWindow time.Duration) (bool, error) {
	f.inserts++
	cutoff := a.DetectedAt.Add(-dedupWindow)
	for _, existing := range f.anomalies {
		if existing.UserID == a.UserID && existing.MetricName == a.MetricName &&
			existing.Status == models.AnomalyActive && existing.DetectedAt.After(cutoff) {
			return false, nil
		}
	}
	f.anomalies[a.ID] = a
	return true, nil
}

func (f *fakeAnomalyStore) ListActive(ctx context.Context, userID uuid.UUID) ([]models.Anomaly, error) {
	var out []models.Anomaly
	for _, a := range f.anomalies {
		if a.UserID == userID && a.Status == models.AnomalyActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnomalyStore) Resolve(ctx context.Context, userID, anomalyID uuid.UUID) (bool, error) {
	a, ok := f.anomalies[anomalyID]
	if !ok || a.UserID != userID || a.Status != models.AnomalyActive {
		return false, nil
	}
	a.Status = models.AnomalyResolved
	f.anomalies[anomalyID] = a
	return true, nil
}

func singleMetricThresholds(metric string) map[string]MetricThresholds {
	return map[string]MetricThresholds{metric: DefaultThresholds()[metric]}
}

func TestRunDetectionPersistsAnomaly(t *testing.T) {
	windows := newFakeWindows()
	windows.recent["heart_rate_resting"] = []float64{85}
	windows.baselineAvgs["heart_rate_resting"] = []float64{70}

	store := newFakeAnomalyStore()
	svc := NewService(windows, store, singleMetricThresholds("heart_rate_resting"), 7, 30)
	userID := uuid.New()

	result, err := svc.RunDetection(context.Background(), userID)
	if err != nil {
		t.Fatalf("detection failed: %v", err)
	}
	if len(result.Detected) != 1 {
		t.Fatalf("detected = %d, want 1", len(result.Detected))
	}
	if len(result.Persisted) != 1 {
		t.Fatalf("persisted = %d, want 1", len(result.Persisted))
	}

	a := result.Persisted[0]
	if a.MetricName != "heart_rate_resting" {
		t.Errorf("metric = %s", a.MetricName)
	}
	if a.ChangeDirection != models.DirectionIncrease {
		t.Errorf("direction = %s, want increase", a.ChangeDirection)
	}
	if a.Status != models.AnomalyActive {
		t.Errorf("status = %s, want active", a.Status)
	}
	if a.DetectionDays != 7 || a.BaselineDays != 23 {
		t.Errorf("windows = %d/%d, want 7/23", a.DetectionDays, a.BaselineDays)
	}
}

func TestRunDetectionDeduplicates(t *testing.T) {
	windows := newFakeWindows()
	windows.recent["heart_rate_resting"] = []float64{85}
	windows.baselineAvgs["heart_rate_resting"] = []float64{70}

	store := newFakeAnomalyStore()
	svc := NewService(windows, store, singleMetricThresholds("heart_rate_resting"), 7, 30)
	userID := uuid.New()

	first, err := svc.RunDetection(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.RunDetection(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Persisted) != 1 {
		t.Errorf("first run persisted = %d, want 1", len(first.Persisted))
	}
	if len(second.Detected) != 1 {
		t.Errorf("second run should still detect, got %d", len(second.Detected))
	}
	if len(second.Persisted) != 0 {
		t.Errorf("second run persisted = %d, want 0 within the dedup window", len(second.Persisted))
	}

	active, err := store.ListActive(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Errorf("active anomalies = %d, want exactly 1", len(active))
	}
}

func TestRunDetectionSkipsEmptyWindows(t *testing.T) {
	windows := newFakeWindows()
	windows.recent["heart_rate_resting"] = []float64{85}
	// No baseline window data at all.

	store := newFakeAnomalyStore()
	svc := NewService(windows, store, singleMetricThresholds("heart_rate_resting"), 7, 30)

	result, err := svc.RunDetection(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Detected) != 0 {
		t.Errorf("detected = %d, want 0 without a comparison window", len(result.Detected))
	}
}

func TestRunDetectionToleratesSparseBaselines(t *testing.T) {
	windows := newFakeWindows()
	windows.refreshErrs["heart_rate_resting"] = baseline.ErrInsufficientData
	windows.recent["heart_rate_resting"] = []float64{72, 90, 92, 94, 96, 98}
	windows.baselineAvgs["heart_rate_resting"] = []float64{70, 70, 70, 70, 70, 70}

	store := newFakeAnomalyStore()
	svc := NewService(windows, store, singleMetricThresholds("heart_rate_resting"), 7, 30)

	result, err := svc.RunDetection(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	// Even without a stored baseline the window comparison still runs.
	if len(result.Detected) != 1 {
		t.Errorf("detected = %d, want 1 despite insufficient stored baseline", len(result.Detected))
	}
}

func TestRunDetectionRecordsDiagnostics(t *testing.T) {
	windows := newFakeWindows()
	windows.refreshErrs["heart_rate_resting"] = context.DeadlineExceeded
	windows.recent["heart_rate_resting"] = []float64{85}
	windows.baselineAvgs["heart_rate_resting"] = []float64{70}

	store := newFakeAnomalyStore()
	svc := NewService(windows, store, singleMetricThresholds("heart_rate_resting"), 7, 30)

	result, err := svc.RunDetection(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Detected) != 0 {
		t.Error("a failed metric must be skipped, not evaluated")
	}
	if result.Diagnostics["heart_rate_resting"] == "" {
		t.Error("failures should surface in diagnostics")
	}
}

func TestListActiveChecksOwnership(t *testing.T) {
	svc := NewService(newFakeWindows(), newFakeAnomalyStore(), nil, 7, 30)
	if _, err := svc.ListActive(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Error("cross-user list must be rejected")
	}
}

func TestResolveAnomaly(t *testing.T) {
	store := newFakeAnomalyStore()
	svc := NewService(newFakeWindows(), store, nil, 7, 30)
	userID := uuid.New()

	a := models.Anomaly{
		ID:         uuid.New(),
		UserID:     userID,
		MetricName: "heart_rate_resting",
		Status:     models.AnomalyActive,
		DetectedAt: time.Now().UTC(),
	}
	store.anomalies[a.ID] = a

	ok, err := svc.ResolveAnomaly(context.Background(), userID, a.ID)
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	ok, err = svc.ResolveAnomaly(context.Background(), userID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second resolve should report nothing to do")
	}

	// Resolution lifts dedup suppression for the metric.
	inserted, err := store.InsertIfNoneActive(context.Background(), models.Anomaly{
		ID:         uuid.New(),
		UserID:     userID,
		MetricName: "heart_rate_resting",
		Status:     models.AnomalyActive,
		DetectedAt: time.Now().UTC(),
	}, DedupWindow)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Error("a resolved anomaly must not suppress new detections")
	}
}
