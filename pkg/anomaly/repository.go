package anomaly

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vitalis-health/platform/pkg/common/models"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// isDuplicateKey recognizes a unique-constraint violation whether gorm has
// translated it (TranslateError) or the raw Postgres error surfaced.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type anomalyModel struct {
	ID              uuid.UUID  `gorm:"primaryKey;column:id"`
	UserID          uuid.UUID  `gorm:"column:user_id;index:idx_anomalies_user_status,priority:1"`
	MetricName      string     `gorm:"column:metric_name"`
	BaselineValue   float64    `gorm:"column:baseline_value"`
	CurrentValue    float64    `gorm:"column:current_value"`
	ChangeDirection string     `gorm:"column:change_direction"`
	ChangePercent   float64    `gorm:"column:change_percent"`
	Severity        string     `gorm:"column:severity"`
	DetectionDays   int        `gorm:"column:detection_window_days"`
	BaselineDays    int        `gorm:"column:baseline_window_days"`
	Status          string     `gorm:"column:status;index:idx_anomalies_user_status,priority:2"`
	DetectedAt      time.Time  `gorm:"column:detected_at"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at"`
}

func (anomalyModel) TableName() string { return "health_anomalies" }

// Migrate creates the table plus the partial unique index that backs the
// atomic de-duplication: at most one active anomaly per (user, metric).
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&anomalyModel{}); err != nil {
		return err
	}
	return r.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_anomalies_active_user_metric
		ON health_anomalies (user_id, metric_name)
		WHERE status = 'active'`).Error
}

func fromRow(row *anomalyModel) models.Anomaly {
	return models.Anomaly{
		ID:              row.ID,
		UserID:          row.UserID,
		MetricName:      row.MetricName,
		BaselineValue:   row.BaselineValue,
		CurrentValue:    row.CurrentValue,
		ChangeDirection: models.ChangeDirection(row.ChangeDirection),
		ChangePercent:   row.ChangePercent,
		Severity:        models.AnomalySeverity(row.Severity),
		DetectionDays:   row.DetectionDays,
		BaselineDays:    row.BaselineDays,
		Status:          models.AnomalyStatus(row.Status),
		DetectedAt:      row.DetectedAt,
		ResolvedAt:      row.ResolvedAt,
	}
}

// InsertIfNoneActive persists the anomaly unless an active one for the same
// (user, metric) was detected inside the dedup window. The guard and the
// insert are one statement, so concurrent detection runs cannot both insert;
// the partial unique index backstops even that.
func (r *Repository) InsertIfNoneActive(ctx context.Context, a models.Anomaly, dedupWindow time.Duration) (bool, error) {
	dedupCutoff := a.DetectedAt.Add(-dedupWindow)

	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO health_anomalies
			(id, user_id, metric_name, baseline_value, current_value, change_direction,
			 change_percent, severity, detection_window_days, baseline_window_days,
			 status, detected_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM health_anomalies
			WHERE user_id = ? AND metric_name = ? AND status = ? AND detected_at > ?
		)`,
		a.ID, a.UserID, a.MetricName, a.BaselineValue, a.CurrentValue, string(a.ChangeDirection),
		a.ChangePercent, string(a.Severity), a.DetectionDays, a.BaselineDays,
		string(models.AnomalyActive), a.DetectedAt,
		a.UserID, a.MetricName, string(models.AnomalyActive), dedupCutoff,
	)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListActive returns the user's active anomalies ordered by severity then
// recency.
func (r *Repository) ListActive(ctx context.Context, userID uuid.UUID) ([]models.Anomaly, error) {
	var rows []anomalyModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(models.AnomalyActive)).
		Order(`CASE severity
			WHEN 'critical' THEN 0
			WHEN 'urgent' THEN 1
			WHEN 'warning' THEN 2
			ELSE 3 END, detected_at DESC`).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	anomalies := make([]models.Anomaly, 0, len(rows))
	for i := range rows {
		anomalies = append(anomalies, fromRow(&rows[i]))
	}
	return anomalies, nil
}

// Resolve flips an active anomaly to resolved. Zero rows means it was
// missing, foreign or already resolved.
func (r *Repository) Resolve(ctx context.Context, userID, anomalyID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&anomalyModel{}).
		Where("id = ? AND user_id = ? AND status = ?", anomalyID, userID, string(models.AnomalyActive)).
		Updates(map[string]interface{}{
			"status":      string(models.AnomalyResolved),
			"resolved_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UsersWithRecentInstances returns users who captured anything since the
// cutoff; the interval scheduler scans exactly this set.
func (r *Repository) UsersWithRecentInstances(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("signal_instances").
		Distinct("user_id").
		Where("created_at >= ?", since).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}
