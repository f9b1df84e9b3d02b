package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/common/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type baselineModel struct {
	UserID          uuid.UUID `gorm:"column:user_id;uniqueIndex:idx_baselines_user_metric,priority:1"`
	MetricName      string    `gorm:"column:metric_name;uniqueIndex:idx_baselines_user_metric,priority:2"`
	BaselineValue   float64   `gorm:"column:baseline_value"`
	MinNormal       float64   `gorm:"column:min_normal"`
	MaxNormal       float64   `gorm:"column:max_normal"`
	StdDeviation    float64   `gorm:"column:std_deviation"`
	DataPointsCount int       `gorm:"column:data_points_count"`
	WindowDays      int       `gorm:"column:window_days"`
	CalculatedAt    time.Time `gorm:"column:calculated_at"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (baselineModel) TableName() string { return "user_baselines" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&baselineModel{})
}

// Upsert writes the baseline for (user, metric), replacing any previous one.
func (r *Repository) Upsert(ctx context.Context, b models.UserBaseline) error {
	row := &baselineModel{
		UserID:          b.UserID,
		MetricName:      b.MetricName,
		BaselineValue:   b.BaselineValue,
		MinNormal:       b.MinNormal,
		MaxNormal:       b.MaxNormal,
		StdDeviation:    b.StdDeviation,
		DataPointsCount: b.DataPointsCount,
		WindowDays:      b.WindowDays,
		CalculatedAt:    b.CalculatedAt,
		ExpiresAt:       b.ExpiresAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "metric_name"}},
		UpdateAll: true,
	}).Create(row).Error
}

func (r *Repository) Get(ctx context.Context, userID uuid.UUID, metric string) (models.UserBaseline, bool, error) {
	var row baselineModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND metric_name = ?", userID, metric).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserBaseline{}, false, nil
	}
	if err != nil {
		return models.UserBaseline{}, false, err
	}
	return models.UserBaseline{
		UserID:          row.UserID,
		MetricName:      row.MetricName,
		BaselineValue:   row.BaselineValue,
		MinNormal:       row.MinNormal,
		MaxNormal:       row.MaxNormal,
		StdDeviation:    row.StdDeviation,
		DataPointsCount: row.DataPointsCount,
		WindowDays:      row.WindowDays,
		CalculatedAt:    row.CalculatedAt,
		ExpiresAt:       row.ExpiresAt,
	}, true, nil
}

// NumericPointsInRange reads the plain numeric column of non-superseded
// instances, oldest first. The dedicated value_numeric column keeps window
// reads as plain SQL instead of JSONB extraction.
func (r *Repository) NumericPointsInRange(ctx context.Context, userID uuid.UUID, metric string, from, to time.Time) ([]Point, error) {
	var rows []struct {
		ValueNumeric float64   `gorm:"column:value_numeric"`
		CapturedAt   time.Time `gorm:"column:captured_at"`
	}
	err := r.db.WithContext(ctx).
		Table("signal_instances").
		Select("value_numeric, captured_at").
		Where("user_id = ? AND signal_id = ? AND superseded_by IS NULL AND value_numeric IS NOT NULL", userID, metric).
		Where("captured_at >= ? AND captured_at < ?", from, to).
		Order("captured_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, Point{Value: row.ValueNumeric, CapturedAt: row.CapturedAt})
	}
	return points, nil
}

// InstancesSince returns value/unit/captured-at triples for trend building,
// oldest first, across all value kinds.
func (r *Repository) InstancesSince(ctx context.Context, userID uuid.UUID, signalID string, from time.Time) ([]models.TrendPoint, error) {
	var rows []struct {
		Value      []byte    `gorm:"column:value"`
		Unit       string    `gorm:"column:unit"`
		CapturedAt time.Time `gorm:"column:captured_at"`
	}
	err := r.db.WithContext(ctx).
		Table("signal_instances").
		Select("value, unit, captured_at").
		Where("user_id = ? AND signal_id = ? AND superseded_by IS NULL AND captured_at >= ?", userID, signalID, from).
		Order("captured_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	points := make([]models.TrendPoint, 0, len(rows))
	for _, row := range rows {
		var value models.SignalValue
		if err := json.Unmarshal(row.Value, &value); err != nil {
			continue
		}
		points = append(points, models.TrendPoint{
			Value:      value,
			Unit:       row.Unit,
			CapturedAt: row.CapturedAt,
		})
	}
	return points, nil
}
