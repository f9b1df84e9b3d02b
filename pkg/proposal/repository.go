package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type proposalModel struct {
	ID            uuid.UUID      `gorm:"primaryKey;column:id"`
	UserID        uuid.UUID      `gorm:"column:user_id;index:idx_proposals_user_status,priority:1"`
	SignalID      string         `gorm:"column:signal_id"`
	ProposedValue datatypes.JSON `gorm:"column:proposed_value"`
	ProposedUnit  string         `gorm:"column:proposed_unit"`
	ExtractedFrom string         `gorm:"column:extracted_from"`
	AIConfidence  float64        `gorm:"column:ai_confidence"`
	Status        string         `gorm:"column:status;index:idx_proposals_user_status,priority:2"`
	ResolvedAt    *time.Time     `gorm:"column:resolved_at"`
	FinalValue    datatypes.JSON `gorm:"column:final_value"`
	FinalUnit     string         `gorm:"column:final_unit"`
	CreatedAt     time.Time      `gorm:"column:created_at;index"`
}

func (proposalModel) TableName() string { return "ai_signal_proposals" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&proposalModel{})
}

func toRow(p models.AISignalProposal) (*proposalModel, error) {
	valueJSON, err := json.Marshal(p.ProposedValue)
	if err != nil {
		return nil, err
	}
	return &proposalModel{
		ID:            p.ID,
		UserID:        p.UserID,
		SignalID:      p.SignalID,
		ProposedValue: datatypes.JSON(valueJSON),
		ProposedUnit:  p.ProposedUnit,
		ExtractedFrom: p.ExtractedFrom,
		AIConfidence:  p.AIConfidence,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}, nil
}

func fromRow(row *proposalModel) models.AISignalProposal {
	p := models.AISignalProposal{
		ID:            row.ID,
		UserID:        row.UserID,
		SignalID:      row.SignalID,
		ProposedUnit:  row.ProposedUnit,
		ExtractedFrom: row.ExtractedFrom,
		AIConfidence:  row.AIConfidence,
		Status:        models.ProposalStatus(row.Status),
		ResolvedAt:    row.ResolvedAt,
		FinalUnit:     row.FinalUnit,
		CreatedAt:     row.CreatedAt,
	}
	_ = json.Unmarshal(row.ProposedValue, &p.ProposedValue)
	if len(row.FinalValue) > 0 {
		var final models.SignalValue
		if err := json.Unmarshal(row.FinalValue, &final); err == nil {
			p.FinalValue = &final
		}
	}
	return p
}

func (r *Repository) Create(ctx context.Context, p models.AISignalProposal) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) Get(ctx context.Context, userID, proposalID uuid.UUID) (models.AISignalProposal, bool, error) {
	var row proposalModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", proposalID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AISignalProposal{}, false, nil
	}
	if err != nil {
		return models.AISignalProposal{}, false, err
	}
	return fromRow(&row), true, nil
}

func (r *Repository) ListPending(ctx context.Context, userID uuid.UUID, limit int) ([]models.AISignalProposal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []proposalModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(models.ProposalPending)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	proposals := make([]models.AISignalProposal, 0, len(rows))
	for i := range rows {
		proposals = append(proposals, fromRow(&rows[i]))
	}
	return proposals, nil
}

// Reject flips a pending proposal to rejected. The conditional WHERE makes
// double-resolution observable: zero rows updated means it already resolved.
func (r *Repository) Reject(ctx context.Context, userID, proposalID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&proposalModel{}).
		Where("id = ? AND user_id = ? AND status = ?", proposalID, userID, string(models.ProposalPending)).
		Updates(map[string]interface{}{
			"status":      string(models.ProposalRejected),
			"resolved_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireOlderThan marks pending proposals created before the cutoff as
// expired and returns how many were swept.
func (r *Repository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result := r.db.WithContext(ctx).Model(&proposalModel{}).
		Where("status = ? AND created_at < ?", string(models.ProposalPending), cutoff).
		Updates(map[string]interface{}{
			"status":      string(models.ProposalExpired),
			"resolved_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}
