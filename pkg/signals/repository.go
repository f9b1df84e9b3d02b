package signals

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/catalog"
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

type instanceModel struct {
	ID                   uuid.UUID      `gorm:"primaryKey;column:id"`
	UserID               uuid.UUID      `gorm:"column:user_id;index:idx_instances_user_signal_time,priority:1"`
	SignalID             string         `gorm:"column:signal_id;index:idx_instances_user_signal_time,priority:2"`
	Value                datatypes.JSON `gorm:"column:value"`
	ValueNumeric         *float64       `gorm:"column:value_numeric"`
	Unit                 string         `gorm:"column:unit"`
	Source               string         `gorm:"column:source"`
	Confidence           float64        `gorm:"column:confidence"`
	CapturedAt           time.Time      `gorm:"column:captured_at;index:idx_instances_user_signal_time,priority:3,sort:desc"`
	Context              datatypes.JSON `gorm:"column:context"`
	SafetyLevel          string         `gorm:"column:safety_alert_level"`
	RequiresConfirmation bool           `gorm:"column:requires_confirmation"`
	AIProposalID         *uuid.UUID     `gorm:"column:ai_proposal_id"`
	SupersededBy         *uuid.UUID     `gorm:"column:superseded_by"`
	CreatedAt            time.Time      `gorm:"column:created_at"`
}

func (instanceModel) TableName() string { return "signal_instances" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&instanceModel{})
}

func toModel(inst models.SignalInstance) (*instanceModel, error) {
	valueJSON, err := json.Marshal(inst.Value)
	if err != nil {
		return nil, err
	}
	row := &instanceModel{
		ID:                   inst.ID,
		UserID:               inst.UserID,
		SignalID:             inst.SignalID,
		Value:                datatypes.JSON(valueJSON),
		ValueNumeric:         inst.Value.Numeric,
		Unit:                 inst.Unit,
		Source:               string(inst.Source),
		Confidence:           inst.Confidence,
		CapturedAt:           inst.CapturedAt,
		SafetyLevel:          string(inst.SafetyLevel),
		RequiresConfirmation: inst.RequiresConfirmation,
		AIProposalID:         inst.AIProposalID,
		SupersededBy:         inst.SupersededBy,
		CreatedAt:            inst.CreatedAt,
	}
	if inst.Context != nil {
		ctxJSON, err := json.Marshal(inst.Context)
		if err != nil {
			return nil, err
		}
		row.Context = datatypes.JSON(ctxJSON)
	}
	return row, nil
}

func fromModel(row *instanceModel) models.SignalInstance {
	inst := models.SignalInstance{
		ID:                   row.ID,
		UserID:               row.UserID,
		SignalID:             row.SignalID,
		Unit:                 row.Unit,
		Source:               models.CaptureSource(row.Source),
		Confidence:           row.Confidence,
		CapturedAt:           row.CapturedAt,
		SafetyLevel:          models.SafetyAlertLevel(row.SafetyLevel),
		RequiresConfirmation: row.RequiresConfirmation,
		AIProposalID:         row.AIProposalID,
		SupersededBy:         row.SupersededBy,
		CreatedAt:            row.CreatedAt,
	}
	_ = json.Unmarshal(row.Value, &inst.Value)
	if len(row.Context) > 0 {
		var captureCtx models.CaptureContext
		if err := json.Unmarshal(row.Context, &captureCtx); err == nil {
			inst.Context = &captureCtx
		}
	}
	return inst
}

// CreateInstance appends one observation. Instances are never updated or
// deleted; corrections go through SupersedeInstance.
func (r *Repository) CreateInstance(ctx context.Context, inst models.SignalInstance) error {
	row, err := toModel(inst)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// CreateInstanceForProposal appends the instance and flips its proposal to
// confirmed in one transaction. The conditional UPDATE ... RETURNING guards
// double-resolution: zero rows means the proposal already left pending.
// The instance confidence is derived from the extractor's confidence inside
// the transaction so no caller can supply it.
func (r *Repository) CreateInstanceForProposal(ctx context.Context, inst models.SignalInstance, proposalID uuid.UUID) (models.SignalInstance, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		valueJSON, err := json.Marshal(inst.Value)
		if err != nil {
			return err
		}

		var aiConfidence float64
		result := tx.Raw(`
			UPDATE ai_signal_proposals
			SET status = ?, resolved_at = ?, final_value = ?, final_unit = ?
			WHERE id = ? AND user_id = ? AND signal_id = ? AND status = ?
			RETURNING ai_confidence`,
			string(models.ProposalConfirmed), time.Now().UTC(), string(valueJSON), inst.Unit,
			proposalID, inst.UserID, inst.SignalID, string(models.ProposalPending),
		).Scan(&aiConfidence)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewError(CodeAlreadyResolved, "proposal is not pending")
		}

		inst.Confidence = catalog.ConfirmedConfidence(aiConfidence)
		inst.AIProposalID = &proposalID
		row, err := toModel(inst)
		if err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return models.SignalInstance{}, err
	}
	return inst, nil
}

// SupersedeInstance appends the correcting instance and points the old row's
// superseded_by at it, atomically. History is preserved; the only field ever
// written on an existing row is the supersession pointer.
func (r *Repository) SupersedeInstance(ctx context.Context, userID, oldID uuid.UUID, replacement models.SignalInstance) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := toModel(replacement)
		if err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		result := tx.Model(&instanceModel{}).
			Where("id = ? AND user_id = ? AND superseded_by IS NULL", oldID, userID).
			Update("superseded_by", replacement.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewError(CodeValidationFailed, "instance not found or already superseded")
		}
		return nil
	})
}

// Latest returns the non-superseded instance with the maximum captured_at.
// "Latest" is always this query, never a mutable pointer.
func (r *Repository) Latest(ctx context.Context, userID uuid.UUID, signalID string) (models.SignalInstance, bool, error) {
	var row instanceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND signal_id = ? AND superseded_by IS NULL", userID, signalID).
		Order("captured_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SignalInstance{}, false, nil
	}
	if err != nil {
		return models.SignalInstance{}, false, err
	}
	return fromModel(&row), true, nil
}

// History returns non-superseded instances ordered newest first. An empty
// signalID returns history across all signals.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, signalID string, limit int) ([]models.SignalInstance, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND superseded_by IS NULL", userID)
	if signalID != "" {
		query = query.Where("signal_id = ?", signalID)
	}
	var rows []instanceModel
	if err := query.Order("captured_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	instances := make([]models.SignalInstance, 0, len(rows))
	for i := range rows {
		instances = append(instances, fromModel(&rows[i]))
	}
	return instances, nil
}

// Get fetches one instance scoped to its owner.
func (r *Repository) Get(ctx context.Context, userID, instanceID uuid.UUID) (models.SignalInstance, bool, error) {
	var row instanceModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", instanceID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SignalInstance{}, false, nil
	}
	if err != nil {
		return models.SignalInstance{}, false, err
	}
	return fromModel(&row), true, nil
}
