package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClaimAttemptRepository struct {
	db *gorm.DB
}

func NewClaimAttemptRepository(db *gorm.DB) *ClaimAttemptRepository {
	return &ClaimAttemptRepository{db: db}
}

// Get returns the attempt log of claimant against item
func (r *ClaimAttemptRepository) Get(ctx context.Context, itemID, claimantID uuid.UUID) (*domain.ClaimAttempt, error) {
	var attempt domain.ClaimAttempt
	err := r.db.WithContext(ctx).
		First(&attempt, "item_id = ? AND claimant_id = ?", itemID, claimantID).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// Reserve consumes one attempt for claimant against item in a single statement.
// Counts last touched at or before windowStart restart at one. Nothing is consumed when the
// claimant is already verified or has used maxAttempts inside the window; in
// that case reserved is false and the current log is returned.
func (r *ClaimAttemptRepository) Reserve(
	ctx context.Context,
	itemID, claimantID uuid.UUID,
	now, windowStart time.Time,
	maxAttempts int,
) (attempt *domain.ClaimAttempt, reserved bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := &domain.ClaimAttempt{
			ItemID:        itemID,
			ClaimantID:    claimantID,
			Count:         0,
			LastAttemptAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "claimant_id"}},
			DoNothing: true,
		}).Create(seed).Error; err != nil {
			return err
		}

		result := tx.Model(&domain.ClaimAttempt{}).
			Where("item_id = ? AND claimant_id = ? AND verified_at IS NULL", itemID, claimantID).
			Where("NOT (attempt_count >= ? AND last_attempt_at > ?)", maxAttempts, windowStart).
			Updates(map[string]interface{}{
				"attempt_count":   gorm.Expr("CASE WHEN last_attempt_at <= ? THEN 1 ELSE attempt_count + 1 END", windowStart),
				"last_attempt_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		reserved = result.RowsAffected > 0

		var current domain.ClaimAttempt
		if err := tx.First(&current, "item_id = ? AND claimant_id = ?", itemID, claimantID).Error; err != nil {
			return err
		}
		attempt = &current
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return attempt, reserved, nil
}

// MarkVerified records a successful verification. An existing grant is kept.
func (r *ClaimAttemptRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.ClaimAttempt{}).
		Where("id = ? AND verified_at IS NULL", id).
		Update("verified_at", at).Error
}

// IsVerified reports whether claimant holds a verified grant on item
func (r *ClaimAttemptRepository) IsVerified(ctx context.Context, itemID, claimantID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ClaimAttempt{}).
		Where("item_id = ? AND claimant_id = ? AND verified_at IS NOT NULL", itemID, claimantID).
		Count(&count).Error
	return count > 0, err
}

// ListVerifiedClaimants returns the ids of claimants verified on item
func (r *ClaimAttemptRepository) ListVerifiedClaimants(ctx context.Context, itemID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&domain.ClaimAttempt{}).
		Where("item_id = ? AND verified_at IS NOT NULL", itemID).
		Order("verified_at ASC").
		Pluck("claimant_id", &ids).Error
	return ids, err
}

// VerifiedItemIDs returns which of itemIDs claimant is verified on
func (r *ClaimAttemptRepository) VerifiedItemIDs(ctx context.Context, claimantID uuid.UUID, itemIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	verified := make(map[uuid.UUID]bool)
	if len(itemIDs) == 0 {
		return verified, nil
	}

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&domain.ClaimAttempt{}).
		Where("claimant_id = ? AND item_id IN ? AND verified_at IS NOT NULL", claimantID, itemIDs).
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		verified[id] = true
	}
	return verified, nil
}

// PurgeStale deletes unverified logs whose last attempt is before cutoff
func (r *ClaimAttemptRepository) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("verified_at IS NULL AND last_attempt_at < ?", cutoff).
		Delete(&domain.ClaimAttempt{})
	return result.RowsAffected, result.Error
}
