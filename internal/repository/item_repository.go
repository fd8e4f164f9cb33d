package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/domain"
	"gorm.io/gorm"
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts the item together with its verification questions
func (r *ItemRepository) Create(ctx context.Context, item *domain.FoundItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FoundItem, error) {
	var item domain.FoundItem
	err := r.db.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ExistsByReference reports whether a mirror item id is already in the database.
// Items exported from here carry their own uuid, imported ones their legacy ref.
func (r *ItemRepository) ExistsByReference(ctx context.Context, ref string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.FoundItem{})
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("legacy_ref = ? OR id = ?", ref, id)
	} else {
		query = query.Where("legacy_ref = ?", ref)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// List returns a page of the feed, newest report first
func (r *ItemRepository) List(ctx context.Context, filter domain.ItemListFilter) ([]domain.FoundItem, int64, error) {
	var items []domain.FoundItem
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.FoundItem{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FounderID != nil {
		query = query.Where("founder_id = ?", *filter.FounderID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PageSize
	err := query.
		Preload("Questions", orderedQuestions).
		Offset(offset).
		Limit(filter.PageSize).
		Order("reported_at DESC").
		Find(&items).Error

	return items, total, err
}

// ListAll returns every item with questions, oldest first, used by the mirror export
func (r *ItemRepository) ListAll(ctx context.Context) ([]domain.FoundItem, error) {
	var items []domain.FoundItem
	err := r.db.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		Order("reported_at ASC").
		Find(&items).Error
	return items, err
}

// MarkHandovered flips an available item to handovered.
// It reports false when the item was already handed over.
func (r *ItemRepository) MarkHandovered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.FoundItem{}).
		Where("id = ? AND status = ?", id, domain.ItemStatusAvailable).
		Updates(map[string]interface{}{
			"status":         domain.ItemStatusHandovered,
			"handed_over_at": at,
		})
	return result.RowsAffected > 0, result.Error
}

// Delete removes the item with its questions, messages and claim attempts
func (r *ItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&domain.VerificationQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&domain.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&domain.ClaimAttempt{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.FoundItem{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *ItemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.FoundItem{}).Count(&count).Error
	return count, err
}
