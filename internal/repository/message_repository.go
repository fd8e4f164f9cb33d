package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/domain"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListByItem returns the conversation for an item, oldest first
func (r *MessageRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("sent_at ASC").
		Find(&messages).Error
	return messages, err
}

// ListByItems returns messages for several items grouped by item id
func (r *MessageRepository) ListByItems(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID][]domain.ChatMessage, error) {
	grouped := make(map[uuid.UUID][]domain.ChatMessage, len(itemIDs))
	if len(itemIDs) == 0 {
		return grouped, nil
	}

	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Where("item_id IN ?", itemIDs).
		Order("sent_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		grouped[m.ItemID] = append(grouped[m.ItemID], m)
	}
	return grouped, nil
}
