package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/mapper"
	"github.com/honesta/lostfound-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxMessageLength is the longest chat message accepted, in characters
const MaxMessageLength = 1000

// MessageService runs the chat between a founder and verified claimants
type MessageService struct {
	itemRepo      *repository.ItemRepository
	claimRepo     *repository.ClaimAttemptRepository
	messageRepo   *repository.MessageRepository
	notifications *NotificationService
	now           func() time.Time
	logger        *zap.Logger
}

// NewMessageService creates a new MessageService instance
func NewMessageService(
	itemRepo *repository.ItemRepository,
	claimRepo *repository.ClaimAttemptRepository,
	messageRepo *repository.MessageRepository,
	notifications *NotificationService,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		itemRepo:      itemRepo,
		claimRepo:     claimRepo,
		messageRepo:   messageRepo,
		notifications: notifications,
		now:           time.Now,
		logger:        logger,
	}
}

// Send posts a message on an item's chat
func (s *MessageService) Send(ctx context.Context, itemID uuid.UUID, req *domain.SendMessageRequest) (*domain.ChatMessageDTO, error) {
	userCtx, item, err := s.authorize(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status == domain.ItemStatusHandovered {
		return nil, ErrItemHandedOver
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, MaxMessageLength)
	}

	message := &domain.ChatMessage{
		ItemID:     itemID,
		SenderID:   userCtx.UserID,
		SenderName: userCtx.FullName,
		Text:       text,
		SentAt:     s.now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.logger.Debug("chat message sent",
		zap.String("item_id", itemID.String()),
		zap.String("sender_id", userCtx.UserID.String()),
	)

	recipients := []uuid.UUID{item.FounderID}
	if item.IsFounder(userCtx.UserID) {
		recipients, err = s.claimRepo.ListVerifiedClaimants(ctx, itemID)
		if err != nil {
			s.logger.Warn("failed to list verified claimants", zap.String("item_id", itemID.String()), zap.Error(err))
		}
	}
	s.notifications.NotifyAboutItem(ctx, recipients, domain.NotificationTypeNewMessage, itemID,
		"New message",
		fmt.Sprintf("%s wrote about %q", userCtx.FullName, item.Title),
	)

	dto := mapper.ToChatMessageDTO(message)
	return &dto, nil
}

// List returns an item's chat, oldest first
func (s *MessageService) List(ctx context.Context, itemID uuid.UUID) ([]domain.ChatMessageDTO, error) {
	if _, _, err := s.authorize(ctx, itemID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	dtos := make([]domain.ChatMessageDTO, len(messages))
	for i := range messages {
		dtos[i] = mapper.ToChatMessageDTO(&messages[i])
	}
	return dtos, nil
}

// authorize allows the founder and verified claimants
func (s *MessageService) authorize(ctx context.Context, itemID uuid.UUID) (*auth.UserContext, *domain.FoundItem, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, nil, ErrUserContextRequired
	}

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrItemNotFound
		}
		return nil, nil, fmt.Errorf("failed to load item: %w", err)
	}
	if item.IsFounder(userCtx.UserID) {
		return userCtx, item, nil
	}

	verified, err := s.claimRepo.IsVerified(ctx, itemID, userCtx.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check claim: %w", err)
	}
	if !verified {
		return nil, nil, ErrNotVerified
	}
	return userCtx, item, nil
}
