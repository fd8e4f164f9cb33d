package mapper

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// ItemAccess describes what the viewer of an item is allowed to see
type ItemAccess struct {
	ViewerID uuid.UUID
	Verified bool
}

// Privileged reports whether the viewer is the founder or a verified claimant
func (a ItemAccess) Privileged(item *domain.FoundItem) bool {
	return item.IsFounder(a.ViewerID) || a.Verified
}

// PublicImageURL is the path clients use to load the dark rendition
func PublicImageURL(id uuid.UUID) string {
	return fmt.Sprintf("/api/v1/items/%s/image", id)
}

// OriginalImageURL is the path of the full-color photo
func OriginalImageURL(id uuid.UUID) string {
	return fmt.Sprintf("/api/v1/items/%s/original", id)
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:          user.ID,
		CampusID:    user.CampusID,
		FullName:    user.FullName,
		PhoneNumber: user.PhoneNumber,
		Email:       user.Email,
		Role:        user.Role,
		CreatedAt:   user.CreatedAt.UTC().Format(timestampLayout),
	}
}

// ToFoundItemDTO converts FoundItem to its feed view. Reference answers are
// never copied; the original photo and founder phone need privileged access.
func ToFoundItemDTO(item *domain.FoundItem, access ItemAccess) domain.FoundItemDTO {
	privileged := access.Privileged(item)

	dto := domain.FoundItemDTO{
		ID:          item.ID,
		Title:       item.Title,
		ImageURL:    PublicImageURL(item.ID),
		FounderID:   item.FounderID,
		FounderName: item.FounderName,
		Status:      item.Status,
		ReportedAt:  item.ReportedAt.UTC().Format(timestampLayout),
		Questions:   item.QuestionTexts(),
		IsOwnReport: item.IsFounder(access.ViewerID),
		CanChat:     privileged && item.Status == domain.ItemStatusAvailable,
	}
	if privileged {
		dto.OriginalImageURL = OriginalImageURL(item.ID)
		dto.FounderPhone = item.FounderPhone
	}
	if item.HandedOverAt != nil {
		dto.HandedOverAt = item.HandedOverAt.UTC().Format(timestampLayout)
	}
	return dto
}

// ToChatMessageDTO converts ChatMessage to ChatMessageDTO
func ToChatMessageDTO(message *domain.ChatMessage) domain.ChatMessageDTO {
	return domain.ChatMessageDTO{
		ID:         message.ID,
		ItemID:     message.ItemID,
		SenderID:   message.SenderID,
		SenderName: message.SenderName,
		Text:       message.Text,
		SentAt:     message.SentAt.UTC().Format(timestampLayout),
	}
}

// ToClaimStatusDTO summarises an attempt log. A nil attempt means no attempts yet.
func ToClaimStatusDTO(itemID uuid.UUID, attempt *domain.ClaimAttempt, maxAttempts int, lockout time.Duration, now time.Time) domain.ClaimStatusDTO {
	dto := domain.ClaimStatusDTO{
		ItemID:            itemID,
		AttemptsRemaining: maxAttempts,
	}
	if attempt == nil {
		return dto
	}
	if attempt.IsVerified() {
		dto.Verified = true
		dto.AttemptsUsed = attempt.Count
		dto.AttemptsRemaining = 0
		return dto
	}

	lockedUntil := attempt.LastAttemptAt.Add(lockout)
	if !now.Before(lockedUntil) {
		// window elapsed; the next attempt starts a fresh count
		return dto
	}

	dto.AttemptsUsed = attempt.Count
	dto.AttemptsRemaining = max(maxAttempts-attempt.Count, 0)
	if attempt.Count >= maxAttempts {
		dto.Locked = true
		dto.LockedUntil = &lockedUntil
	}
	return dto
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	dto := domain.NotificationDTO{
		ID:         notification.ID,
		Type:       notification.Type,
		Title:      notification.Title,
		Message:    notification.Message,
		Read:       notification.Read,
		CreatedAt:  notification.CreatedAt.UTC().Format(timestampLayout),
		EntityID:   notification.EntityID,
		EntityType: notification.EntityType,
	}
	if notification.ReadAt != nil {
		readAt := notification.ReadAt.UTC().Format(timestampLayout)
		dto.ReadAt = &readAt
	}
	return dto
}

// FormatError creates a formatted error message
func FormatError(entity, operation string, err error) error {
	return fmt.Errorf("failed to %s %s: %w", operation, entity, err)
}
