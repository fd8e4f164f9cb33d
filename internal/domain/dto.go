package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Response DTOs

type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	CampusID    string    `json:"campusId"`
	FullName    string    `json:"fullName"`
	PhoneNumber string    `json:"phoneNumber"`
	Email       string    `json:"email"`
	Role        UserRole  `json:"role"`
	CreatedAt   string    `json:"createdAt"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
}

// FoundItemDTO is the feed view of an item. Reference answers are never included.
type FoundItemDTO struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	ImageURL         string     `json:"imageUrl"`
	OriginalImageURL string     `json:"originalImageUrl,omitempty"`
	FounderID        uuid.UUID  `json:"founderId"`
	FounderName      string     `json:"founderName"`
	FounderPhone     string     `json:"founderPhone,omitempty"`
	Status           ItemStatus `json:"status"`
	ReportedAt       string     `json:"reportedAt"`
	HandedOverAt     string     `json:"handedOverAt,omitempty"`
	Questions        []string   `json:"verificationQuestions"`
	IsOwnReport      bool       `json:"isOwnReport"`
	CanChat          bool       `json:"canChat"`
}

type ChatMessageDTO struct {
	ID         uuid.UUID `json:"id"`
	ItemID     uuid.UUID `json:"itemId"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	SentAt     string    `json:"sentAt"`
}

// ClaimResultDTO is the outcome of one verification attempt
type ClaimResultDTO struct {
	Verified          bool       `json:"verified"`
	AttemptsUsed      int        `json:"attemptsUsed"`
	AttemptsRemaining int        `json:"attemptsRemaining"`
	LockedUntil       *time.Time `json:"lockedUntil,omitempty"`
}

// ClaimStatusDTO describes where a claimant stands on an item
type ClaimStatusDTO struct {
	ItemID            uuid.UUID  `json:"itemId"`
	Verified          bool       `json:"verified"`
	AttemptsUsed      int        `json:"attemptsUsed"`
	AttemptsRemaining int        `json:"attemptsRemaining"`
	Locked            bool       `json:"locked"`
	LockedUntil       *time.Time `json:"lockedUntil,omitempty"`
}

type NotificationDTO struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Read       bool       `json:"read"`
	ReadAt     *string    `json:"readAt,omitempty"`
	EntityID   *uuid.UUID `json:"entityId,omitempty"`
	EntityType string     `json:"entityType,omitempty"`
	CreatedAt  string     `json:"createdAt"`
}

type UnreadCountDTO struct {
	Count int `json:"count"`
}

// Request DTOs

type RegisterRequest struct {
	FullName    string   `json:"fullName" validate:"required,max=200"`
	PhoneNumber string   `json:"phoneNumber" validate:"required,max=20"`
	Email       string   `json:"email" validate:"required,email,max=255"`
	Password    string   `json:"password" validate:"required,min=6,max=72"`
	Role        UserRole `json:"role" validate:"required,oneof=STUDENT FACULTY"`
}

type LoginRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=STUDENT FACULTY"`
}

// VerificationPair is a founder-supplied question with its reference answer
type VerificationPair struct {
	Question string `json:"q" validate:"required,max=500"`
	Answer   string `json:"a" validate:"required,max=500"`
}

// ReportMode chooses who writes the verification challenge
type ReportMode string

const (
	ReportModeAI     ReportMode = "ai"
	ReportModeManual ReportMode = "manual"
)

// ReportItemRequest carries the non-photo fields of a new report
type ReportItemRequest struct {
	Mode      ReportMode         `json:"mode" validate:"required,oneof=ai manual"`
	Title     string             `json:"title,omitempty" validate:"max=200"`
	Questions []VerificationPair `json:"questions,omitempty" validate:"max=5,dive"`
}

type ClaimRequest struct {
	Answers []string `json:"answers" validate:"required,min=1,max=5,dive,max=500"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// ItemListFilter narrows the feed
type ItemListFilter struct {
	Search    string
	Status    ItemStatus
	FounderID *uuid.UUID
	Page      int
	PageSize  int
}
