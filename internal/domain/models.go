package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller did not set one
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// UserRole distinguishes the two kinds of campus accounts
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleFaculty UserRole = "FACULTY"
)

// IsValid reports whether r is a known role
func (r UserRole) IsValid() bool {
	return r == RoleStudent || r == RoleFaculty
}

// User is a registered campus member
type User struct {
	BaseModel
	// CampusID is the upper-cased local part of the campus email (roll number or staff handle)
	CampusID     string   `gorm:"type:varchar(100);not null;index;column:campus_id"`
	FullName     string   `gorm:"type:varchar(200);not null;column:full_name"`
	PhoneNumber  string   `gorm:"type:varchar(20);not null;column:phone_number"`
	Email        string   `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string   `gorm:"type:varchar(100);not null;column:password_hash"`
	Role         UserRole `gorm:"type:varchar(20);not null"`
}

// ItemStatus is the lifecycle state of a found item
type ItemStatus string

const (
	ItemStatusAvailable  ItemStatus = "available"
	ItemStatusHandovered ItemStatus = "handovered"
)

// IsValid reports whether s is a known status
func (s ItemStatus) IsValid() bool {
	return s == ItemStatusAvailable || s == ItemStatusHandovered
}

// FoundItem is a report of an item someone found on campus
type FoundItem struct {
	BaseModel
	// LegacyRef holds the id the item had in the JSON blob document, if imported
	LegacyRef         string     `gorm:"type:varchar(50);index;column:legacy_ref"`
	Title             string     `gorm:"type:varchar(200);not null"`
	PublicImagePath   string     `gorm:"type:varchar(500);column:public_image_path"`
	OriginalImagePath string     `gorm:"type:varchar(500);column:original_image_path"`
	FounderID         uuid.UUID  `gorm:"type:uuid;not null;index;column:founder_id"`
	FounderName       string     `gorm:"type:varchar(200);not null;column:founder_name"`
	FounderPhone      string     `gorm:"type:varchar(20);not null;column:founder_phone"`
	Status            ItemStatus `gorm:"type:varchar(20);not null;default:'available';index"`
	ReportedAt        time.Time  `gorm:"not null;index;column:reported_at"`
	HandedOverAt      *time.Time `gorm:"column:handed_over_at"`

	Questions []VerificationQuestion `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
}

// IsFounder reports whether userID reported this item
func (i *FoundItem) IsFounder(userID uuid.UUID) bool {
	return i.FounderID == userID
}

// QuestionTexts returns the challenge questions in order
func (i *FoundItem) QuestionTexts() []string {
	out := make([]string, len(i.Questions))
	for idx, q := range i.Questions {
		out[idx] = q.Question
	}
	return out
}

// ReferenceAnswers returns the founder-provided answers in question order
func (i *FoundItem) ReferenceAnswers() []string {
	out := make([]string, len(i.Questions))
	for idx, q := range i.Questions {
		out[idx] = q.Answer
	}
	return out
}

// VerificationQuestion is one ownership challenge for an item
type VerificationQuestion struct {
	BaseModel
	ItemID   uuid.UUID `gorm:"type:uuid;not null;index;column:item_id"`
	Position int       `gorm:"not null"`
	Question string    `gorm:"type:varchar(500);not null"`
	Answer   string    `gorm:"type:varchar(500);not null"`
}

// ChatMessage is a message exchanged about an item between founder and verified claimants
type ChatMessage struct {
	BaseModel
	ItemID     uuid.UUID `gorm:"type:uuid;not null;index;column:item_id"`
	SenderID   uuid.UUID `gorm:"type:uuid;not null;column:sender_id"`
	SenderName string    `gorm:"type:varchar(200);not null;column:sender_name"`
	Text       string    `gorm:"type:varchar(1000);not null"`
	SentAt     time.Time `gorm:"not null;index;column:sent_at"`
}

// ClaimAttempt tracks verification attempts of one claimant against one item
type ClaimAttempt struct {
	BaseModel
	ItemID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_claim_item_claimant;column:item_id"`
	ClaimantID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_claim_item_claimant;index;column:claimant_id"`
	Count         int        `gorm:"not null;default:0;column:attempt_count"`
	LastAttemptAt time.Time  `gorm:"not null;column:last_attempt_at"`
	VerifiedAt    *time.Time `gorm:"column:verified_at"`
}

// IsVerified reports whether the claimant has proven ownership
func (c *ClaimAttempt) IsVerified() bool {
	return c.VerifiedAt != nil
}

// NotificationType categorises notifications
type NotificationType string

const (
	NotificationTypeClaimVerified  NotificationType = "claim_verified"
	NotificationTypeNewMessage     NotificationType = "new_message"
	NotificationTypeItemHandovered NotificationType = "item_handovered"
	NotificationTypeItemDeleted    NotificationType = "item_deleted"
)

// Notification is an in-app notice for a user
type Notification struct {
	BaseModel
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	Type       string     `gorm:"type:varchar(50);not null"`
	Title      string     `gorm:"type:varchar(200);not null"`
	Message    string     `gorm:"type:varchar(500);not null"`
	Read       bool       `gorm:"column:read;not null;default:false;index"`
	ReadAt     *time.Time
	EntityID   *uuid.UUID `gorm:"type:uuid"`
	EntityType string     `gorm:"type:varchar(50)"`
}
