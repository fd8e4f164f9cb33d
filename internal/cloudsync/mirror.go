package cloudsync

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/mapper"
	"github.com/honesta/lostfound-api/internal/repository"
	"github.com/honesta/lostfound-api/internal/storage"
	"github.com/honesta/lostfound-api/internal/verifier"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImportStats summarises one import run
type ImportStats struct {
	UsersImported    int
	UsersSkipped     int
	ItemsImported    int
	ItemsSkipped     int
	MessagesImported int
}

// Mirror copies data between the database and the legacy document
type Mirror struct {
	client      *Client
	userRepo    *repository.UserRepository
	itemRepo    *repository.ItemRepository
	messageRepo *repository.MessageRepository
	store       storage.Storage
	now         func() time.Time
	logger      *zap.Logger
}

// NewMirror creates a new Mirror instance
func NewMirror(
	client *Client,
	userRepo *repository.UserRepository,
	itemRepo *repository.ItemRepository,
	messageRepo *repository.MessageRepository,
	store storage.Storage,
	logger *zap.Logger,
) *Mirror {
	return &Mirror{
		client:      client,
		userRepo:    userRepo,
		itemRepo:    itemRepo,
		messageRepo: messageRepo,
		store:       store,
		now:         time.Now,
		logger:      logger,
	}
}

// Import loads the legacy document into the database. Users whose email is
// already registered and items already imported are skipped, so running it
// again is harmless.
func (m *Mirror) Import(ctx context.Context) (ImportStats, error) {
	var stats ImportStats

	snap, err := m.client.Fetch(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch mirror: %w", err)
	}

	// legacy user id -> database user
	people := make(map[string]*domain.User, len(snap.Users))
	for _, lu := range snap.Users {
		user, created, err := m.importUser(ctx, lu)
		if err != nil {
			return stats, err
		}
		if user == nil {
			stats.UsersSkipped++
			continue
		}
		people[lu.ID] = user
		if created {
			stats.UsersImported++
		} else {
			stats.UsersSkipped++
		}
	}

	for _, li := range snap.Items {
		messages, imported, err := m.importItem(ctx, li, people)
		if err != nil {
			return stats, err
		}
		if !imported {
			stats.ItemsSkipped++
			continue
		}
		stats.ItemsImported++
		stats.MessagesImported += messages
	}

	m.logger.Info("mirror imported",
		zap.Int("users_imported", stats.UsersImported),
		zap.Int("users_skipped", stats.UsersSkipped),
		zap.Int("items_imported", stats.ItemsImported),
		zap.Int("items_skipped", stats.ItemsSkipped),
		zap.Int("messages_imported", stats.MessagesImported),
	)
	return stats, nil
}

// importUser returns the database user for a legacy user, creating it when
// needed. A nil user means the record cannot be imported.
func (m *Mirror) importUser(ctx context.Context, lu LegacyUser) (*domain.User, bool, error) {
	email := auth.NormalizeEmail(lu.Email)
	if email == "" {
		return nil, false, nil
	}

	existing, err := m.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, fmt.Errorf("failed to look up %s: %w", email, err)
	}

	role := domain.UserRole(strings.ToUpper(strings.TrimSpace(lu.Role)))
	if lu.Password == "" || !role.IsValid() {
		m.logger.Debug("skipping legacy user", zap.String("legacy_id", lu.ID), zap.String("role", lu.Role))
		return nil, false, nil
	}

	hash, err := auth.HashPassword(lu.Password)
	if err != nil {
		return nil, false, err
	}
	user := &domain.User{
		CampusID:     auth.CampusID(email),
		FullName:     strings.TrimSpace(lu.FullName),
		PhoneNumber:  strings.TrimSpace(lu.PhoneNumber),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := m.userRepo.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to import user %s: %w", email, err)
	}
	return user, true, nil
}

func (m *Mirror) importItem(ctx context.Context, li LegacyItem, people map[string]*domain.User) (int, bool, error) {
	if li.ID == "" {
		return 0, false, nil
	}
	exists, err := m.itemRepo.ExistsByReference(ctx, li.ID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to check item %s: %w", li.ID, err)
	}
	if exists {
		return 0, false, nil
	}

	founder, ok := people[li.FounderID]
	if !ok {
		m.logger.Debug("skipping legacy item without known founder",
			zap.String("legacy_id", li.ID),
			zap.String("founder_ref", li.FounderID),
		)
		return 0, false, nil
	}

	item := &domain.FoundItem{
		BaseModel:    domain.BaseModel{ID: uuid.New()},
		LegacyRef:    li.ID,
		Title:        strings.TrimSpace(li.Title),
		FounderID:    founder.ID,
		FounderName:  founder.FullName,
		FounderPhone: founder.PhoneNumber,
		Status:       domain.ItemStatusAvailable,
		ReportedAt:   m.legacyTime(li.Timestamp),
	}
	if item.Title == "" {
		item.Title = verifier.FallbackTitle
	}
	if domain.ItemStatus(li.Status) == domain.ItemStatusHandovered {
		item.Status = domain.ItemStatusHandovered
	}

	questions := li.VerificationQuestions
	if len(questions) > verifier.MaxQuestions {
		questions = questions[:verifier.MaxQuestions]
	}
	for i, q := range questions {
		answer := ""
		if i < len(li.VerificationAnswers) {
			answer = strings.TrimSpace(li.VerificationAnswers[i])
		}
		item.Questions = append(item.Questions, domain.VerificationQuestion{
			Position: i,
			Question: strings.TrimSpace(q),
			Answer:   answer,
		})
	}
	if len(item.Questions) == 0 {
		item.Questions = []domain.VerificationQuestion{{Question: verifier.FallbackQuestion}}
	}

	item.PublicImagePath = m.importImage(ctx, item.ID, "public", li.ImageURL)
	item.OriginalImagePath = m.importImage(ctx, item.ID, "original", li.OriginalImageURL)

	if err := m.itemRepo.Create(ctx, item); err != nil {
		return 0, false, fmt.Errorf("failed to import item %s: %w", li.ID, err)
	}

	imported := 0
	for _, lm := range li.Messages {
		sender, ok := people[lm.SenderID]
		if !ok || strings.TrimSpace(lm.Text) == "" {
			continue
		}
		name := lm.SenderName
		if name == "" {
			name = sender.FullName
		}
		message := &domain.ChatMessage{
			ItemID:     item.ID,
			SenderID:   sender.ID,
			SenderName: name,
			Text:       strings.TrimSpace(lm.Text),
			SentAt:     m.legacyTime(lm.Timestamp),
		}
		if err := m.messageRepo.Create(ctx, message); err != nil {
			return imported, true, fmt.Errorf("failed to import message for item %s: %w", li.ID, err)
		}
		imported++
	}
	return imported, true, nil
}

// importImage stores an embedded data URL photo. Anything else is dropped.
func (m *Mirror) importImage(ctx context.Context, itemID uuid.UUID, rendition, dataURL string) string {
	data, contentType, ok := decodeDataURL(dataURL)
	if !ok {
		return ""
	}
	key := storage.ItemImageKey(itemID.String(), rendition)
	if _, err := m.store.Upload(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		m.logger.Warn("failed to store legacy image",
			zap.String("item_id", itemID.String()),
			zap.String("rendition", rendition),
			zap.Error(err),
		)
		return ""
	}
	return key
}

// Export writes the current database to the legacy document and returns its revision
func (m *Mirror) Export(ctx context.Context) (string, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	if err := m.client.Push(ctx, snap); err != nil {
		return "", err
	}
	return snap.Revision, nil
}

// Snapshot builds the legacy document from the database. Passwords are never included.
func (m *Mirror) Snapshot(ctx context.Context) (Snapshot, error) {
	users, err := m.userRepo.ListAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list users: %w", err)
	}
	items, err := m.itemRepo.ListAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list items: %w", err)
	}

	ids := make([]uuid.UUID, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	messages, err := m.messageRepo.ListByItems(ctx, ids)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list messages: %w", err)
	}

	snap := Snapshot{
		Revision:   ksuid.New().String(),
		ExportedAt: m.now().UTC().UnixMilli(),
		Users:      make([]LegacyUser, len(users)),
		Items:      make([]LegacyItem, 0, len(items)),
	}
	for i, u := range users {
		snap.Users[i] = LegacyUser{
			ID:          u.ID.String(),
			FullName:    u.FullName,
			PhoneNumber: u.PhoneNumber,
			Email:       u.Email,
			Role:        string(u.Role),
		}
	}

	// newest first, as the legacy feed expects
	for i := len(items) - 1; i >= 0; i-- {
		item := &items[i]
		li := LegacyItem{
			ID:                    item.ID.String(),
			Title:                 item.Title,
			ImageURL:              mapper.PublicImageURL(item.ID),
			OriginalImageURL:      mapper.OriginalImageURL(item.ID),
			FounderID:             item.FounderID.String(),
			FounderName:           item.FounderName,
			FounderPhone:          item.FounderPhone,
			Timestamp:             item.ReportedAt.UTC().UnixMilli(),
			Status:                string(item.Status),
			VerificationQuestions: item.QuestionTexts(),
			VerificationAnswers:   item.ReferenceAnswers(),
			Messages:              []LegacyMessage{},
		}
		if item.LegacyRef != "" {
			li.ID = item.LegacyRef
		}
		for _, msg := range messages[item.ID] {
			li.Messages = append(li.Messages, LegacyMessage{
				SenderID:   msg.SenderID.String(),
				SenderName: msg.SenderName,
				Text:       msg.Text,
				Timestamp:  msg.SentAt.UTC().UnixMilli(),
			})
		}
		snap.Items = append(snap.Items, li)
	}
	return snap, nil
}

func (m *Mirror) legacyTime(ms int64) time.Time {
	if ms <= 0 {
		return m.now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

// decodeDataURL parses "data:<type>;base64,<payload>"
func decodeDataURL(s string) ([]byte, string, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", false
	}
	contentType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" || !strings.HasPrefix(contentType, "image/") {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, "", false
	}
	return data, contentType, true
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
