package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/imaging"
	"github.com/honesta/lostfound-api/internal/mapper"
	"github.com/honesta/lostfound-api/internal/repository"
	"github.com/honesta/lostfound-api/internal/storage"
	"github.com/honesta/lostfound-api/internal/verifier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DefaultManualTitle is used when a founder writes their own questions but no title
const DefaultManualTitle = "Found Item"

// Image renditions kept for every item
const (
	RenditionPublic   = "public"
	RenditionOriginal = "original"
)

// ItemService handles found-item reports and the feed
type ItemService struct {
	itemRepo      *repository.ItemRepository
	claimRepo     *repository.ClaimAttemptRepository
	userRepo      *repository.UserRepository
	store         storage.Storage
	generator     verifier.QuestionGenerator
	notifications *NotificationService
	imageOpts     imaging.Options
	now           func() time.Time
	logger        *zap.Logger
}

// NewItemService creates a new ItemService instance
func NewItemService(
	itemRepo *repository.ItemRepository,
	claimRepo *repository.ClaimAttemptRepository,
	userRepo *repository.UserRepository,
	store storage.Storage,
	generator verifier.QuestionGenerator,
	notifications *NotificationService,
	imageOpts imaging.Options,
	logger *zap.Logger,
) *ItemService {
	return &ItemService{
		itemRepo:      itemRepo,
		claimRepo:     claimRepo,
		userRepo:      userRepo,
		store:         store,
		generator:     generator,
		notifications: notifications,
		imageOpts:     imageOpts,
		now:           time.Now,
		logger:        logger,
	}
}

// Report stores a new found item with its photo renditions and ownership challenge
func (s *ItemService) Report(ctx context.Context, req *domain.ReportItemRequest, photo []byte) (*domain.FoundItemDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	var manual []domain.VerificationPair
	switch req.Mode {
	case domain.ReportModeManual:
		pairs, err := cleanPairs(req.Questions)
		if err != nil {
			return nil, err
		}
		manual = pairs
	case domain.ReportModeAI:
	default:
		return nil, fmt.Errorf("%w: mode must be ai or manual", ErrInvalidInput)
	}

	founder, err := s.userRepo.GetByID(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserContextRequired
		}
		return nil, fmt.Errorf("failed to load founder: %w", err)
	}

	src, err := imaging.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	var (
		publicJPEG   []byte
		originalJPEG []byte
		challenge    verifier.QuestionSet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		publicJPEG, err = imaging.PublicRendition(src, s.imageOpts)
		return err
	})
	g.Go(func() error {
		var err error
		originalJPEG, err = imaging.CompressOriginal(src, s.imageOpts)
		return err
	})
	if req.Mode == domain.ReportModeAI {
		g.Go(func() error {
			analysis, err := imaging.AnalysisCopy(src)
			if err != nil {
				return err
			}
			challenge, err = s.generator.Generate(gctx, analysis)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to prepare report: %w", err)
	}

	item := &domain.FoundItem{
		BaseModel:    domain.BaseModel{ID: uuid.New()},
		FounderID:    founder.ID,
		FounderName:  founder.FullName,
		FounderPhone: founder.PhoneNumber,
		Status:       domain.ItemStatusAvailable,
		ReportedAt:   s.now().UTC(),
	}
	if req.Mode == domain.ReportModeManual {
		item.Title = strings.TrimSpace(req.Title)
		if item.Title == "" {
			item.Title = DefaultManualTitle
		}
		for i, p := range manual {
			item.Questions = append(item.Questions, domain.VerificationQuestion{Position: i, Question: p.Question, Answer: p.Answer})
		}
	} else {
		if len(challenge.Questions) == 0 {
			challenge = verifier.FallbackQuestionSet()
		}
		item.Title = challenge.Title
		for i, q := range challenge.Questions {
			answer := ""
			if i < len(challenge.Answers) {
				answer = challenge.Answers[i]
			}
			item.Questions = append(item.Questions, domain.VerificationQuestion{Position: i, Question: q, Answer: answer})
		}
	}

	item.PublicImagePath = storage.ItemImageKey(item.ID.String(), RenditionPublic)
	item.OriginalImagePath = storage.ItemImageKey(item.ID.String(), RenditionOriginal)

	up, uctx := errgroup.WithContext(ctx)
	up.Go(func() error {
		_, err := s.store.Upload(uctx, item.PublicImagePath, "image/jpeg", bytes.NewReader(publicJPEG))
		return err
	})
	up.Go(func() error {
		_, err := s.store.Upload(uctx, item.OriginalImagePath, "image/jpeg", bytes.NewReader(originalJPEG))
		return err
	})
	if err := up.Wait(); err != nil {
		s.removeImages(ctx, item)
		return nil, fmt.Errorf("failed to store images: %w", err)
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		s.removeImages(ctx, item)
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.logger.Info("item reported",
		zap.String("item_id", item.ID.String()),
		zap.String("founder_id", founder.ID.String()),
		zap.String("mode", string(req.Mode)),
		zap.String("title", item.Title),
		zap.Int("question_count", len(item.Questions)),
	)

	dto := mapper.ToFoundItemDTO(item, mapper.ItemAccess{ViewerID: founder.ID})
	return &dto, nil
}

// cleanPairs trims founder-written pairs and requires 1 to MaxQuestions complete ones
func cleanPairs(pairs []domain.VerificationPair) ([]domain.VerificationPair, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", ErrInvalidInput)
	}
	if len(pairs) > verifier.MaxQuestions {
		return nil, fmt.Errorf("%w: at most %d questions are allowed", ErrInvalidInput, verifier.MaxQuestions)
	}
	out := make([]domain.VerificationPair, len(pairs))
	for i, p := range pairs {
		q, a := strings.TrimSpace(p.Question), strings.TrimSpace(p.Answer)
		if q == "" || a == "" {
			return nil, fmt.Errorf("%w: question %d needs both a question and an answer", ErrInvalidInput, i+1)
		}
		out[i] = domain.VerificationPair{Question: q, Answer: a}
	}
	return out, nil
}

// List returns a page of the feed, newest first
func (s *ItemService) List(ctx context.Context, filter domain.ItemListFilter) (*domain.PaginatedResponse, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	filter.Page, filter.PageSize = clampPage(filter.Page, filter.PageSize)

	items, total, err := s.itemRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	ids := make([]uuid.UUID, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	verified, err := s.claimRepo.VerifiedItemIDs(ctx, userCtx.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load claim grants: %w", err)
	}

	dtos := make([]domain.FoundItemDTO, len(items))
	for i := range items {
		dtos[i] = mapper.ToFoundItemDTO(&items[i], mapper.ItemAccess{ViewerID: userCtx.UserID, Verified: verified[items[i].ID]})
	}
	return paginated(dtos, total, filter.Page, filter.PageSize), nil
}

// Mine returns the reports of the current user
func (s *ItemService) Mine(ctx context.Context, page, pageSize int) (*domain.PaginatedResponse, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	founderID := userCtx.UserID
	return s.List(ctx, domain.ItemListFilter{FounderID: &founderID, Page: page, PageSize: pageSize})
}

// Get returns one item as seen by the current user
func (s *ItemService) Get(ctx context.Context, id uuid.UUID) (*domain.FoundItemDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	access, err := s.access(ctx, item, userCtx.UserID)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToFoundItemDTO(item, access)
	return &dto, nil
}

// Handover marks an item as returned to its owner. Repeating it is a no-op.
func (s *ItemService) Handover(ctx context.Context, id uuid.UUID) (*domain.FoundItemDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.IsFounder(userCtx.UserID) {
		return nil, ErrNotFounder
	}

	now := s.now().UTC()
	changed, err := s.itemRepo.MarkHandovered(ctx, id, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark item handed over: %w", err)
	}

	if changed {
		item.Status = domain.ItemStatusHandovered
		item.HandedOverAt = &now

		s.logger.Info("item handed over",
			zap.String("item_id", id.String()),
			zap.String("founder_id", userCtx.UserID.String()),
		)

		claimants, err := s.claimRepo.ListVerifiedClaimants(ctx, id)
		if err != nil {
			s.logger.Warn("failed to list verified claimants", zap.String("item_id", id.String()), zap.Error(err))
		}
		s.notifications.NotifyAboutItem(ctx, claimants, domain.NotificationTypeItemHandovered, id,
			"Item handed over",
			fmt.Sprintf("%q has been handed over and its chat is closed", item.Title),
		)
	} else if latest, err := s.load(ctx, id); err == nil {
		item = latest
	}

	dto := mapper.ToFoundItemDTO(item, mapper.ItemAccess{ViewerID: userCtx.UserID})
	return &dto, nil
}

// Delete removes an item with its images, questions, messages and claim attempts
func (s *ItemService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}

	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !item.IsFounder(userCtx.UserID) {
		return ErrNotFounder
	}

	claimants, err := s.claimRepo.ListVerifiedClaimants(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list verified claimants: %w", err)
	}

	if err := s.itemRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}
	s.removeImages(ctx, item)

	s.logger.Info("item deleted",
		zap.String("item_id", id.String()),
		zap.String("founder_id", userCtx.UserID.String()),
	)

	s.notifications.NotifyAboutItem(ctx, claimants, domain.NotificationTypeItemDeleted, id,
		"Report removed",
		fmt.Sprintf("The finder removed the report for %q", item.Title),
	)
	return nil
}

// OpenImage streams one rendition of an item photo. The public rendition is
// open to everyone; the original needs the founder or a verified claimant.
func (s *ItemService) OpenImage(ctx context.Context, id uuid.UUID, rendition string) (io.ReadCloser, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	key := item.PublicImagePath
	if rendition == RenditionOriginal {
		userCtx, ok := auth.FromContext(ctx)
		if !ok {
			return nil, ErrUserContextRequired
		}
		access, err := s.access(ctx, item, userCtx.UserID)
		if err != nil {
			return nil, err
		}
		if !access.Privileged(item) {
			return nil, ErrNotVerified
		}
		key = item.OriginalImagePath
	}

	if key == "" {
		return nil, ErrNotFound
	}
	rc, err := s.store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return rc, nil
}

func (s *ItemService) load(ctx context.Context, id uuid.UUID) (*domain.FoundItem, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	return item, nil
}

func (s *ItemService) access(ctx context.Context, item *domain.FoundItem, viewerID uuid.UUID) (mapper.ItemAccess, error) {
	access := mapper.ItemAccess{ViewerID: viewerID}
	if item.IsFounder(viewerID) {
		return access, nil
	}
	verified, err := s.claimRepo.IsVerified(ctx, item.ID, viewerID)
	if err != nil {
		return access, fmt.Errorf("failed to check claim: %w", err)
	}
	access.Verified = verified
	return access, nil
}

func (s *ItemService) removeImages(ctx context.Context, item *domain.FoundItem) {
	for _, key := range []string{item.PublicImagePath, item.OriginalImagePath} {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete item image",
				zap.String("item_id", item.ID.String()),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}
