package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/config"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/mapper"
	"github.com/honesta/lostfound-api/internal/repository"
	"github.com/honesta/lostfound-api/internal/verifier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClaimService verifies ownership claims against an item's challenge
type ClaimService struct {
	itemRepo      *repository.ItemRepository
	claimRepo     *repository.ClaimAttemptRepository
	matcher       verifier.AnswerMatcher
	notifications *NotificationService
	maxAttempts   int
	lockout       time.Duration
	retention     time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewClaimService creates a new ClaimService instance
func NewClaimService(
	itemRepo *repository.ItemRepository,
	claimRepo *repository.ClaimAttemptRepository,
	matcher verifier.AnswerMatcher,
	notifications *NotificationService,
	cfg *config.ClaimsConfig,
	logger *zap.Logger,
) *ClaimService {
	return &ClaimService{
		itemRepo:      itemRepo,
		claimRepo:     claimRepo,
		matcher:       matcher,
		notifications: notifications,
		maxAttempts:   cfg.MaxAttempts,
		lockout:       cfg.LockoutDuration(),
		retention:     cfg.RetentionDuration(),
		now:           time.Now,
		logger:        logger,
	}
}

// WithClock replaces the time source
func (s *ClaimService) WithClock(now func() time.Time) *ClaimService {
	s.now = now
	return s
}

// Verify checks the current user's answers for an item.
// A wrong answer is not an error: the result reports how many attempts remain.
func (s *ClaimService) Verify(ctx context.Context, itemID uuid.UUID, req *domain.ClaimRequest) (*domain.ClaimResultDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	if item.IsFounder(userCtx.UserID) {
		return nil, ErrOwnItem
	}

	// a verified grant outlives handover and needs no answers
	prior, err := s.claimRepo.Get(ctx, itemID, userCtx.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}
	if prior != nil && prior.IsVerified() {
		return &domain.ClaimResultDTO{Verified: true, AttemptsUsed: prior.Count}, nil
	}

	if item.Status != domain.ItemStatusAvailable {
		return nil, ErrItemHandedOver
	}

	answers := make([]string, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = strings.TrimSpace(a)
		if answers[i] == "" {
			return nil, fmt.Errorf("%w: answer %d is empty", ErrInvalidInput, i+1)
		}
	}
	if len(answers) != len(item.Questions) {
		return nil, fmt.Errorf("%w: expected %d answers, got %d", ErrAnswerCount, len(item.Questions), len(answers))
	}

	now := s.now().UTC()
	attempt, reserved, err := s.claimRepo.Reserve(ctx, itemID, userCtx.UserID, now, now.Add(-s.lockout), s.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}
	if attempt.IsVerified() {
		return &domain.ClaimResultDTO{Verified: true, AttemptsUsed: attempt.Count}, nil
	}
	if !reserved {
		until := attempt.LastAttemptAt.Add(s.lockout)
		s.logger.Info("claim attempt rejected, claimant locked out",
			zap.String("item_id", itemID.String()),
			zap.String("claimant_id", userCtx.UserID.String()),
			zap.Time("locked_until", until),
		)
		return nil, &LockedError{Until: until}
	}

	correct, err := s.matcher.Match(ctx, item.QuestionTexts(), answers, item.ReferenceAnswers())
	if err != nil {
		s.logger.Warn("answer matcher failed, counting attempt as incorrect",
			zap.String("item_id", itemID.String()),
			zap.Error(err),
		)
		correct = false
	}

	if !correct {
		result := &domain.ClaimResultDTO{
			AttemptsUsed:      attempt.Count,
			AttemptsRemaining: max(s.maxAttempts-attempt.Count, 0),
		}
		if result.AttemptsRemaining == 0 {
			until := attempt.LastAttemptAt.Add(s.lockout)
			result.LockedUntil = &until
		}
		s.logger.Info("claim attempt failed",
			zap.String("item_id", itemID.String()),
			zap.String("claimant_id", userCtx.UserID.String()),
			zap.Int("attempt", attempt.Count),
			zap.Int("remaining", result.AttemptsRemaining),
		)
		return result, nil
	}

	if err := s.claimRepo.MarkVerified(ctx, attempt.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record verification: %w", err)
	}

	s.logger.Info("claim verified",
		zap.String("item_id", itemID.String()),
		zap.String("claimant_id", userCtx.UserID.String()),
		zap.Int("attempt", attempt.Count),
	)

	s.notifications.NotifyAboutItem(ctx, []uuid.UUID{item.FounderID}, domain.NotificationTypeClaimVerified, itemID,
		"Ownership verified",
		fmt.Sprintf("%s answered the questions for %q. You can now chat to arrange the return.", userCtx.FullName, item.Title),
	)

	return &domain.ClaimResultDTO{Verified: true, AttemptsUsed: attempt.Count}, nil
}

// Status reports where the current user stands on an item
func (s *ClaimService) Status(ctx context.Context, itemID uuid.UUID) (*domain.ClaimStatusDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}

	attempt, err := s.claimRepo.Get(ctx, itemID, userCtx.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load attempts: %w", err)
		}
		attempt = nil
	}

	dto := mapper.ToClaimStatusDTO(itemID, attempt, s.maxAttempts, s.lockout, s.now().UTC())
	return &dto, nil
}

// PurgeStaleAttempts drops unverified attempt logs older than the retention window
func (s *ClaimService) PurgeStaleAttempts(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	purged, err := s.claimRepo.PurgeStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge claim attempts: %w", err)
	}
	return purged, nil
}
