package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/config"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/repository"
	"github.com/honesta/lostfound-api/internal/service"
	"github.com/honesta/lostfound-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func wrong() *domain.ClaimRequest { return &domain.ClaimRequest{Answers: []string{"green"}} }

func right() *domain.ClaimRequest { return &domain.ClaimRequest{Answers: []string{"Red"}} }

func TestClaimService_VerifySuccess(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	owner := testutil.CreateTestUser(t, f.db, "Owner", domain.RoleStudent)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})

	result, err := f.claims.Verify(ctxFor(owner), item.ID, right())
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, 1, result.AttemptsUsed)

	notes := unreadFor(t, f, founder)
	require.Len(t, notes, 1)
	assert.Equal(t, string(domain.NotificationTypeClaimVerified), notes[0].Type)
	assert.Equal(t, item.ID, *notes[0].EntityID)

	status, err := f.claims.Status(ctxFor(owner), item.ID)
	require.NoError(t, err)
	assert.True(t, status.Verified)
}

func TestClaimService_LockoutAfterThreeFailures(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	claimant := testutil.CreateTestUser(t, f.db, "Guesser", domain.RoleStudent)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})
	ctx := ctxFor(claimant)

	for want := 2; want >= 0; want-- {
		result, err := f.claims.Verify(ctx, item.ID, wrong())
		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.Equal(t, want, result.AttemptsRemaining)
		f.clock.Advance(time.Minute)
	}

	_, err := f.claims.Verify(ctx, item.ID, right())
	var locked *service.LockedError
	require.ErrorAs(t, err, &locked)
	assert.ErrorIs(t, err, service.ErrClaimLocked)
	assert.WithinDuration(t, f.clock.now.Add(-time.Minute).Add(time.Hour), locked.Until, time.Second)

	status, err := f.claims.Status(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Zero(t, status.AttemptsRemaining)

	// locked attempts do not extend the window
	f.clock.Advance(time.Hour)
	result, err := f.claims.Verify(ctx, item.ID, right())
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, 1, result.AttemptsUsed)
}

func TestClaimService_LockoutEndsExactlyAtWindow(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	claimant := testutil.CreateTestUser(t, f.db, "Guesser", domain.RoleStudent)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})
	ctx := ctxFor(claimant)

	for i := 0; i < 3; i++ {
		_, err := f.claims.Verify(ctx, item.ID, wrong())
		require.NoError(t, err)
	}

	f.clock.Advance(time.Hour - time.Second)
	_, err := f.claims.Verify(ctx, item.ID, wrong())
	require.ErrorIs(t, err, service.ErrClaimLocked)
	status, err := f.claims.Status(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, status.Locked)

	f.clock.Advance(time.Second)
	status, err = f.claims.Status(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.Equal(t, 3, status.AttemptsRemaining)

	result, err := f.claims.Verify(ctx, item.ID, wrong())
	require.NoError(t, err)
	assert.Equal(t, 1, result.AttemptsUsed)
	assert.Equal(t, 2, result.AttemptsRemaining)
}

func TestClaimService_VerifiedSurvivesHandover(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	owner := testutil.CreateTestUser(t, f.db, "Owner", domain.RoleStudent)
	stranger := testutil.CreateTestUser(t, f.db, "Stranger", domain.RoleStudent)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})

	_, err := f.claims.Verify(ctxFor(owner), item.ID, right())
	require.NoError(t, err)
	_, err = f.items.Handover(ctxFor(founder), item.ID)
	require.NoError(t, err)

	result, err := f.claims.Verify(ctxFor(owner), item.ID, right())
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, 1, result.AttemptsUsed)

	_, err = f.claims.Verify(ctxFor(stranger), item.ID, right())
	assert.ErrorIs(t, err, service.ErrItemHandedOver)
}

func TestClaimService_LockIsPerClaimant(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	guesser := testutil.CreateTestUser(t, f.db, "Guesser", domain.RoleStudent)
	owner := testutil.CreateTestUser(t, f.db, "Owner", domain.RoleFaculty)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})

	for i := 0; i < 3; i++ {
		_, err := f.claims.Verify(ctxFor(guesser), item.ID, wrong())
		require.NoError(t, err)
	}

	result, err := f.claims.Verify(ctxFor(owner), item.ID, right())
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestClaimService_VerifiedIsPermanent(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	owner := testutil.CreateTestUser(t, f.db, "Owner", domain.RoleStudent)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})
	ctx := ctxFor(owner)

	_, err := f.claims.Verify(ctx, item.ID, right())
	require.NoError(t, err)

	result, err := f.claims.Verify(ctx, item.ID, wrong())
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Len(t, unreadFor(t, f, founder), 1)
}

func TestClaimService_VerifyRejections(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	claimant := testutil.CreateTestUser(t, f.db, "Claimant", domain.RoleStudent)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag",
		domain.VerificationPair{Question: "Color?", Answer: "red"},
		domain.VerificationPair{Question: "Brand?", Answer: "Wildcraft"},
	)
	handedOver := testutil.CreateTestItem(t, f.db, founder, "Pen", domain.VerificationPair{Question: "Ink?", Answer: "blue"})
	_, err := f.items.Handover(ctxFor(founder), handedOver.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		ctx     context.Context
		itemID  uuid.UUID
		answers []string
		wantErr error
	}{
		{"own item", ctxFor(founder), item.ID, []string{"red", "Wildcraft"}, service.ErrOwnItem},
		{"handed over", ctxFor(claimant), handedOver.ID, []string{"blue"}, service.ErrItemHandedOver},
		{"unknown item", ctxFor(claimant), uuid.New(), []string{"red"}, service.ErrItemNotFound},
		{"answer count", ctxFor(claimant), item.ID, []string{"red"}, service.ErrAnswerCount},
		{"blank answer", ctxFor(claimant), item.ID, []string{"red", "  "}, service.ErrInvalidInput},
		{"anonymous", context.Background(), item.ID, []string{"red", "Wildcraft"}, service.ErrUserContextRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.claims.Verify(tt.ctx, tt.itemID, &domain.ClaimRequest{Answers: tt.answers})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	status, err := f.claims.Status(ctxFor(claimant), item.ID)
	require.NoError(t, err)
	assert.Zero(t, status.AttemptsUsed, "rejected requests must not consume attempts")
}

type brokenMatcher struct{}

func (brokenMatcher) Match(context.Context, []string, []string, []string) (bool, error) {
	return true, errors.New("model unavailable")
}

func TestClaimService_MatcherErrorCountsAsIncorrect(t *testing.T) {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	itemRepo := repository.NewItemRepository(db)
	claimRepo := repository.NewClaimAttemptRepository(db)
	claims := service.NewClaimService(itemRepo, claimRepo, brokenMatcher{},
		service.NewNotificationService(repository.NewNotificationRepository(db), logger),
		&config.ClaimsConfig{MaxAttempts: 3, LockoutMinutes: 60},
		logger,
	)

	founder := testutil.CreateTestUser(t, db, "Finder", domain.RoleStudent)
	claimant := testutil.CreateTestUser(t, db, "Claimant", domain.RoleStudent)
	item := testutil.CreateTestItem(t, db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})

	result, err := claims.Verify(ctxFor(claimant), item.ID, right())
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, 2, result.AttemptsRemaining)
}

func TestClaimService_StatusFresh(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	claimant := testutil.CreateTestUser(t, f.db, "Claimant", domain.RoleStudent)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})

	status, err := f.claims.Status(ctxFor(claimant), item.ID)
	require.NoError(t, err)
	assert.False(t, status.Verified)
	assert.False(t, status.Locked)
	assert.Equal(t, 3, status.AttemptsRemaining)

	_, err = f.claims.Status(ctxFor(claimant), uuid.New())
	assert.ErrorIs(t, err, service.ErrItemNotFound)
}

func TestClaimService_PurgeStaleAttempts(t *testing.T) {
	f := newFixture(t, nil)
	founder := testutil.CreateTestUser(t, f.db, "Finder", domain.RoleStudent)
	guesser := testutil.CreateTestUser(t, f.db, "Guesser", domain.RoleStudent)
	owner := testutil.CreateTestUser(t, f.db, "Owner", domain.RoleStudent)
	item := testutil.CreateTestItem(t, f.db, founder, "Bag", domain.VerificationPair{Question: "Color?", Answer: "red"})

	_, err := f.claims.Verify(ctxFor(guesser), item.ID, wrong())
	require.NoError(t, err)
	_, err = f.claims.Verify(ctxFor(owner), item.ID, right())
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	purged, err := f.claims.PurgeStaleAttempts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	status, err := f.claims.Status(ctxFor(owner), item.ID)
	require.NoError(t, err)
	assert.True(t, status.Verified)
}
