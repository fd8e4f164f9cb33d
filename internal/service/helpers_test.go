package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/config"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/imaging"
	"github.com/honesta/lostfound-api/internal/repository"
	"github.com/honesta/lostfound-api/internal/service"
	"github.com/honesta/lostfound-api/internal/storage"
	"github.com/honesta/lostfound-api/internal/testutil"
	"github.com/honesta/lostfound-api/internal/verifier"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db            *gorm.DB
	store         *storage.LocalStorage
	items         *service.ItemService
	claims        *service.ClaimService
	messages      *service.MessageService
	notifications *service.NotificationService
	users         *service.UserService
	notifRepo     *repository.NotificationRepository
	clock         *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type stubGenerator struct {
	set verifier.QuestionSet
	err error
}

func (g stubGenerator) Generate(context.Context, []byte) (verifier.QuestionSet, error) {
	return g.set, g.err
}

// recordingGenerator keeps the image it was asked about
type recordingGenerator struct {
	set  verifier.QuestionSet
	seen []byte
}

func (g *recordingGenerator) Generate(_ context.Context, jpeg []byte) (verifier.QuestionSet, error) {
	g.seen = jpeg
	return g.set, nil
}

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:          "test-secret",
		Issuer:             "honesta-test",
		TokenTTL:           60,
		StudentEmailDomain: "cmrithyderabad.edu.in",
		FacultyEmailDomain: "cmritonline.ac.in",
		MinPhoneLength:     10,
	}
}

func newFixture(t *testing.T, generator verifier.QuestionGenerator) *fixture {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.SetupTestDB(t)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	itemRepo := repository.NewItemRepository(db)
	claimRepo := repository.NewClaimAttemptRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	notifications := service.NewNotificationService(notifRepo, logger)
	authCfg := testAuthConfig()

	claims := service.NewClaimService(itemRepo, claimRepo,
		verifier.NewRejectingMatcher(verifier.NewFuzzyMatcher(), logger),
		notifications,
		&config.ClaimsConfig{MaxAttempts: 3, LockoutMinutes: 60, AttemptRetentionHours: 24},
		logger,
	).WithClock(clock.Now)

	return &fixture{
		db:    db,
		store: store,
		items: service.NewItemService(itemRepo, claimRepo, userRepo, store,
			verifier.NewFallbackGenerator(generator, logger),
			notifications, imaging.DefaultOptions(), logger),
		claims:        claims,
		messages:      service.NewMessageService(itemRepo, claimRepo, messageRepo, notifications, logger),
		notifications: notifications,
		users:         service.NewUserService(userRepo, auth.NewCampusPolicy(authCfg), auth.NewTokenManager(authCfg), logger),
		notifRepo:     notifRepo,
		clock:         clock,
	}
}

func ctxFor(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:   user.ID,
		CampusID: user.CampusID,
		FullName: user.FullName,
		Email:    user.Email,
		Role:     user.Role,
	})
}

func testPhoto(t *testing.T) []byte {
	t.Helper()
	return sizedPhoto(t, 64, 48)
}

func sizedPhoto(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: 40, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func unreadFor(t *testing.T, f *fixture, user *domain.User) []domain.Notification {
	t.Helper()
	list, _, err := f.notifRepo.ListByUser(context.Background(), user.ID, 1, 50, true, "")
	require.NoError(t, err)
	return list
}
