package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/repository"
	"github.com/honesta/lostfound-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewUserRepository(db)
	user := testutil.CreateTestUser(t, db, "Asha Rao", domain.RoleStudent)

	found, err := repo.GetByEmail(context.Background(), "  "+user.Email+" ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	exists, err := repo.ExistsByEmail(context.Background(), user.Email)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.GetByEmail(context.Background(), "nobody@cmrithyderabad.edu.in")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewUserRepository(db)
	user := testutil.CreateTestUser(t, db, "Asha Rao", domain.RoleStudent)

	dup := &domain.User{
		CampusID:     user.CampusID,
		FullName:     "Someone Else",
		PhoneNumber:  "9999999999",
		Email:        user.Email,
		PasswordHash: "x",
		Role:         domain.RoleStudent,
	}
	assert.ErrorIs(t, repo.Create(context.Background(), dup), gorm.ErrDuplicatedKey)
}

func TestUserRepository_ListAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewUserRepository(db)
	testutil.CreateTestUser(t, db, "First", domain.RoleStudent)
	time.Sleep(time.Millisecond)
	testutil.CreateTestUser(t, db, "Second", domain.RoleFaculty)

	users, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "First", users[0].FullName)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMessageRepository_ListByItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewMessageRepository(db)
	founder := testutil.CreateTestUser(t, db, "Asha Rao", domain.RoleStudent)
	item := testutil.CreateTestItem(t, db, founder, "Umbrella")
	other := testutil.CreateTestItem(t, db, founder, "Bottle")

	base := time.Now().UTC()
	for i, text := range []string{"second", "first"} {
		require.NoError(t, repo.Create(context.Background(), &domain.ChatMessage{
			ItemID:     item.ID,
			SenderID:   founder.ID,
			SenderName: founder.FullName,
			Text:       text,
			SentAt:     base.Add(-time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(context.Background(), &domain.ChatMessage{
		ItemID: other.ID, SenderID: founder.ID, SenderName: founder.FullName, Text: "elsewhere", SentAt: base,
	}))

	messages, err := repo.ListByItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Text)
	assert.Equal(t, "second", messages[1].Text)

	grouped, err := repo.ListByItems(context.Background(), []uuid.UUID{item.ID, other.ID})
	require.NoError(t, err)
	assert.Len(t, grouped[item.ID], 2)
	assert.Len(t, grouped[other.ID], 1)
}
