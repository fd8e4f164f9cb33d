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

func TestItemRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewItemRepository(db)
	founder := testutil.CreateTestUser(t, db, "Asha Rao", domain.RoleStudent)

	item := &domain.FoundItem{
		Title:        "Black Wallet",
		FounderID:    founder.ID,
		FounderName:  founder.FullName,
		FounderPhone: founder.PhoneNumber,
		Status:       domain.ItemStatusAvailable,
		ReportedAt:   time.Now().UTC(),
		Questions: []domain.VerificationQuestion{
			{Position: 1, Question: "What brand is it?", Answer: "Woodland"},
			{Position: 0, Question: "What color is it?", Answer: "black"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), item))
	assert.NotEqual(t, uuid.Nil, item.ID)

	found, err := repo.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Black Wallet", found.Title)
	assert.Equal(t, []string{"What color is it?", "What brand is it?"}, found.QuestionTexts())
	assert.Equal(t, []string{"black", "Woodland"}, found.ReferenceAnswers())

	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestItemRepository_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewItemRepository(db)
	founder := testutil.CreateTestUser(t, db, "Asha Rao", domain.RoleStudent)
	other := testutil.CreateTestUser(t, db, "Ravi Kumar", domain.RoleFaculty)

	base := time.Now().UTC().Add(-time.Hour)
	titles := []string{"Blue Umbrella", "Calculator", "blue water bottle", "ID Card"}
	for i, title := range titles {
		owner := founder
		if i == 3 {
			owner = other
		}
		item := testutil.CreateTestItem(t, db, owner, title, domain.VerificationPair{Question: "Color?", Answer: "blue"})
		require.NoError(t, db.Model(item).Update("reported_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
	// hand over the calculator
	var calc domain.FoundItem
	require.NoError(t, db.First(&calc, "title = ?", "Calculator").Error)
	_, err := repo.MarkHandovered(context.Background(), calc.ID, time.Now().UTC())
	require.NoError(t, err)

	t.Run("newest first", func(t *testing.T) {
		items, total, err := repo.List(context.Background(), domain.ItemListFilter{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, items, 4)
		assert.Equal(t, "ID Card", items[0].Title)
		assert.Equal(t, "Blue Umbrella", items[3].Title)
		assert.Len(t, items[0].Questions, 1)
	})

	t.Run("case-insensitive title search", func(t *testing.T) {
		items, total, err := repo.List(context.Background(), domain.ItemListFilter{Search: "BLUE", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, "blue water bottle", items[0].Title)
	})

	t.Run("status filter", func(t *testing.T) {
		items, total, err := repo.List(context.Background(), domain.ItemListFilter{Status: domain.ItemStatusHandovered, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "Calculator", items[0].Title)
	})

	t.Run("founder filter", func(t *testing.T) {
		_, total, err := repo.List(context.Background(), domain.ItemListFilter{FounderID: &other.ID, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("pagination", func(t *testing.T) {
		items, total, err := repo.List(context.Background(), domain.ItemListFilter{Page: 2, PageSize: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, items, 1)
		assert.Equal(t, "Blue Umbrella", items[0].Title)
	})
}

func TestItemRepository_MarkHandovered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewItemRepository(db)
	founder := testutil.CreateTestUser(t, db, "Asha Rao", domain.RoleStudent)
	item := testutil.CreateTestItem(t, db, founder, "Keys")

	changed, err := repo.MarkHandovered(context.Background(), item.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkHandovered(context.Background(), item.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, changed)

	found, err := repo.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusHandovered, found.Status)
	assert.NotNil(t, found.HandedOverAt)
}

func TestItemRepository_DeleteCascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewItemRepository(db)
	founder := testutil.CreateTestUser(t, db, "Asha Rao", domain.RoleStudent)
	claimant := testutil.CreateTestUser(t, db, "Ravi Kumar", domain.RoleStudent)
	item := testutil.CreateTestItem(t, db, founder, "Headphones", domain.VerificationPair{Question: "Brand?", Answer: "Sony"})

	require.NoError(t, db.Create(&domain.ChatMessage{
		ItemID: item.ID, SenderID: founder.ID, SenderName: founder.FullName, Text: "hi", SentAt: time.Now().UTC(),
	}).Error)
	require.NoError(t, db.Create(&domain.ClaimAttempt{
		ItemID: item.ID, ClaimantID: claimant.ID, Count: 1, LastAttemptAt: time.Now().UTC(),
	}).Error)

	require.NoError(t, repo.Delete(context.Background(), item.ID))

	var remaining int64
	db.Model(&domain.VerificationQuestion{}).Where("item_id = ?", item.ID).Count(&remaining)
	assert.Zero(t, remaining)
	db.Model(&domain.ChatMessage{}).Where("item_id = ?", item.ID).Count(&remaining)
	assert.Zero(t, remaining)
	db.Model(&domain.ClaimAttempt{}).Where("item_id = ?", item.ID).Count(&remaining)
	assert.Zero(t, remaining)

	assert.ErrorIs(t, repo.Delete(context.Background(), item.ID), gorm.ErrRecordNotFound)
}

func TestItemRepository_ExistsByReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewItemRepository(db)
	founder := testutil.CreateTestUser(t, db, "Asha Rao", domain.RoleStudent)
	item := testutil.CreateTestItem(t, db, founder, "Bottle")
	require.NoError(t, db.Model(item).Update("legacy_ref", "1712345678901").Error)

	exists, err := repo.ExistsByReference(context.Background(), "1712345678901")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByReference(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	native := testutil.CreateTestItem(t, db, founder, "Umbrella")
	exists, err = repo.ExistsByReference(context.Background(), native.ID.String())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByReference(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.False(t, exists)
}
