package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/honesta/lostfound-api/internal/database"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// SetupTestDB opens a private in-memory SQLite database with the schema applied
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "failed to open sqlite test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateTestUser inserts a user with a unique campus email
func CreateTestUser(t *testing.T, db *gorm.DB, name string, role domain.UserRole) *domain.User {
	t.Helper()

	n := seq.Add(1)
	local := fmt.Sprintf("22r01a%04d", n)
	emailDomain := "cmrithyderabad.edu.in"
	if role == domain.RoleFaculty {
		local = fmt.Sprintf("staff.%d", n)
		emailDomain = "cmritonline.ac.in"
	}

	user := &domain.User{
		CampusID:     strings.ToUpper(local),
		FullName:     name,
		PhoneNumber:  fmt.Sprintf("98765%05d", n),
		Email:        local + "@" + emailDomain,
		PasswordHash: "not-a-real-hash",
		Role:         role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestItem inserts an available item reported by founder with the given challenge
func CreateTestItem(t *testing.T, db *gorm.DB, founder *domain.User, title string, pairs ...domain.VerificationPair) *domain.FoundItem {
	t.Helper()

	item := &domain.FoundItem{
		Title:             title,
		PublicImagePath:   fmt.Sprintf("items/%d/public.jpg", seq.Add(1)),
		OriginalImagePath: fmt.Sprintf("items/%d/original.jpg", seq.Add(1)),
		FounderID:         founder.ID,
		FounderName:       founder.FullName,
		FounderPhone:      founder.PhoneNumber,
		Status:            domain.ItemStatusAvailable,
		ReportedAt:        time.Now().UTC(),
	}
	for i, p := range pairs {
		item.Questions = append(item.Questions, domain.VerificationQuestion{
			Position: i,
			Question: p.Question,
			Answer:   p.Answer,
		})
	}
	require.NoError(t, db.Create(item).Error)
	return item
}
