// Package testutil provides shared test databases and fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"chirp/internal/database"
	"chirp/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory database with the full schema. The
// pool is pinned to one connection so concurrent callers queue on the
// database instead of failing with SQLITE_BUSY.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		FirstName: "Test",
		LastName:  "User",
		Username:  username,
		Email:     username + "@example.com",
		Password:  "not-a-real-hash",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a root post authored by userID.
func CreatePost(t testing.TB, db *gorm.DB, userID uint, text string) *models.Post {
	t.Helper()

	post := &models.Post{UserID: userID, Text: text, Kind: models.PostKindOriginal}
	require.NoError(t, db.Omit("User").Create(post).Error)
	return post
}

// ReloadPost reads the current row for id.
func ReloadPost(t testing.TB, db *gorm.DB, id uint) *models.Post {
	t.Helper()

	var post models.Post
	require.NoError(t, db.First(&post, id).Error)
	return &post
}
