package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"snapfeed/internal/database"
	"snapfeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens a private in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newPost builds a top-level post created minutesAfter baseTime.
func newPost(author, text string, minutesAfter int) *models.Post {
	return &models.Post{
		AuthorID:   "id-" + strings.ToLower(author),
		AuthorName: author,
		Content:    text,
		CreatedAt:  baseTime.Add(time.Duration(minutesAfter) * time.Minute),
	}
}
