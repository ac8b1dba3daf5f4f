package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"snapfeed/internal/database"
	"snapfeed/internal/events"
	"snapfeed/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type services struct {
	db     *gorm.DB
	repo   repository.PostRepository
	sink   *fakeSink
	feed   *FeedService
	likes  *LikeService
	shares *ShareService
	reply  *ReplyService
}

func setupServices(t *testing.T) *services {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := repository.NewPostRepository(db)
	sink := newFakeSink()
	feed := NewFeedService(repo, sink, 0)
	return &services{
		db:     db,
		repo:   repo,
		sink:   sink,
		feed:   feed,
		likes:  NewLikeService(repo, feed),
		shares: NewShareService(repo, feed),
		reply:  NewReplyService(repo, feed),
	}
}

// fakeSink records published events and can be told to fail.
type fakeSink struct {
	mu     sync.Mutex
	err    error
	events chan events.SnapCreated
}

func newFakeSink() *fakeSink {
	return &fakeSink{events: make(chan events.SnapCreated, 64)}
}

func (f *fakeSink) SnapCreated(_ context.Context, e events.SnapCreated) error {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	f.events <- e
	return err
}

func (f *fakeSink) failWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
