package service

import (
	"context"
	"log/slog"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ShareService manages repost shells. A viewer holds at most one share of a
// given original; sharing again returns the existing one.
type ShareService struct {
	repo repository.PostRepository
	feed *FeedService
}

func NewShareService(repo repository.PostRepository, feed *FeedService) *ShareService {
	return &ShareService{repo: repo, feed: feed}
}

// Share reposts originalID as viewerID and returns the share's view.
// Sharing a share references that share directly; views unwrap one level only.
func (s *ShareService) Share(ctx context.Context, originalID, viewerID, viewerName string) (view *models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "ShareService", "Share",
		attribute.String("post.id", originalID), attribute.String("user.id", viewerID))
	defer func() {
		observability.RecordOperation("share", err)
		observability.EndSpan(span, err)
	}()

	if _, err := s.repo.GetByID(ctx, originalID); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindShare(ctx, originalID, viewerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.view(ctx, existing.ID, viewerID)
	}

	share := &models.Post{
		AuthorID:   viewerID,
		AuthorName: viewerName,
		SharedID:   &originalID,
	}
	err = s.repo.CreateShare(ctx, share)
	if models.IsConflict(err) {
		// Lost a race with a concurrent share by the same viewer.
		existing, err = s.repo.FindShare(ctx, originalID, viewerID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, models.NewConflictError("share disappeared while resolving a conflict", nil)
		}
		return s.view(ctx, existing.ID, viewerID)
	}
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "snap shared",
		slog.String("post_id", originalID), slog.String("share_id", share.ID))
	return s.view(ctx, share.ID, viewerID)
}

// Unshare deletes viewerID's shares of originalID and reports how many went.
func (s *ShareService) Unshare(ctx context.Context, originalID, viewerID string) (removed int64, err error) {
	ctx, span := observability.StartSpan(ctx, "ShareService", "Unshare",
		attribute.String("post.id", originalID), attribute.String("user.id", viewerID))
	defer func() {
		observability.RecordOperation("unshare", err)
		observability.EndSpan(span, err)
	}()

	removed, err = s.repo.DeleteShares(ctx, originalID, viewerID)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		middleware.Logger.InfoContext(ctx, "snap unshared",
			slog.String("post_id", originalID), slog.Int64("removed", removed))
	}
	return removed, nil
}

// ListShares returns viewerID's shares, newest first, each with its original unwrapped.
func (s *ShareService) ListShares(ctx context.Context, viewerID string) (views []*models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "ShareService", "ListShares", attribute.String("user.id", viewerID))
	defer func() { observability.EndSpan(span, err) }()

	posts, err := s.repo.ListShares(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.feed.assemble(ctx, posts, viewerID)
}

func (s *ShareService) view(ctx context.Context, shareID, viewerID string) (*models.PostView, error) {
	view, err := s.feed.GetOne(ctx, shareID, viewerID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, models.NewNotFoundError("Snap", shareID)
	}
	return view, nil
}
