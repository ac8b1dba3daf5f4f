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

// LikeState is a viewer's like status on a post after a like or unlike.
type LikeState struct {
	PostID string `json:"id"`
	Liked  bool   `json:"likedByUser"`
	Likes  int64  `json:"likes"`
}

// LikeService keeps at most one like per (post, viewer).
type LikeService struct {
	repo repository.PostRepository
	feed *FeedService
}

func NewLikeService(repo repository.PostRepository, feed *FeedService) *LikeService {
	return &LikeService{repo: repo, feed: feed}
}

// Like records viewerID's like on postID. Liking twice is a no-op.
func (s *LikeService) Like(ctx context.Context, postID, viewerID string) (state *LikeState, err error) {
	ctx, span := observability.StartSpan(ctx, "LikeService", "Like",
		attribute.String("post.id", postID), attribute.String("user.id", viewerID))
	defer func() {
		observability.RecordOperation("like", err)
		observability.EndSpan(span, err)
	}()

	if _, err := s.repo.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateLike(ctx, &models.Like{PostID: postID, UserID: viewerID})
	if err != nil && !models.IsConflict(err) {
		return nil, err
	}
	if created {
		middleware.Logger.InfoContext(ctx, "snap liked", slog.String("post_id", postID))
	}
	return s.state(ctx, postID, viewerID)
}

// Unlike removes viewerID's like on postID if there is one.
func (s *LikeService) Unlike(ctx context.Context, postID, viewerID string) (state *LikeState, err error) {
	ctx, span := observability.StartSpan(ctx, "LikeService", "Unlike",
		attribute.String("post.id", postID), attribute.String("user.id", viewerID))
	defer func() {
		observability.RecordOperation("unlike", err)
		observability.EndSpan(span, err)
	}()

	if _, err := s.repo.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	like, err := s.repo.FindLike(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if like != nil {
		if err := s.repo.DeleteLike(ctx, like.ID); err != nil && !models.IsNotFound(err) {
			return nil, err
		}
		middleware.Logger.InfoContext(ctx, "snap unliked", slog.String("post_id", postID))
	}
	return s.state(ctx, postID, viewerID)
}

// ListLiked returns every post userID liked, assembled for that user.
func (s *LikeService) ListLiked(ctx context.Context, userID string) (views []*models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "LikeService", "ListLiked", attribute.String("user.id", userID))
	defer func() { observability.EndSpan(span, err) }()

	posts, err := s.repo.ListLikedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.feed.assemble(ctx, posts, userID)
}

func (s *LikeService) state(ctx context.Context, postID, viewerID string) (*LikeState, error) {
	stats, err := s.repo.Stats(ctx, []string{postID}, viewerID)
	if err != nil {
		return nil, err
	}
	st := stats[postID]
	return &LikeState{PostID: postID, Liked: st.LikedByUser, Likes: st.Likes}, nil
}
