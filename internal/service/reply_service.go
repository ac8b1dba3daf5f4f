package service

import (
	"context"
	"sort"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ReplyService manages the flat reply thread under a post.
type ReplyService struct {
	repo repository.PostRepository
	feed *FeedService
}

func NewReplyService(repo repository.PostRepository, feed *FeedService) *ReplyService {
	return &ReplyService{repo: repo, feed: feed}
}

// Reply creates a post under parentID.
func (s *ReplyService) Reply(ctx context.Context, parentID string, in CreatePostInput) (view *models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "ReplyService", "Reply", attribute.String("post.id", parentID))
	defer func() { observability.EndSpan(span, err) }()

	if _, err := s.repo.GetByID(ctx, parentID); err != nil {
		return nil, err
	}
	in.ParentID = &parentID
	return s.feed.Create(ctx, in)
}

// ListReplies returns the replies of parentID, newest first.
func (s *ReplyService) ListReplies(ctx context.Context, parentID, viewerID string) (views []*models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "ReplyService", "ListReplies", attribute.String("post.id", parentID))
	defer func() { observability.EndSpan(span, err) }()

	ids, err := s.repo.ListReplyIDs(ctx, parentID)
	if err != nil {
		return nil, err
	}

	views = make([]*models.PostView, 0, len(ids))
	for _, id := range ids {
		view, err := s.feed.GetOne(ctx, id, viewerID)
		if err != nil {
			return nil, err
		}
		if view != nil {
			views = append(views, view)
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

// CountReplies returns how many replies postID has.
func (s *ReplyService) CountReplies(ctx context.Context, postID string) (int64, error) {
	return s.repo.CountReplies(ctx, postID)
}
