// Package service implements the feed engine: post assembly, likes, shares
// and reply threads on top of the post repository.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"snapfeed/internal/config"
	"snapfeed/internal/content"
	"snapfeed/internal/events"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const sinkTimeout = 5 * time.Second

// FeedService assembles viewer-personalized post views and owns the
// create/edit/block/delete lifecycle of posts.
type FeedService struct {
	repo         repository.PostRepository
	sink         events.Sink
	defaultLimit int
}

// CreatePostInput carries an author's new post. ParentID marks a reply.
type CreatePostInput struct {
	UserID    string
	Username  string
	Content   string
	IsPrivate bool
	Medias    []models.Media
	Mentions  []models.Mention
	ParentID  *string
}

// EditPostInput replaces the editable parts of a post wholesale.
type EditPostInput struct {
	Content   string
	IsPrivate bool
	Medias    []models.Media
	Mentions  []models.Mention
}

func NewFeedService(repo repository.PostRepository, sink events.Sink, defaultLimit int) *FeedService {
	if sink == nil {
		sink = events.NoopSink{}
	}
	if defaultLimit <= 0 {
		defaultLimit = config.FeedDefaultLimit
	}
	return &FeedService{repo: repo, sink: sink, defaultLimit: defaultLimit}
}

// GetOne returns the assembled view of postID, or nil when it does not exist.
func (s *FeedService) GetOne(ctx context.Context, postID, viewerID string) (view *models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "FeedService", "GetOne", attribute.String("post.id", postID))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.repo.GetByID(ctx, postID)
	if models.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	views, err := s.assemble(ctx, []*models.Post{post}, viewerID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// List returns top-level posts matching filter, newest first.
func (s *FeedService) List(ctx context.Context, filter models.ListFilter, viewerID string) (views []*models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "FeedService", "List")
	defer func() { observability.EndSpan(span, err) }()

	if filter.Limit <= 0 {
		filter.Limit = s.defaultLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	posts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, posts, viewerID)
}

// Create parses and persists a new post and returns its view. A fresh post
// has no likes, shares or replies, so no counts are read back.
func (s *FeedService) Create(ctx context.Context, in CreatePostInput) (view *models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "FeedService", "Create", attribute.String("user.id", in.UserID))
	defer func() {
		observability.RecordOperation("create", err)
		observability.EndSpan(span, err)
	}()

	if strings.TrimSpace(in.UserID) == "" {
		return nil, models.NewValidationError("userId is required")
	}

	parsed := content.Parse(in.Content)
	post := &models.Post{
		AuthorID:   in.UserID,
		AuthorName: in.Username,
		Content:    in.Content,
		IsPrivate:  in.IsPrivate,
		ParentID:   in.ParentID,
		Medias:     positionedMedias(in.Medias),
		Mentions:   mergeMentions(in.Mentions, parsed.Mentions),
		Hashtags:   models.NewHashtags("", parsed.Hashtags),
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "snap created",
		slog.String("post_id", post.ID),
		slog.Int("hashtags", len(parsed.Hashtags)),
		slog.Bool("reply", post.ParentID != nil),
	)
	s.publishCreated(ctx, post, parsed.Hashtags)

	return &models.PostView{BasePostView: models.NewBasePostView(post, models.PostStats{PostID: post.ID}, 0)}, nil
}

// Edit replaces content, privacy, medias and mentions of id and recomputes
// its hashtags. Author, creation time, likes and shares are untouched.
func (s *FeedService) Edit(ctx context.Context, id string, in EditPostInput) (ref *models.PostRef, err error) {
	ctx, span := observability.StartSpan(ctx, "FeedService", "Edit", attribute.String("post.id", id))
	defer func() {
		observability.RecordOperation("edit", err)
		observability.EndSpan(span, err)
	}()

	parsed := content.Parse(in.Content)
	isPrivate := in.IsPrivate
	err = s.repo.Transaction(ctx, func(tx repository.PostRepository) error {
		if err := tx.Update(ctx, id, repository.PostPatch{
			Content:   &in.Content,
			IsPrivate: &isPrivate,
			Hashtags:  parsed.Hashtags,
		}); err != nil {
			return err
		}
		if err := tx.ReplaceMedias(ctx, id, in.Medias); err != nil {
			return err
		}
		return tx.ReplaceMentions(ctx, id, mergeMentions(in.Mentions, parsed.Mentions))
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "snap edited", slog.String("post_id", id))
	return &models.PostRef{ID: id}, nil
}

// Block flips the moderation flag of id.
func (s *FeedService) Block(ctx context.Context, id string) (ref *models.PostRef, err error) {
	ctx, span := observability.StartSpan(ctx, "FeedService", "Block", attribute.String("post.id", id))
	defer func() {
		observability.RecordOperation("block", err)
		observability.EndSpan(span, err)
	}()

	if err := s.repo.Update(ctx, id, repository.PostPatch{ToggleBlocked: true}); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "snap block toggled", slog.String("post_id", id))
	return &models.PostRef{ID: id}, nil
}

// Delete removes id together with its medias, mentions, hashtags and likes.
func (s *FeedService) Delete(ctx context.Context, id string) (deleted *models.DeletedPost, err error) {
	ctx, span := observability.StartSpan(ctx, "FeedService", "Delete", attribute.String("post.id", id))
	defer func() {
		observability.RecordOperation("delete", err)
		observability.EndSpan(span, err)
	}()

	deleted, err = s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "snap deleted",
		slog.String("post_id", id),
		slog.Int64("medias_removed", deleted.MediasRemoved),
	)
	return deleted, nil
}

// assemble folds counts, viewer flags and the one-level share unwrap into
// views of posts, preserving their order. Counts are fetched once per call
// for every post and referenced original.
func (s *FeedService) assemble(ctx context.Context, posts []*models.Post, viewerID string) ([]*models.PostView, error) {
	views := make([]*models.PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(posts))
	seen := make(map[string]bool, len(posts))
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, p := range posts {
		add(p.ID)
	}

	originals := make(map[string]*models.Post)
	for _, p := range posts {
		if p.SharedID == nil {
			continue
		}
		if _, ok := originals[*p.SharedID]; ok {
			continue
		}
		original, err := s.repo.GetByID(ctx, *p.SharedID)
		if models.IsNotFound(err) {
			originals[*p.SharedID] = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		originals[*p.SharedID] = original
		add(original.ID)
	}

	stats, err := s.repo.Stats(ctx, ids, viewerID)
	if err != nil {
		return nil, err
	}
	comments, err := s.repo.CountRepliesIn(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		view := &models.PostView{BasePostView: models.NewBasePostView(p, stats[p.ID], comments[p.ID])}
		if p.SharedID != nil {
			if original := originals[*p.SharedID]; original != nil {
				base := models.NewBasePostView(original, stats[original.ID], comments[original.ID])
				view.SharedSnap = &base
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *FeedService) publishCreated(ctx context.Context, post *models.Post, hashtags []string) {
	event := events.SnapCreated{Content: post.Content, CreatedAt: post.CreatedAt, Hashtags: hashtags}
	ctx = context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		defer cancel()
		if err := s.sink.SnapCreated(ctx, event); err != nil {
			observability.MetricsSinkFailures.Inc()
			middleware.Logger.WarnContext(ctx, "metrics sink publish failed",
				slog.String("post_id", post.ID), slog.String("error", err.Error()))
		}
	}()
}

// positionedMedias copies medias with their position set to list order.
func positionedMedias(in []models.Media) []models.Media {
	out := make([]models.Media, len(in))
	for i, m := range in {
		out[i] = models.Media{Path: m.Path, MimeType: m.MimeType, Position: i}
	}
	return out
}

// mergeMentions keeps the caller's resolved mentions and appends any mention
// parsed from content that they did not already name, with an empty UserID.
func mergeMentions(supplied []models.Mention, parsed []string) []models.Mention {
	out := make([]models.Mention, 0, len(supplied)+len(parsed))
	named := make(map[string]bool, len(supplied))
	for _, m := range supplied {
		out = append(out, models.Mention{UserID: m.UserID, Username: m.Username})
		named[strings.ToLower(strings.TrimPrefix(m.Username, "@"))] = true
	}
	for _, token := range parsed {
		name := content.MentionUsername(token)
		if name == "" || named[name] {
			continue
		}
		named[name] = true
		out = append(out, models.Mention{Username: name})
	}
	return out
}
