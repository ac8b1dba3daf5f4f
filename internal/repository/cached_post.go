package repository

import (
	"context"
	"log/slog"

	"snapfeed/internal/cache"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"
)

// cachedPostRepository serves GetByID from the post-row cache and evicts a
// post whenever its row or children change. Counts and listings always go to
// the store.
type cachedPostRepository struct {
	PostRepository
	cache *cache.Cache

	// pending collects ids touched inside a transaction; they are evicted
	// once it commits.
	pending *[]string
}

// NewCachedPostRepository wraps next with a cache-aside layer for raw post rows.
func NewCachedPostRepository(next PostRepository, c *cache.Cache) PostRepository {
	if !c.Enabled() {
		return next
	}
	return &cachedPostRepository{PostRepository: next, cache: c}
}

func (r *cachedPostRepository) Transaction(ctx context.Context, fn func(tx PostRepository) error) error {
	if r.pending != nil {
		return r.PostRepository.Transaction(ctx, func(tx PostRepository) error {
			return fn(&cachedPostRepository{PostRepository: tx, cache: r.cache, pending: r.pending})
		})
	}

	var touched []string
	err := r.PostRepository.Transaction(ctx, func(tx PostRepository) error {
		return fn(&cachedPostRepository{PostRepository: tx, cache: r.cache, pending: &touched})
	})
	if err != nil {
		return err
	}
	r.evict(ctx, touched...)
	return nil
}

func (r *cachedPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if r.pending != nil {
		return r.PostRepository.GetByID(ctx, id)
	}

	var post models.Post
	hit, err := r.cache.Aside(ctx, cache.PostKey(id), &post, func() error {
		p, err := r.PostRepository.GetByID(ctx, id)
		if err != nil {
			return err
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if hit {
		observability.PostCacheResults.WithLabelValues("hit").Inc()
	} else {
		observability.PostCacheResults.WithLabelValues("miss").Inc()
	}
	return &post, nil
}

func (r *cachedPostRepository) Update(ctx context.Context, id string, patch PostPatch) error {
	if err := r.PostRepository.Update(ctx, id, patch); err != nil {
		return err
	}
	r.touch(ctx, id)
	return nil
}

func (r *cachedPostRepository) Delete(ctx context.Context, id string) (*models.DeletedPost, error) {
	deleted, err := r.PostRepository.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	r.touch(ctx, id)
	return deleted, nil
}

func (r *cachedPostRepository) ReplaceMedias(ctx context.Context, postID string, medias []models.Media) error {
	if err := r.PostRepository.ReplaceMedias(ctx, postID, medias); err != nil {
		return err
	}
	r.touch(ctx, postID)
	return nil
}

func (r *cachedPostRepository) ReplaceMentions(ctx context.Context, postID string, mentions []models.Mention) error {
	if err := r.PostRepository.ReplaceMentions(ctx, postID, mentions); err != nil {
		return err
	}
	r.touch(ctx, postID)
	return nil
}

func (r *cachedPostRepository) DeleteShares(ctx context.Context, originalID, userID string) (int64, error) {
	share, err := r.PostRepository.FindShare(ctx, originalID, userID)
	if err != nil {
		return 0, err
	}
	n, err := r.PostRepository.DeleteShares(ctx, originalID, userID)
	if err != nil {
		return 0, err
	}
	if share != nil {
		r.touch(ctx, share.ID)
	}
	return n, nil
}

func (r *cachedPostRepository) touch(ctx context.Context, id string) {
	if r.pending != nil {
		*r.pending = append(*r.pending, id)
		return
	}
	r.evict(ctx, id)
}

func (r *cachedPostRepository) evict(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.PostKey(id)
	}
	if err := r.cache.Invalidate(ctx, keys...); err != nil {
		observability.PostCacheResults.WithLabelValues("error").Inc()
		middleware.Logger.WarnContext(ctx, "post cache invalidation failed",
			slog.Any("post_ids", ids), slog.String("error", err.Error()))
	}
}
