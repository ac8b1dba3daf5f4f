// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"snapfeed/internal/content"
	"snapfeed/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository is the persistence contract for posts, their children,
// likes and shares. Absent ids surface as NOT_FOUND, uniqueness violations
// as CONFLICT and every other failure as STORE_ERROR.
type PostRepository interface {
	// Transaction runs fn against a repository bound to a single store
	// transaction. The transaction commits when fn returns nil.
	Transaction(ctx context.Context, fn func(tx PostRepository) error) error

	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Post, error)
	Update(ctx context.Context, id string, patch PostPatch) error
	Delete(ctx context.Context, id string) (*models.DeletedPost, error)
	ReplaceMedias(ctx context.Context, postID string, medias []models.Media) error
	ReplaceMentions(ctx context.Context, postID string, mentions []models.Mention) error

	CountReplies(ctx context.Context, parentID string) (int64, error)
	CountRepliesIn(ctx context.Context, parentIDs []string) (map[string]int64, error)
	ListReplyIDs(ctx context.Context, parentID string) ([]string, error)

	// CreateLike inserts like unless the (post, user) pair already exists.
	// It reports whether a row was written.
	CreateLike(ctx context.Context, like *models.Like) (bool, error)
	DeleteLike(ctx context.Context, likeID uint) error
	// FindLike returns nil, nil when the user has not liked the post.
	FindLike(ctx context.Context, postID, userID string) (*models.Like, error)
	ListLikedBy(ctx context.Context, userID string) ([]*models.Post, error)

	CreateShare(ctx context.Context, share *models.Post) error
	// FindShare returns nil, nil when the user has no share of originalID.
	FindShare(ctx context.Context, originalID, userID string) (*models.Post, error)
	DeleteShares(ctx context.Context, originalID, userID string) (int64, error)
	ListShares(ctx context.Context, userID string) ([]*models.Post, error)

	// Stats computes the aggregate projection for every id. Ids without
	// likes or shares still get a zero-valued entry.
	Stats(ctx context.Context, ids []string, viewerID string) (map[string]models.PostStats, error)
}

// PostPatch is a partial update of a post row. Nil fields are left alone.
// A nil Hashtags slice keeps the stored tags; a non-nil one replaces them.
type PostPatch struct {
	Content       *string
	IsPrivate     *bool
	ToggleBlocked bool
	Hashtags      []string
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Transaction(ctx context.Context, fn func(tx PostRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&postRepository{db: tx})
	})
	return translateError("transaction", err)
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(post).Error
	})
	return translateError("create post", err)
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := withChildren(r.db.WithContext(ctx)).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Snap", id)
	}
	if err != nil {
		return nil, translateError("get post", err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter models.ListFilter) ([]*models.Post, error) {
	q := withChildren(r.db.WithContext(ctx)).Where("parent_id IS NULL")

	if filter.AuthorName != "" {
		q = q.Where("LOWER(author_name) = LOWER(?)", filter.AuthorName)
	}
	if filter.Hashtag != "" {
		q = q.Where("EXISTS (SELECT 1 FROM hashtags WHERE hashtags.post_id = posts.id AND hashtags.tag = ?)",
			content.NormalizeHashtag(filter.Hashtag))
	}
	if filter.Content != "" {
		q = q.Where(`LOWER(content) LIKE LOWER(?) ESCAPE '\'`, "%"+escapeLike(filter.Content)+"%")
	}
	if filter.CreatedAfter != nil {
		q = q.Where("created_at > ?", filter.CreatedAfter.UTC())
	}
	if filter.CreatedBefore != nil {
		q = q.Where("created_at < ?", filter.CreatedBefore.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var posts []*models.Post
	if err := q.Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, translateError("list posts", err)
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, id string, patch PostPatch) error {
	return r.Transaction(ctx, func(txRepo PostRepository) error {
		tx := txRepo.(*postRepository).db

		updates := map[string]interface{}{"updated_at": tx.NowFunc()}
		if patch.Content != nil {
			updates["content"] = *patch.Content
		}
		if patch.IsPrivate != nil {
			updates["is_private"] = *patch.IsPrivate
		}
		if patch.ToggleBlocked {
			updates["is_blocked"] = gorm.Expr("NOT is_blocked")
		}

		res := tx.Model(&models.Post{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return translateError("update post", res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Snap", id)
		}

		if patch.Hashtags != nil {
			if err := tx.Where("post_id = ?", id).Delete(&models.Hashtag{}).Error; err != nil {
				return translateError("replace hashtags", err)
			}
			if tags := models.NewHashtags(id, patch.Hashtags); len(tags) > 0 {
				if err := tx.Create(&tags).Error; err != nil {
					return translateError("replace hashtags", err)
				}
			}
		}
		return nil
	})
}

func (r *postRepository) Delete(ctx context.Context, id string) (*models.DeletedPost, error) {
	var deleted *models.DeletedPost
	err := r.Transaction(ctx, func(txRepo PostRepository) error {
		tx := txRepo.(*postRepository).db

		var post models.Post
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Snap", id)
			}
			return translateError("delete post", err)
		}

		removed, err := deleteChildren(tx, []string{id})
		if err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return translateError("delete post", err)
		}

		deleted = &models.DeletedPost{
			ID:            post.ID,
			UserID:        post.AuthorID,
			Username:      post.AuthorName,
			Content:       post.Content,
			CreatedAt:     post.CreatedAt,
			MediasRemoved: removed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *postRepository) ReplaceMedias(ctx context.Context, postID string, medias []models.Media) error {
	return r.Transaction(ctx, func(txRepo PostRepository) error {
		tx := txRepo.(*postRepository).db
		if err := tx.Where("post_id = ?", postID).Delete(&models.Media{}).Error; err != nil {
			return translateError("replace medias", err)
		}
		if len(medias) == 0 {
			return nil
		}
		rows := make([]models.Media, len(medias))
		for i, m := range medias {
			rows[i] = models.Media{PostID: postID, Path: m.Path, MimeType: m.MimeType, Position: i}
		}
		return translateError("replace medias", tx.Create(&rows).Error)
	})
}

func (r *postRepository) ReplaceMentions(ctx context.Context, postID string, mentions []models.Mention) error {
	return r.Transaction(ctx, func(txRepo PostRepository) error {
		tx := txRepo.(*postRepository).db
		if err := tx.Where("post_id = ?", postID).Delete(&models.Mention{}).Error; err != nil {
			return translateError("replace mentions", err)
		}
		if len(mentions) == 0 {
			return nil
		}
		rows := make([]models.Mention, len(mentions))
		for i, m := range mentions {
			rows[i] = models.Mention{PostID: postID, UserID: m.UserID, Username: m.Username}
		}
		return translateError("replace mentions", tx.Create(&rows).Error)
	})
}

func (r *postRepository) CountReplies(ctx context.Context, parentID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("parent_id = ?", parentID).Count(&n).Error
	if err != nil {
		return 0, translateError("count replies", err)
	}
	return n, nil
}

type groupCount struct {
	ID string
	N  int64
}

func (r *postRepository) CountRepliesIn(ctx context.Context, parentIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return counts, nil
	}

	var rows []groupCount
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("parent_id AS id, COUNT(*) AS n").
		Where("parent_id IN ?", parentIDs).
		Group("parent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError("count replies", err)
	}
	for _, row := range rows {
		counts[row.ID] = row.N
	}
	return counts, nil
}

func (r *postRepository) ListReplyIDs(ctx context.Context, parentID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("parent_id = ?", parentID).
		Order("created_at DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translateError("list replies", err)
	}
	return ids, nil
}

func (r *postRepository) CreateLike(ctx context.Context, like *models.Like) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(like)
	if res.Error != nil {
		return false, translateError("create like", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) DeleteLike(ctx context.Context, likeID uint) error {
	return translateError("delete like", r.db.WithContext(ctx).Delete(&models.Like{}, likeID).Error)
}

func (r *postRepository) FindLike(ctx context.Context, postID, userID string) (*models.Like, error) {
	var like models.Like
	err := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Limit(1).Find(&like).Error
	if err != nil {
		return nil, translateError("find like", err)
	}
	if like.ID == 0 {
		return nil, nil
	}
	return &like, nil
}

func (r *postRepository) ListLikedBy(ctx context.Context, userID string) ([]*models.Post, error) {
	var posts []*models.Post
	err := withChildren(r.db.WithContext(ctx)).
		Where("id IN (?)", r.db.Model(&models.Like{}).Select("post_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, translateError("list liked posts", err)
	}
	return posts, nil
}

func (r *postRepository) CreateShare(ctx context.Context, share *models.Post) error {
	if share.SharedID == nil {
		return models.NewValidationError("a share must reference an original snap")
	}
	return r.Create(ctx, share)
}

func (r *postRepository) FindShare(ctx context.Context, originalID, userID string) (*models.Post, error) {
	var posts []*models.Post
	err := withChildren(r.db.WithContext(ctx)).
		Where("shared_id = ? AND author_id = ?", originalID, userID).
		Limit(1).
		Find(&posts).Error
	if err != nil {
		return nil, translateError("find share", err)
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return posts[0], nil
}

func (r *postRepository) DeleteShares(ctx context.Context, originalID, userID string) (int64, error) {
	var removed int64
	err := r.Transaction(ctx, func(txRepo PostRepository) error {
		tx := txRepo.(*postRepository).db

		var ids []string
		if err := tx.Model(&models.Post{}).
			Where("shared_id = ? AND author_id = ?", originalID, userID).
			Pluck("id", &ids).Error; err != nil {
			return translateError("delete shares", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := deleteChildren(tx, ids); err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Post{})
		if res.Error != nil {
			return translateError("delete shares", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

func (r *postRepository) ListShares(ctx context.Context, userID string) ([]*models.Post, error) {
	var posts []*models.Post
	err := withChildren(r.db.WithContext(ctx)).
		Where("author_id = ? AND shared_id IS NOT NULL", userID).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, translateError("list shares", err)
	}
	return posts, nil
}

func (r *postRepository) Stats(ctx context.Context, ids []string, viewerID string) (map[string]models.PostStats, error) {
	stats := make(map[string]models.PostStats, len(ids))
	if len(ids) == 0 {
		return stats, nil
	}
	for _, id := range ids {
		stats[id] = models.PostStats{PostID: id}
	}
	db := r.db.WithContext(ctx)

	var likes []groupCount
	if err := db.Model(&models.Like{}).
		Select("post_id AS id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&likes).Error; err != nil {
		return nil, translateError("like stats", err)
	}
	for _, row := range likes {
		s := stats[row.ID]
		s.Likes = row.N
		stats[row.ID] = s
	}

	var shares []groupCount
	if err := db.Model(&models.Post{}).
		Select("shared_id AS id, COUNT(*) AS n").
		Where("shared_id IN ?", ids).
		Group("shared_id").
		Scan(&shares).Error; err != nil {
		return nil, translateError("share stats", err)
	}
	for _, row := range shares {
		s := stats[row.ID]
		s.Shares = row.N
		stats[row.ID] = s
	}

	if viewerID == "" {
		return stats, nil
	}

	var liked []string
	if err := db.Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &liked).Error; err != nil {
		return nil, translateError("like stats", err)
	}
	for _, id := range liked {
		s := stats[id]
		s.LikedByUser = true
		stats[id] = s
	}

	var shared []string
	if err := db.Model(&models.Post{}).
		Where("author_id = ? AND shared_id IN ?", viewerID, ids).
		Pluck("shared_id", &shared).Error; err != nil {
		return nil, translateError("share stats", err)
	}
	for _, id := range shared {
		s := stats[id]
		s.SharedByUser = true
		stats[id] = s
	}

	return stats, nil
}

// withChildren preloads medias, mentions and hashtags in their stored order.
func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Medias", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Mentions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Hashtags", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// deleteChildren removes every row hanging off the given posts and reports
// how many medias went with them.
func deleteChildren(tx *gorm.DB, postIDs []string) (int64, error) {
	res := tx.Where("post_id IN ?", postIDs).Delete(&models.Media{})
	if res.Error != nil {
		return 0, translateError("delete medias", res.Error)
	}
	for _, child := range []interface{}{&models.Mention{}, &models.Hashtag{}, &models.Like{}} {
		if err := tx.Where("post_id IN ?", postIDs).Delete(child).Error; err != nil {
			return 0, translateError("delete post children", err)
		}
	}
	return res.RowsAffected, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// translateError maps a driver error onto the repository error model.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.NewConflictError("duplicate value during "+op, err)
	}
	// PostgreSQL unique violation SQLSTATE 23505
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return models.NewConflictError("duplicate value during "+op, err)
	}
	return models.NewStoreError(op, err)
}
