package models

import "time"

// BasePostView is the assembled, viewer-personalized read shape of a post
// without any nested share. It is what a PostView unwraps its original into,
// so a share can never nest more than one level.
type BasePostView struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	IsPrivate    bool      `json:"isPrivate"`
	IsBlocked    bool      `json:"isBlocked"`
	Hashtags     []string  `json:"hashtags"`
	Mentions     []Mention `json:"mentions"`
	Medias       []Media   `json:"medias"`
	ParentID     *string   `json:"parentId"`
	SharedID     *string   `json:"sharedId"`
	Likes        int64     `json:"likes"`
	LikedByUser  bool      `json:"likedByUser"`
	Shares       int64     `json:"shares"`
	SharedByUser bool      `json:"sharedByUser"`
	Comments     int64     `json:"comments"`
}

// PostView is a BasePostView plus the one-level unwrap of the shared original.
type PostView struct {
	BasePostView
	SharedSnap *BasePostView `json:"sharedSnap"`
}

// NewBasePostView copies the raw fields of p and folds in the derived counts.
func NewBasePostView(p *Post, stats PostStats, comments int64) BasePostView {
	medias := p.Medias
	if medias == nil {
		medias = []Media{}
	}
	mentions := p.Mentions
	if mentions == nil {
		mentions = []Mention{}
	}
	return BasePostView{
		ID:           p.ID,
		UserID:       p.AuthorID,
		Username:     p.AuthorName,
		Content:      p.Content,
		CreatedAt:    p.CreatedAt,
		IsPrivate:    p.IsPrivate,
		IsBlocked:    p.IsBlocked,
		Hashtags:     p.HashtagTags(),
		Mentions:     mentions,
		Medias:       medias,
		ParentID:     p.ParentID,
		SharedID:     p.SharedID,
		Likes:        stats.Likes,
		LikedByUser:  stats.LikedByUser,
		Shares:       stats.Shares,
		SharedByUser: stats.SharedByUser,
		Comments:     comments,
	}
}

// ListFilter narrows a feed listing. All fields are optional and AND-combined.
// CreatedAfter and CreatedBefore are exclusive bounds.
type ListFilter struct {
	AuthorName    string
	Hashtag       string
	Content       string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}
