// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a published snap. Shares and replies are posts too: a share has
// empty content and a SharedID, a reply has a ParentID.
type Post struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID   string    `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_posts_share_author,priority:2" json:"userId"`
	AuthorName string    `gorm:"type:varchar(255);not null;index" json:"username"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsPrivate  bool      `gorm:"not null;default:false" json:"isPrivate"`
	IsBlocked  bool      `gorm:"not null;default:false" json:"isBlocked"`
	ParentID   *string   `gorm:"type:varchar(36);index" json:"parentId"`
	SharedID   *string   `gorm:"type:varchar(36);uniqueIndex:idx_posts_share_author,priority:1" json:"sharedId"`
	Medias     []Media   `gorm:"foreignKey:PostID" json:"medias"`
	Mentions   []Mention `gorm:"foreignKey:PostID" json:"mentions"`
	Hashtags   []Hashtag `gorm:"foreignKey:PostID" json:"hashtags"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a fresh opaque id when the caller left it empty.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsShare reports whether the post is a repost shell.
func (p *Post) IsShare() bool {
	return p.SharedID != nil
}

// HashtagTags returns the post's hashtags in their stored order.
func (p *Post) HashtagTags() []string {
	tags := make([]string, 0, len(p.Hashtags))
	for _, h := range p.Hashtags {
		tags = append(tags, h.Tag)
	}
	return tags
}

// Media is an attachment of a post. Medias are replaced wholesale on edit.
type Media struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	PostID   string `gorm:"type:varchar(36);not null;index" json:"-"`
	Path     string `gorm:"not null" json:"path"`
	MimeType string `gorm:"type:varchar(127);not null" json:"mimeType"`
	Position int    `gorm:"not null;default:0" json:"-"`
}

// Mention references a user from a post. UserID is empty when the mention
// was extracted from content and never resolved by the caller.
type Mention struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	PostID   string `gorm:"type:varchar(36);not null;index" json:"-"`
	UserID   string `gorm:"type:varchar(64)" json:"userId"`
	Username string `gorm:"type:varchar(255);not null" json:"username"`
}

// Hashtag is one lowercase "#tag" token derived from a post's content.
type Hashtag struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	PostID   string `gorm:"type:varchar(36);not null;index" json:"-"`
	Tag      string `gorm:"type:varchar(280);not null;index" json:"tag"`
	Position int    `gorm:"not null;default:0" json:"-"`
}

// Like records that a user liked a post.
// The combination of PostID and UserID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_likes_post_user" json:"postId"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_likes_post_user;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostStats is the per-post aggregate projection. LikedByUser and
// SharedByUser are relative to the viewer the projection was computed for.
type PostStats struct {
	PostID       string
	Likes        int64
	Shares       int64
	LikedByUser  bool
	SharedByUser bool
}

// PostRef is the minimal result of edit and block.
type PostRef struct {
	ID string `json:"id"`
}

// DeletedPost describes a post that was removed along with its children.
type DeletedPost struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"createdAt"`
	MediasRemoved int64     `json:"mediasRemoved"`
}

// NewHashtags builds the hashtag rows of postID in tag order.
func NewHashtags(postID string, tags []string) []Hashtag {
	rows := make([]Hashtag, 0, len(tags))
	for i, tag := range tags {
		rows = append(rows, Hashtag{PostID: postID, Tag: tag, Position: i})
	}
	return rows
}
