// Package seed populates a snap store with demo data, either from a YAML
// fixture file or generated with gofakeit. Intended for development only.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gopkg.in/yaml.v3"
)

// Fixture describes a set of users and the snaps they publish.
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	Snaps []FixtureSnap `yaml:"snaps"`
}

// FixtureUser is an author or viewer referenced by id in snaps.
type FixtureUser struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
}

// FixtureSnap is one snap and the engagement it receives.
type FixtureSnap struct {
	Author    string        `yaml:"author"`
	Content   string        `yaml:"content"`
	IsPrivate bool          `yaml:"private"`
	Medias    []string      `yaml:"medias"`
	LikedBy   []string      `yaml:"likedBy"`
	SharedBy  []string      `yaml:"sharedBy"`
	Replies   []FixtureSnap `yaml:"replies"`
}

// Result counts what a seeding run created.
type Result struct {
	Snaps   int
	Likes   int
	Shares  int
	Replies int
}

// Seeder writes fixtures through the services so that parsing, counting and
// share rules apply exactly as they do for live traffic.
type Seeder struct {
	feed    *service.FeedService
	likes   *service.LikeService
	shares  *service.ShareService
	replies *service.ReplyService
}

func NewSeeder(feed *service.FeedService, likes *service.LikeService, shares *service.ShareService, replies *service.ReplyService) *Seeder {
	return &Seeder{feed: feed, likes: likes, shares: shares, replies: replies}
}

// LoadFixture decodes a YAML fixture and checks that every author, liker
// and sharer is a declared user.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	known := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("fixture user %q has no id", u.Username)
		}
		known[u.ID] = true
	}
	var check func(snaps []FixtureSnap) error
	check = func(snaps []FixtureSnap) error {
		for _, s := range snaps {
			for _, id := range append(append([]string{s.Author}, s.LikedBy...), s.SharedBy...) {
				if !known[id] {
					return fmt.Errorf("fixture references unknown user %q", id)
				}
			}
			if err := check(s.Replies); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(f.Snaps); err != nil {
		return nil, err
	}
	return &f, nil
}

// Apply writes the fixture.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) (Result, error) {
	users := make(map[string]FixtureUser, len(f.Users))
	for _, u := range f.Users {
		users[u.ID] = u
	}

	var res Result
	for _, snap := range f.Snaps {
		if err := s.applySnap(ctx, users, snap, "", &res); err != nil {
			return res, err
		}
	}
	middleware.Logger.InfoContext(ctx, "fixture applied",
		slog.Int("snaps", res.Snaps), slog.Int("likes", res.Likes),
		slog.Int("shares", res.Shares), slog.Int("replies", res.Replies))
	return res, nil
}

func (s *Seeder) applySnap(ctx context.Context, users map[string]FixtureUser, snap FixtureSnap, parentID string, res *Result) error {
	author := users[snap.Author]
	in := service.CreatePostInput{
		UserID:    author.ID,
		Username:  author.Username,
		Content:   snap.Content,
		IsPrivate: snap.IsPrivate,
	}
	for _, path := range snap.Medias {
		in.Medias = append(in.Medias, models.Media{Path: path, MimeType: mimeFor(path)})
	}

	var view *models.PostView
	var err error
	if parentID == "" {
		view, err = s.feed.Create(ctx, in)
	} else {
		view, err = s.replies.Reply(ctx, parentID, in)
	}
	if err != nil {
		return fmt.Errorf("create snap %q: %w", snap.Content, err)
	}
	if parentID == "" {
		res.Snaps++
	} else {
		res.Replies++
	}

	for _, id := range snap.LikedBy {
		if _, err := s.likes.Like(ctx, view.ID, id); err != nil {
			return fmt.Errorf("like snap %s: %w", view.ID, err)
		}
		res.Likes++
	}
	for _, id := range snap.SharedBy {
		if _, err := s.shares.Share(ctx, view.ID, id, users[id].Username); err != nil {
			return fmt.Errorf("share snap %s: %w", view.ID, err)
		}
		res.Shares++
	}
	for _, reply := range snap.Replies {
		if err := s.applySnap(ctx, users, reply, view.ID, res); err != nil {
			return err
		}
	}
	return nil
}

// Generate builds a random fixture with numUsers users and numSnaps
// top-level snaps. The same seed yields the same fixture.
func Generate(seed int64, numUsers, numSnaps int) *Fixture {
	faker := gofakeit.New(seed)
	f := &Fixture{}

	for i := 0; i < numUsers; i++ {
		f.Users = append(f.Users, FixtureUser{
			ID:       faker.UUID(),
			Username: strings.ToLower(faker.Username()),
		})
	}
	if numUsers == 0 {
		return f
	}

	pick := func() FixtureUser { return f.Users[faker.Number(0, numUsers-1)] }
	for i := 0; i < numSnaps; i++ {
		author := pick()
		snap := FixtureSnap{
			Author:  author.ID,
			Content: snapText(faker, pick),
		}
		if faker.Number(0, 4) == 0 {
			snap.Medias = []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/800.jpg", faker.UUID())}
		}
		for _, u := range f.Users {
			if u.ID == author.ID {
				continue
			}
			switch faker.Number(0, 9) {
			case 0, 1:
				snap.LikedBy = append(snap.LikedBy, u.ID)
			case 2:
				snap.SharedBy = append(snap.SharedBy, u.ID)
			case 3:
				snap.Replies = append(snap.Replies, FixtureSnap{Author: u.ID, Content: truncate(faker.Sentence(8), 280)})
			}
		}
		f.Snaps = append(f.Snaps, snap)
	}
	return f
}

func snapText(faker *gofakeit.Faker, pick func() FixtureUser) string {
	parts := []string{faker.Sentence(faker.Number(4, 12))}
	for i := 0; i < faker.Number(0, 3); i++ {
		parts = append(parts, "#"+strings.ToLower(faker.Word()))
	}
	if faker.Bool() {
		parts = append(parts, "@"+pick().Username)
	}
	return truncate(strings.Join(parts, " "), 280)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func mimeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	case strings.HasSuffix(path, ".mp4"):
		return "video/mp4"
	default:
		return "image/jpeg"
	}
}
