// Package seed fills a database with demo accounts, posts, replies and
// engagement. Everything goes through the services so counters and token
// tables look exactly as they would after real traffic.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"chirp/internal/middleware"
	"chirp/internal/models"
	"chirp/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Chirp!Seed2024pw"

const maxSeedText = 280

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// ReplyRatio is the share of posts created as replies to earlier posts.
	ReplyRatio float64
	// MaxEngagements caps how many users like, retweet or bookmark one post.
	MaxEngagements int
	ShouldClean    bool
	// RandSeed makes runs reproducible when non-zero.
	RandSeed int64
}

// Report counts what a run created.
type Report struct {
	Users     int
	Posts     int
	Replies   int
	Likes     int
	Retweets  int
	Bookmarks int
}

// Seeder creates demo data through the auth and engagement services.
type Seeder struct {
	db         *gorm.DB
	auth       *service.AuthService
	engagement *service.EngagementService
	faker      *gofakeit.Faker
	opts       Options
}

// New creates a Seeder. db is only used for cleaning.
func New(db *gorm.DB, auth *service.AuthService, engagement *service.EngagementService, opts Options) *Seeder {
	if opts.MaxEngagements <= 0 {
		opts.MaxEngagements = 5
	}
	if opts.ReplyRatio < 0 || opts.ReplyRatio >= 1 {
		opts.ReplyRatio = 0.3
	}
	return &Seeder{
		db:         db,
		auth:       auth,
		engagement: engagement,
		faker:      gofakeit.New(opts.RandSeed),
		opts:       opts,
	}
}

// Run seeds the database and reports what it created.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	middleware.Logger.InfoContext(ctx, "starting database seeding",
		slog.Int("users", s.opts.NumUsers),
		slog.Int("posts", s.opts.NumPosts))

	if s.opts.ShouldClean {
		if err := clearData(ctx, s.db); err != nil {
			return nil, fmt.Errorf("clear existing data: %w", err)
		}
	}

	report := &Report{}

	users, err := s.createUsers(ctx, s.opts.NumUsers)
	if err != nil {
		return report, fmt.Errorf("failed to create users: %w", err)
	}
	report.Users = len(users)
	if len(users) == 0 {
		return report, nil
	}

	posts, err := s.createPosts(ctx, users, report)
	if err != nil {
		return report, fmt.Errorf("failed to create posts: %w", err)
	}

	if err := s.engage(ctx, users, posts, report); err != nil {
		return report, fmt.Errorf("failed to create engagement: %w", err)
	}

	middleware.Logger.InfoContext(ctx, "database seeding completed",
		slog.Int("users", report.Users),
		slog.Int("posts", report.Posts),
		slog.Int("replies", report.Replies),
		slog.Int("likes", report.Likes),
		slog.Int("retweets", report.Retweets),
		slog.Int("bookmarks", report.Bookmarks))
	return report, nil
}

// clearData empties every chirp table, children first.
func clearData(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.InfoContext(ctx, "clearing existing data")
	tables := []string{"likes", "retweets", "bookmarks", "refresh_tokens", "posts", "users"}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Seeder) createUsers(ctx context.Context, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		first, last := s.faker.FirstName(), s.faker.LastName()
		username := generateUsername(first, i)

		user, err := s.auth.Signup(ctx, service.SignupInput{
			FirstName: first,
			LastName:  last,
			Username:  username,
			Email:     username + "@example.com",
			Password:  DefaultPassword,
		})
		if err != nil {
			if models.IsCode(err, models.CodeDuplicateIdentity) {
				middleware.Logger.WarnContext(ctx, "skipping existing seed user", slog.String("username", username))
				continue
			}
			return users, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) createPosts(ctx context.Context, users []*models.User, report *Report) ([]uint, error) {
	ids := make([]uint, 0, s.opts.NumPosts)
	for i := 0; i < s.opts.NumPosts; i++ {
		author := users[s.faker.Number(0, len(users)-1)]
		in := service.CreatePostInput{Text: s.text()}

		reply := len(ids) > 0 && s.faker.Float64Range(0, 1) < s.opts.ReplyRatio
		if reply {
			parent := ids[s.faker.Number(0, len(ids)-1)]
			in.ParentID = &parent
		}

		post, err := s.engagement.CreatePost(ctx, author, in)
		if err != nil {
			return ids, err
		}
		ids = append(ids, post.ID)
		report.Posts++
		if reply {
			report.Replies++
		}
	}
	return ids, nil
}

func (s *Seeder) engage(ctx context.Context, users []*models.User, posts []uint, report *Report) error {
	for _, postID := range posts {
		for _, kind := range models.EngagementKinds {
			n := s.faker.Number(0, min(s.opts.MaxEngagements, len(users)))
			// Distinct users so no toggle undoes an earlier one.
			for _, idx := range s.faker.Rand.Perm(len(users))[:n] {
				if err := s.toggle(ctx, kind, users[idx], postID); err != nil {
					return err
				}
				switch kind {
				case models.EngagementLike:
					report.Likes++
				case models.EngagementRetweet:
					report.Retweets++
				case models.EngagementBookmark:
					report.Bookmarks++
				}
			}
		}
	}
	return nil
}

func (s *Seeder) toggle(ctx context.Context, kind models.EngagementKind, user *models.User, postID uint) error {
	var err error
	switch kind {
	case models.EngagementLike:
		_, err = s.engagement.ToggleLike(ctx, user, postID)
	case models.EngagementRetweet:
		_, err = s.engagement.ToggleRetweet(ctx, user, postID)
	case models.EngagementBookmark:
		_, err = s.engagement.ToggleBookmark(ctx, user, postID)
	}
	return err
}

func (s *Seeder) text() string {
	text := s.faker.Sentence(s.faker.Number(4, 20))
	if utf8.RuneCountInString(text) > maxSeedText {
		text = string([]rune(text)[:maxSeedText])
	}
	return text
}

// generateUsername derives a username that satisfies the account rules:
// lowercase letters and digits, never starting or ending with a separator.
func generateUsername(first string, i int) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(first) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	base := sb.String()
	if base == "" {
		base = "user"
	}
	if len(base) > 20 {
		base = base[:20]
	}
	return fmt.Sprintf("%s_%d", base, i+1)
}
