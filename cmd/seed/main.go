// Command main runs the database seeder for chirp.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"chirp/internal/bootstrap"
	"chirp/internal/config"
	"chirp/internal/middleware"
	"chirp/internal/repository"
	"chirp/internal/seed"
	"chirp/internal/service"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	replyRatio := flag.Float64("replies", 0.3, "Share of posts created as replies")
	maxEngagements := flag.Int("engagements", 5, "Max likes, retweets and bookmarks per post")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		middleware.Logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.ConfigureLogger(cfg.Env, os.Getenv("LOG_LEVEL"))

	if cfg.IsProduction() {
		middleware.Logger.Error("refusing to seed a production database")
		os.Exit(1)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		middleware.Logger.Error("failed to initialize runtime", slog.String("error", err.Error()))
		os.Exit(1)
	}

	users := repository.NewUserRepository(db)
	tokens := service.NewTokenService(service.TokenConfigFrom(cfg), repository.NewRefreshTokenRepository(db))
	auth := service.NewAuthService(users, tokens, service.NewBcryptHasher(0), service.ProfileDefaults{
		AvatarPath: cfg.DefaultAvatarPath,
		BannerPath: cfg.DefaultBannerPath,
	})
	engagement := service.NewEngagementService(users, repository.NewPostRepository(db), repository.NewEngagementRepository(db))

	report, err := seed.New(db, auth, engagement, seed.Options{
		NumUsers:       *numUsers,
		NumPosts:       *numPosts,
		ReplyRatio:     *replyRatio,
		MaxEngagements: *maxEngagements,
		ShouldClean:    *shouldClean,
		RandSeed:       *randSeed,
	}).Run(ctx)
	if err != nil {
		middleware.Logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	middleware.Logger.Info("seeding done",
		slog.Int("users", report.Users),
		slog.Int("posts", report.Posts),
		slog.String("password", seed.DefaultPassword))
}
