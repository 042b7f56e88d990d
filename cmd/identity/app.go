package main

import (
	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/identity/internal/accounts"
	"github.com/anonto42/nano-midea/identity/internal/credentials"
	"github.com/anonto42/nano-midea/identity/internal/feed"
	"github.com/anonto42/nano-midea/identity/internal/graph"
	"github.com/anonto42/nano-midea/identity/internal/logging"
	"github.com/anonto42/nano-midea/identity/internal/mailer"
	"github.com/anonto42/nano-midea/identity/internal/repositories"
	"github.com/anonto42/nano-midea/identity/internal/tokens"
	"github.com/anonto42/nano-midea/identity/pkg/config"
)

// app holds the services wired from configuration.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *config.DB
	repos    *repositories.Repositories
	accounts *accounts.Service
	graph    *graph.Service
	feed     *feed.Builder
}

func newApp(envFile string) (*app, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	db, err := config.InitDB(cfg, log)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.DatabaseDriver).Wrap(err)
	}

	repos := repositories.New(db.Gorm)
	hasher := credentials.NewHasher(cfg.BcryptCost)
	if err := hasher.Warm(); err != nil {
		db.CloseDB()
		return nil, oops.Code("CREDENTIALS_INIT_FAILED").With("cost", cfg.BcryptCost).Wrap(err)
	}
	tok, err := tokens.NewService(repos.Users, hasher, tokens.WithResetTTL(cfg.ResetTokenTTL))
	if err != nil {
		db.CloseDB()
		return nil, err
	}
	g := graph.NewService(repos.Users, repos.Follows, log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		repos:    repos,
		accounts: accounts.NewService(repos, hasher, tok, g, mailer.FromConfig(cfg, log), log),
		graph:    g,
		feed:     feed.NewBuilder(repos.Posts, cfg.FeedPageSize, log),
	}, nil
}

func (a *app) Close() {
	a.db.CloseDB()
	_ = a.log.Sync()
}
