package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"carmarket/internal/auth"
	"carmarket/internal/config"
	appdb "carmarket/internal/db"
	"carmarket/internal/imaging"
	"carmarket/internal/media"
	"carmarket/internal/notify"
	"carmarket/internal/service"
	"carmarket/internal/store"
)

type App struct {
	Config   config.Config
	DB       *sql.DB
	Dialect  appdb.Dialect
	Store    *store.Store
	Notifier *notify.Dispatcher
	Service  *service.Service
}

func OpenDB(cfg config.Config) (*sql.DB, appdb.Dialect, error) {
	db, dialect, err := appdb.Open(appdb.Options{
		Driver:      cfg.DBDriver,
		Path:        cfg.DBPath,
		DSN:         cfg.DBDSN,
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, "", fmt.Errorf("open db: %w", err)
	}
	if err := appdb.ApplyMigrations(db, dialect); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("migrate: %w", err)
	}
	return db, dialect, nil
}

func New(cfg config.Config) (*App, error) {
	db, dialect, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	st := store.New(db, dialect)

	dispatcher, err := notify.New(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notify: %w", err)
	}
	files, err := media.NewFSStore(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("uploads: %w", err)
	}
	opts := imaging.DefaultOptions()
	opts.MaxBytes = cfg.MaxImageBytes

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL())
	svc := service.New(cfg, service.StoreRepos(st), tokens, dispatcher, imaging.New(opts), files)
	if err := svc.EnsureBootstrapAdmin(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	log.Printf("app ready driver=%s approval_required=%t sinks=%v", dialect, cfg.ListingApprovalRequired, cfg.NotifySinks)
	return &App{Config: cfg, DB: db, Dialect: dialect, Store: st, Notifier: dispatcher, Service: svc}, nil
}

func (a *App) Close(ctx context.Context) error {
	nerr := a.Notifier.Close(ctx)
	if err := a.DB.Close(); err != nil {
		return err
	}
	return nerr
}
