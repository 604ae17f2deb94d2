package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"planner/internal/config"
	"planner/internal/db"
	"planner/internal/engine"
	"planner/internal/migrate"
)

// Options select the workspace and the overrides applied on top of
// planner.yml.
type Options struct {
	Workspace string
	Timezone  string
	JWTSecret string
	Log       *zap.Logger
}

// Workspace is an opened planner workspace: migrated database, resolved
// config and an engine bound to both.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

// ResolveConfig loads planner.yml (defaults when absent) and applies the
// flag and environment overrides.
func ResolveConfig(opts Options) (*config.Config, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if tz := strings.TrimSpace(opts.Timezone); tz != "" {
		if err := cfg.Set("time.timezone", tz); err != nil {
			return nil, err
		}
	}
	if secret := strings.TrimSpace(opts.JWTSecret); secret != "" {
		cfg.Server.JWTSecret = secret
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Open resolves config, opens the database and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	cfg, err := ResolveConfig(opts)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", db.Path(opts.Workspace), err)
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("workspace opened", zap.String("db", db.Path(opts.Workspace)), zap.String("timezone", cfg.Time.Timezone))
	return &Workspace{
		Dir:    opts.Workspace,
		DB:     conn,
		Config: cfg,
		Engine: engine.New(conn, cfg, log),
	}, nil
}

// Init creates the workspace directory, database and a default planner.yml
// when none exists. It reports whether the config file was written.
func Init(ctx context.Context, opts Options) (*Workspace, bool, error) {
	wrote := false
	if _, err := os.Stat(config.Path(opts.Workspace)); errors.Is(err, fs.ErrNotExist) {
		if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
			return nil, false, err
		}
		if err := config.Save(opts.Workspace, config.Default()); err != nil {
			return nil, false, fmt.Errorf("write config: %w", err)
		}
		wrote = true
	}
	ws, err := Open(ctx, opts)
	if err != nil {
		return nil, false, err
	}
	return ws, wrote, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}
