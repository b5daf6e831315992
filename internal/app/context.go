package app

import (
	"database/sql"
	"fmt"

	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/migrate"
)

// App bundles everything a command needs to operate on a workspace.
type App struct {
	DB     *sql.DB
	Engine engine.Engine
	Config *config.Config
}

// Open resolves the workspace: loads taskline.yml (falling back to built-in
// defaults when the file is absent), opens the database and applies pending
// migrations.
func Open(workspace string) (*App, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &App{
		DB:     conn,
		Engine: engine.New(conn, cfg),
		Config: cfg,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
