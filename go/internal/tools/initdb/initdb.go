package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointdeck/pointdeck/go/internal/dbconfig"
)

// Estimations are keyed by (session, item, user); the unique constraint is
// what makes repeated vote submissions an upsert instead of duplicates.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		estimation_type TEXT NOT NULL DEFAULT 'fibonacci',
		time_limit_sec INT NOT NULL DEFAULT 60,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS backlog_items (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS session_backlog_items (
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		backlog_item_id UUID NOT NULL REFERENCES backlog_items(id) ON DELETE CASCADE,
		position INT NOT NULL,
		estimation_type TEXT,
		time_limit_sec INT,
		PRIMARY KEY (session_id, backlog_item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS estimations (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		backlog_item_id UUID NOT NULL REFERENCES backlog_items(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		value TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (session_id, backlog_item_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_estimations_session_item
		ON estimations (session_id, backlog_item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_session_backlog_items_position
		ON session_backlog_items (session_id, position)`,
}

func main() {
	ctx := context.Background()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			fmt.Fprintf(os.Stderr, "exec: %v\n%s\n", err, stmt)
			os.Exit(1)
		}
	}
	fmt.Println("schema ready")
}
