package postgres

import (
	"context"
	"fmt"
)

// Schema returns the DDL for the prefixed tables. Statements are idempotent.
func (t *TableNames) Schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.Conversations),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_updated_idx ON %s (user_id, updated_at DESC)`,
			t.Conversations, t.Conversations),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			conversation_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content JSONB NOT NULL,
			feedback TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.Messages, t.Conversations),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_conversation_idx ON %s (conversation_id, created_at, seq)`,
			t.Messages, t.Messages),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT PRIMARY KEY,
			settings JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.UserSettings),
	}
}

// DropStatements returns statements removing the prefixed tables, dependents first.
func (t *TableNames) DropStatements() []string {
	return []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, t.Messages),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, t.Conversations),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, t.UserSettings),
	}
}

// ApplySchema runs the schema statements with the executor carried by ctx.
func ApplySchema(ctx context.Context, cfg *RepositoryConfig, drop bool) error {
	exec := GetExecutor(ctx, cfg.Pool)

	var statements []string
	if drop {
		statements = append(statements, cfg.Tables.DropStatements()...)
	}
	statements = append(statements, cfg.Tables.Schema()...)

	for _, stmt := range statements {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	cfg.Logger.Info("schema applied", "tables", []string{cfg.Tables.Conversations, cfg.Tables.Messages, cfg.Tables.UserSettings}, "dropped", drop)
	return nil
}
