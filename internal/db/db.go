package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"messaging-service/internal/config"
)

// Connect opens the pool, applies pool limits and runs migrations.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnLifetime)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
        id INT PRIMARY KEY,
        display_name TEXT NOT NULL DEFAULT '',
        avatar_url TEXT NOT NULL DEFAULT '',
        role TEXT NOT NULL DEFAULT 'user',
        balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
        vip_xp BIGINT NOT NULL DEFAULT 0 CHECK (vip_xp >= 0),
        is_vip BOOLEAN NOT NULL DEFAULT FALSE,
        vip_expire_date TIMESTAMPTZ,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE TABLE IF NOT EXISTS transactions (
        id BIGSERIAL PRIMARY KEY,
        account_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
        amount BIGINT NOT NULL,
        reason TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, id DESC);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reversal ON transactions(reason) WHERE reason LIKE 'reversal:%';`,
	`CREATE TABLE IF NOT EXISTS chats (
        id SERIAL PRIMARY KEY,
        user_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
        operator_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
        last_message_preview TEXT NOT NULL DEFAULT '',
        last_message_at TIMESTAMPTZ,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        UNIQUE(user_id, operator_id)
    );`,
	`CREATE TABLE IF NOT EXISTS messages (
        id BIGSERIAL PRIMARY KEY,
        chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
        sender_id INT NOT NULL,
        kind TEXT NOT NULL,
        gift_tier INT,
        content TEXT NOT NULL,
        cost BIGINT NOT NULL DEFAULT 0,
        is_read BOOLEAN NOT NULL DEFAULT FALSE,
        dedup_key TEXT UNIQUE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id DESC);`,
	`CREATE TABLE IF NOT EXISTS boosts (
        id BIGSERIAL PRIMARY KEY,
        account_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
        start_time TIMESTAMPTZ NOT NULL,
        end_time TIMESTAMPTZ NOT NULL,
        CHECK (end_time > start_time)
    );`,
	`CREATE INDEX IF NOT EXISTS idx_boosts_account_end ON boosts(account_id, end_time);`,
	`CREATE TABLE IF NOT EXISTS favorites (
        user_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
        target_user_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY(user_id, target_user_id),
        CHECK (user_id <> target_user_id)
    );`,
	`CREATE TABLE IF NOT EXISTS profile_views (
        id BIGSERIAL PRIMARY KEY,
        viewer_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
        viewed_user_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS idx_profile_views_viewed ON profile_views(viewed_user_id, created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS activities (
        id BIGSERIAL PRIMARY KEY,
        account_id INT NOT NULL,
        action_type TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at DESC);`,
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("database migrations applied")
	return nil
}
