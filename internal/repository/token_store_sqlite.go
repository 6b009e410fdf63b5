package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/service"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cached_tokens (
	tenant_key TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cached_tokens_expires_at ON cached_tokens (expires_at);
`

// sqliteTokenStore persists cached tokens in a local sqlite file. The expiry
// is stored in its own column so purging works without opening sealed
// payloads.
type sqliteTokenStore struct {
	db     *sql.DB
	cipher *tokenCipher
}

func newSQLiteTokenStore(path string, cipher *tokenCipher) (*sqliteTokenStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer avoids SQLITE_BUSY under concurrent persists.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &sqliteTokenStore{db: db, cipher: cipher}, nil
}

func (s *sqliteTokenStore) SaveToken(ctx context.Context, key string, token *service.CachedToken, ttl time.Duration) error {
	if token == nil {
		return fmt.Errorf("token is nil")
	}
	if ttl <= 0 {
		return s.DeleteToken(ctx, key)
	}
	payload, err := encodeStoredToken(s.cipher, token)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cached_tokens (tenant_key, payload, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(tenant_key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, payload, token.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *sqliteTokenStore) LoadToken(ctx context.Context, key string) (*service.CachedToken, error) {
	var payload []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM cached_tokens WHERE tenant_key = ?`, key).
		Scan(&payload, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	if expiresAt <= time.Now().Unix() {
		return nil, nil
	}
	return decodeStoredToken(s.cipher, payload)
}

func (s *sqliteTokenStore) DeleteToken(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cached_tokens WHERE tenant_key = ?`, key); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (s *sqliteTokenStore) PurgeExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cached_tokens WHERE rowid IN (
			SELECT rowid FROM cached_tokens WHERE expires_at <= ? LIMIT ?
		)`, time.Now().Unix(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *sqliteTokenStore) Close() error {
	return s.db.Close()
}
