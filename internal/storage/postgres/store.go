package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeturtle/turtle-web/internal/models"
	"github.com/codeturtle/turtle-web/internal/storage"
)

// Ensure Store satisfies the storage.VisitorStore interface at compile time.
var _ storage.VisitorStore = (*Store)(nil)

// Store provides Postgres-backed persistence for visitor records.
type Store struct {
	pool *pgxpool.Pool
}

// NewVisitorStore creates a new Store and runs migrations.
func NewVisitorStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS web_visitors (
			id TEXT PRIMARY KEY,
			user_json JSONB,
			cookies JSONB NOT NULL DEFAULT '[]',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS web_visitors_updated_at_idx ON web_visitors (updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// SaveVisitor upserts the record.
func (s *Store) SaveVisitor(ctx context.Context, rec storage.VisitorRecord) error {
	var userJSON []byte
	if rec.User != nil {
		b, err := json.Marshal(rec.User)
		if err != nil {
			return fmt.Errorf("encode visitor user: %w", err)
		}
		userJSON = b
	}
	cookies := rec.Cookies
	if cookies == nil {
		cookies = []storage.Cookie{}
	}
	cookieJSON, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("encode visitor cookies: %w", err)
	}

	const query = `
		INSERT INTO web_visitors (id, user_json, cookies, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET user_json = EXCLUDED.user_json, cookies = EXCLUDED.cookies, updated_at = NOW();
	`
	if _, err := s.pool.Exec(ctx, query, rec.ID, userJSON, cookieJSON); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("save visitor %s: %s (%s)", rec.ID, pgErr.Message, pgErr.Code)
		}
		return fmt.Errorf("save visitor %s: %w", rec.ID, err)
	}
	return nil
}

// FindVisitor fetches a record by id.
func (s *Store) FindVisitor(ctx context.Context, id string) (storage.VisitorRecord, error) {
	const query = `SELECT id, user_json, cookies, updated_at FROM web_visitors WHERE id = $1;`
	return scanVisitor(s.pool.QueryRow(ctx, query, id))
}

// DeleteVisitor removes a record; deleting a missing id is not an error.
func (s *Store) DeleteVisitor(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM web_visitors WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("delete visitor %s: %w", id, err)
	}
	return nil
}

// PurgeVisitors removes records not updated since before.
func (s *Store) PurgeVisitors(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM web_visitors WHERE updated_at < $1;`, before)
	if err != nil {
		return 0, fmt.Errorf("purge visitors: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanVisitor(row pgx.Row) (storage.VisitorRecord, error) {
	var (
		rec        storage.VisitorRecord
		userJSON   []byte
		cookieJSON []byte
	)
	if err := row.Scan(&rec.ID, &userJSON, &cookieJSON, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.VisitorRecord{}, storage.ErrNotFound
		}
		return storage.VisitorRecord{}, err
	}
	if len(userJSON) > 0 {
		var u models.User
		if err := json.Unmarshal(userJSON, &u); err != nil {
			return storage.VisitorRecord{}, fmt.Errorf("decode visitor user: %w", err)
		}
		rec.User = &u
	}
	if err := json.Unmarshal(cookieJSON, &rec.Cookies); err != nil {
		return storage.VisitorRecord{}, fmt.Errorf("decode visitor cookies: %w", err)
	}
	return rec, nil
}
