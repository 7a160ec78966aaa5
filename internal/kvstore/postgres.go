package kvstore

import (
	"context"
	"errors"

	"nexusai/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore — долговременный бэкенд: одна таблица kv_entries.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	_, err := db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Log.Error("Ошибка чтения ключа (kvstore)", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx, `
	INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		logger.Log.Error("Ошибка записи ключа (kvstore)", zap.String("key", key), zap.Error(err))
	}
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		logger.Log.Error("Ошибка удаления ключа (kvstore)", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Update держит блокировку строки на время fn — два параллельных декремента
// не смогут прочитать одно и то же старое значение. Для ещё не существующего
// ключа строка сперва материализуется пустой, иначе FOR UPDATE нечего
// блокировать и два конкурентных Update затирают друг друга.
func (s *PostgresStore) Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
	INSERT INTO kv_entries (key, value) VALUES ($1, ''::bytea)
	ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return err
	}

	var old []byte
	err = tx.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1 FOR UPDATE`, key).Scan(&old)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	// пустое значение — материализованная выше строка либо никогда не писавшийся ключ
	if len(old) == 0 {
		old = nil
	}

	updated, err := fn(old)
	if errors.Is(err, ErrNoChange) {
		return ErrNoChange
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, updated)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
