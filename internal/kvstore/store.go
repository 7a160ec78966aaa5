package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound — ключ отсутствует в хранилище.
	ErrNotFound = errors.New("kvstore: ключ не найден")
	// ErrNoChange — fn отказалась менять значение; Update завершается без записи.
	ErrNoChange = errors.New("kvstore: значение не изменено")
)

// Store — строковое key/value-хранилище JSON-блобов.
// Update выполняет атомарный read-modify-write: fn получает текущее значение
// (nil, если ключа нет) и возвращает новое. Ошибка из fn отменяет запись.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
}
