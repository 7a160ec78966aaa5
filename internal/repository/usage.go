package repository

import (
	"context"
	"encoding/json"
	"errors"

	"nexusai/internal/kvstore"
	"nexusai/internal/logger"
	"nexusai/internal/models"

	"go.uber.org/zap"
)

// UsageRepository — счётчики остатка по ключам nexusAi_<feature>_usage_<userId>.
type UsageRepository struct {
	store kvstore.Store
}

func NewUsageRepository(store kvstore.Store) *UsageRepository {
	return &UsageRepository{store: store}
}

func decodeCounter(raw []byte) (*models.UsageCounter, error) {
	var c models.UsageCounter
	if err := json.Unmarshal(raw, &c); err != nil {
		logger.Log.Error("Повреждён счётчик квоты (repo)", zap.Error(err))
		return nil, ErrCorruptRecord
	}
	return &c, nil
}

// InitCounter создаёт счётчик с потолком, если его ещё нет.
// Существующий счётчик не перезаписывается.
func (r *UsageRepository) InitCounter(ctx context.Context, userID string, feature models.Feature, ceiling int) error {
	key := kvstore.UsageKey(string(feature), userID)
	err := r.store.Update(ctx, key, func(old []byte) ([]byte, error) {
		if old != nil {
			return nil, kvstore.ErrNoChange
		}
		return json.Marshal(models.UsageCounter{Remaining: ceiling})
	})
	if errors.Is(err, kvstore.ErrNoChange) {
		return nil
	}
	if err != nil {
		logger.Log.Error("Ошибка инициализации счётчика (repo)",
			zap.String("user_id", userID), zap.String("feature", string(feature)), zap.Error(err))
	}
	return err
}

// GetRemaining читает остаток; отсутствующий счётчик считается равным
// потолку, но не создаётся.
func (r *UsageRepository) GetRemaining(ctx context.Context, userID string, feature models.Feature, ceiling int) (int, error) {
	raw, err := r.store.Get(ctx, kvstore.UsageKey(string(feature), userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return ceiling, nil
	}
	if err != nil {
		return 0, err
	}
	c, err := decodeCounter(raw)
	if err != nil {
		return 0, err
	}
	return c.Remaining, nil
}

// Decrement атомарно списывает одну единицу. При нулевом остатке возвращает
// false и не пишет ничего.
func (r *UsageRepository) Decrement(ctx context.Context, userID string, feature models.Feature, ceiling int) (bool, error) {
	key := kvstore.UsageKey(string(feature), userID)
	err := r.store.Update(ctx, key, func(old []byte) ([]byte, error) {
		remaining := ceiling
		if old != nil {
			c, err := decodeCounter(old)
			if err != nil {
				return nil, err
			}
			remaining = c.Remaining
		}
		if remaining <= 0 {
			return nil, kvstore.ErrNoChange
		}
		return json.Marshal(models.UsageCounter{Remaining: remaining - 1})
	})
	if errors.Is(err, kvstore.ErrNoChange) {
		logger.Log.Debug("Квота исчерпана, декремент отклонён (repo)",
			zap.String("user_id", userID), zap.String("feature", string(feature)))
		return false, nil
	}
	if err != nil {
		logger.Log.Error("Ошибка декремента квоты (repo)",
			zap.String("user_id", userID), zap.String("feature", string(feature)), zap.Error(err))
		return false, err
	}
	return true, nil
}

// DeleteCounters удаляет все счётчики пользователя (при удалении аккаунта).
func (r *UsageRepository) DeleteCounters(ctx context.Context, userID string) error {
	for _, f := range models.Features {
		if err := r.store.Delete(ctx, kvstore.UsageKey(string(f), userID)); err != nil {
			return err
		}
	}
	return nil
}
