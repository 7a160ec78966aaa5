package repository

import (
	"context"
	"encoding/json"
	"errors"

	"nexusai/internal/kvstore"
	"nexusai/internal/models"
)

// VoiceHistoryRepository — история озвучек (nexusAiVoiceHistory).
type VoiceHistoryRepository struct {
	store kvstore.Store
}

func NewVoiceHistoryRepository(store kvstore.Store) *VoiceHistoryRepository {
	return &VoiceHistoryRepository{store: store}
}

func (r *VoiceHistoryRepository) Append(ctx context.Context, entry *models.VoiceHistoryEntry) error {
	return r.store.Update(ctx, kvstore.KeyVoiceHistory, func(old []byte) ([]byte, error) {
		var entries []*models.VoiceHistoryEntry
		if len(old) > 0 {
			if err := json.Unmarshal(old, &entries); err != nil {
				return nil, ErrCorruptRecord
			}
		}
		entries = append(entries, entry)
		return json.Marshal(entries)
	})
}

// ListByUser возвращает последние limit записей пользователя (новые первыми).
func (r *VoiceHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.VoiceHistoryEntry, error) {
	raw, err := r.store.Get(ctx, kvstore.KeyVoiceHistory)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []*models.VoiceHistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []*models.VoiceHistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, ErrCorruptRecord
	}

	out := make([]*models.VoiceHistoryEntry, 0)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].UserID != userID {
			continue
		}
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DeleteByUser чистит историю пользователя (при удалении аккаунта).
func (r *VoiceHistoryRepository) DeleteByUser(ctx context.Context, userID string) error {
	return r.store.Update(ctx, kvstore.KeyVoiceHistory, func(old []byte) ([]byte, error) {
		var entries []*models.VoiceHistoryEntry
		if len(old) > 0 {
			if err := json.Unmarshal(old, &entries); err != nil {
				return nil, ErrCorruptRecord
			}
		}
		out := entries[:0]
		for _, e := range entries {
			if e.UserID != userID {
				out = append(out, e)
			}
		}
		return json.Marshal(out)
	})
}
