package repository

import (
	"context"
	"encoding/json"
	"errors"

	"nexusai/internal/kvstore"
	"nexusai/internal/logger"

	"go.uber.org/zap"
)

// TokenRepository — refresh-токены пользователей (nexusAi_refresh_tokens).
type TokenRepository struct {
	store kvstore.Store
}

func NewTokenRepository(store kvstore.Store) *TokenRepository {
	return &TokenRepository{store: store}
}

func decodeTokens(raw []byte) (map[string][]string, error) {
	tokens := map[string][]string{}
	if len(raw) == 0 {
		return tokens, nil
	}
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, ErrCorruptRecord
	}
	return tokens, nil
}

func (r *TokenRepository) SaveRefreshToken(ctx context.Context, userID string, token string) error {
	logger.Log.Debug("Сохранение refresh токена (repo)", zap.String("user_id", userID))
	err := r.store.Update(ctx, kvstore.KeyRefreshTokens, func(old []byte) ([]byte, error) {
		tokens, err := decodeTokens(old)
		if err != nil {
			return nil, err
		}
		tokens[userID] = append(tokens[userID], token)
		return json.Marshal(tokens)
	})
	if err != nil {
		logger.Log.Error("Ошибка сохранения refresh токена (repo)", zap.Error(err))
	}
	return err
}

func (r *TokenRepository) IsRefreshTokenValid(ctx context.Context, userID string, token string) (bool, error) {
	logger.Log.Debug("Проверка refresh токена (repo)", zap.String("user_id", userID))
	raw, err := r.store.Get(ctx, kvstore.KeyRefreshTokens)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	tokens, err := decodeTokens(raw)
	if err != nil {
		return false, err
	}
	for _, t := range tokens[userID] {
		if t == token {
			return true, nil
		}
	}
	return false, nil
}

func (r *TokenRepository) DeleteRefreshToken(ctx context.Context, userID string, token string) error {
	logger.Log.Debug("Удаление refresh токена (repo)", zap.String("user_id", userID))
	return r.store.Update(ctx, kvstore.KeyRefreshTokens, func(old []byte) ([]byte, error) {
		tokens, err := decodeTokens(old)
		if err != nil {
			return nil, err
		}
		list := tokens[userID]
		out := list[:0]
		for _, t := range list {
			if t != token {
				out = append(out, t)
			}
		}
		tokens[userID] = out
		return json.Marshal(tokens)
	})
}

// DeleteAllForUser снимает все сессии пользователя (при удалении аккаунта).
func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	return r.store.Update(ctx, kvstore.KeyRefreshTokens, func(old []byte) ([]byte, error) {
		tokens, err := decodeTokens(old)
		if err != nil {
			return nil, err
		}
		delete(tokens, userID)
		return json.Marshal(tokens)
	})
}
