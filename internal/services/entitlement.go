package services

import (
	"context"
	"errors"
	"time"

	"nexusai/internal/logger"
	"nexusai/internal/models"

	"go.uber.org/zap"
)

// Decision — результат проверки доступа к фиче.
type Decision int

const (
	DecisionAllowed Decision = iota
	DecisionBlockedNoAuth
	DecisionBlockedNoQuota
)

var ErrQuotaExhausted = errors.New("квота исчерпана")

type userGetter interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// EntitlementService решает, можно ли пользователю вызвать фичу:
// нет сессии → блок; VIP → всегда можно; иначе — по остатку квоты.
// Переходы между состояниями происходят только от внешних событий
// (логин, одобрение оплаты, списание) — никаких таймеров.
type EntitlementService struct {
	users userGetter
	usage *UsageService
}

func NewEntitlementService(users userGetter, usage *UsageService) *EntitlementService {
	return &EntitlementService{users: users, usage: usage}
}

func membershipActive(u *models.User) bool {
	if !u.IsVip {
		return false
	}
	if u.MembershipExpiry != nil && u.MembershipExpiry.Before(time.Now().UTC()) {
		return false
	}
	return true
}

// Check возвращает решение и текущий остаток по фиче.
func (s *EntitlementService) Check(ctx context.Context, userID string, feature models.Feature) (Decision, int, error) {
	if userID == "" {
		return DecisionBlockedNoAuth, 0, nil
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		logger.Log.Warn("Гейт: пользователь не найден", zap.String("user_id", userID), zap.Error(err))
		return DecisionBlockedNoAuth, 0, nil
	}

	if membershipActive(user) {
		return DecisionAllowed, 0, nil
	}

	remaining, err := s.usage.GetRemaining(ctx, userID, feature)
	if err != nil {
		return DecisionBlockedNoQuota, 0, err
	}
	if remaining <= 0 {
		return DecisionBlockedNoQuota, 0, nil
	}
	return DecisionAllowed, remaining, nil
}

// Consume списывает квоту ПОСЛЕ подтверждённого успеха генерации —
// неудавшийся внешний вызов квоту не трогает. VIP не списывается.
func (s *EntitlementService) Consume(ctx context.Context, userID string, feature models.Feature) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if membershipActive(user) {
		return nil
	}

	ok, err := s.usage.Decrement(ctx, userID, feature)
	if err != nil {
		return err
	}
	if !ok {
		// Гонка двух параллельных запросов: генерация уже состоялась,
		// а остаток выбрали. Фиксируем, но результат не отзываем.
		logger.Log.Warn("Списание после успеха не удалось: остаток нулевой",
			zap.String("user_id", userID), zap.String("feature", string(feature)))
		return ErrQuotaExhausted
	}
	return nil
}
