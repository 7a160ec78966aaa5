package services

import (
	"context"

	"nexusai/internal/config"
	"nexusai/internal/logger"
	"nexusai/internal/models"

	"go.uber.org/zap"
)

// UsageRepo — счётчики остатка в хранилище.
type UsageRepo interface {
	InitCounter(ctx context.Context, userID string, feature models.Feature, ceiling int) error
	GetRemaining(ctx context.Context, userID string, feature models.Feature, ceiling int) (int, error)
	Decrement(ctx context.Context, userID string, feature models.Feature, ceiling int) (bool, error)
	DeleteCounters(ctx context.Context, userID string) error
}

// UsageService — учёт квот бесплатного тарифа: потолок на каждую фичу,
// декремент не ниже нуля, без автопополнения.
type UsageService struct {
	repo     UsageRepo
	ceilings map[models.Feature]int
	pooled   int
}

func NewUsageService(repo UsageRepo, cfg *config.Config) *UsageService {
	return &UsageService{
		repo: repo,
		ceilings: map[models.Feature]int{
			models.FeatureChat:  cfg.QuotaChat,
			models.FeatureImage: cfg.QuotaImage,
			models.FeatureVoice: cfg.QuotaVoice,
		},
		pooled: cfg.QuotaPooled,
	}
}

func (s *UsageService) Ceiling(feature models.Feature) int {
	return s.ceilings[feature]
}

// Initialize создаёт недостающие счётчики с потолком. Идемпотентна:
// существующие счётчики не трогает.
func (s *UsageService) Initialize(ctx context.Context, userID string) error {
	logger.Log.Info("Инициализация квот (service)", zap.String("user_id", userID))
	for _, f := range models.Features {
		if err := s.repo.InitCounter(ctx, userID, f, s.ceilings[f]); err != nil {
			return err
		}
	}
	return nil
}

func (s *UsageService) GetRemaining(ctx context.Context, userID string, feature models.Feature) (int, error) {
	return s.repo.GetRemaining(ctx, userID, feature, s.ceilings[feature])
}

// GetAllRemaining — остатки по всем фичам (для профиля и дашборда).
func (s *UsageService) GetAllRemaining(ctx context.Context, userID string) (map[string]int, error) {
	out := make(map[string]int, len(models.Features))
	for _, f := range models.Features {
		rem, err := s.repo.GetRemaining(ctx, userID, f, s.ceilings[f])
		if err != nil {
			return nil, err
		}
		out[string(f)] = rem
	}
	return out, nil
}

// GetTotalUsed — израсходовано суммарно по всем фичам, с потолком общего
// бюджета. Только для отчётности: гейт этим числом не пользуется.
func (s *UsageService) GetTotalUsed(ctx context.Context, userID string) (int, error) {
	total := 0
	for _, f := range models.Features {
		rem, err := s.repo.GetRemaining(ctx, userID, f, s.ceilings[f])
		if err != nil {
			return 0, err
		}
		total += s.ceilings[f] - rem
	}
	if total > s.pooled {
		total = s.pooled
	}
	return total, nil
}

// Decrement списывает одну единицу; при исчерпанной квоте возвращает false
// и ничего не пишет.
func (s *UsageService) Decrement(ctx context.Context, userID string, feature models.Feature) (bool, error) {
	ok, err := s.repo.Decrement(ctx, userID, feature, s.ceilings[feature])
	if err != nil {
		logger.Log.Error("Ошибка списания квоты (service)",
			zap.String("user_id", userID), zap.String("feature", string(feature)), zap.Error(err))
		return false, err
	}
	return ok, nil
}

func (s *UsageService) DeleteAll(ctx context.Context, userID string) error {
	return s.repo.DeleteCounters(ctx, userID)
}
