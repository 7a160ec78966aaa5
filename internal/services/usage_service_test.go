package services

import (
	"context"
	"testing"

	"nexusai/internal/config"
	"nexusai/internal/kvstore"
	"nexusai/internal/models"
	"nexusai/internal/repository"
)

func testQuotaConfig() *config.Config {
	return &config.Config{
		QuotaChat:   5,
		QuotaImage:  10,
		QuotaVoice:  10,
		QuotaPooled: 10,
	}
}

func newTestUsageService() *UsageService {
	repo := repository.NewUsageRepository(kvstore.NewMemoryStore())
	return NewUsageService(repo, testQuotaConfig())
}

func TestUsage_InitializeIdempotent(t *testing.T) {
	svc := newTestUsageService()
	ctx := context.Background()

	if err := svc.Initialize(ctx, "u1"); err != nil {
		t.Fatalf("ошибка инициализации: %v", err)
	}

	// тратим одну единицу и инициализируем повторно
	if ok, _ := svc.Decrement(ctx, "u1", models.FeatureChat); !ok {
		t.Fatal("декремент при полной квоте должен пройти")
	}
	if err := svc.Initialize(ctx, "u1"); err != nil {
		t.Fatalf("повторная инициализация: %v", err)
	}

	rem, err := svc.GetRemaining(ctx, "u1", models.FeatureChat)
	if err != nil {
		t.Fatalf("ошибка чтения остатка: %v", err)
	}
	if rem != 4 {
		t.Fatalf("повторная инициализация не должна пополнять квоту: %d", rem)
	}
}

func TestUsage_RemainingDefaultsToCeiling(t *testing.T) {
	svc := newTestUsageService()

	rem, err := svc.GetRemaining(context.Background(), "ghost", models.FeatureImage)
	if err != nil {
		t.Fatalf("ошибка чтения остатка: %v", err)
	}
	if rem != 10 {
		t.Fatalf("отсутствующий счётчик равен потолку: %d", rem)
	}
}

func TestUsage_DecrementStopsAtZero(t *testing.T) {
	svc := newTestUsageService()
	ctx := context.Background()
	_ = svc.Initialize(ctx, "u1")

	for i := 0; i < 5; i++ {
		ok, err := svc.Decrement(ctx, "u1", models.FeatureChat)
		if err != nil || !ok {
			t.Fatalf("декремент %d должен пройти: ok=%v err=%v", i+1, ok, err)
		}
	}

	ok, err := svc.Decrement(ctx, "u1", models.FeatureChat)
	if err != nil {
		t.Fatalf("декремент при нуле не ошибка: %v", err)
	}
	if ok {
		t.Fatal("квота исчерпана, декремент должен вернуть false")
	}

	rem, _ := svc.GetRemaining(ctx, "u1", models.FeatureChat)
	if rem != 0 {
		t.Fatalf("остаток не должен уходить ниже нуля: %d", rem)
	}
}

func TestUsage_GetTotalUsedCappedByPooled(t *testing.T) {
	svc := newTestUsageService()
	ctx := context.Background()
	_ = svc.Initialize(ctx, "u1")

	// 5 чатов + 10 картинок = 15 израсходовано, но общий бюджет 10
	for i := 0; i < 5; i++ {
		_, _ = svc.Decrement(ctx, "u1", models.FeatureChat)
	}
	for i := 0; i < 10; i++ {
		_, _ = svc.Decrement(ctx, "u1", models.FeatureImage)
	}

	total, err := svc.GetTotalUsed(ctx, "u1")
	if err != nil {
		t.Fatalf("ошибка подсчёта: %v", err)
	}
	if total != 10 {
		t.Fatalf("суммарный расход ограничен общим бюджетом: %d", total)
	}
}

func TestUsage_GetAllRemaining(t *testing.T) {
	svc := newTestUsageService()
	ctx := context.Background()
	_ = svc.Initialize(ctx, "u1")
	_, _ = svc.Decrement(ctx, "u1", models.FeatureVoice)

	all, err := svc.GetAllRemaining(ctx, "u1")
	if err != nil {
		t.Fatalf("ошибка чтения остатков: %v", err)
	}
	if all["chat"] != 5 || all["image"] != 10 || all["voice"] != 9 {
		t.Fatalf("неожиданные остатки: %v", all)
	}
}
