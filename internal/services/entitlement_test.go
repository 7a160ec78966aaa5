package services

import (
	"context"
	"errors"
	"testing"

	"nexusai/internal/kvstore"
	"nexusai/internal/models"
	"nexusai/internal/repository"
)

func newTestEntitlement() (*EntitlementService, *AuthService, *UsageService) {
	store := kvstore.NewMemoryStore()
	userRepo := repository.NewUserRepository(store)
	usage := NewUsageService(repository.NewUsageRepository(store), testQuotaConfig())
	auth := NewAuthService(userRepo, repository.NewTokenRepository(store), usage,
		repository.NewVoiceHistoryRepository(store))
	return NewEntitlementService(userRepo, usage), auth, usage
}

func TestEntitlement_NoSession(t *testing.T) {
	gate, _, _ := newTestEntitlement()

	decision, _, err := gate.Check(context.Background(), "", models.FeatureChat)
	if err != nil {
		t.Fatalf("ошибка гейта: %v", err)
	}
	if decision != DecisionBlockedNoAuth {
		t.Fatalf("без сессии доступ закрыт: %v", decision)
	}
}

func TestEntitlement_UnknownUser(t *testing.T) {
	gate, _, _ := newTestEntitlement()

	decision, _, _ := gate.Check(context.Background(), "ghost", models.FeatureChat)
	if decision != DecisionBlockedNoAuth {
		t.Fatalf("несуществующий пользователь не проходит гейт: %v", decision)
	}
}

func TestEntitlement_FreeUserWithQuota(t *testing.T) {
	gate, auth, _ := newTestEntitlement()
	user := registerTestUser(t, auth, "testuser", "test@example.com")

	decision, remaining, err := gate.Check(context.Background(), user.ID, models.FeatureChat)
	if err != nil {
		t.Fatalf("ошибка гейта: %v", err)
	}
	if decision != DecisionAllowed || remaining != 5 {
		t.Fatalf("свободная квота должна пускать: decision=%v remaining=%d", decision, remaining)
	}
}

func TestEntitlement_QuotaExhausted(t *testing.T) {
	gate, auth, usage := newTestEntitlement()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = usage.Decrement(ctx, user.ID, models.FeatureChat)
	}

	decision, _, _ := gate.Check(ctx, user.ID, models.FeatureChat)
	if decision != DecisionBlockedNoQuota {
		t.Fatalf("исчерпанная квота должна блокировать: %v", decision)
	}

	// другая фича со своей квотой всё ещё доступна
	decision, _, _ = gate.Check(ctx, user.ID, models.FeatureImage)
	if decision != DecisionAllowed {
		t.Fatal("квоты фич независимы")
	}
}

func TestEntitlement_VipBypassesQuota(t *testing.T) {
	gate, auth, usage := newTestEntitlement()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = usage.Decrement(ctx, user.ID, models.FeatureChat)
	}
	if err := auth.GrantMembership(ctx, user.ID, models.MembershipLifetime); err != nil {
		t.Fatalf("ошибка выдачи членства: %v", err)
	}

	decision, _, _ := gate.Check(ctx, user.ID, models.FeatureChat)
	if decision != DecisionAllowed {
		t.Fatalf("VIP проходит гейт при нулевой квоте: %v", decision)
	}

	// и списание для VIP — no-op
	if err := gate.Consume(ctx, user.ID, models.FeatureChat); err != nil {
		t.Fatalf("списание для VIP не должно падать: %v", err)
	}
	rem, _ := usage.GetRemaining(ctx, user.ID, models.FeatureChat)
	if rem != 0 {
		t.Fatalf("VIP не тратит квоту: %d", rem)
	}
}

func TestEntitlement_ConsumeAfterSuccess(t *testing.T) {
	gate, auth, usage := newTestEntitlement()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	if err := gate.Consume(ctx, user.ID, models.FeatureImage); err != nil {
		t.Fatalf("ошибка списания: %v", err)
	}
	rem, _ := usage.GetRemaining(ctx, user.ID, models.FeatureImage)
	if rem != 9 {
		t.Fatalf("списание должно уменьшить остаток: %d", rem)
	}
}

func TestEntitlement_ConsumeAtZero(t *testing.T) {
	gate, auth, usage := newTestEntitlement()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = usage.Decrement(ctx, user.ID, models.FeatureChat)
	}

	err := gate.Consume(ctx, user.ID, models.FeatureChat)
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("списание при нуле возвращает ErrQuotaExhausted: %v", err)
	}
	rem, _ := usage.GetRemaining(ctx, user.ID, models.FeatureChat)
	if rem != 0 {
		t.Fatalf("остаток не уходит в минус: %d", rem)
	}
}
