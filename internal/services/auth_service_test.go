package services

import (
	"context"
	"testing"
	"time"

	"nexusai/internal/kvstore"
	"nexusai/internal/models"
	"nexusai/internal/repository"
)

func newTestAuthService() (*AuthService, *UsageService) {
	store := kvstore.NewMemoryStore()
	usage := NewUsageService(repository.NewUsageRepository(store), testQuotaConfig())
	auth := NewAuthService(
		repository.NewUserRepository(store),
		repository.NewTokenRepository(store),
		usage,
		repository.NewVoiceHistoryRepository(store),
	)
	return auth, usage
}

func registerTestUser(t *testing.T, auth *AuthService, name, email string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email}
	if err := auth.RegisterUser(context.Background(), user, "secret123"); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	return user
}

func TestRegisterUser(t *testing.T) {
	auth, usage := newTestAuthService()
	ctx := context.Background()

	user := registerTestUser(t, auth, "testuser", "test@example.com")

	if user.ID == "" || user.PasswordHash == "" || user.PasswordHash == "secret123" {
		t.Fatal("пароль не захеширован или ID не выдан")
	}
	if user.MembershipType != models.MembershipFree || user.IsVip {
		t.Fatal("новый пользователь должен быть на бесплатном тарифе")
	}

	// квоты создаются при регистрации
	rem, err := usage.GetRemaining(ctx, user.ID, models.FeatureChat)
	if err != nil || rem != 5 {
		t.Fatalf("квоты не инициализированы: rem=%d err=%v", rem, err)
	}
}

func TestRegisterUser_ShortPassword(t *testing.T) {
	auth, _ := newTestAuthService()

	err := auth.RegisterUser(context.Background(),
		&models.User{Name: "u", Email: "u@example.com"}, "123")
	if err == nil {
		t.Fatal("короткий пароль должен отклоняться")
	}
}

func TestRegisterUser_DuplicateEmail(t *testing.T) {
	auth, _ := newTestAuthService()
	registerTestUser(t, auth, "first", "dup@example.com")

	err := auth.RegisterUser(context.Background(),
		&models.User{Name: "second", Email: "dup@example.com"}, "secret123")
	if err == nil {
		t.Fatal("повторный email должен отклоняться")
	}
}

func TestLoginUser_ByEmailAndByName(t *testing.T) {
	auth, _ := newTestAuthService()
	registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	// по email
	access, refresh, user, err := auth.LoginUser(ctx, "test@example.com", "secret123", "jwtsecret", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("ошибка логина по email: %v", err)
	}
	if access == "" || refresh == "" || user == nil {
		t.Fatal("токены не сгенерированы")
	}

	// по имени
	if _, _, _, err := auth.LoginUser(ctx, "testuser", "secret123", "jwtsecret", 15*time.Minute, 24*time.Hour); err != nil {
		t.Fatalf("ошибка логина по имени: %v", err)
	}

	ok, err := auth.ValidateRefreshToken(ctx, user.ID, refresh)
	if err != nil || !ok {
		t.Fatal("refresh-токен должен быть валиден после логина")
	}
}

func TestLoginUser_WrongPassword(t *testing.T) {
	auth, _ := newTestAuthService()
	registerTestUser(t, auth, "testuser", "test@example.com")

	_, _, _, err := auth.LoginUser(context.Background(), "testuser", "wrong", "jwtsecret", time.Minute, time.Hour)
	if err == nil {
		t.Fatal("неверный пароль должен отклоняться")
	}
}

func TestLogout_InvalidatesRefreshToken(t *testing.T) {
	auth, _ := newTestAuthService()
	registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	_, refresh, user, err := auth.LoginUser(ctx, "testuser", "secret123", "jwtsecret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("ошибка логина: %v", err)
	}

	if err := auth.Logout(ctx, user.ID, refresh); err != nil {
		t.Fatalf("ошибка выхода: %v", err)
	}

	ok, _ := auth.ValidateRefreshToken(ctx, user.ID, refresh)
	if ok {
		t.Fatal("refresh-токен после выхода должен быть недействителен")
	}
}

func TestGrantMembership_AnnualSetsExpiry(t *testing.T) {
	auth, _ := newTestAuthService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	if err := auth.GrantMembership(ctx, user.ID, models.MembershipAnnual); err != nil {
		t.Fatalf("ошибка выдачи членства: %v", err)
	}

	got, _ := auth.GetUserByID(ctx, user.ID)
	if !got.IsVip || got.MembershipType != models.MembershipAnnual {
		t.Fatal("годовое членство не выдано")
	}
	if got.MembershipExpiry == nil || !got.MembershipExpiry.After(time.Now()) {
		t.Fatal("у годового членства должен быть срок в будущем")
	}
}

func TestGrantMembership_LifetimeNoExpiry(t *testing.T) {
	auth, _ := newTestAuthService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	if err := auth.GrantMembership(ctx, user.ID, models.MembershipLifetime); err != nil {
		t.Fatalf("ошибка выдачи членства: %v", err)
	}

	got, _ := auth.GetUserByID(ctx, user.ID)
	if !got.IsVip || got.MembershipExpiry != nil {
		t.Fatal("пожизненное членство бессрочно")
	}
}

func TestGrantMembership_UnknownPlan(t *testing.T) {
	auth, _ := newTestAuthService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")

	if err := auth.GrantMembership(context.Background(), user.ID, "platinum"); err != ErrInvalidPlan {
		t.Fatalf("ожидался ErrInvalidPlan, получено: %v", err)
	}
}

func TestDeleteUser_RemovesCountersAndTokens(t *testing.T) {
	auth, usage := newTestAuthService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	_, _ = usage.Decrement(ctx, user.ID, models.FeatureChat)

	if err := auth.DeleteUserByID(ctx, user.ID); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, err := auth.GetUserByID(ctx, user.ID); err == nil {
		t.Fatal("пользователь должен быть удалён")
	}

	// счётчики удалены: остаток снова равен потолку
	rem, _ := usage.GetRemaining(ctx, user.ID, models.FeatureChat)
	if rem != 5 {
		t.Fatalf("счётчики должны быть удалены вместе с пользователем: %d", rem)
	}
}
