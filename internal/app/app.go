package app

import (
	"context"
	"time"

	"nexusai/internal/config"
	"nexusai/internal/db"
	"nexusai/internal/handlers"
	"nexusai/internal/kvstore"
	"nexusai/internal/repository"
	"nexusai/internal/routes"
	"nexusai/internal/services"

	"github.com/gorilla/mux"
)

func InitApp(cfg *config.Config) (*mux.Router, error) {
	conn, err := db.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}

	store, err := kvstore.NewPostgresStore(context.Background(), conn)
	if err != nil {
		return nil, err
	}

	// Репозитории
	userRepo := repository.NewUserRepository(store)
	usageRepo := repository.NewUsageRepository(store)
	orderRepo := repository.NewOrderRepository(store)
	tokenRepo := repository.NewTokenRepository(store)
	voiceHistoryRepo := repository.NewVoiceHistoryRepository(store)

	// Сервисы
	usageService := services.NewUsageService(usageRepo, cfg)
	authService := services.NewAuthService(userRepo, tokenRepo, usageService, voiceHistoryRepo)
	entitlementService := services.NewEntitlementService(userRepo, usageService)
	epayService := services.NewEpayService(
		cfg.EpayPID,
		cfg.EpaySecret,
		cfg.EpaySubmitURL,
		cfg.EpayNotifyURL,
		cfg.EpayReturnURL,
		cfg.SiteName,
	)
	notifier := services.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	paymentService := services.NewPaymentService(orderRepo, authService, epayService, notifier)
	generationService := services.NewGenerationService(cfg, voiceHistoryRepo)

	// Хендлеры
	authHandler := handlers.NewAuthHandler(authService, usageService)
	usageHandler := handlers.NewUsageHandler(usageService)
	generationHandler := handlers.NewGenerationHandler(generationService, entitlementService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, authService)
	webhookHandler := handlers.NewWebhookHandler(paymentService)
	adminHandler := handlers.NewAdminHandler(paymentService, authService, usageService)

	// Снимем членства, истёкшие пока сервис не работал
	_ = authService.ExpireMemberships(context.Background())
	StartMembershipCleaner(authService)

	// Маршруты
	router := mux.NewRouter()
	routes.InitRoutes(router, authHandler, usageHandler, generationHandler, paymentHandler, webhookHandler, adminHandler)

	return router, nil
}

// StartMembershipCleaner раз в час снимает истёкшие годовые членства.
func StartMembershipCleaner(auth *services.AuthService) {
	t := time.NewTicker(1 * time.Hour)
	go func() {
		for range t.C {
			_ = auth.ExpireMemberships(context.Background())
		}
	}()
}
