package routes

import (
	"net/http"

	"nexusai/internal/handlers"
	"nexusai/internal/middleware"

	"github.com/gorilla/mux"
)

func InitRoutes(
	router *mux.Router,
	authHandler *handlers.AuthHandler,
	usageHandler *handlers.UsageHandler,
	generationHandler *handlers.GenerationHandler,
	paymentHandler *handlers.PaymentHandler,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)

	api := router.PathPrefix("/api").Subrouter()

	// --- Публичные маршруты ---
	api.Handle("/register", middleware.RateLimit(http.HandlerFunc(authHandler.Register))).Methods("POST")
	api.Handle("/login", middleware.RateLimit(http.HandlerFunc(authHandler.Login))).Methods("POST")
	api.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")
	api.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	api.HandleFunc("/plans", paymentHandler.Plans).Methods("GET")

	// Шлюз шлёт notify и GET-ом, и POST-ом
	api.HandleFunc("/webhook/epay", webhookHandler.EpayNotify).Methods("GET", "POST")

	// --- Защищённые JWT ---
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.JWTAuth)
	protected.Use(middleware.AdminFastLane)

	protected.HandleFunc("/profile", authHandler.Profile).Methods("GET")
	protected.HandleFunc("/usage", usageHandler.GetUsage).Methods("GET")

	protected.HandleFunc("/chat", generationHandler.Chat).Methods("POST")
	protected.HandleFunc("/image", generationHandler.GenerateImage).Methods("POST")
	protected.HandleFunc("/voice", generationHandler.Synthesize).Methods("POST")
	protected.HandleFunc("/voice/history", generationHandler.VoiceHistory).Methods("GET")

	protected.HandleFunc("/payment", paymentHandler.CreatePayment).Methods("POST")
	protected.HandleFunc("/payment/request", paymentHandler.SubmitPaymentRequest).Methods("POST")
	protected.HandleFunc("/payment/orders", paymentHandler.MyOrders).Methods("GET")
	protected.HandleFunc("/payment/status", paymentHandler.PaymentStatus).Methods("GET")

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.OnlyRole("admin"))
	admin.HandleFunc("/users", authHandler.GetUsers).Methods("GET")
	admin.HandleFunc("/users/{id}", authHandler.GetUserByID).Methods("GET")
	admin.HandleFunc("/users/{id}", authHandler.UpdateUser).Methods("PATCH")
	admin.HandleFunc("/users/{id}", authHandler.DeleteUser).Methods("DELETE")
	admin.HandleFunc("/users/{id}/membership", adminHandler.SetMembership).Methods("POST")
	admin.HandleFunc("/users/{id}/membership", adminHandler.RevokeMembership).Methods("DELETE")
	admin.HandleFunc("/payment-requests", adminHandler.ListPaymentRequests).Methods("GET")
	admin.HandleFunc("/payment-requests/{id}/approve", adminHandler.ApprovePaymentRequest).Methods("POST")
	admin.HandleFunc("/payment-requests/{id}/reject", adminHandler.RejectPaymentRequest).Methods("POST")
	admin.HandleFunc("/orders", adminHandler.ListOrders).Methods("GET")
	admin.HandleFunc("/orders/{orderNumber}/approve", adminHandler.ApproveOrder).Methods("POST")
	admin.HandleFunc("/orders/{orderNumber}/reject", adminHandler.RejectOrder).Methods("POST")
	admin.HandleFunc("/stats", adminHandler.Stats).Methods("GET")
}
