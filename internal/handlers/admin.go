package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"nexusai/internal/logger"
	"nexusai/internal/middleware"
	"nexusai/internal/models"
	"nexusai/internal/services"
	helpers "nexusai/internal/utils/helpers"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AdminHandler — консоль администратора: заявки на оплату, заказы,
// членства и сводная статистика.
type AdminHandler struct {
	paymentService *services.PaymentService
	authService    *services.AuthService
	usageService   *services.UsageService
}

func NewAdminHandler(paymentService *services.PaymentService, authService *services.AuthService, usageService *services.UsageService) *AdminHandler {
	return &AdminHandler{paymentService: paymentService, authService: authService, usageService: usageService}
}

type setMembershipRequest struct {
	PlanType string `json:"plan_type"`
}

// ListPaymentRequests godoc
// @Summary Заявки на ручную проверку оплаты (админ)
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.PaymentRequest
// @Router /api/admin/payment-requests [get]
func (h *AdminHandler) ListPaymentRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.paymentService.ListPaymentRequests(r.Context())
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка получения заявок")
		return
	}
	helpers.JSON(w, http.StatusOK, requests)
}

// ApprovePaymentRequest godoc
// @Summary Одобрение заявки: заказ завершается, членство выдаётся (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param id path string true "ID заявки"
// @Success 200 {string} string "Заявка одобрена"
// @Failure 409 {string} string "Заявка уже обработана"
// @Router /api/admin/payment-requests/{id}/approve [post]
func (h *AdminHandler) ApprovePaymentRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	adminID, _ := r.Context().Value(middleware.ContextUserID).(string)

	if err := h.paymentService.ApprovePaymentRequest(r.Context(), id, adminID); err != nil {
		h.writePaymentError(w, err, "Ошибка одобрения заявки")
		return
	}

	logger.Log.Info("Заявка на оплату одобрена",
		zap.String("request_id", id), zap.String("admin_id", adminID))
	helpers.JSON(w, http.StatusOK, "Заявка одобрена")
}

// RejectPaymentRequest godoc
// @Summary Отклонение заявки вместе с заказом (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param id path string true "ID заявки"
// @Success 200 {string} string "Заявка отклонена"
// @Failure 409 {string} string "Заявка уже обработана"
// @Router /api/admin/payment-requests/{id}/reject [post]
func (h *AdminHandler) RejectPaymentRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	adminID, _ := r.Context().Value(middleware.ContextUserID).(string)

	if err := h.paymentService.RejectPaymentRequest(r.Context(), id, adminID); err != nil {
		h.writePaymentError(w, err, "Ошибка отклонения заявки")
		return
	}

	logger.Log.Info("Заявка на оплату отклонена",
		zap.String("request_id", id), zap.String("admin_id", adminID))
	helpers.JSON(w, http.StatusOK, "Заявка отклонена")
}

// ListOrders godoc
// @Summary Все платёжные заказы (админ)
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.PaymentOrder
// @Router /api/admin/orders [get]
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.paymentService.ListOrders(r.Context())
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка получения заказов")
		return
	}
	helpers.JSON(w, http.StatusOK, orders)
}

// ApproveOrder godoc
// @Summary Прямое одобрение заказа (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param orderNumber path string true "Номер заказа"
// @Success 200 {string} string "Заказ одобрен"
// @Failure 409 {string} string "Заказ уже обработан"
// @Router /api/admin/orders/{orderNumber}/approve [post]
func (h *AdminHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := mux.Vars(r)["orderNumber"]

	if err := h.paymentService.ApproveOrder(r.Context(), orderNumber); err != nil {
		h.writePaymentError(w, err, "Ошибка одобрения заказа")
		return
	}
	helpers.JSON(w, http.StatusOK, "Заказ одобрен")
}

// RejectOrder godoc
// @Summary Отклонение заказа (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param orderNumber path string true "Номер заказа"
// @Success 200 {string} string "Заказ отклонён"
// @Failure 409 {string} string "Заказ уже обработан"
// @Router /api/admin/orders/{orderNumber}/reject [post]
func (h *AdminHandler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := mux.Vars(r)["orderNumber"]

	if err := h.paymentService.RejectOrder(r.Context(), orderNumber); err != nil {
		h.writePaymentError(w, err, "Ошибка отклонения заказа")
		return
	}
	helpers.JSON(w, http.StatusOK, "Заказ отклонён")
}

// SetMembership godoc
// @Summary Ручная выдача членства без оплаты (админ)
// @Tags admin
// @Accept json
// @Security ApiKeyAuth
// @Param id path string true "ID пользователя"
// @Param input body setMembershipRequest true "Тариф"
// @Success 200 {string} string "Членство выдано"
// @Router /api/admin/users/{id}/membership [post]
func (h *AdminHandler) SetMembership(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req setMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	if err := h.authService.GrantMembership(r.Context(), id, req.PlanType); err != nil {
		if errors.Is(err, services.ErrInvalidPlan) {
			helpers.Error(w, http.StatusBadRequest, "Неизвестный тариф")
			return
		}
		helpers.Error(w, http.StatusInternalServerError, "Ошибка выдачи членства")
		return
	}
	helpers.JSON(w, http.StatusOK, "Членство выдано")
}

// RevokeMembership godoc
// @Summary Снятие членства (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param id path string true "ID пользователя"
// @Success 200 {string} string "Членство снято"
// @Router /api/admin/users/{id}/membership [delete]
func (h *AdminHandler) RevokeMembership(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.authService.RevokeMembership(r.Context(), id); err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка снятия членства")
		return
	}
	helpers.JSON(w, http.StatusOK, "Членство снято")
}

// Stats godoc
// @Summary Сводная статистика по пользователям и заказам (админ)
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.SystemStats
// @Router /api/admin/stats [get]
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	total, admins, vips, err := h.authService.CountUsers(r.Context())
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка подсчёта пользователей")
		return
	}

	pending, completed, rejected, err := h.paymentService.CountOrders(r.Context())
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка подсчёта заказов")
		return
	}

	requests, err := h.paymentService.ListPaymentRequests(r.Context())
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка подсчёта заявок")
		return
	}
	pendingRequests := 0
	for _, req := range requests {
		if req.Status == models.OrderStatusPending {
			pendingRequests++
		}
	}

	// суммарный расход бесплатных единиц по всем пользователям
	totalUsed := 0
	users, _, err := h.authService.GetUsersPaginated(r.Context(), 0, 0)
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка подсчёта расхода")
		return
	}
	for _, u := range users {
		used, err := h.usageService.GetTotalUsed(r.Context(), u.ID)
		if err != nil {
			helpers.Error(w, http.StatusInternalServerError, "Ошибка подсчёта расхода")
			return
		}
		totalUsed += used
	}

	stats := models.SystemStats{
		TotalUsers:      total,
		Admins:          admins,
		RegularUsers:    total - admins,
		VipUsers:        vips,
		FreeUsers:       total - vips,
		PendingOrders:   pending,
		CompletedOrders: completed,
		RejectedOrders:  rejected,
		PendingRequests: pendingRequests,
		TotalUsedUnits:  totalUsed,
	}
	if total > 0 {
		stats.VipPct = vips * 100 / total
		stats.FreePct = 100 - stats.VipPct
	}

	helpers.JSON(w, http.StatusOK, stats)
}

// writePaymentError переводит доменные ошибки платёжного контура в статус.
func (h *AdminHandler) writePaymentError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrOrderNotPending),
		errors.Is(err, services.ErrRequestNotPending):
		helpers.Error(w, http.StatusConflict, err.Error())
	default:
		logger.Log.Error(fallback, zap.Error(err))
		helpers.Error(w, http.StatusNotFound, err.Error())
	}
}
