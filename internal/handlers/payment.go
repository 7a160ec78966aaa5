package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"nexusai/internal/logger"
	"nexusai/internal/middleware"
	"nexusai/internal/services"
	helpers "nexusai/internal/utils/helpers"

	"go.uber.org/zap"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	authService    *services.AuthService
}

func NewPaymentHandler(paymentService *services.PaymentService, authService *services.AuthService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, authService: authService}
}

type createPaymentRequest struct {
	PlanType string `json:"plan_type"`
}

type submitRequestBody struct {
	ContactInfo string `json:"contact_info"`
	OrderNumber string `json:"order_number"`
}

// Plans godoc
// @Summary Каталог тарифов
// @Tags payment
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/plans [get]
func (h *PaymentHandler) Plans(w http.ResponseWriter, r *http.Request) {
	helpers.JSON(w, http.StatusOK, services.PlanCatalog())
}

// CreatePayment godoc
// @Summary Создание платёжного заказа
// @Description Возвращает ссылку на шлюз и номер заказа.
// @Tags payment
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body createPaymentRequest true "Тариф"
// @Success 200 {object} map[string]string
// @Failure 400 {string} string "Неизвестный тариф"
// @Router /api/payment [post]
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	order, payURL, err := h.paymentService.CreatePayment(r.Context(), userID, req.PlanType)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPlan) {
			helpers.Error(w, http.StatusBadRequest, "Неизвестный тариф")
			return
		}
		logger.Log.Error("Ошибка создания платежа", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, "Ошибка создания платежа")
		return
	}

	helpers.JSON(w, http.StatusOK, map[string]string{
		"payment_url":  payURL,
		"order_number": order.OrderNumber,
	})
}

// SubmitPaymentRequest godoc
// @Summary Заявка «я оплатил» на ручную проверку
// @Tags payment
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body submitRequestBody true "Контакт и номер заказа"
// @Success 201 {object} models.PaymentRequest
// @Failure 400 {string} string "Ошибка валидации"
// @Router /api/payment/request [post]
func (h *PaymentHandler) SubmitPaymentRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)

	var req submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	created, err := h.paymentService.SubmitPaymentRequest(r.Context(), userID, req.ContactInfo, req.OrderNumber)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingContact),
			errors.Is(err, services.ErrInvalidOrderNumber):
			helpers.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrOrderNotOwned):
			helpers.Error(w, http.StatusForbidden, err.Error())
		default:
			helpers.Error(w, http.StatusNotFound, "Заказ не найден")
		}
		return
	}

	helpers.JSON(w, http.StatusCreated, created)
}

// MyOrders godoc
// @Summary Заказы текущего пользователя
// @Tags payment
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.PaymentOrder
// @Router /api/payment/orders [get]
func (h *PaymentHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)

	orders, err := h.paymentService.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка получения заказов")
		return
	}
	helpers.JSON(w, http.StatusOK, orders)
}

// PaymentStatus godoc
// @Summary Текущий статус членства
// @Tags payment
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]bool
// @Router /api/payment/status [get]
func (h *PaymentHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)

	isVip, err := h.authService.CheckPaymentStatus(r.Context(), userID)
	if err != nil {
		helpers.Error(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]bool{"isVip": isVip})
}
