package handlers

import (
	"errors"
	"net/http"

	"nexusai/internal/logger"
	"nexusai/internal/services"

	"go.uber.org/zap"
)

// WebhookHandler — notify-эндпоинт платёжного шлюза. Отвечает plain text
// "success"/"fail": так шлюз понимает, доставлен ли колбэк.
type WebhookHandler struct {
	paymentService *services.PaymentService
}

func NewWebhookHandler(paymentService *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{paymentService: paymentService}
}

// EpayNotify godoc
// @Summary Колбэк платёжного шлюза
// @Description Параметры приходят в query или form; ответ — plain text.
// @Tags webhook
// @Produce plain
// @Success 200 {string} string "success"
// @Router /api/webhook/epay [get]
func (h *WebhookHandler) EpayNotify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Log.Warn("Колбэк шлюза: невалидная форма", zap.Error(err))
		h.fail(w)
		return
	}

	// r.Form объединяет query и тело формы — шлюзы шлют и так, и так
	params := make(map[string]string, len(r.Form))
	for k, v := range r.Form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	if err := h.paymentService.HandleCallback(r.Context(), params); err != nil {
		if errors.Is(err, services.ErrBadSignature) {
			logger.Log.Warn("Колбэк шлюза отклонён",
				zap.String("out_trade_no", params["out_trade_no"]))
		} else {
			logger.Log.Error("Ошибка обработки колбэка шлюза", zap.Error(err))
		}
		h.fail(w)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("success"))
}

func (h *WebhookHandler) fail(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("fail"))
}
