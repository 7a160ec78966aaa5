package handlers

import (
	"net/http"

	"nexusai/internal/middleware"
	"nexusai/internal/services"
	helpers "nexusai/internal/utils/helpers"
)

type UsageHandler struct {
	usageService *services.UsageService
}

func NewUsageHandler(usageService *services.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// GetUsage godoc
// @Summary Остатки квот текущего пользователя
// @Tags usage
// @Security ApiKeyAuth
// @Success 200 {object} map[string]int
// @Failure 401 {string} string "Нет доступа"
// @Router /api/usage [get]
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)

	usage, err := h.usageService.GetAllRemaining(r.Context(), userID)
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка чтения квот")
		return
	}

	total, err := h.usageService.GetTotalUsed(r.Context(), userID)
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка подсчёта использования")
		return
	}

	helpers.JSON(w, http.StatusOK, map[string]interface{}{
		"remaining":  usage,
		"total_used": total,
	})
}
