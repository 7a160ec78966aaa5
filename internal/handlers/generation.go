package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"nexusai/internal/logger"
	"nexusai/internal/middleware"
	"nexusai/internal/models"
	"nexusai/internal/services"
	helpers "nexusai/internal/utils/helpers"

	"go.uber.org/zap"
)

// GenerationHandler — генеративные ручки. Каждая проходит один и тот же
// путь: проверка гейта, вызов внешнего API, списание квоты после успеха.
type GenerationHandler struct {
	generation  *services.GenerationService
	entitlement *services.EntitlementService
}

func NewGenerationHandler(generation *services.GenerationService, entitlement *services.EntitlementService) *GenerationHandler {
	return &GenerationHandler{generation: generation, entitlement: entitlement}
}

type chatRequest struct {
	Messages []services.ChatMessage `json:"messages"`
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

type voiceRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// gate решает, пускать ли запрос; при отказе сам пишет ответ и
// возвращает false.
func (h *GenerationHandler) gate(w http.ResponseWriter, r *http.Request, feature models.Feature) (string, bool) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)

	decision, _, err := h.entitlement.Check(r.Context(), userID, feature)
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка проверки доступа")
		return "", false
	}

	switch decision {
	case services.DecisionBlockedNoAuth:
		helpers.Error(w, http.StatusUnauthorized, "Требуется вход в систему")
		return "", false
	case services.DecisionBlockedNoQuota:
		// 402 вместе с тарифами — клиенту есть куда уйти за апгрейдом
		helpers.JSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"message": "Бесплатный лимит исчерпан, оформите подписку",
			"plans":   services.PlanCatalog(),
		})
		return "", false
	}
	return userID, true
}

// consume списывает квоту после подтверждённого успеха генерации.
// Ошибку списания не возвращаем клиенту: результат уже получен.
func (h *GenerationHandler) consume(r *http.Request, userID string, feature models.Feature) {
	if err := h.entitlement.Consume(r.Context(), userID, feature); err != nil &&
		!errors.Is(err, services.ErrQuotaExhausted) {
		logger.Log.Error("Ошибка списания квоты после генерации",
			zap.String("user_id", userID), zap.String("feature", string(feature)), zap.Error(err))
	}
}

// Chat godoc
// @Summary Чат-генерация
// @Tags generation
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body chatRequest true "История сообщений"
// @Success 200 {object} map[string]string
// @Failure 402 {object} map[string]interface{} "Квота исчерпана"
// @Router /api/chat [post]
func (h *GenerationHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON или пустые сообщения")
		return
	}

	userID, ok := h.gate(w, r, models.FeatureChat)
	if !ok {
		return
	}

	answer, err := h.generation.Chat(r.Context(), req.Messages)
	if err != nil {
		helpers.Error(w, http.StatusBadGateway, "Сервис генерации недоступен")
		return
	}

	h.consume(r, userID, models.FeatureChat)
	helpers.JSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// GenerateImage godoc
// @Summary Генерация изображения
// @Tags generation
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body imageRequest true "Промпт"
// @Success 200 {object} map[string]string
// @Failure 402 {object} map[string]interface{} "Квота исчерпана"
// @Router /api/image [post]
func (h *GenerationHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON или пустой промпт")
		return
	}

	userID, ok := h.gate(w, r, models.FeatureImage)
	if !ok {
		return
	}

	imageURL, err := h.generation.GenerateImage(r.Context(), req.Prompt)
	if err != nil {
		helpers.Error(w, http.StatusBadGateway, "Сервис генерации недоступен")
		return
	}

	h.consume(r, userID, models.FeatureImage)
	helpers.JSON(w, http.StatusOK, map[string]string{"url": imageURL})
}

// Synthesize godoc
// @Summary Озвучка текста
// @Description Возвращает MP3. Провайдер указан в заголовке X-TTS-Provider.
// @Tags generation
// @Accept json
// @Produce audio/mpeg
// @Security ApiKeyAuth
// @Param input body voiceRequest true "Текст и голос"
// @Success 200 {file} binary
// @Failure 402 {object} map[string]interface{} "Квота исчерпана"
// @Router /api/voice [post]
func (h *GenerationHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON или пустой текст")
		return
	}

	userID, ok := h.gate(w, r, models.FeatureVoice)
	if !ok {
		return
	}

	audio, provider, err := h.generation.Synthesize(r.Context(), userID, req.Text, req.Voice)
	if err != nil {
		helpers.Error(w, http.StatusBadGateway, "Озвучка недоступна")
		return
	}

	h.consume(r, userID, models.FeatureVoice)

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("X-TTS-Provider", provider)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// VoiceHistory godoc
// @Summary История озвучек текущего пользователя
// @Tags generation
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Максимум записей (по умолчанию 20)"
// @Success 200 {array} models.VoiceHistoryEntry
// @Router /api/voice/history [get]
func (h *GenerationHandler) VoiceHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	entries, err := h.generation.VoiceHistory(r.Context(), userID, limit)
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка чтения истории")
		return
	}
	helpers.JSON(w, http.StatusOK, entries)
}
