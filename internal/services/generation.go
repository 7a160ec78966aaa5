package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"nexusai/internal/config"
	"nexusai/internal/logger"
	"nexusai/internal/models"
	"nexusai/internal/repository"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Таймаут на запасной TTS-провайдер (основной живёт на ctx запроса).
const ttsFallbackTimeout = 5 * time.Second

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationService — вызовы внешнего генеративного API: чат, картинки,
// озвучка с цепочкой провайдеров. Ошибки не ретраятся: неудача уходит
// наверх, квота остаётся нетронутой.
type GenerationService struct {
	client      *openai.Client
	chatModel   string
	imageModel  string
	ttsModel    string
	fallbackURL string
	httpClient  *http.Client
	history     *repository.VoiceHistoryRepository
}

func NewGenerationService(cfg *config.Config, history *repository.VoiceHistoryRepository) *GenerationService {
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return &GenerationService{
		client:      openai.NewClientWithConfig(clientCfg),
		chatModel:   cfg.ChatModel,
		imageModel:  cfg.ImageModel,
		ttsModel:    cfg.TTSModel,
		fallbackURL: cfg.TTSFallbackURL,
		httpClient:  &http.Client{},
		history:     history,
	}
}

// Chat — одно завершение диалога.
func (s *GenerationService) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Ты — ассистент NexusAI. Отвечай кратко и по делу.",
			},
		},
		MaxTokens:   2000,
		Temperature: 0.7,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.Log.Error("Ошибка чат-генерации (service)", zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("пустой ответ генеративного API")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage возвращает URL сгенерированной картинки.
func (s *GenerationService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		logger.Log.Error("Ошибка генерации изображения (service)", zap.Error(err))
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("пустой ответ генеративного API")
	}
	return resp.Data[0].URL, nil
}

// Synthesize озвучивает текст: сперва основной провайдер, при неудаче —
// запасной HTTP TTS под 5-секундным таймаутом. Успешная озвучка
// записывается в историю.
func (s *GenerationService) Synthesize(ctx context.Context, userID, text, voice string) ([]byte, string, error) {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	audio, err := s.synthesizeOpenAI(ctx, text, voice)
	provider := "openai"
	if err != nil {
		logger.Log.Warn("Основной TTS недоступен, пробуем запасной (service)", zap.Error(err))
		audio, err = s.synthesizeFallback(ctx, text)
		provider = "fallback"
	}
	if err != nil {
		return nil, "", err
	}

	entry := &models.VoiceHistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		Voice:     voice,
		Provider:  provider,
		CreatedAt: time.Now().UTC(),
	}
	if herr := s.history.Append(ctx, entry); herr != nil {
		// история не критична для результата
		logger.Log.Warn("Не удалось записать историю озвучки (service)", zap.Error(herr))
	}

	return audio, provider, nil
}

func (s *GenerationService) synthesizeOpenAI(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	return io.ReadAll(resp)
}

func (s *GenerationService) synthesizeFallback(ctx context.Context, text string) ([]byte, error) {
	if s.fallbackURL == "" {
		return nil, errors.New("запасной TTS не настроен")
	}

	ctx, cancel := context.WithTimeout(ctx, ttsFallbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.fallbackURL+"?text="+url.QueryEscape(text), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("запасной TTS ответил статусом %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// VoiceHistory — последние озвучки пользователя.
func (s *GenerationService) VoiceHistory(ctx context.Context, userID string, limit int) ([]*models.VoiceHistoryEntry, error) {
	return s.history.ListByUser(ctx, userID, limit)
}
