package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DbHost    string
	DbPort    string
	DbUser    string
	DbPass    string
	DbName    string
	DbSSLMode string

	JWTSecret       string
	AccessTokenTTL  string
	RefreshTokenTTL string

	Log      string
	LogLevel string
	Env      string // dev|prod

	// Платёжный шлюз (易支付-совместимый, подпись MD5)
	EpayPID       string
	EpaySecret    string
	EpaySubmitURL string
	EpayNotifyURL string
	EpayReturnURL string
	SiteName      string

	// Генерация (OpenAI-совместимый API)
	OpenAIKey      string
	OpenAIBaseURL  string
	ChatModel      string
	ImageModel     string
	TTSModel       string
	TTSFallbackURL string

	// Уведомления админу в Telegram
	TelegramToken  string
	TelegramChatID int64

	// Лимиты бесплатного тарифа
	QuotaChat  int
	QuotaImage int
	QuotaVoice int
	// Общий бюджет — только для отчётности в админке, гейт его не использует
	QuotaPooled int

	FrontendURL string
}

// LoadConfig загружает .env, читает переменные окружения и выставляет дефолты.
// Ничего не логирует — чтобы не создавать зависимость от logger.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	def := func(v, d string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return d
		}
		return v
	}

	defInt := func(v string, d int) int {
		v = strings.TrimSpace(v)
		if v == "" {
			return d
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return d
		}
		return n
	}

	chatID, _ := strconv.ParseInt(strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")), 10, 64)

	cfg := &Config{
		Port:      def(os.Getenv("PORT"), "8080"),
		DbHost:    os.Getenv("DB_HOST"),
		DbPort:    def(os.Getenv("DB_PORT"), "5432"),
		DbUser:    os.Getenv("DB_USER"),
		DbPass:    os.Getenv("DB_PASSWORD"),
		DbName:    os.Getenv("DB_NAME"),
		DbSSLMode: def(os.Getenv("DB_SSLMODE"), "disable"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  def(os.Getenv("ACCESS_TOKEN_EXPIRY"), "15m"),
		RefreshTokenTTL: def(os.Getenv("REFRESH_TOKEN_EXPIRY"), "720h"),

		Log:      os.Getenv("LOG"),
		LogLevel: strings.ToLower(def(os.Getenv("LOGLEVEL"), "info")),
		Env:      strings.ToLower(def(os.Getenv("ENV"), "prod")),

		EpayPID:       os.Getenv("EPAY_PID"),
		EpaySecret:    os.Getenv("EPAY_SECRET"),
		EpaySubmitURL: def(os.Getenv("EPAY_SUBMIT_URL"), "https://pay.example.com/submit.php"),
		EpayNotifyURL: os.Getenv("EPAY_NOTIFY_URL"),
		EpayReturnURL: os.Getenv("EPAY_RETURN_URL"),
		SiteName:      def(os.Getenv("SITE_NAME"), "NexusAI"),

		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		ChatModel:      def(os.Getenv("CHAT_MODEL"), "gpt-4o-mini"),
		ImageModel:     def(os.Getenv("IMAGE_MODEL"), "dall-e-3"),
		TTSModel:       def(os.Getenv("TTS_MODEL"), "tts-1"),
		TTSFallbackURL: os.Getenv("TTS_FALLBACK_URL"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: chatID,

		QuotaChat:   defInt(os.Getenv("QUOTA_CHAT"), 5),
		QuotaImage:  defInt(os.Getenv("QUOTA_IMAGE"), 10),
		QuotaVoice:  defInt(os.Getenv("QUOTA_VOICE"), 10),
		QuotaPooled: defInt(os.Getenv("QUOTA_POOLED"), 10),

		FrontendURL: os.Getenv("FRONTEND_URL"),
	}

	return cfg, nil
}

// Validate возвращает предупреждения и фатальную ошибку (если критично).
func (c *Config) Validate() (warnings []string, err error) {
	// Критичные: БД
	if c.DbHost == "" || c.DbUser == "" || c.DbName == "" {
		return nil, fmt.Errorf("incomplete DB config (DB_HOST/DB_USER/DB_NAME)")
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		warnings = append(warnings, "JWT_SECRET is empty")
	}

	// Шлюз — предупреждение, проект может работать и без оплат
	if c.EpayPID == "" || c.EpaySecret == "" {
		warnings = append(warnings, "Epay credentials are not set")
	}

	if c.OpenAIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY is empty, generation endpoints will fail")
	}

	if c.TelegramToken == "" {
		warnings = append(warnings, "Telegram notifier is not configured")
	}

	if c.Port == "" {
		warnings = append(warnings, "PORT is empty, using default 8080")
	}

	return warnings, nil
}

// GetDSN — полная DSN (с паролем)
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbPass, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

// GetDSNSafe — DSN без пароля (для логов)
func (c *Config) GetDSNSafe() string {
	return fmt.Sprintf(
		"postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}
