// internal/services/notifier.go
package services

import (
	"fmt"

	"nexusai/internal/logger"
	"nexusai/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier шлёт админу сигнал в Telegram о новой заявке на оплату —
// ручная проверка без сигнала просто не начинается.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier возвращает выключенный нотификатор, если токен не задан
// или Telegram недоступен — остальной контур от этого не зависит.
func NewNotifier(token string, chatID int64) *Notifier {
	if token == "" || chatID == 0 {
		logger.Log.Warn("Telegram-нотификатор не настроен, уведомления отключены")
		return &Notifier{}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Log.Warn("Не удалось подключиться к Telegram, уведомления отключены", zap.Error(err))
		return &Notifier{}
	}
	return &Notifier{bot: bot, chatID: chatID}
}

func (n *Notifier) NotifyPaymentRequest(req *models.PaymentRequest) {
	if n.bot == nil {
		return
	}
	text := fmt.Sprintf(
		"Новая заявка на проверку оплаты\nЗаказ: %s\nТариф: %s\nКонтакт: %s",
		req.OrderNumber, req.PlanType, req.ContactInfo,
	)
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		logger.Log.Error("Не удалось отправить уведомление в Telegram", zap.Error(err))
	}
}
