package kvstore

import "fmt"

// Пространство ключей унаследовано от прежнего клиентского хранилища —
// значения совместимы с уже сохранёнными данными бит-в-бит.
const (
	KeyCurrentUser     = "nexusAiUser" // исторический ключ сессии браузера; сессии теперь JWT
	KeyUsers           = "nexusAi_users"
	KeyPayments        = "nexusAi_payments"
	KeyPaymentRequests = "nexusAi_payment_requests"
	KeyOrders          = "nexusAi_orders"
	KeyVoiceHistory    = "nexusAiVoiceHistory"
	KeyVipUsers        = "vipUsers"
	KeyRefreshTokens   = "nexusAi_refresh_tokens"

	// Устаревший ключ заявок на оплату — читается один раз как миграционный фолбэк.
	KeyLegacyPaymentRequests = "paymentRequests"
)

// UsageKey — счётчик остатка по фиче: nexusAi_<feature>_usage_<userId>.
func UsageKey(feature, userID string) string {
	return fmt.Sprintf("nexusAi_%s_usage_%s", feature, userID)
}
