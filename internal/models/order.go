package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
)

// PaymentOrder — заказ, созданный при построении платёжной ссылки.
// Статус меняет только платёжный контур: колбэк шлюза либо решение админа.
type PaymentOrder struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	OrderNumber   string      `json:"orderNumber"`
	PlanName      string      `json:"planName"`
	PlanType      string      `json:"planType"`
	Amount        string      `json:"amount"` // строка — ровно то значение, что подписывалось
	PaymentMethod string      `json:"paymentMethod"`
	Status        OrderStatus `json:"status"`
	TradeNo       string      `json:"tradeNo,omitempty"` // номер сделки на стороне шлюза
	CreatedAt     time.Time   `json:"timestamp"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// PaymentRequest — заявка пользователя «я оплатил», ждёт ручной проверки.
type PaymentRequest struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	ContactInfo string      `json:"contactInfo"`
	OrderNumber string      `json:"orderNumber"`
	PlanType    string      `json:"planType"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"timestamp"`
	ReviewedBy  string      `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time  `json:"reviewedAt,omitempty"`
}

// PaymentRecord — строка журнала завершённых оплат (nexusAi_payments).
type PaymentRecord struct {
	OrderNumber string    `json:"orderNumber"`
	UserID      string    `json:"userId"`
	PlanType    string    `json:"planType"`
	Amount      string    `json:"amount"`
	TradeNo     string    `json:"tradeNo,omitempty"`
	PaidAt      time.Time `json:"paidAt"`
}
