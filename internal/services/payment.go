package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"nexusai/internal/logger"
	"nexusai/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidPlan        = errors.New("неизвестный тариф")
	ErrInvalidOrderNumber = errors.New("некорректный номер заказа")
	ErrMissingContact     = errors.New("не указаны контактные данные")
	ErrBadSignature       = errors.New("подпись колбэка не сошлась")
	ErrOrderNotPending    = errors.New("заказ уже обработан")
	ErrOrderNotOwned      = errors.New("заказ принадлежит другому пользователю")
	ErrRequestNotPending  = errors.New("заявка уже обработана")

	// колбэк пришёл повторно по уже завершённому заказу
	errOrderAlreadyCompleted = errors.New("заказ уже завершён")
)

type planInfo struct {
	Name   string
	Amount string
}

// Каталог тарифов. Суммы — строки: подписывается ровно то, что уйдёт шлюзу.
var planCatalog = map[string]planInfo{
	models.MembershipAnnual:   {Name: "Годовая подписка NexusAI", Amount: "99.00"},
	models.MembershipLifetime: {Name: "Пожизненный доступ NexusAI", Amount: "199.00"},
	models.MembershipAgent:    {Name: "Партнёрский тариф NexusAI", Amount: "499.00"},
}

// PlanCatalog отдаёт тарифы для страницы апгрейда.
func PlanCatalog() map[string]planInfo {
	out := make(map[string]planInfo, len(planCatalog))
	for k, v := range planCatalog {
		out[k] = v
	}
	return out
}

// OrdersRepo — заказы, заявки и журнал оплат.
type OrdersRepo interface {
	SaveOrder(ctx context.Context, order *models.PaymentOrder) error
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.PaymentOrder, error)
	MutateOrder(ctx context.Context, orderNumber string, fn func(*models.PaymentOrder) error) error
	ListOrders(ctx context.Context) ([]*models.PaymentOrder, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*models.PaymentOrder, error)
	SavePaymentRequest(ctx context.Context, req *models.PaymentRequest) error
	ListPaymentRequests(ctx context.Context) ([]*models.PaymentRequest, error)
	MutatePaymentRequest(ctx context.Context, id string, fn func(*models.PaymentRequest) error) error
	AppendPayment(ctx context.Context, rec *models.PaymentRecord) error
	CountOrders(ctx context.Context) (pending, completed, rejected int, err error)
}

// PaymentNotifier — сигнал админу о новой заявке.
type PaymentNotifier interface {
	NotifyPaymentRequest(req *models.PaymentRequest)
}

// PaymentService — платёжный контур: создание подписанной ссылки и
// pending-заказа, колбэк шлюза, ручная заявка и решение админа.
// Членство меняется только здесь.
type PaymentService struct {
	orders   OrdersRepo
	auth     *AuthService
	epay     *EpayService
	notifier PaymentNotifier
}

func NewPaymentService(orders OrdersRepo, auth *AuthService, epay *EpayService, notifier PaymentNotifier) *PaymentService {
	return &PaymentService{orders: orders, auth: auth, epay: epay, notifier: notifier}
}

// CreatePayment создаёт pending-заказ и возвращает его вместе с платёжной
// ссылкой, на которую клиенту нужно уйти.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, planType string) (*models.PaymentOrder, string, error) {
	plan, ok := planCatalog[planType]
	if !ok {
		return nil, "", ErrInvalidPlan
	}

	now := time.Now().UTC()
	order := &models.PaymentOrder{
		ID:            uuid.NewString(),
		UserID:        userID,
		OrderNumber:   s.epay.GenerateOrderNumber(),
		PlanName:      plan.Name,
		PlanType:      planType,
		Amount:        plan.Amount,
		PaymentMethod: EpayTypeAlipay,
		Status:        models.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.SaveOrder(ctx, order); err != nil {
		logger.Log.Error("Ошибка сохранения заказа (service)", zap.Error(err))
		return nil, "", err
	}

	payURL := s.epay.BuildPaymentURL(order.OrderNumber, order.PlanName, order.Amount)
	logger.Log.Info("Создан платёжный заказ (service)",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.String("plan", planType))
	return order, payURL, nil
}

// HandleCallback обрабатывает notify-запрос шлюза. Несошедшаяся подпись —
// отказ без каких-либо изменений состояния.
func (s *PaymentService) HandleCallback(ctx context.Context, params map[string]string) error {
	if !s.epay.VerifyCallback(params) {
		logger.Log.Warn("Колбэк шлюза отклонён: подпись не сошлась",
			zap.String("out_trade_no", params["out_trade_no"]))
		return ErrBadSignature
	}

	if params["trade_status"] != "TRADE_SUCCESS" {
		logger.Log.Info("Колбэк шлюза без успеха, игнорируем",
			zap.String("out_trade_no", params["out_trade_no"]),
			zap.String("trade_status", params["trade_status"]))
		return nil
	}

	err := s.completeOrder(ctx, params["out_trade_no"], params["trade_no"])
	if errors.Is(err, errOrderAlreadyCompleted) {
		// повторная доставка колбэка — членство уже выдано
		return nil
	}
	return err
}

// completeOrder переводит pending-заказ в completed и выдаёт членство.
func (s *PaymentService) completeOrder(ctx context.Context, orderNumber, tradeNo string) error {
	var completed *models.PaymentOrder

	err := s.orders.MutateOrder(ctx, orderNumber, func(o *models.PaymentOrder) error {
		switch o.Status {
		case models.OrderStatusPending:
			o.Status = models.OrderStatusCompleted
			if tradeNo != "" {
				o.TradeNo = tradeNo
			}
			cp := *o
			completed = &cp
			return nil
		case models.OrderStatusCompleted:
			return errOrderAlreadyCompleted
		default:
			return ErrOrderNotPending
		}
	})
	if err != nil {
		return err
	}

	if err := s.auth.GrantMembership(ctx, completed.UserID, completed.PlanType); err != nil {
		logger.Log.Error("Не удалось выдать членство после оплаты (service)",
			zap.String("user_id", completed.UserID), zap.Error(err))
		return err
	}

	_ = s.orders.AppendPayment(ctx, &models.PaymentRecord{
		OrderNumber: completed.OrderNumber,
		UserID:      completed.UserID,
		PlanType:    completed.PlanType,
		Amount:      completed.Amount,
		TradeNo:     tradeNo,
		PaidAt:      time.Now().UTC(),
	})

	logger.Log.Info("Заказ завершён, членство выдано (service)",
		zap.String("order_number", orderNumber),
		zap.String("user_id", completed.UserID),
		zap.String("plan", completed.PlanType))
	return nil
}

// SubmitPaymentRequest — пользователь заявляет «я оплатил». Валидация до
// любых изменений состояния.
func (s *PaymentService) SubmitPaymentRequest(ctx context.Context, userID, contactInfo, orderNumber string) (*models.PaymentRequest, error) {
	contactInfo = strings.TrimSpace(contactInfo)
	orderNumber = strings.TrimSpace(orderNumber)

	if contactInfo == "" {
		return nil, ErrMissingContact
	}
	if !strings.HasPrefix(orderNumber, "ORDER") || len(orderNumber) < 15 {
		return nil, ErrInvalidOrderNumber
	}

	order, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		logger.Log.Warn("Заявка по чужому заказу отклонена (service)",
			zap.String("order_number", orderNumber),
			zap.String("order_user_id", order.UserID),
			zap.String("user_id", userID))
		return nil, ErrOrderNotOwned
	}

	req := &models.PaymentRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		ContactInfo: contactInfo,
		OrderNumber: orderNumber,
		PlanType:    order.PlanType,
		Status:      models.OrderStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.orders.SavePaymentRequest(ctx, req); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go s.notifier.NotifyPaymentRequest(req)
	}

	logger.Log.Info("Принята заявка на проверку оплаты (service)",
		zap.String("order_number", orderNumber), zap.String("user_id", userID))
	return req, nil
}

// ApproveOrder — прямое одобрение заказа админом. Повторный вызов по тому
// же заказу отклоняется явно.
func (s *PaymentService) ApproveOrder(ctx context.Context, orderNumber string) error {
	err := s.completeOrder(ctx, orderNumber, "")
	if errors.Is(err, errOrderAlreadyCompleted) {
		return ErrOrderNotPending
	}
	return err
}

// RejectOrder переводит pending-заказ в rejected. Членство не трогается.
func (s *PaymentService) RejectOrder(ctx context.Context, orderNumber string) error {
	return s.orders.MutateOrder(ctx, orderNumber, func(o *models.PaymentOrder) error {
		if o.Status != models.OrderStatusPending {
			return ErrOrderNotPending
		}
		o.Status = models.OrderStatusRejected
		return nil
	})
}

// ApprovePaymentRequest — решение админа по ручной заявке: заявка
// закрывается, заказ завершается, членство выдаётся. Если колбэк успел
// завершить заказ раньше — членство уже выдано, это не ошибка.
func (s *PaymentService) ApprovePaymentRequest(ctx context.Context, requestID, adminID string) error {
	var orderNumber string
	err := s.orders.MutatePaymentRequest(ctx, requestID, func(req *models.PaymentRequest) error {
		if req.Status != models.OrderStatusPending {
			return ErrRequestNotPending
		}
		req.Status = models.OrderStatusCompleted
		req.ReviewedBy = adminID
		now := time.Now().UTC()
		req.ReviewedAt = &now
		orderNumber = req.OrderNumber
		return nil
	})
	if err != nil {
		return err
	}

	err = s.completeOrder(ctx, orderNumber, "")
	if errors.Is(err, errOrderAlreadyCompleted) {
		return nil
	}
	return err
}

// RejectPaymentRequest отклоняет заявку и связанный pending-заказ.
func (s *PaymentService) RejectPaymentRequest(ctx context.Context, requestID, adminID string) error {
	var orderNumber string
	err := s.orders.MutatePaymentRequest(ctx, requestID, func(req *models.PaymentRequest) error {
		if req.Status != models.OrderStatusPending {
			return ErrRequestNotPending
		}
		req.Status = models.OrderStatusRejected
		req.ReviewedBy = adminID
		now := time.Now().UTC()
		req.ReviewedAt = &now
		orderNumber = req.OrderNumber
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.RejectOrder(ctx, orderNumber); err != nil && !errors.Is(err, ErrOrderNotPending) {
		return err
	}
	return nil
}

func (s *PaymentService) ListOrders(ctx context.Context) ([]*models.PaymentOrder, error) {
	return s.orders.ListOrders(ctx)
}

func (s *PaymentService) ListOrdersByUser(ctx context.Context, userID string) ([]*models.PaymentOrder, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

func (s *PaymentService) ListPaymentRequests(ctx context.Context) ([]*models.PaymentRequest, error) {
	return s.orders.ListPaymentRequests(ctx)
}

func (s *PaymentService) CountOrders(ctx context.Context) (pending, completed, rejected int, err error) {
	return s.orders.CountOrders(ctx)
}
