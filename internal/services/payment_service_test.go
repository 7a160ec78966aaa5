package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nexusai/internal/kvstore"
	"nexusai/internal/models"
	"nexusai/internal/repository"
)

type recordingNotifier struct {
	requests []*models.PaymentRequest
}

func (n *recordingNotifier) NotifyPaymentRequest(req *models.PaymentRequest) {
	n.requests = append(n.requests, req)
}

func newTestPaymentService() (*PaymentService, *AuthService) {
	store := kvstore.NewMemoryStore()
	usage := NewUsageService(repository.NewUsageRepository(store), testQuotaConfig())
	auth := NewAuthService(
		repository.NewUserRepository(store),
		repository.NewTokenRepository(store),
		usage,
		repository.NewVoiceHistoryRepository(store),
	)
	payment := NewPaymentService(repository.NewOrderRepository(store), auth, testEpay(), nil)
	return payment, auth
}

func TestCreatePayment(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, payURL, err := payment.CreatePayment(ctx, user.ID, models.MembershipAnnual)
	if err != nil {
		t.Fatalf("ошибка создания платежа: %v", err)
	}

	if order.Status != models.OrderStatusPending {
		t.Fatalf("новый заказ должен быть pending: %s", order.Status)
	}
	if order.Amount != "99.00" {
		t.Fatalf("неожиданная сумма годового тарифа: %s", order.Amount)
	}
	if !strings.Contains(payURL, "out_trade_no="+order.OrderNumber) {
		t.Fatal("ссылка должна ссылаться на созданный заказ")
	}

	orders, _ := payment.ListOrdersByUser(ctx, user.ID)
	if len(orders) != 1 {
		t.Fatalf("заказ не сохранён: %d", len(orders))
	}
}

func TestCreatePayment_UnknownPlan(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")

	_, _, err := payment.CreatePayment(context.Background(), user.ID, "platinum")
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("ожидался ErrInvalidPlan: %v", err)
	}
}

func TestHandleCallback_GrantsMembership(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, err := payment.CreatePayment(ctx, user.ID, models.MembershipAnnual)
	if err != nil {
		t.Fatalf("ошибка создания платежа: %v", err)
	}

	params := callbackParams(testEpay(), order.OrderNumber)
	if err := payment.HandleCallback(ctx, params); err != nil {
		t.Fatalf("ошибка обработки колбэка: %v", err)
	}

	got, _ := auth.GetUserByID(ctx, user.ID)
	if !got.IsVip || got.MembershipType != models.MembershipAnnual {
		t.Fatal("после успешного колбэка членство должно быть выдано")
	}

	updated, _ := payment.ListOrdersByUser(ctx, user.ID)
	if updated[0].Status != models.OrderStatusCompleted {
		t.Fatalf("заказ должен быть completed: %s", updated[0].Status)
	}
	if updated[0].TradeNo == "" {
		t.Fatal("номер сделки шлюза должен сохраниться в заказе")
	}

	// повторная доставка того же колбэка — не ошибка и не второй заказ
	if err := payment.HandleCallback(ctx, params); err != nil {
		t.Fatalf("повторный колбэк должен игнорироваться: %v", err)
	}
}

func TestHandleCallback_BadSignature(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, user.ID, models.MembershipAnnual)

	params := callbackParams(testEpay(), order.OrderNumber)
	params["sign"] = "deadbeef"

	if err := payment.HandleCallback(ctx, params); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("ожидался ErrBadSignature: %v", err)
	}

	got, _ := auth.GetUserByID(ctx, user.ID)
	if got.IsVip {
		t.Fatal("несошедшаяся подпись не должна менять членство")
	}
	orders, _ := payment.ListOrdersByUser(ctx, user.ID)
	if orders[0].Status != models.OrderStatusPending {
		t.Fatal("заказ должен остаться pending")
	}
}

func TestHandleCallback_NonSuccessStatus(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, user.ID, models.MembershipAnnual)

	epay := testEpay()
	params := map[string]string{
		"money":        "99.00",
		"name":         "Годовая подписка NexusAI",
		"out_trade_no": order.OrderNumber,
		"pid":          epay.PID,
		"trade_no":     "2024010122001",
		"trade_status": "WAIT_BUYER_PAY",
		"type":         EpayTypeAlipay,
		"sign_type":    "MD5",
	}
	base := "money=" + params["money"] + "&name=" + params["name"] +
		"&out_trade_no=" + params["out_trade_no"] + "&pid=" + params["pid"] +
		"&trade_no=" + params["trade_no"] + "&trade_status=" + params["trade_status"] +
		"&type=" + params["type"]
	params["sign"] = md5hex(base + epay.Secret)

	if err := payment.HandleCallback(ctx, params); err != nil {
		t.Fatalf("неуспешный статус — не ошибка: %v", err)
	}
	got, _ := auth.GetUserByID(ctx, user.ID)
	if got.IsVip {
		t.Fatal("членство выдаётся только на TRADE_SUCCESS")
	}
}

func TestApproveOrder_SecondApprovalRejected(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, user.ID, models.MembershipLifetime)

	if err := payment.ApproveOrder(ctx, order.OrderNumber); err != nil {
		t.Fatalf("ошибка одобрения: %v", err)
	}

	got, _ := auth.GetUserByID(ctx, user.ID)
	if !got.IsVip || got.MembershipType != models.MembershipLifetime {
		t.Fatal("одобрение должно выдать членство")
	}

	if err := payment.ApproveOrder(ctx, order.OrderNumber); !errors.Is(err, ErrOrderNotPending) {
		t.Fatalf("повторное одобрение отклоняется явно: %v", err)
	}
}

func TestRejectOrder(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, user.ID, models.MembershipAnnual)

	if err := payment.RejectOrder(ctx, order.OrderNumber); err != nil {
		t.Fatalf("ошибка отклонения: %v", err)
	}

	got, _ := auth.GetUserByID(ctx, user.ID)
	if got.IsVip {
		t.Fatal("отклонение не выдаёт членство")
	}

	// отклонённый заказ уже нельзя одобрить
	if err := payment.ApproveOrder(ctx, order.OrderNumber); !errors.Is(err, ErrOrderNotPending) {
		t.Fatalf("одобрение отклонённого заказа запрещено: %v", err)
	}
}

func TestSubmitPaymentRequest(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, user.ID, models.MembershipAnnual)

	req, err := payment.SubmitPaymentRequest(ctx, user.ID, "tg: @testuser", order.OrderNumber)
	if err != nil {
		t.Fatalf("ошибка подачи заявки: %v", err)
	}
	if req.Status != models.OrderStatusPending || req.PlanType != models.MembershipAnnual {
		t.Fatalf("заявка должна наследовать тариф заказа: %+v", req)
	}
}

func TestSubmitPaymentRequest_Validation(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, user.ID, models.MembershipAnnual)

	if _, err := payment.SubmitPaymentRequest(ctx, user.ID, "   ", order.OrderNumber); !errors.Is(err, ErrMissingContact) {
		t.Fatalf("пустой контакт отклоняется: %v", err)
	}
	if _, err := payment.SubmitPaymentRequest(ctx, user.ID, "tg: @x", "INVOICE123456789"); !errors.Is(err, ErrInvalidOrderNumber) {
		t.Fatalf("номер без префикса ORDER отклоняется: %v", err)
	}
	if _, err := payment.SubmitPaymentRequest(ctx, user.ID, "tg: @x", "ORDER123"); !errors.Is(err, ErrInvalidOrderNumber) {
		t.Fatalf("слишком короткий номер отклоняется: %v", err)
	}
	if _, err := payment.SubmitPaymentRequest(ctx, user.ID, "tg: @x", "ORDER9999999999999999"); err == nil {
		t.Fatal("заявка по несуществующему заказу отклоняется")
	}
}

func TestSubmitPaymentRequest_ForeignOrder(t *testing.T) {
	payment, auth := newTestPaymentService()
	owner := registerTestUser(t, auth, "owner", "owner@example.com")
	intruder := registerTestUser(t, auth, "intruder", "intruder@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, owner.ID, models.MembershipAnnual)

	if _, err := payment.SubmitPaymentRequest(ctx, intruder.ID, "tg: @intruder", order.OrderNumber); !errors.Is(err, ErrOrderNotOwned) {
		t.Fatalf("заявка по чужому заказу отклоняется: %v", err)
	}

	requests, _ := payment.ListPaymentRequests(ctx)
	if len(requests) != 0 {
		t.Fatalf("чужая заявка не должна сохраняться: %+v", requests)
	}

	// владелец заказа подаёт заявку как обычно
	if _, err := payment.SubmitPaymentRequest(ctx, owner.ID, "tg: @owner", order.OrderNumber); err != nil {
		t.Fatalf("заявка владельца должна приниматься: %v", err)
	}
}

func TestApprovePaymentRequest(t *testing.T) {
	store := kvstore.NewMemoryStore()
	usage := NewUsageService(repository.NewUsageRepository(store), testQuotaConfig())
	auth := NewAuthService(repository.NewUserRepository(store), repository.NewTokenRepository(store), usage,
		repository.NewVoiceHistoryRepository(store))
	notifier := &recordingNotifier{}
	payment := NewPaymentService(repository.NewOrderRepository(store), auth, testEpay(), notifier)

	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, user.ID, models.MembershipAgent)
	req, err := payment.SubmitPaymentRequest(ctx, user.ID, "tg: @testuser", order.OrderNumber)
	if err != nil {
		t.Fatalf("ошибка подачи заявки: %v", err)
	}

	if err := payment.ApprovePaymentRequest(ctx, req.ID, "admin-1"); err != nil {
		t.Fatalf("ошибка одобрения заявки: %v", err)
	}

	got, _ := auth.GetUserByID(ctx, user.ID)
	if !got.IsVip || got.MembershipType != models.MembershipAgent {
		t.Fatal("одобрение заявки должно выдать членство")
	}

	requests, _ := payment.ListPaymentRequests(ctx)
	if len(requests) != 1 || requests[0].Status != models.OrderStatusCompleted {
		t.Fatal("заявка должна быть закрыта")
	}
	if requests[0].ReviewedBy != "admin-1" || requests[0].ReviewedAt == nil {
		t.Fatal("в заявке фиксируется, кто и когда её рассмотрел")
	}

	// повторное решение по той же заявке отклоняется
	if err := payment.ApprovePaymentRequest(ctx, req.ID, "admin-2"); !errors.Is(err, ErrRequestNotPending) {
		t.Fatalf("повторное одобрение заявки запрещено: %v", err)
	}
}

func TestRejectPaymentRequest(t *testing.T) {
	payment, auth := newTestPaymentService()
	user := registerTestUser(t, auth, "testuser", "test@example.com")
	ctx := context.Background()

	order, _, _ := payment.CreatePayment(ctx, user.ID, models.MembershipAnnual)
	req, _ := payment.SubmitPaymentRequest(ctx, user.ID, "tg: @testuser", order.OrderNumber)

	if err := payment.RejectPaymentRequest(ctx, req.ID, "admin-1"); err != nil {
		t.Fatalf("ошибка отклонения заявки: %v", err)
	}

	got, _ := auth.GetUserByID(ctx, user.ID)
	if got.IsVip {
		t.Fatal("отклонённая заявка не выдаёт членство")
	}
	orders, _ := payment.ListOrdersByUser(ctx, user.ID)
	if orders[0].Status != models.OrderStatusRejected {
		t.Fatalf("связанный заказ отклоняется вместе с заявкой: %s", orders[0].Status)
	}
}
