package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"nexusai/internal/kvstore"
	"nexusai/internal/logger"
	"nexusai/internal/models"

	"go.uber.org/zap"
)

// OrderRepository — заказы (nexusAi_orders), заявки на ручную проверку
// (nexusAi_payment_requests) и журнал оплат (nexusAi_payments).
type OrderRepository struct {
	store kvstore.Store
}

func NewOrderRepository(store kvstore.Store) *OrderRepository {
	return &OrderRepository{store: store}
}

func decodeOrders(raw []byte) (map[string]*models.PaymentOrder, error) {
	orders := map[string]*models.PaymentOrder{}
	if len(raw) == 0 {
		return orders, nil
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		logger.Log.Error("Повреждён блоб nexusAi_orders (repo)", zap.Error(err))
		return nil, ErrCorruptRecord
	}
	return orders, nil
}

func (r *OrderRepository) SaveOrder(ctx context.Context, order *models.PaymentOrder) error {
	logger.Log.Info("Сохранение заказа (repo)",
		zap.String("order_number", order.OrderNumber), zap.String("user_id", order.UserID))
	return r.store.Update(ctx, kvstore.KeyOrders, func(old []byte) ([]byte, error) {
		orders, err := decodeOrders(old)
		if err != nil {
			return nil, err
		}
		orders[order.OrderNumber] = order
		return json.Marshal(orders)
	})
}

func (r *OrderRepository) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.PaymentOrder, error) {
	raw, err := r.store.Get(ctx, kvstore.KeyOrders)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	orders, err := decodeOrders(raw)
	if err != nil {
		return nil, err
	}
	o, ok := orders[orderNumber]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// MutateOrder атомарно меняет заказ; fn видит актуальное состояние под замком.
func (r *OrderRepository) MutateOrder(ctx context.Context, orderNumber string, fn func(*models.PaymentOrder) error) error {
	return r.store.Update(ctx, kvstore.KeyOrders, func(old []byte) ([]byte, error) {
		orders, err := decodeOrders(old)
		if err != nil {
			return nil, err
		}
		o, ok := orders[orderNumber]
		if !ok {
			return nil, ErrOrderNotFound
		}
		if err := fn(o); err != nil {
			return nil, err
		}
		o.UpdatedAt = time.Now().UTC()
		return json.Marshal(orders)
	})
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]*models.PaymentOrder, error) {
	raw, err := r.store.Get(ctx, kvstore.KeyOrders)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []*models.PaymentOrder{}, nil
	}
	if err != nil {
		return nil, err
	}
	orders, err := decodeOrders(raw)
	if err != nil {
		return nil, err
	}
	out := make([]*models.PaymentOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *OrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]*models.PaymentOrder, error) {
	all, err := r.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.PaymentOrder, 0)
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- Заявки на ручную проверку ---

func decodeRequests(raw []byte) ([]*models.PaymentRequest, error) {
	var reqs []*models.PaymentRequest
	if len(raw) == 0 {
		return reqs, nil
	}
	if err := json.Unmarshal(raw, &reqs); err != nil {
		logger.Log.Error("Повреждён блоб заявок на оплату (repo)", zap.Error(err))
		return nil, ErrCorruptRecord
	}
	return reqs, nil
}

func (r *OrderRepository) SavePaymentRequest(ctx context.Context, req *models.PaymentRequest) error {
	logger.Log.Info("Сохранение заявки на оплату (repo)",
		zap.String("order_number", req.OrderNumber), zap.String("user_id", req.UserID))
	return r.store.Update(ctx, kvstore.KeyPaymentRequests, func(old []byte) ([]byte, error) {
		reqs, err := decodeRequests(old)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
		return json.Marshal(reqs)
	})
}

// ListPaymentRequests читает заявки; при пустом новом ключе один раз
// переносит устаревший paymentRequests под новый ключ, чтобы заявки из
// него можно было одобрять и отклонять наравне с новыми.
func (r *OrderRepository) ListPaymentRequests(ctx context.Context) ([]*models.PaymentRequest, error) {
	raw, err := r.store.Get(ctx, kvstore.KeyPaymentRequests)
	if errors.Is(err, kvstore.ErrNotFound) {
		raw, err = r.store.Get(ctx, kvstore.KeyLegacyPaymentRequests)
		if errors.Is(err, kvstore.ErrNotFound) {
			return []*models.PaymentRequest{}, nil
		}
		if err == nil {
			if merr := r.migrateLegacyRequests(ctx, raw); merr != nil {
				return nil, merr
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return decodeRequests(raw)
}

func (r *OrderRepository) migrateLegacyRequests(ctx context.Context, raw []byte) error {
	// валидируем до переноса — повреждённый блоб не кочует под новый ключ
	if _, err := decodeRequests(raw); err != nil {
		return err
	}
	err := r.store.Update(ctx, kvstore.KeyPaymentRequests, func(old []byte) ([]byte, error) {
		if old != nil {
			// кто-то успел записать новый ключ раньше нас
			return nil, kvstore.ErrNoChange
		}
		return raw, nil
	})
	if errors.Is(err, kvstore.ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Log.Info("Заявки перенесены с устаревшего ключа (repo)",
		zap.String("from", kvstore.KeyLegacyPaymentRequests),
		zap.String("to", kvstore.KeyPaymentRequests))
	return nil
}

func (r *OrderRepository) MutatePaymentRequest(ctx context.Context, id string, fn func(*models.PaymentRequest) error) error {
	return r.store.Update(ctx, kvstore.KeyPaymentRequests, func(old []byte) ([]byte, error) {
		reqs, err := decodeRequests(old)
		if err != nil {
			return nil, err
		}
		for _, req := range reqs {
			if req.ID == id {
				if err := fn(req); err != nil {
					return nil, err
				}
				return json.Marshal(reqs)
			}
		}
		return nil, ErrRequestNotFound
	})
}

// --- Журнал оплат ---

func (r *OrderRepository) AppendPayment(ctx context.Context, rec *models.PaymentRecord) error {
	return r.store.Update(ctx, kvstore.KeyPayments, func(old []byte) ([]byte, error) {
		var recs []*models.PaymentRecord
		if len(old) > 0 {
			if err := json.Unmarshal(old, &recs); err != nil {
				return nil, ErrCorruptRecord
			}
		}
		recs = append(recs, rec)
		return json.Marshal(recs)
	})
}

func (r *OrderRepository) CountOrders(ctx context.Context) (pending, completed, rejected int, err error) {
	all, err := r.ListOrders(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, o := range all {
		switch o.Status {
		case models.OrderStatusPending:
			pending++
		case models.OrderStatusCompleted:
			completed++
		case models.OrderStatusRejected:
			rejected++
		}
	}
	return pending, completed, rejected, nil
}
