package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-commerce.git/internal/logx"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
	"github.com/ariefcatur/go-commerce.git/internal/redisx"
)

// Service tails the order event topics and keeps the redis status cache
// warm, so GET /orders/{id}/status rarely hits postgres. It also stands in
// for the notification hooks (confirmation mail, shipping mail) which today
// are just structured log lines.
type Service struct {
	Redis *redis.Client
	Log   *logx.Logger
}

// Handle is installed as the consumer handler for every order topic; it
// switches on the envelope's event type.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup on event_id; at-least-once delivery means replays happen
	dkey := fmt.Sprintf(redisx.KeyDedup, "worker", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderCreated:
		return s.onCreated(ctx, &env)
	case orders.EventOrderCancelled:
		return s.onCancelled(ctx, &env)
	case orders.EventOrderStatusChanged:
		return s.onStatusChanged(ctx, &env)
	case orders.EventPaymentUpdated:
		return s.onPaymentUpdated(ctx, &env)
	default:
		s.Log.Debug("ignoring event", "event_type", env.EventType)
		return nil
	}
}

func (s *Service) onCreated(ctx context.Context, env *orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}
	s.cacheStatus(ctx, p.OrderID, orders.StatusPending, orders.PaymentPending)
	s.Log.Info("order confirmation queued",
		"order_id", p.OrderID, "order_number", p.OrderNumber,
		"user_id", p.UserID, "total", p.TotalAmount, "currency", p.Currency)
	return nil
}

func (s *Service) onCancelled(ctx context.Context, env *orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	if err != nil {
		return err
	}
	s.cacheStatus(ctx, p.OrderID, orders.StatusCancelled, "")
	s.Log.Info("order cancelled",
		"order_id", p.OrderID, "order_number", p.OrderNumber, "restored_items", len(p.Restored))
	return nil
}

func (s *Service) onStatusChanged(ctx context.Context, env *orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}
	s.cacheStatus(ctx, p.OrderID, p.NewStatus, "")
	if p.NewStatus == orders.StatusShipped {
		s.Log.Info("shipping notice queued", "order_id", p.OrderID)
	}
	s.Log.Info("order status changed", "order_id", p.OrderID, "from", p.OldStatus, "to", p.NewStatus)
	return nil
}

func (s *Service) onPaymentUpdated(ctx context.Context, env *orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.PaymentUpdatedPayload](env.Payload)
	if err != nil {
		return err
	}
	s.cacheStatus(ctx, p.OrderID, "", p.PaymentStatus)
	s.Log.Info("payment updated", "order_id", p.OrderID, "payment_status", p.PaymentStatus, "payment_ref", p.PaymentRef)
	return nil
}

// cacheStatus merges what the event carries into the cached status body.
// Empty status/payment fields keep whatever the cache already holds.
func (s *Service) cacheStatus(ctx context.Context, orderID string, st orders.Status, ps orders.PaymentStatus) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)

	body := map[string]any{"order_id": orderID}
	if cur, err := s.Redis.Get(ctx, key).Result(); err == nil && cur != "" {
		_ = json.Unmarshal([]byte(cur), &body)
	}
	if st != "" {
		body["status"] = st
	}
	if ps != "" {
		body["payment_status"] = ps
	}
	b, _ := json.Marshal(body)
	_ = s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
