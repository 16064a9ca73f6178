package httpx

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
)

// EventPublisher fans order lifecycle events out to their per-topic
// producers. Publishing happens after the database commit, so an event may
// be lost on a crash in between; consumers treat the database as truth.
type EventPublisher struct {
	Service       string
	Created       *kafkax.Producer
	Cancelled     *kafkax.Producer
	StatusChanged *kafkax.Producer
	Payment       *kafkax.Producer
}

func (p *EventPublisher) publish(prod *kafkax.Producer, r *http.Request, eventType, orderID string, payload any) {
	if prod == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	prod.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (p *EventPublisher) OrderCreated(r *http.Request, o *orders.Order) {
	items := make([]orders.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	p.publish(p.Created, r, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		Items:       items,
	})
}

func (p *EventPublisher) OrderCancelled(r *http.Request, o *orders.Order, restored []orders.ItemQty) {
	p.publish(p.Cancelled, r, orders.EventOrderCancelled, o.ID, orders.OrderCancelledPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Restored:    restored,
	})
}

func (p *EventPublisher) OrderStatusChanged(r *http.Request, orderID string, from, to orders.Status) {
	p.publish(p.StatusChanged, r, orders.EventOrderStatusChanged, orderID, orders.OrderStatusChangedPayload{
		OrderID:   orderID,
		OldStatus: from,
		NewStatus: to,
	})
}

func (p *EventPublisher) PaymentUpdated(r *http.Request, orderID string, ps orders.PaymentStatus, ref string) {
	p.publish(p.Payment, r, orders.EventPaymentUpdated, orderID, orders.PaymentUpdatedPayload{
		OrderID:       orderID,
		PaymentStatus: ps,
		PaymentRef:    ref,
	})
}
