package redisx

import "time"

const (
	// Cache order status+payment status: order_status:{order_id}
	KeyOrderStatus = "order_status:%s"

	// Cache cart item count: cart_count:{user_id}
	KeyCartCount = "cart_count:%s"

	// Dedup webhook/event processing: dedup:{service}:{id}
	// (id = gateway event id, or event_id from the kafka envelope)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLCartCount   = 10 * time.Minute
	TTLDedup       = 48 * time.Hour
)
