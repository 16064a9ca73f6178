package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_ForwardPath(t *testing.T) {
	path := []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestCanTransition_NoSkippingOrRewinding(t *testing.T) {
	assert.False(t, CanTransition(StatusPending, StatusProcessing))
	assert.False(t, CanTransition(StatusPending, StatusShipped))
	assert.False(t, CanTransition(StatusConfirmed, StatusPending))
	assert.False(t, CanTransition(StatusShipped, StatusProcessing))
}

func TestCanTransition_AbsorbingStates(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped} {
		assert.True(t, CanTransition(from, StatusCancelled), "%s -> cancelled", from)
		assert.True(t, CanTransition(from, StatusRefunded), "%s -> refunded", from)
	}
	for _, terminal := range []Status{StatusDelivered, StatusCancelled, StatusRefunded} {
		assert.True(t, terminal.Terminal())
		for _, to := range []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusRefunded} {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusRefunded.Valid())
	assert.False(t, Status("shipping").Valid())
	assert.False(t, Status("").Valid())
}

func TestPaymentStatusValid(t *testing.T) {
	assert.True(t, PaymentPartiallyRefunded.Valid())
	assert.False(t, PaymentStatus("charged").Valid())
}

func TestCanBeCancelled(t *testing.T) {
	o := Order{Status: StatusPending}
	assert.True(t, o.CanBeCancelled())
	o.Status = StatusConfirmed
	assert.True(t, o.CanBeCancelled())
	o.Status = StatusProcessing
	assert.False(t, o.CanBeCancelled())
	o.Status = StatusDelivered
	assert.False(t, o.CanBeCancelled())
}

func TestCanBeRefunded(t *testing.T) {
	o := Order{Status: StatusDelivered, PayStatus: PaymentPaid}
	assert.True(t, o.CanBeRefunded())

	o.PayStatus = PaymentPending
	assert.False(t, o.CanBeRefunded())

	o.PayStatus = PaymentPaid
	o.Status = StatusCancelled
	assert.False(t, o.CanBeRefunded())
	o.Status = StatusRefunded
	assert.False(t, o.CanBeRefunded())
}

func TestGenerateOrderNumber_Format(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	for i := 0; i < 100; i++ {
		n := GenerateOrderNumber(now)
		assert.Regexp(t, `^ORD-20250314-\d{4}$`, n)
	}
}
