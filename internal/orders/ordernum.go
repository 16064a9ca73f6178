package orders

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateOrderNumber returns ORD-YYYYMMDD-NNNN. The 4-digit suffix alone
// is not collision proof, so callers creating orders retry with a fresh
// number when the unique index on order_number rejects the insert.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.UTC().Format("20060102"), rand.Intn(10000))
}
