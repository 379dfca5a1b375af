package backfill

import (
	"context"
	"time"
)

// Order is a delivered order in the surrounding order workflow whose payment
// must have produced exactly one ledger effect.
type Order struct {
	SellerID    string
	OrderRef    string
	Amount      int64
	DeliveredAt time.Time
}

// OrderSource represents a connector to the external order/shipment workflow.
type OrderSource interface {
	DeliveredOrders(ctx context.Context) ([]Order, error)
}

// StaticSource serves a fixed order list; the zero value serves none.
type StaticSource struct {
	Orders []Order
}

// DeliveredOrders returns the configured orders.
func (s StaticSource) DeliveredOrders(_ context.Context) ([]Order, error) {
	return s.Orders, nil
}
