package service

import (
	"context"

	"github.com/iliyamo/sorting-hall/internal/queue"
)

// Gateway is the outbound side of the transport fleet.
type Gateway interface {
	// BeginMove asks the fleet to move a pallet from row to table and
	// returns the order id the fleet assigned.  A response without a
	// usable id is reported as fleet.ErrNoOrderID.
	BeginMove(ctx context.Context, row, table string) (int64, error)
	// CancelOrder asks the fleet to abandon an order.
	CancelOrder(ctx context.Context, orderID int64) error
}

// Notifier is told that the observable hall state changed.
type Notifier interface {
	HallChanged(ctx context.Context) error
}

// EventPublisher receives terminal call transitions.
type EventPublisher interface {
	PublishCallEvent(ctx context.Context, ev queue.RowCallEvent) error
}

type nopNotifier struct{}

func (nopNotifier) HallChanged(context.Context) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishCallEvent(context.Context, queue.RowCallEvent) error { return nil }
