package model

import "time"

// CallStatus is the lifecycle state of a row call.  Delivered and
// Cancelled are terminal.
type CallStatus string

const (
	CallPending   CallStatus = "PENDING"
	CallDelivered CallStatus = "DELIVERED"
	CallCancelled CallStatus = "CANCELLED"
)

// Terminal reports whether the status can no longer change.
func (s CallStatus) Terminal() bool {
	return s == CallDelivered || s == CallCancelled
}

// RowCall is a table's request for one pallet from a row.  A call is
// created Pending, receives the fleet order id once it is dispatched and
// ends Delivered or Cancelled.  Calls are never deleted.
//
// Fields:
//  ID          – primary key identifier.
//  TableID     – table that issued the call.
//  RowID       – target row (nil for a call without a lane).
//  RequestedAt – creation time in UTC; defines the dispatch order.
//  Status      – lifecycle state.
//  OrderID     – fleet order id, set at most once.
//  LastAction  – raw action string of the last fleet callback.
//  LastStatus  – raw status string of the last fleet callback.
//  TableName   – joined from work_tables, read only.
//  RowName     – joined from hall_rows, read only.
//  Article     – joined from hall_rows, read only.
type RowCall struct {
	ID          int64      // row_calls.id
	TableID     int64      // row_calls.table_id
	RowID       *int64     // row_calls.row_id (nullable)
	RequestedAt time.Time  // row_calls.requested_at
	Status      CallStatus // row_calls.status
	OrderID     *int64     // row_calls.order_id (nullable)
	LastAction  string     // row_calls.last_action
	LastStatus  string     // row_calls.last_status
	TableName   string     // work_tables.name
	RowName     string     // hall_rows.name
	Article     string     // hall_rows.article
}

// Dispatched reports whether the call has been handed to the fleet.
func (c *RowCall) Dispatched() bool { return c.OrderID != nil }
