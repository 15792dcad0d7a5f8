// Package queue carries row call events over RabbitMQ: a publisher used by
// the dispatch service and a consumer that appends the events to an
// activity log file.
package queue

// CallEventsQueue is the durable queue terminal call transitions are
// published to.
const CallEventsQueue = "rowcall.events"

// RowCallEvent is published when a row call reaches a terminal state
// (delivered or cancelled).  It carries enough information for downstream
// consumers to log or report without querying the hall database.
type RowCallEvent struct {
	CallID     int64  `json:"call_id"`
	Table      string `json:"table"`
	Row        string `json:"row"`
	Article    string `json:"article"`
	OrderID    *int64 `json:"order_id,omitempty"`
	Status     string `json:"status"`
	Action     string `json:"action,omitempty"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
