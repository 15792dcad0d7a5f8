package service

import (
	"strings"

	"github.com/iliyamo/sorting-hall/internal/model"
)

// Severity grades an activity message for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Activity is a human readable description of what the fleet is doing
// for a call.
type Activity struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// DescribeActivity derives the activity of a call from its order id and
// the last raw callback action and status.
func DescribeActivity(call *model.RowCall) Activity {
	if call.OrderID == nil {
		return Activity{"waiting for the operator to add a pallet", SeverityInfo}
	}
	if strings.TrimSpace(call.LastAction) == "" && strings.TrimSpace(call.LastStatus) == "" {
		return Activity{"order sent to the fleet, waiting for the first robot report", SeverityInfo}
	}

	switch model.ParseFleetStatus(call.LastStatus) {
	case model.StatusOrderCanceled:
		return Activity{"request cancelled, the fleet is putting the pallet away", SeverityWarning}
	case model.StatusPalletNotFound:
		return Activity{"no pallet found in the row, the request cannot be completed", SeverityError}
	case model.StatusOccupied:
		return Activity{"target table is occupied, the fleet waits for it to clear", SeverityWarning}
	case model.StatusOK:
		switch model.ParseFleetAction(call.LastAction) {
		case model.ActionPickup:
			return Activity{"pallet picked up, on its way to the table", SeverityInfo}
		case model.ActionDrop:
			return Activity{"pallet delivered to the table", SeverityInfo}
		}
		return Activity{"fleet completed a workflow step", SeverityInfo}
	}
	return Activity{"fleet is processing the request", SeverityInfo}
}
