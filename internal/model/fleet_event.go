package model

import "strings"

// FleetAction is the step of a fleet order reported by a callback.
type FleetAction int

const (
	ActionUnknown FleetAction = iota
	ActionPickup
	ActionDrop
)

func (a FleetAction) String() string {
	switch a {
	case ActionPickup:
		return "pickup"
	case ActionDrop:
		return "drop"
	}
	return "unknown"
}

// FleetStatus is the outcome of a fleet order step.
type FleetStatus int

const (
	StatusUnknown FleetStatus = iota
	StatusOK
	StatusPalletNotFound
	StatusOccupied
	StatusOrderCanceled
)

func (s FleetStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPalletNotFound:
		return "pallet_not_found"
	case StatusOccupied:
		return "occupied"
	case StatusOrderCanceled:
		return "order_canceled"
	}
	return "unknown"
}

// ParseFleetAction maps the raw callback action onto a FleetAction.  It
// never fails; anything unexpected becomes ActionUnknown.
func ParseFleetAction(raw string) FleetAction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pickup":
		return ActionPickup
	case "drop":
		return ActionDrop
	}
	return ActionUnknown
}

// ParseFleetStatus maps the raw callback status onto a FleetStatus.  It
// never fails; anything unexpected becomes StatusUnknown.
func ParseFleetStatus(raw string) FleetStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ok":
		return StatusOK
	case "pallet_not_found":
		return StatusPalletNotFound
	case "occupied":
		return StatusOccupied
	case "order_canceled":
		return StatusOrderCanceled
	}
	return StatusUnknown
}

// FleetEvent is a delivery callback received from the fleet.  Row and
// Table are advisory; the order id is the correlation key.
type FleetEvent struct {
	OrderID int64
	Action  string
	Status  string
	Row     string
	Table   string
}
