package model

import "strings"

// SlotState is the state of a single pallet position.
type SlotState string

const (
	SlotEmpty     SlotState = "EMPTY"      // no pallet
	SlotOccupied  SlotState = "OCCUPIED"   // pallet waiting in the lane
	SlotInTransit SlotState = "IN_TRANSIT" // pallet picked up, not yet dropped
)

// Valid reports whether s is one of the known slot states.
func (s SlotState) Valid() bool {
	switch s {
	case SlotEmpty, SlotOccupied, SlotInTransit:
		return true
	}
	return false
}

// ParseSlotState converts a stored value into a SlotState.  Unknown values
// are treated as empty.
func ParseSlotState(raw string) SlotState {
	s := SlotState(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return SlotEmpty
	}
	return s
}

// Slot is one pallet position inside a row.
//
// Fields:
//  ID       – primary key identifier.
//  RowID    – owning row.
//  Position – index in [0, capacity); 0 is the dispatch end.
//  State    – current slot state.
type Slot struct {
	ID       int64     // pallet_slots.id
	RowID    int64     // pallet_slots.row_id
	Position int       // pallet_slots.position_index
	State    SlotState // pallet_slots.state
}
