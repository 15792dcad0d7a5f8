package model

// Row is one physical storage lane in the hall.  A row stores pallets of
// a single article in a fixed number of slots.  Slots are kept ordered by
// position; position 0 is the end the fleet picks up from.
//
// Fields:
//  ID       – primary key identifier.
//  Name     – display name, also the name the fleet knows the lane by.
//  ColorHex – colour used by the hall displays.
//  Capacity – number of slots in the lane.
//  Article  – article label currently assigned (empty = unassigned).
//  Slots    – slots ordered by position, loaded by the repository.
type Row struct {
	ID       int64  // hall_rows.id
	Name     string // hall_rows.name
	ColorHex string // hall_rows.color_hex
	Capacity int    // hall_rows.capacity
	Article  string // hall_rows.article
	Slots    []Slot // pallet_slots ordered by position_index
}

// CountState returns how many slots of the row are in the given state.
func (r *Row) CountState(state SlotState) int {
	n := 0
	for _, s := range r.Slots {
		if s.State == state {
			n++
		}
	}
	return n
}

// OccupiedCount returns the number of slots not empty.  A pallet in
// transit keeps its slot counted until the drop frees it.
func (r *Row) OccupiedCount() int {
	return r.CountState(SlotOccupied) + r.CountState(SlotInTransit)
}

// LowestSlot returns the slot with the smallest position in the given
// state, or nil when no slot matches.
func (r *Row) LowestSlot(state SlotState) *Slot {
	var found *Slot
	for i := range r.Slots {
		s := &r.Slots[i]
		if s.State != state {
			continue
		}
		if found == nil || s.Position < found.Position {
			found = s
		}
	}
	return found
}

// HighestSlot returns the slot with the largest position in the given
// state, or nil when no slot matches.
func (r *Row) HighestSlot(state SlotState) *Slot {
	var found *Slot
	for i := range r.Slots {
		s := &r.Slots[i]
		if s.State != state {
			continue
		}
		if found == nil || s.Position > found.Position {
			found = s
		}
	}
	return found
}
