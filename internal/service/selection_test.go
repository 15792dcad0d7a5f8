package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sorting-hall/internal/model"
)

func rowWith(id int64, name, article string, occupied, capacity int) model.Row {
	r := model.Row{ID: id, Name: name, Article: article, Capacity: capacity}
	for pos := 0; pos < capacity; pos++ {
		state := model.SlotEmpty
		if pos < occupied {
			state = model.SlotOccupied
		}
		r.Slots = append(r.Slots, model.Slot{ID: id*100 + int64(pos), RowID: id, Position: pos, State: state})
	}
	return r
}

func TestSelectRowTieBreakLeftmost(t *testing.T) {
	rows := []model.Row{
		rowWith(2, "B", "X", 2, 4),
		rowWith(1, "A", "X", 2, 4),
	}
	got, ok := SelectRow("X", rows, nil, model.StrategyMostFreePallets)
	require.True(t, ok)
	assert.Equal(t, "A", got.Name)
}

func TestSelectRowMostFreePallets(t *testing.T) {
	rows := []model.Row{
		rowWith(1, "A", "X", 3, 4),
		rowWith(2, "B", "X", 2, 4),
		rowWith(3, "C", "Y", 4, 4),
	}
	got, ok := SelectRow("X", rows, nil, model.StrategyMostFreePallets)
	require.True(t, ok)
	assert.Equal(t, "A", got.Name)

	// two of A's pallets are promised to dispatched calls
	got, ok = SelectRow("X", rows, map[int64]int{1: 2}, model.StrategyMostFreePallets)
	require.True(t, ok)
	assert.Equal(t, "B", got.Name)
}

func TestSelectRowNearest(t *testing.T) {
	rows := []model.Row{
		rowWith(3, "C", "X", 0, 2),
		rowWith(1, "A", "X", 0, 2),
		rowWith(2, "B", "X", 2, 2),
	}
	left, ok := SelectRow("X", rows, nil, model.StrategyNearestLeft)
	require.True(t, ok)
	assert.Equal(t, "A", left.Name)

	right, ok := SelectRow("X", rows, nil, model.StrategyNearestRight)
	require.True(t, ok)
	assert.Equal(t, "C", right.Name)
}

func TestSelectRowNoCandidate(t *testing.T) {
	rows := []model.Row{rowWith(1, "A", "X", 1, 2), rowWith(2, "B", "", 0, 2)}
	_, ok := SelectRow("Y", rows, nil, model.StrategyMostFreePallets)
	assert.False(t, ok)
	_, ok = SelectRow("", rows, nil, model.StrategyNearestLeft)
	assert.False(t, ok)
}

func TestSelectRowDeterministic(t *testing.T) {
	rows := []model.Row{
		rowWith(1, "B", "X", 1, 2),
		rowWith(2, "A", "X", 1, 2),
	}
	first, _ := SelectRow("X", rows, nil, model.Strategy("bogus"))
	for i := 0; i < 10; i++ {
		again, _ := SelectRow("X", rows, nil, model.Strategy("bogus"))
		assert.Equal(t, first.ID, again.ID)
	}
	assert.Equal(t, "A", first.Name)
	assert.Equal(t, "B", rows[0].Name, "input order is left untouched")
}

func TestAvailablePalletsCountsBackedInTransit(t *testing.T) {
	r := rowWith(1, "A", "X", 2, 3)
	r.Slots[0].State = model.SlotInTransit
	assert.Equal(t, 1, AvailablePallets(&r, 0), "unbacked in-transit slot holds no pallet")
	assert.Equal(t, 1, AvailablePallets(&r, 1))
	assert.Equal(t, 0, AvailablePallets(&r, 2))
	assert.Equal(t, -1, AvailablePallets(&r, 3))
}
