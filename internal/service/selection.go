package service

import (
	"sort"

	"github.com/iliyamo/sorting-hall/internal/model"
)

// AvailablePallets is the number of pallets of a row that are not yet
// promised to a dispatched call: pallets held by the row minus pending
// calls that already carry a fleet order id.  An in-transit slot only
// counts while a dispatched call backs it; one left behind by a call
// cancelled after pickup holds no pallet.
func AvailablePallets(row *model.Row, dispatched int) int {
	inTransit := min(row.CountState(model.SlotInTransit), dispatched)
	return row.CountState(model.SlotOccupied) + inTransit - dispatched
}

// SelectRow picks the row that serves a request for article.
//
// Candidates are the rows holding article, ordered by name; that order is
// the hall's left-to-right order.  NearestLeft takes the first candidate,
// NearestRight the last and MostFreePallets the one with the most
// available pallets, the leftmost winning ties.  dispatched maps row ids
// to their dispatched pending call count; missing rows count as zero.
//
// SelectRow has no side effects and returns the same row for the same
// input.  ok is false when no row holds the article.
func SelectRow(article string, rows []model.Row, dispatched map[int64]int, strategy model.Strategy) (*model.Row, bool) {
	candidates := make([]*model.Row, 0, len(rows))
	for i := range rows {
		if rows[i].Article != "" && rows[i].Article == article {
			candidates = append(candidates, &rows[i])
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].ID < candidates[j].ID
	})

	switch strategy {
	case model.StrategyNearestLeft:
		return candidates[0], true
	case model.StrategyNearestRight:
		return candidates[len(candidates)-1], true
	}

	best := candidates[0]
	bestAvail := AvailablePallets(best, dispatched[best.ID])
	for _, c := range candidates[1:] {
		if avail := AvailablePallets(c, dispatched[c.ID]); avail > bestAvail {
			best, bestAvail = c, avail
		}
	}
	return best, true
}
