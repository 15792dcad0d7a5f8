package model

import "strings"

// Strategy selects which row serves an article request when several rows
// hold the same article.
type Strategy string

const (
	// StrategyMostFreePallets picks the row with the most pallets that are
	// not already promised to a dispatched call.
	StrategyMostFreePallets Strategy = "MOST_FREE_PALLETS"
	// StrategyNearestLeft picks the first row in name order.
	StrategyNearestLeft Strategy = "NEAREST_LEFT"
	// StrategyNearestRight picks the last row in name order.
	StrategyNearestRight Strategy = "NEAREST_RIGHT"
)

// ParseStrategy accepts the stored form as well as lower case or dashed
// spellings ("nearest-left").  ok is false for unknown input.
func ParseStrategy(raw string) (Strategy, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	switch Strategy(s) {
	case StrategyMostFreePallets, StrategyNearestLeft, StrategyNearestRight:
		return Strategy(s), true
	}
	return "", false
}

// HallSettings is the singleton settings record of the hall.  It is
// changed only by the operator.
type HallSettings struct {
	ID       int64    // hall_settings.id (always 1)
	Strategy Strategy // hall_settings.row_selection_strategy
}
