// Package odds computes display prices from relative stake concentration.
//
// The price of an option is grand_total / option_total as a floating-point
// ratio. This is deliberately a naive relative-scarcity price, not a
// constant-product or LMSR bonding curve: it is a known simplification and
// the stable, testable contract of the engine. A market with all stake on
// one option prices that option at exactly 1.0. Replacing the formula is a
// policy decision for a different engine, not a fix to this one.
//
// The package is pure: it owns no state and reads only the aggregates the
// betting ledger hands it.
package odds

// Calculate returns the display price for one option of a market given the
// per-option stake totals. The second return is false when there is no
// information to price from: no stake on the option, or no stake at all.
func Calculate(totals map[uint32]uint64, optionIndex uint32) (float64, bool) {
	grand := GrandTotal(totals)
	option := totals[optionIndex]
	if grand == 0 || option == 0 {
		return 0, false
	}
	return float64(grand) / float64(option), true
}

// GrandTotal sums all per-option stake totals.
func GrandTotal(totals map[uint32]uint64) uint64 {
	var sum uint64
	for _, amt := range totals {
		sum += amt
	}
	return sum
}

// OptionOdds is one row of a market's odds board.
type OptionOdds struct {
	OptionIndex uint32  `json:"option_index"`
	Label       string  `json:"label"`
	Staked      uint64  `json:"staked"`
	Odds        float64 `json:"odds,omitempty"`
	Priced      bool    `json:"priced"`
}

// Board returns the odds for every option of a market, unpriced options
// included, in option-index order.
func Board(options []string, totals map[uint32]uint64) []OptionOdds {
	board := make([]OptionOdds, len(options))
	for i, label := range options {
		idx := uint32(i)
		row := OptionOdds{
			OptionIndex: idx,
			Label:       label,
			Staked:      totals[idx],
		}
		row.Odds, row.Priced = Calculate(totals, idx)
		board[i] = row
	}
	return board
}
