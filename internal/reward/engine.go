// Package reward computes per-winner payout tiers for a brief's reward pool.
// ComputeTiers is a pure function of (pool, winnerCount): the same inputs
// always produce the same tiers, so it serves both live winner selection and
// backfill of briefs missing reward rows.
package reward

import "errors"

var ErrInvalidWinnerCount = errors.New("winner count must be positive")

// Tier is one position-ranked payout for a brief's winners.
type Tier struct {
	Position         int    `json:"position"`
	CashAmount       int64  `json:"cash_amount"`
	CreditAmount     int64  `json:"credit_amount"`
	CalculatedAmount int64  `json:"calculated_amount"`
	PrizeDescription string `json:"prize_description,omitempty"`
}

// Fixed splits, in percent, for small winner counts. Larger counts share the
// pool equally.
var splits = map[int][]int64{
	1: {100},
	2: {60, 40},
	3: {50, 30, 20},
}

// ComputeTiers splits pool across winners positions. Amounts use integer
// division; any remainder goes to position 1 so the tier sum always equals
// the pool and never exceeds it. A zero pool yields all-zero tiers.
func ComputeTiers(pool int64, winners int) ([]Tier, error) {
	if winners <= 0 {
		return nil, ErrInvalidWinnerCount
	}

	amounts := make([]int64, winners)
	if pool > 0 {
		if pct, ok := splits[winners]; ok {
			for i, p := range pct {
				amounts[i] = pool * p / 100
			}
		} else {
			share := pool / int64(winners)
			for i := range amounts {
				amounts[i] = share
			}
		}
		var distributed int64
		for _, a := range amounts {
			distributed += a
		}
		amounts[0] += pool - distributed
	}

	tiers := make([]Tier, winners)
	for i, a := range amounts {
		tiers[i] = Tier{
			Position:         i + 1,
			CashAmount:       a,
			CalculatedAmount: a, // cash + credit; credit defaults to 0
		}
	}
	return tiers, nil
}
