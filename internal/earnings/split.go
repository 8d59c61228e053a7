package earnings

import (
	"github.com/shopspring/decimal"
)

// Split divides cost into n shares rounded down to paise. Whatever the
// rounding leaves over goes to the first share so the shares always sum to
// cost.
func Split(cost decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	count := decimal.NewFromInt(int64(n))
	share := cost.Div(count).Truncate(2)
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = share
	}
	shares[0] = shares[0].Add(cost.Sub(share.Mul(count)))
	return shares
}
