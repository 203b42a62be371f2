/*
policy.go - Deployment policy and balance arithmetic

PURPOSE:
  Collects the knobs a deployment chooses once:
  - MaxBalance:      ceiling checked against the POST-charge balance
  - LockPolicy:      blocking vs try-lock acquisition
  - ConsistentReads: whether balance queries take the per-user lock

CEILING:
  A charge is accepted iff balance+amount <= MaxBalance. Checking only the
  pre-charge balance would let a single large charge land arbitrarily far
  above the ceiling. MaxBalance <= 0 disables the ceiling; the int64 range is
  still enforced.

ARITHMETIC:
  Sums are computed with decimal so an absurd charge (close to MaxInt64)
  is reported as exceeding the ceiling instead of wrapping negative.
*/
package point

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultMaxBalance is the ceiling used when none is configured.
const DefaultMaxBalance int64 = 1_000_000

type Policy struct {
	MaxBalance      int64
	LockPolicy      LockPolicy
	ConsistentReads bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxBalance: DefaultMaxBalance,
		LockPolicy: LockBlocking,
	}
}

// ceiling returns the effective upper bound for a balance.
func (p Policy) ceiling() int64 {
	if p.MaxBalance <= 0 {
		return math.MaxInt64
	}
	return p.MaxBalance
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// chargedBalance returns balance+amount, or ok=false when the sum exceeds
// the ceiling (or int64).
func (p Policy) chargedBalance(balance, amount int64) (int64, bool) {
	sum := decimal.NewFromInt(balance).Add(decimal.NewFromInt(amount))
	if sum.GreaterThan(maxInt64) || sum.GreaterThan(decimal.NewFromInt(p.ceiling())) {
		return 0, false
	}
	return sum.IntPart(), true
}
