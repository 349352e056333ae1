package domain

import (
	"math"
	"time"
)

// SecondsPerDay is the length of a payout day regardless of calendar or timezone.
const SecondsPerDay = 86400

// MaxTimestamp is the latest timestamp the ledger stores. SQL drivers
// reject unsigned values with the high bit set.
const MaxTimestamp uint64 = math.MaxInt64

// Unix converts t to the ledger's timestamp representation.
// Times before the epoch map to zero.
func Unix(t time.Time) uint64 {
	if s := t.Unix(); s > 0 {
		return uint64(s)
	}
	return 0
}

// DaysDelayed returns how many whole days actual is past expected.
func DaysDelayed(actual, expected uint64) uint64 {
	if actual <= expected {
		return 0
	}
	return (actual - expected) / SecondsPerDay
}

// AccruedDays returns the total delay accrued so far. A delivered policy is
// frozen at its reported arrival; a delayed policy keeps accruing until now.
// Any other status accrues nothing.
func (p Policy) AccruedDays(now uint64) uint64 {
	switch p.Status {
	case StatusDelivered:
		return DaysDelayed(p.ActualArrival, p.ExpectedArrival)
	case StatusDelayed:
		return DaysDelayed(now, p.ExpectedArrival)
	default:
		return 0
	}
}

// CappedDays limits the accrued days to maxDays.
func (p Policy) CappedDays(now, maxDays uint64) uint64 {
	return min(p.AccruedDays(now), maxDays)
}

// ClaimableDays returns the days accrued but not yet paid out, or zero.
func (p Policy) ClaimableDays(now, maxDays uint64) uint64 {
	capped := p.CappedDays(now, maxDays)
	if capped <= p.ClaimedDays {
		return 0
	}
	return capped - p.ClaimedDays
}

// PayoutFor prices a number of days at the given daily rate.
func PayoutFor(days uint64, perDay Amount) Amount {
	return perDay.MulUint64(days)
}
