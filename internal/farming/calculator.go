/*

Reward-per-token math. The invariant: over [lastUpdate, t] a staker of
balance b accrues b * (accNew - accOld) / PRECISION, where the accumulator
advance is (t - lastUpdate) * rate * PRECISION / SECONDS_IN_YEAR /
totalStaked for the annualised schedule.

Two schedules coexist: Annualised is the only one new pools may use;
PerSecond is kept so historical records remain readable and is upgraded in
place (rate * SECONDS_IN_YEAR) the first time such a pool is funded.

*/

package farming

import (
	sdkmath "cosmossdk.io/math"

	"github.com/meridianfi/fvm/internal/fixedmath"
)

// Schedule tags the rate representation of a pool. The variant set is
// closed; dispatch is a switch, not an interface.
type Schedule uint8

const (
	// ScheduleAnnualised stores rates as annual emission numerators.
	ScheduleAnnualised Schedule = 1
	// SchedulePerSecond stores rates as per-second emission (legacy records).
	SchedulePerSecond Schedule = 2
)

// rewardPerToken advances one accumulator from lastUpdate to applicable.
// With nothing staked the accumulator stands still: emission pauses rather
// than being redistributed to later stakers.
func rewardPerToken(schedule Schedule, acc sdkmath.Int, rate, lastUpdate, applicable, totalStaked uint64) (sdkmath.Int, error) {
	if totalStaked == 0 {
		return acc, nil
	}
	elapsed, err := fixedmath.SubU64(applicable, lastUpdate)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Widened product; the 192-bit intermediate cannot overflow sdkmath.Int.
	delta := fixedmath.FromU64(elapsed).
		Mul(fixedmath.FromU64(rate)).
		Mul(fixedmath.Precision())
	if schedule == ScheduleAnnualised {
		delta = delta.Quo(fixedmath.FromU64(fixedmath.SecondsInYear))
	}
	delta = delta.Quo(fixedmath.FromU64(totalStaked))

	return fixedmath.CheckU128(acc.Add(delta))
}

// userEarned returns the total accrued reward for one stream: the pending
// carry plus balance * (acc - complete) / PRECISION. Division truncates;
// the dust stays in the accumulator and is picked up by later settlements.
func userEarned(balance uint64, acc, complete sdkmath.Int, pending uint64) (uint64, error) {
	diff := acc.Sub(complete)
	if diff.IsNegative() {
		return 0, fixedmath.ErrMathOverflow
	}
	earned := fixedmath.FromU64(balance).
		Mul(diff).
		Quo(fixedmath.Precision()).
		Add(fixedmath.FromU64(pending))
	return fixedmath.ToU64(earned)
}

// rateAfterFunding computes the annualised rate for one stream after a
// funding of amount at time now. Rewards still owed by the current window
// (leftover) fold into the new rate, so splitting a funding across two
// calls emits the same total as one call for the sum.
func rateAfterFunding(amount, rate, rewardEnd, rewardDuration, now uint64) (uint64, error) {
	annualMultiplier := fixedmath.SecondsInYear / rewardDuration

	if now >= rewardEnd {
		return fixedmath.MulU64(amount, annualMultiplier)
	}

	remaining, err := fixedmath.SubU64(rewardEnd, now)
	if err != nil {
		return 0, err
	}
	leftover, err := fixedmath.MulDivU64(remaining, rate, fixedmath.SecondsInYear)
	if err != nil {
		return 0, err
	}
	total, err := fixedmath.AddU64(amount, leftover)
	if err != nil {
		return 0, err
	}
	return fixedmath.MulU64(total, annualMultiplier)
}
