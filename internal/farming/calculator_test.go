package farming

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/meridianfi/fvm/internal/fixedmath"
)

func TestRewardPerTokenFrozenWhenEmpty(t *testing.T) {
	acc := sdkmath.NewInt(12345)
	out, err := rewardPerToken(ScheduleAnnualised, acc, 1_000_000, 0, 1000, 0)
	require.NoError(t, err)
	require.Equal(t, acc, out)
}

func TestRewardPerTokenAnnualised(t *testing.T) {
	// One year at an annual rate of 1000 over 100 staked: each stake unit
	// earns 10, pre-scaled by PRECISION.
	out, err := rewardPerToken(ScheduleAnnualised, sdkmath.ZeroInt(), 1000, 0, fixedmath.SecondsInYear, 100)
	require.NoError(t, err)
	require.Equal(t, fixedmath.Precision().MulRaw(10), out)
}

func TestRewardPerTokenPerSecond(t *testing.T) {
	// Legacy schedule: no year division. 10 seconds at 5/s over 10 staked.
	out, err := rewardPerToken(SchedulePerSecond, sdkmath.ZeroInt(), 5, 0, 10, 10)
	require.NoError(t, err)
	require.Equal(t, fixedmath.Precision().MulRaw(5), out)
}

func TestRewardPerTokenRejectsClockRollback(t *testing.T) {
	_, err := rewardPerToken(ScheduleAnnualised, sdkmath.ZeroInt(), 1, 100, 50, 10)
	require.ErrorIs(t, err, fixedmath.ErrMathOverflow)
}

func TestUserEarned(t *testing.T) {
	acc := fixedmath.Precision().MulRaw(7)
	complete := fixedmath.Precision().MulRaw(2)

	earned, err := userEarned(100, acc, complete, 42)
	require.NoError(t, err)
	require.Equal(t, uint64(100*5+42), earned)

	// Zero balance carries only the pending amount.
	earned, err = userEarned(0, acc, complete, 9)
	require.NoError(t, err)
	require.Equal(t, uint64(9), earned)
}

func TestUserEarnedRejectsRegressedAccumulator(t *testing.T) {
	_, err := userEarned(1, sdkmath.ZeroInt(), sdkmath.OneInt(), 0)
	require.ErrorIs(t, err, fixedmath.ErrMathOverflow)
}

func TestUserEarnedTruncates(t *testing.T) {
	// acc - complete below PRECISION: a single stake unit rounds to zero and
	// the dust stays behind.
	earned, err := userEarned(1, fixedmath.Precision().QuoRaw(2), sdkmath.ZeroInt(), 0)
	require.NoError(t, err)
	require.Zero(t, earned)
}

func TestRateAfterFundingFreshWindow(t *testing.T) {
	// Expired (or never-funded) window: rate is amount annualised.
	rate, err := rateAfterFunding(1_000_000, 0, 0, 100, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000)*(fixedmath.SecondsInYear/100), rate)
}

func TestRateAfterFundingFoldsLeftover(t *testing.T) {
	duration := uint64(100)
	annual := fixedmath.SecondsInYear / duration
	rate := 1_000_000 * annual

	// 60 seconds remain: 600 000 not yet emitted folds into the new window.
	out, err := rateAfterFunding(2_000_000, rate, 100, duration, 40)
	require.NoError(t, err)
	require.Equal(t, uint64(2_600_000)*annual, out)
}

func TestRateAfterFundingOverflow(t *testing.T) {
	_, err := rateAfterFunding(1<<60, 0, 0, 1, 0)
	require.ErrorIs(t, err, fixedmath.ErrMathOverflow)
}
