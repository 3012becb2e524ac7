package farming

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianfi/fvm/internal/fixedmath"
	"github.com/meridianfi/fvm/internal/types"
)

func pr(b byte) types.Principal {
	var p types.Principal
	p[0] = b
	return p
}

// testPoolConfig builds a dual-reward pool with distinct tokens and a
// 100-second window. MinDuration 1 mirrors a dev build.
func testPoolConfig() PoolConfig {
	return PoolConfig{
		ID:             pr(1),
		Authority:      pr(2),
		StakingToken:   pr(3),
		StakingVault:   pr(4),
		RewardAToken:   pr(5),
		RewardAVault:   pr(6),
		RewardBToken:   pr(7),
		RewardBVault:   pr(8),
		RewardDuration: 100,
		MinDuration:    1,
	}
}

func singleRewardConfig() PoolConfig {
	cfg := testPoolConfig()
	cfg.RewardBToken = cfg.RewardAToken
	cfg.RewardBVault = cfg.RewardAVault
	return cfg
}

func TestNewPoolRejectsShortDuration(t *testing.T) {
	cfg := testPoolConfig()
	cfg.MinDuration = DefaultMinDuration
	_, err := NewPool(cfg)
	require.ErrorIs(t, err, ErrDurationTooShort)
}

func TestSingleRewardByTokenIdentity(t *testing.T) {
	cfg := testPoolConfig()
	cfg.RewardBToken = cfg.RewardAToken
	// Distinct vaults, same token: still single-reward.
	pool, err := NewPool(cfg)
	require.NoError(t, err)
	require.True(t, pool.SingleReward())

	dual, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	require.False(t, dual.SingleReward())
}

func TestSingleStakerFullWindow(t *testing.T) {
	pool, err := NewPool(singleRewardConfig())
	require.NoError(t, err)

	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)

	transfer, err := pool.Deposit(alice, 1000, 0)
	require.NoError(t, err)
	require.Equal(t, pr(10), transfer.From)
	require.Equal(t, pool.StakingVault, transfer.To)
	require.Equal(t, uint64(1000), transfer.Amount)

	plan, err := pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, uint64(100), pool.RewardEnd)

	payA, payB, plan, err := pool.Claim(alice, 1_000_000, 0, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), payA)
	require.Zero(t, payB)
	require.Len(t, plan, 1)
	require.Equal(t, pool.RewardAVault, plan[0].From)
	require.Zero(t, alice.PendingA)

	// Nothing accrues past the window end.
	payA, _, _, err = pool.Claim(alice, 1_000_000, 0, 500)
	require.NoError(t, err)
	require.Zero(t, payA)
}

func TestTwoStakersProportionalSplit(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)

	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	bob, err := pool.CreateUser(pr(11))
	require.NoError(t, err)

	_, err = pool.Deposit(alice, 100, 0)
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)

	_, err = pool.Deposit(bob, 300, 50)
	require.NoError(t, err)

	// Alice: 100 seconds total, alone for the first 50, a quarter share after.
	payA, _, _, err := pool.Claim(alice, 1_000_000, 0, 100)
	require.NoError(t, err)
	require.InDelta(t, 625_000, float64(payA), 2)

	payA, _, _, err = pool.Claim(bob, 1_000_000-payA, 0, 100)
	require.NoError(t, err)
	require.InDelta(t, 375_000, float64(payA), 2)
}

func TestMidWindowExtensionFoldsLeftover(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	annual := fixedmath.SecondsInYear / pool.RewardDuration

	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 1000, 0)
	require.NoError(t, err)

	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)

	// 600 000 of the first funding is still owed at t=40; the second funding
	// folds it into a fresh window ending at t=140.
	_, err = pool.Fund(pool.Authority, 2_000_000, 0, 40)
	require.NoError(t, err)
	require.Equal(t, uint64(2_600_000)*annual, pool.RateA)
	require.Equal(t, uint64(140), pool.RewardEnd)
	require.Equal(t, uint64(40), pool.LastUpdate)

	// Everything funded is eventually paid out.
	payA, _, _, err := pool.Claim(alice, 3_000_000, 0, 140)
	require.NoError(t, err)
	require.Equal(t, uint64(3_000_000), payA)
}

func TestFundingEmptyPoolStretchesEmission(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)

	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)

	// Nobody staked: the accumulator stands still and nothing is owed to a
	// staker who arrives mid-window before the stake lands.
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 1000, 60)
	require.NoError(t, err)
	require.True(t, pool.AccA.IsZero())

	// The remaining 40 seconds emit 40% of the rate.
	payA, _, _, err := pool.Claim(alice, 1_000_000, 0, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(400_000), payA)
}

func TestClaimClampForfeitsShortfall(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	alice.PendingA = 10_000

	payA, _, plan, err := pool.Claim(alice, 3_000, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(3_000), payA)
	require.Len(t, plan, 1)
	require.Zero(t, alice.PendingA)

	// The 7 000 shortfall does not come back.
	payA, _, _, err = pool.Claim(alice, 1_000_000, 0, 0)
	require.NoError(t, err)
	require.Zero(t, payA)
}

func TestDualRewardStreams(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 500, 0)
	require.NoError(t, err)

	plan, err := pool.Fund(pool.Authority, 1_000_000, 2_000_000, 0)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Equal(t, pool.RewardAVault, plan[0].To)
	require.Equal(t, pool.RewardBVault, plan[1].To)

	payA, payB, _, err := pool.Claim(alice, 1_000_000, 2_000_000, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), payA)
	require.Equal(t, uint64(2_000_000), payB)
}

func TestFundStreamBRejectedOnSingleReward(t *testing.T) {
	pool, err := NewPool(singleRewardConfig())
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 0, 1, 0)
	require.ErrorIs(t, err, ErrSingleDepositTokenBCannotBeFunded)
}

func TestPerSecondScheduleUpgradedOnFund(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	pool.Schedule = SchedulePerSecond
	pool.RateA = 7

	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)
	require.Equal(t, ScheduleAnnualised, pool.Schedule)
	// The legacy window had expired (RewardEnd 0), so the upgraded rate is
	// replaced wholesale by the new funding.
	annual := fixedmath.SecondsInYear / pool.RewardDuration
	require.Equal(t, uint64(1_000_000)*annual, pool.RateA)
}

func TestScheduleUpgradeOverflow(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	pool.Schedule = SchedulePerSecond
	pool.RateA = 1 << 60

	_, err = pool.Fund(pool.Authority, 1, 0, 0)
	require.ErrorIs(t, err, fixedmath.ErrMathOverflow)
}

func TestDepositValidation(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)

	_, err = pool.Deposit(alice, 0, 0)
	require.ErrorIs(t, err, ErrAmountMustBeGreaterThanZero)

	pool.Paused = true
	_, err = pool.Deposit(alice, 1, 0)
	require.ErrorIs(t, err, ErrPoolPaused)
}

func TestWithdrawValidation(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 100, 0)
	require.NoError(t, err)

	_, err = pool.Withdraw(alice, 0, 0)
	require.ErrorIs(t, err, ErrAmountMustBeGreaterThanZero)
	_, err = pool.Withdraw(alice, 101, 0)
	require.ErrorIs(t, err, ErrInsufficientFundWithdraw)

	// Exits stay open while paused.
	pool.Paused = true
	transfer, err := pool.Withdraw(alice, 100, 0)
	require.NoError(t, err)
	require.Equal(t, pool.ID, transfer.Authority)
	require.Zero(t, pool.TotalStaked)
}

func TestWithdrawSettlesBeforeBalanceChange(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 1000, 0)
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)

	// Unstaking at t=50 keeps the first half-window's accrual as pending.
	_, err = pool.Withdraw(alice, 1000, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), alice.PendingA)

	payA, _, _, err := pool.Claim(alice, 1_000_000, 0, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), payA)
}

func TestFunderACL(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	outsider := pr(20)

	_, err = pool.Fund(outsider, 1, 0, 0)
	require.ErrorIs(t, err, ErrFunderNotAuthorized)

	require.NoError(t, pool.AuthorizeFunder(outsider))
	_, err = pool.Fund(outsider, 1_000_000, 0, 0)
	require.NoError(t, err)

	require.ErrorIs(t, pool.AuthorizeFunder(outsider), ErrFunderAlreadyAuthorized)
	require.ErrorIs(t, pool.AuthorizeFunder(pool.Authority), ErrFunderAlreadyAuthorized)

	require.NoError(t, pool.DeauthorizeFunder(outsider))
	_, err = pool.Fund(outsider, 1, 0, 0)
	require.ErrorIs(t, err, ErrFunderNotAuthorized)

	require.ErrorIs(t, pool.DeauthorizeFunder(outsider), ErrCannotDeauthorizeMissingAuthority)
	require.ErrorIs(t, pool.DeauthorizeFunder(pool.Authority), ErrCannotDeauthorizePoolAuthority)
}

func TestFunderSetCapacity(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	for i := 0; i < MaxFunders; i++ {
		require.NoError(t, pool.AuthorizeFunder(pr(byte(30+i))))
	}
	require.ErrorIs(t, pool.AuthorizeFunder(pr(50)), ErrMaxFunders)

	// Freeing a slot makes room again.
	require.NoError(t, pool.DeauthorizeFunder(pr(31)))
	require.NoError(t, pool.AuthorizeFunder(pr(50)))
}

func TestPausePreconditions(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)

	// Never funded.
	require.ErrorIs(t, pool.Pause(100), ErrPoolRewardsActive)

	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)
	require.ErrorIs(t, pool.Pause(50), ErrPoolRewardsActive)
	require.ErrorIs(t, pool.Pause(100), ErrPoolRewardsActive)

	require.NoError(t, pool.Pause(101))
	require.ErrorIs(t, pool.Pause(101), ErrPoolPaused)

	require.NoError(t, pool.Unpause())
	require.ErrorIs(t, pool.Unpause(), ErrPoolNotPaused)
}

func TestPausedPoolRejectsEntryAndFunding(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)
	require.NoError(t, pool.Pause(101))

	_, err = pool.CreateUser(pr(10))
	require.ErrorIs(t, err, ErrPoolPaused)
	_, err = pool.Fund(pool.Authority, 1, 0, 101)
	require.ErrorIs(t, err, ErrPoolPaused)
}

func TestCloseUserRequiresEmptyPosition(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	require.Equal(t, uint32(1), pool.UserCount)

	alice.Balance = 5
	require.ErrorIs(t, pool.CloseUser(alice), ErrUserNotEmpty)
	alice.Balance = 0
	alice.PendingB = 1
	require.ErrorIs(t, pool.CloseUser(alice), ErrUserNotEmpty)
	alice.PendingB = 0

	require.NoError(t, pool.CloseUser(alice))
	require.Zero(t, pool.UserCount)
}

func TestWithdrawExtraToken(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)

	_, err = pool.WithdrawExtraToken(pr(9), 5, 100)
	require.ErrorIs(t, err, ErrPoolRewardsActive)

	plan, err := pool.WithdrawExtraToken(pr(9), 5, 101)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, uint64(5), plan[0].Amount)
	require.Equal(t, pool.StakingVault, plan[0].From)

	// Nothing extra: no transfer.
	plan, err = pool.WithdrawExtraToken(pr(9), 0, 101)
	require.NoError(t, err)
	require.Empty(t, plan)
}

func TestCloseSequencing(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)
	require.NoError(t, pool.Pause(101))

	// Ghost tokens in the staking vault block the close until rescued.
	_, err = pool.ClosePool(pr(9), 5, 100, 0, 101)
	require.ErrorIs(t, err, ErrPoolNotClosable)

	plan, err := pool.WithdrawExtraToken(pr(9), 5, 101)
	require.NoError(t, err)
	require.Len(t, plan, 1)

	plan, err = pool.ClosePool(pr(9), 0, 100, 200, 101)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Equal(t, uint64(100), plan[0].Amount)
	require.Equal(t, uint64(200), plan[1].Amount)
}

func TestClosePoolPreconditions(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)

	// Not paused.
	_, err = pool.ClosePool(pr(9), 0, 0, 0, 100)
	require.ErrorIs(t, err, ErrPoolNotClosable)

	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)
	require.NoError(t, pool.Pause(101))

	// Open positions.
	pool.UserCount = 1
	_, err = pool.ClosePool(pr(9), 0, 0, 0, 101)
	require.ErrorIs(t, err, ErrPoolNotClosable)
	pool.UserCount = 0

	// Window still running.
	_, err = pool.ClosePool(pr(9), 0, 0, 0, 100)
	require.ErrorIs(t, err, ErrPoolNotClosable)
}

func TestClosePoolSingleRewardDrainsOnce(t *testing.T) {
	pool, err := NewPool(singleRewardConfig())
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)
	require.NoError(t, pool.Pause(101))

	// Shared vault: one refund transfer, not two.
	plan, err := pool.ClosePool(pr(9), 0, 777, 777, 101)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, uint64(777), plan[0].Amount)
}

func TestAccumulatorMonotone(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 7, 0)
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 999_983, 0, 0)
	require.NoError(t, err)

	prev := pool.AccA
	for _, now := range []uint64{3, 17, 17, 60, 100, 250} {
		require.NoError(t, pool.advance(now))
		require.True(t, pool.AccA.GTE(prev))
		require.LessOrEqual(t, pool.LastUpdate, uint64(100))
		prev = pool.AccA
	}
}

func TestSettlementIdempotent(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 100, 0)
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)

	require.NoError(t, pool.advance(50))
	require.NoError(t, pool.settle(alice))
	pending := alice.PendingA
	require.NoError(t, pool.settle(alice))
	require.Equal(t, pending, alice.PendingA)
}

func TestFailedAdvanceLeavesRecordsUntouched(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 100, 0)
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 1_000, 0)
	require.NoError(t, err)

	// Stream B sits at the u128 ceiling: the next advance overflows after
	// stream A's delta has already been computed.
	maxU128 := fixedmath.Precision().AddRaw(1).Mul(fixedmath.Precision().AddRaw(1)).SubRaw(1)
	pool.AccB = maxU128
	pool.RateB = math.MaxUint64

	accABefore := pool.AccA
	_, err = pool.Deposit(alice, 10, 50)
	require.ErrorIs(t, err, fixedmath.ErrMathOverflow)

	require.True(t, pool.AccA.Equal(accABefore))
	require.True(t, pool.AccB.Equal(maxU128))
	require.Equal(t, uint64(0), pool.LastUpdate)
	require.Equal(t, uint64(100), pool.TotalStaked)
	require.Equal(t, uint64(100), alice.Balance)
}

func TestFailedSettlementLeavesRecordsUntouched(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	_, err = pool.Deposit(alice, 100, 0)
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)

	// A saturated pending carry overflows the settlement after the staged
	// accumulators have moved.
	alice.PendingA = math.MaxUint64
	accABefore := pool.AccA

	_, _, _, err = pool.Claim(alice, 1_000_000, 0, 50)
	require.ErrorIs(t, err, fixedmath.ErrMathOverflow)

	require.True(t, pool.AccA.Equal(accABefore))
	require.Equal(t, uint64(0), pool.LastUpdate)
	require.Equal(t, uint64(math.MaxUint64), alice.PendingA)
	require.True(t, alice.CompleteA.IsZero())
}

func TestConservationAcrossClaims(t *testing.T) {
	pool, err := NewPool(testPoolConfig())
	require.NoError(t, err)
	alice, err := pool.CreateUser(pr(10))
	require.NoError(t, err)
	bob, err := pool.CreateUser(pr(11))
	require.NoError(t, err)

	_, err = pool.Deposit(alice, 123, 0)
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)
	_, err = pool.Deposit(bob, 877, 37)
	require.NoError(t, err)

	payAlice, _, _, err := pool.Claim(alice, 1_000_000, 0, 200)
	require.NoError(t, err)
	payBob, _, _, err := pool.Claim(bob, 1_000_000-payAlice, 0, 200)
	require.NoError(t, err)

	total := payAlice + payBob
	require.LessOrEqual(t, total, uint64(1_000_000))
	require.InDelta(t, 1_000_000, float64(total), 2)
}
