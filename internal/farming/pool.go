/*

Farming pool state machine. A pool distributes up to two reward streams to
stakers in proportion to stake-share and time using the reward-per-token
accumulator pattern. Every mutating operation takes the caller-supplied
wall clock and returns the transfers the embedding layer must execute; the
engine never moves tokens itself.

Multi-step operations stage their mutations on record copies and commit
only once every step has succeeded, so an error always leaves the pool and
user records exactly as they were.

*/

package farming

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianfi/fvm/internal/fixedmath"
	"github.com/meridianfi/fvm/internal/types"
)

// MaxFunders is the fixed capacity of the additional-funder set.
const MaxFunders = 4

// DefaultMinDuration is the shortest reward window accepted outside dev
// mode: one day.
const DefaultMinDuration uint64 = 86400

// Pool is the farming pool record.
type Pool struct {
	// ID is the pool principal; it signs vault-sourced transfers.
	ID types.Principal `json:"id"`
	// Authority may pause, unpause, close, and manage funders.
	Authority types.Principal `json:"authority"`
	Paused    bool            `json:"paused"`

	StakingToken types.TokenID   `json:"staking_token"`
	StakingVault types.Principal `json:"staking_vault"`
	RewardAToken types.TokenID   `json:"reward_a_token"`
	RewardAVault types.Principal `json:"reward_a_vault"`
	RewardBToken types.TokenID   `json:"reward_b_token"`
	RewardBVault types.Principal `json:"reward_b_vault"`

	// RewardDuration is the funding window length in seconds. Immutable.
	RewardDuration uint64 `json:"reward_duration"`
	// RewardEnd is the Unix second the current window closes; 0 means the
	// pool was never funded.
	RewardEnd uint64 `json:"reward_end"`
	// LastUpdate is the Unix second of the last accumulator advance.
	LastUpdate uint64 `json:"last_update"`

	Schedule Schedule `json:"schedule"`
	RateA    uint64   `json:"rate_a"`
	RateB    uint64   `json:"rate_b"`
	// AccA and AccB are u128 reward-per-token accumulators, pre-scaled by
	// PRECISION. They never decrease.
	AccA sdkmath.Int `json:"acc_a"`
	AccB sdkmath.Int `json:"acc_b"`

	TotalStaked uint64                    `json:"total_staked"`
	UserCount   uint32                    `json:"user_count"`
	Funders     [MaxFunders]types.Principal `json:"funders"`
}

// PoolConfig carries the immutable parameters of NewPool.
type PoolConfig struct {
	ID           types.Principal
	Authority    types.Principal
	StakingToken types.TokenID
	StakingVault types.Principal
	RewardAToken types.TokenID
	RewardAVault types.Principal
	RewardBToken types.TokenID
	RewardBVault types.Principal
	// RewardDuration in seconds; must be at least MinDuration.
	RewardDuration uint64
	// MinDuration is DefaultMinDuration in production and 1 in dev builds.
	MinDuration uint64
}

// NewPool constructs an unfunded, unpaused pool. A pool whose two reward
// tokens are equal is single-reward: stream B stays inert forever.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.RewardDuration < cfg.MinDuration {
		return nil, ErrDurationTooShort
	}
	return &Pool{
		ID:             cfg.ID,
		Authority:      cfg.Authority,
		StakingToken:   cfg.StakingToken,
		StakingVault:   cfg.StakingVault,
		RewardAToken:   cfg.RewardAToken,
		RewardAVault:   cfg.RewardAVault,
		RewardBToken:   cfg.RewardBToken,
		RewardBVault:   cfg.RewardBVault,
		RewardDuration: cfg.RewardDuration,
		Schedule:       ScheduleAnnualised,
		AccA:           sdkmath.ZeroInt(),
		AccB:           sdkmath.ZeroInt(),
	}, nil
}

// SingleReward reports whether stream B shares a token with stream A and is
// therefore inert. Token identity, not vault identity, is the stable rule.
func (p *Pool) SingleReward() bool {
	return p.RewardAToken == p.RewardBToken
}

// lastApplicable clamps now to the reward window end, so a pool whose
// window has passed freezes its accumulators at the end time.
func (p *Pool) lastApplicable(now uint64) uint64 {
	if now < p.RewardEnd {
		return now
	}
	return p.RewardEnd
}

// advance moves both accumulators (stream B only when active) up to
// min(now, RewardEnd) and records the new update time. Both deltas are
// computed before either field is assigned.
func (p *Pool) advance(now uint64) error {
	applicable := p.lastApplicable(now)

	accA, err := rewardPerToken(p.Schedule, p.AccA, p.RateA, p.LastUpdate, applicable, p.TotalStaked)
	if err != nil {
		return err
	}
	accB := p.AccB
	if !p.SingleReward() {
		accB, err = rewardPerToken(p.Schedule, p.AccB, p.RateB, p.LastUpdate, applicable, p.TotalStaked)
		if err != nil {
			return err
		}
	}

	p.AccA = accA
	p.AccB = accB
	p.LastUpdate = applicable
	return nil
}

// settle folds the accumulator movement since the user's last touch into
// the user's pending amounts and snapshots the accumulators. Both streams
// are computed before either field is assigned.
func (p *Pool) settle(u *User) error {
	pendingA, err := userEarned(u.Balance, p.AccA, u.CompleteA, u.PendingA)
	if err != nil {
		return err
	}
	pendingB := u.PendingB
	completeB := u.CompleteB
	if !p.SingleReward() {
		pendingB, err = userEarned(u.Balance, p.AccB, u.CompleteB, u.PendingB)
		if err != nil {
			return err
		}
		completeB = p.AccB
	}

	u.PendingA = pendingA
	u.CompleteA = p.AccA
	u.PendingB = pendingB
	u.CompleteB = completeB
	return nil
}

// CreateUser opens a position in the pool. The fresh position snapshots the
// current accumulators so it earns from now on, never retroactively.
func (p *Pool) CreateUser(owner types.Principal) (*User, error) {
	if p.Paused {
		return nil, ErrPoolPaused
	}
	count := p.UserCount + 1
	if count == 0 {
		return nil, fixedmath.ErrMathOverflow
	}
	p.UserCount = count
	return &User{
		Pool:      p.ID,
		Owner:     owner,
		CompleteA: p.AccA,
		CompleteB: p.AccB,
	}, nil
}

// CloseUser retires a position. Only empty, fully-claimed positions close.
func (p *Pool) CloseUser(u *User) error {
	if u.Balance != 0 || u.PendingA != 0 || u.PendingB != 0 {
		return ErrUserNotEmpty
	}
	if p.UserCount == 0 {
		return fixedmath.ErrMathOverflow
	}
	p.UserCount--
	return nil
}

// Pause stops deposits, funding and user creation. Allowed only once the
// reward window has fully elapsed, so pausing can never strand emissions.
func (p *Pool) Pause(now uint64) error {
	if p.Paused {
		return ErrPoolPaused
	}
	if p.RewardEnd == 0 || p.RewardEnd >= now {
		return ErrPoolRewardsActive
	}
	p.Paused = true
	return nil
}

// Unpause reopens a paused pool.
func (p *Pool) Unpause() error {
	if !p.Paused {
		return ErrPoolNotPaused
	}
	p.Paused = false
	return nil
}

// Deposit stakes amount for the user and returns the transfer the caller
// must execute from the user's account into the staking vault.
func (p *Pool) Deposit(u *User, amount, now uint64) (types.Transfer, error) {
	if amount == 0 {
		return types.Transfer{}, ErrAmountMustBeGreaterThanZero
	}
	if p.Paused {
		return types.Transfer{}, ErrPoolPaused
	}

	staged, stagedUser := *p, *u
	if err := staged.advance(now); err != nil {
		return types.Transfer{}, err
	}
	if err := staged.settle(&stagedUser); err != nil {
		return types.Transfer{}, err
	}
	balance, err := fixedmath.AddU64(stagedUser.Balance, amount)
	if err != nil {
		return types.Transfer{}, err
	}
	total, err := fixedmath.AddU64(staged.TotalStaked, amount)
	if err != nil {
		return types.Transfer{}, err
	}
	stagedUser.Balance = balance
	staged.TotalStaked = total

	*p, *u = staged, stagedUser
	return types.Transfer{
		From:      u.Owner,
		To:        p.StakingVault,
		Authority: u.Owner,
		Amount:    amount,
	}, nil
}

// DepositFull stakes the caller's entire stake-account balance.
func (p *Pool) DepositFull(u *User, accountBalance, now uint64) (types.Transfer, error) {
	return p.Deposit(u, accountBalance, now)
}

// Withdraw unstakes amount and returns the vault-to-user transfer, signed
// by the pool principal. Withdrawals stay open while the pool is paused so
// stakers can always exit.
func (p *Pool) Withdraw(u *User, amount, now uint64) (types.Transfer, error) {
	if amount == 0 {
		return types.Transfer{}, ErrAmountMustBeGreaterThanZero
	}
	if u.Balance < amount {
		return types.Transfer{}, ErrInsufficientFundWithdraw
	}

	staged, stagedUser := *p, *u
	if err := staged.advance(now); err != nil {
		return types.Transfer{}, err
	}
	if err := staged.settle(&stagedUser); err != nil {
		return types.Transfer{}, err
	}
	balance, err := fixedmath.SubU64(stagedUser.Balance, amount)
	if err != nil {
		return types.Transfer{}, err
	}
	total, err := fixedmath.SubU64(staged.TotalStaked, amount)
	if err != nil {
		return types.Transfer{}, err
	}
	stagedUser.Balance = balance
	staged.TotalStaked = total

	*p, *u = staged, stagedUser
	return types.Transfer{
		From:      p.StakingVault,
		To:        u.Owner,
		Authority: p.ID,
		Amount:    amount,
	}, nil
}

// Fund adds rewards, folding any unfinished window into the new rate and
// restarting the end timestamp at now + RewardDuration. Legacy per-second
// pools are upgraded to the annualised schedule here, the first time they
// are funded after migration.
func (p *Pool) Fund(funder types.Principal, amountA, amountB, now uint64) (types.TransferPlan, error) {
	if !p.funderAuthorized(funder) {
		return nil, ErrFunderNotAuthorized
	}
	if p.Paused {
		return nil, ErrPoolPaused
	}
	if amountB > 0 && p.SingleReward() {
		return nil, ErrSingleDepositTokenBCannotBeFunded
	}

	staged := *p
	if err := staged.advance(now); err != nil {
		return nil, err
	}
	if staged.Schedule == SchedulePerSecond {
		if err := staged.upgradeSchedule(); err != nil {
			return nil, err
		}
	}

	rateA, err := rateAfterFunding(amountA, staged.RateA, staged.RewardEnd, staged.RewardDuration, now)
	if err != nil {
		return nil, err
	}
	rateB, err := rateAfterFunding(amountB, staged.RateB, staged.RewardEnd, staged.RewardDuration, now)
	if err != nil {
		return nil, err
	}
	end, err := fixedmath.AddU64(now, staged.RewardDuration)
	if err != nil {
		return nil, err
	}
	staged.RateA = rateA
	staged.RateB = rateB
	staged.LastUpdate = now
	staged.RewardEnd = end
	*p = staged

	var plan types.TransferPlan
	if amountA > 0 {
		plan = append(plan, types.Transfer{
			From: funder, To: p.RewardAVault, Authority: funder, Amount: amountA,
		})
	}
	if amountB > 0 {
		plan = append(plan, types.Transfer{
			From: funder, To: p.RewardBVault, Authority: funder, Amount: amountB,
		})
	}
	return plan, nil
}

// upgradeSchedule converts legacy per-second rates to annualised ones.
func (p *Pool) upgradeSchedule() error {
	rateA, err := fixedmath.MulU64(p.RateA, fixedmath.SecondsInYear)
	if err != nil {
		return err
	}
	rateB, err := fixedmath.MulU64(p.RateB, fixedmath.SecondsInYear)
	if err != nil {
		return err
	}
	p.RateA = rateA
	p.RateB = rateB
	p.Schedule = ScheduleAnnualised
	return nil
}

// Claim settles the user and pays out pending rewards, clamped to what the
// reward vaults actually hold. Pending amounts are zeroed even when the
// vault is short; the shortfall is forfeited.
func (p *Pool) Claim(u *User, vaultABalance, vaultBBalance, now uint64) (uint64, uint64, types.TransferPlan, error) {
	staged, stagedUser := *p, *u
	if err := staged.advance(now); err != nil {
		return 0, 0, nil, err
	}
	if err := staged.settle(&stagedUser); err != nil {
		return 0, 0, nil, err
	}

	payA := stagedUser.PendingA
	if vaultABalance < payA {
		payA = vaultABalance
	}
	stagedUser.PendingA = 0

	payB := stagedUser.PendingB
	if vaultBBalance < payB {
		payB = vaultBBalance
	}
	stagedUser.PendingB = 0

	*p, *u = staged, stagedUser
	var plan types.TransferPlan
	if payA > 0 {
		plan = append(plan, types.Transfer{
			From: p.RewardAVault, To: u.Owner, Authority: p.ID, Amount: payA,
		})
	}
	if payB > 0 {
		plan = append(plan, types.Transfer{
			From: p.RewardBVault, To: u.Owner, Authority: p.ID, Amount: payB,
		})
	}
	return payA, payB, plan, nil
}

// AuthorizeFunder adds a principal to the funder set.
func (p *Pool) AuthorizeFunder(f types.Principal) error {
	if f == p.Authority {
		return ErrFunderAlreadyAuthorized
	}
	for _, existing := range p.Funders {
		if existing == f {
			return ErrFunderAlreadyAuthorized
		}
	}
	for i, existing := range p.Funders {
		if existing.IsZero() {
			p.Funders[i] = f
			return nil
		}
	}
	return ErrMaxFunders
}

// DeauthorizeFunder removes a principal from the funder set.
func (p *Pool) DeauthorizeFunder(f types.Principal) error {
	if f == p.Authority {
		return ErrCannotDeauthorizePoolAuthority
	}
	for i, existing := range p.Funders {
		if existing == f {
			p.Funders[i] = types.ZeroPrincipal
			return nil
		}
	}
	return ErrCannotDeauthorizeMissingAuthority
}

func (p *Pool) funderAuthorized(f types.Principal) bool {
	if f == p.Authority {
		return true
	}
	for _, existing := range p.Funders {
		if !existing.IsZero() && existing == f {
			return true
		}
	}
	return false
}

// WithdrawExtraToken sweeps tokens mistakenly sent to the staking vault.
// Only the surplus over TotalStaked leaves; a vault balance below
// TotalStaked is an invariant violation and fails the checked subtraction.
// Allowed only after the reward window has ended.
func (p *Pool) WithdrawExtraToken(recipient types.Principal, stakingVaultBalance, now uint64) (types.TransferPlan, error) {
	if p.RewardEnd >= now {
		return nil, ErrPoolRewardsActive
	}
	extra, err := fixedmath.SubU64(stakingVaultBalance, p.TotalStaked)
	if err != nil {
		return nil, err
	}
	if extra == 0 {
		return nil, nil
	}
	return types.TransferPlan{{
		From: p.StakingVault, To: recipient, Authority: p.ID, Amount: extra,
	}}, nil
}

// ClosePool drains the reward vaults to the refundee and retires the pool.
// Requires: paused, reward window elapsed, no open positions, and an empty
// staking vault (ghost tokens must be rescued via WithdrawExtraToken first).
func (p *Pool) ClosePool(refundee types.Principal, stakingVaultBalance, vaultABalance, vaultBBalance, now uint64) (types.TransferPlan, error) {
	if !p.Paused || p.RewardEnd == 0 || p.RewardEnd >= now || p.UserCount != 0 {
		return nil, ErrPoolNotClosable
	}
	if stakingVaultBalance != 0 {
		return nil, ErrPoolNotClosable
	}

	var plan types.TransferPlan
	if vaultABalance > 0 {
		plan = append(plan, types.Transfer{
			From: p.RewardAVault, To: refundee, Authority: p.ID, Amount: vaultABalance,
		})
	}
	if p.RewardAVault != p.RewardBVault && vaultBBalance > 0 {
		plan = append(plan, types.Transfer{
			From: p.RewardBVault, To: refundee, Authority: p.ID, Amount: vaultBBalance,
		})
	}
	return plan, nil
}

// String renders a diagnostic subset of pool fields.
func (p *Pool) String() string {
	return fmt.Sprintf("paused: %t reward_duration: %d reward_end: %d rate_a: %d rate_b: %d acc_a: %s acc_b: %s total_staked: %d",
		p.Paused, p.RewardDuration, p.RewardEnd, p.RateA, p.RateB, p.AccA, p.AccB, p.TotalStaked)
}
