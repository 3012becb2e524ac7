/*

Reward-dripping share vault. Stake mints LP against the unlocked amount,
unstake burns it; reward deposits are time-locked and drip linearly into
the withdrawable pool over a degradation window, so a stake in the same
instant as a reward captures none of it and a stake one full window later
captures all of it proportionally.

*/

package dripvault

import (
	"errors"
	"fmt"

	"github.com/meridianfi/fvm/internal/fixedmath"
	"github.com/meridianfi/fvm/internal/types"
)

// LockedRewardDenominator scales the degradation rate: degradation *
// elapsed-seconds / denominator is the fraction of the locked reserve
// released, clamped to [0, 1].
const LockedRewardDenominator uint64 = 1_000_000_000_000

// DefaultDegradation drips a reward fully in 7 days.
const DefaultDegradation = LockedRewardDenominator / (3600 * 24 * 7)

var (
	// ErrAmountMustBeGreaterThanZero rejects zero-amount stake, unstake and reward.
	ErrAmountMustBeGreaterThanZero = errors.New("amount must be greater than zero")
	// ErrInsufficientLPAmount rejects burning more LP than the caller holds.
	ErrInsufficientLPAmount = errors.New("insufficient lp amount")
	// ErrInvalidLockedRewardDegradation rejects a rate above the denominator.
	ErrInvalidLockedRewardDegradation = errors.New("invalid locked reward degradation")
	// ErrSameAdmin rejects transferring admin to the current admin.
	ErrSameAdmin = errors.New("new admin is identical to current admin")
	// ErrUnauthorizedFunder rejects a reward from a caller that is neither
	// admin nor the designated funder.
	ErrUnauthorizedFunder = errors.New("caller is not authorized to fund this vault")
	// ErrUnauthorizedAdmin rejects admin operations from a non-admin caller.
	ErrUnauthorizedAdmin = errors.New("caller is not the vault admin")
)

// LockedRewardTracker follows the still-locked slice of past rewards.
type LockedRewardTracker struct {
	// LastLocked is the locked reserve as of LastReport.
	LastLocked uint64 `json:"last_locked"`
	// LastReport is the Unix second of the last reward deposit.
	LastReport uint64 `json:"last_report"`
	// Degradation is the per-second release numerator.
	Degradation uint64 `json:"degradation"`
}

// NewLockedRewardTracker returns a tracker with the 7-day default window.
func NewLockedRewardTracker() LockedRewardTracker {
	return LockedRewardTracker{Degradation: DefaultDegradation}
}

// Locked returns the reward amount still locked at now. Decays linearly
// from LastLocked to zero over denominator/degradation seconds.
func (t *LockedRewardTracker) Locked(now uint64) (uint64, error) {
	elapsed, err := fixedmath.SubU64(now, t.LastReport)
	if err != nil {
		return 0, err
	}
	ratio, err := fixedmath.MulU64(elapsed, t.Degradation)
	if err != nil {
		return 0, err
	}
	if ratio > LockedRewardDenominator {
		return 0, nil
	}
	return fixedmath.MulDivU64(t.LastLocked, LockedRewardDenominator-ratio, LockedRewardDenominator)
}

// fold adds a new reward on top of whatever is still locked and restarts
// the drip window. Already-unlocked reward stays unlocked.
func (t *LockedRewardTracker) fold(reward, now uint64) error {
	locked, err := t.Locked(now)
	if err != nil {
		return err
	}
	total, err := fixedmath.AddU64(locked, reward)
	if err != nil {
		return err
	}
	t.LastLocked = total
	t.LastReport = now
	return nil
}

// Vault is the drip-vault record.
type Vault struct {
	// ID is the vault principal; it signs vault-sourced transfers.
	ID         types.Principal `json:"id"`
	Token      types.TokenID   `json:"token"`
	TokenVault types.Principal `json:"token_vault"`
	LPMint     types.Principal `json:"lp_mint"`
	Admin      types.Principal `json:"admin"`
	// Funder is an optional second principal permitted to deposit rewards.
	Funder types.Principal `json:"funder"`

	// TotalAmount is every token unit the vault received, net of withdrawals.
	TotalAmount uint64              `json:"total_amount"`
	Tracker     LockedRewardTracker `json:"tracker"`
}

// Unlocked returns the withdrawable amount at now.
func (v *Vault) Unlocked(now uint64) (uint64, error) {
	locked, err := v.Tracker.Locked(now)
	if err != nil {
		return 0, err
	}
	return fixedmath.SubU64(v.TotalAmount, locked)
}

// Stake deposits tokens and returns the LP to mint. With zero LP supply
// the staker receives the deposit plus any already-unlocked reward as LP,
// so a freshly-rewarded empty vault does not gift unvested reward to the
// first staker. Otherwise LP is priced on the pre-deposit unlocked amount.
func (v *Vault) Stake(tokens, lpSupply, now uint64) (uint64, error) {
	if tokens == 0 {
		return 0, ErrAmountMustBeGreaterThanZero
	}

	if lpSupply == 0 {
		total, err := fixedmath.AddU64(v.TotalAmount, tokens)
		if err != nil {
			return 0, err
		}
		v.TotalAmount = total
		return v.Unlocked(now)
	}

	unlocked, err := v.Unlocked(now)
	if err != nil {
		return 0, err
	}
	minted, err := fixedmath.MulDivU64(tokens, lpSupply, unlocked)
	if err != nil {
		return 0, err
	}
	total, err := fixedmath.AddU64(v.TotalAmount, tokens)
	if err != nil {
		return 0, err
	}
	v.TotalAmount = total
	return minted, nil
}

// Unstake burns lpBurn of the caller's LP and returns the tokens to pay
// out at the current unlocked share price.
func (v *Vault) Unstake(lpBurn, callerLPBalance, lpSupply, now uint64) (uint64, error) {
	if lpBurn == 0 {
		return 0, ErrAmountMustBeGreaterThanZero
	}
	if lpBurn > callerLPBalance {
		return 0, ErrInsufficientLPAmount
	}

	unlocked, err := v.Unlocked(now)
	if err != nil {
		return 0, err
	}
	out, err := fixedmath.MulDivU64(lpBurn, unlocked, lpSupply)
	if err != nil {
		return 0, err
	}
	total, err := fixedmath.SubU64(v.TotalAmount, out)
	if err != nil {
		return 0, err
	}
	v.TotalAmount = total
	return out, nil
}

// Reward deposits tokens as locked reward and restarts the drip window.
// Authorisation (admin or funder) is enforced by the caller.
func (v *Vault) Reward(tokens, now uint64) error {
	if tokens == 0 {
		return ErrAmountMustBeGreaterThanZero
	}
	if err := v.Tracker.fold(tokens, now); err != nil {
		return err
	}
	total, err := fixedmath.AddU64(v.TotalAmount, tokens)
	if err != nil {
		return err
	}
	v.TotalAmount = total
	return nil
}

// UpdateDegradation sets the drip rate. Admin only.
func (v *Vault) UpdateDegradation(d uint64) error {
	if d > LockedRewardDenominator {
		return ErrInvalidLockedRewardDegradation
	}
	v.Tracker.Degradation = d
	return nil
}

// TransferAdmin hands the vault to a new admin principal.
func (v *Vault) TransferAdmin(newAdmin types.Principal) error {
	if newAdmin == v.Admin {
		return ErrSameAdmin
	}
	v.Admin = newAdmin
	return nil
}

// String renders a diagnostic subset of vault fields.
func (v *Vault) String() string {
	return fmt.Sprintf("total_amount: %d last_locked: %d last_report: %d degradation: %d",
		v.TotalAmount, v.Tracker.LastLocked, v.Tracker.LastReport, v.Tracker.Degradation)
}
