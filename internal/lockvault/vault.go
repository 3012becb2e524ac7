/*

Release-date vault: the trimmed single-reward variant. Shares are minted
and burned 1:1 against deposits; instead of a drip tracker the admin sets
one absolute unlock time, and withdrawals are blocked between the moment a
release date exists and the moment it passes.

*/

package lockvault

import (
	"errors"

	"github.com/meridianfi/fvm/internal/fixedmath"
	"github.com/meridianfi/fvm/internal/types"
)

var (
	// ErrZeroLockAmount rejects locking zero tokens.
	ErrZeroLockAmount = errors.New("lock amount cannot be zero")
	// ErrZeroWithdrawAmount rejects unlocking zero tokens.
	ErrZeroWithdrawAmount = errors.New("withdraw amount cannot be zero")
	// ErrInsufficientLPAmount rejects burning more LP than the caller holds.
	ErrInsufficientLPAmount = errors.New("insufficient lp amount")
	// ErrLockingStarted rejects unlock attempts before the release date and
	// release-date changes after one is set.
	ErrLockingStarted = errors.New("locking has begun")
	// ErrInvalidReleaseDate rejects dates outside the configured window.
	ErrInvalidReleaseDate = errors.New("invalid release date")
	// ErrUnauthorizedAdmin rejects admin operations from a non-admin caller.
	ErrUnauthorizedAdmin = errors.New("caller is not the vault admin")
)

// Window bounds SetReleaseDate relative to now, in seconds. The production
// default is 11 to 13 months; the zero Window accepts any date (dev mode).
// The month bounds are an opaque business constraint, so they live in
// configuration rather than in a constant here.
type Window struct {
	Lower uint64
	Upper uint64
}

// Contains reports whether date is strictly inside (now+Lower, now+Upper).
// The bounds are checked additions: an overflowing lower bound admits no
// date, an overflowing upper bound saturates and leaves only the lower
// constraint.
func (w Window) Contains(date, now uint64) bool {
	if w.Lower == 0 && w.Upper == 0 {
		return true
	}
	lower, err := fixedmath.AddU64(now, w.Lower)
	if err != nil {
		return false
	}
	upper, err := fixedmath.AddU64(now, w.Upper)
	if err != nil {
		return date > lower
	}
	return date > lower && date < upper
}

// Vault is the release-date vault record.
type Vault struct {
	// ID is the vault principal; it signs vault-sourced transfers.
	ID         types.Principal `json:"id"`
	Token      types.TokenID   `json:"token"`
	TokenVault types.Principal `json:"token_vault"`
	LPMint     types.Principal `json:"lp_mint"`
	Admin      types.Principal `json:"admin"`

	// ReleaseDate is the Unix second tokens unlock; 0 means not yet set.
	ReleaseDate uint64 `json:"release_date"`
}

// Started reports whether a release date has been set.
func (v *Vault) Started() bool {
	return v.ReleaseDate > 0
}

// Ended reports whether the release date has passed.
func (v *Vault) Ended(now uint64) bool {
	return now > v.ReleaseDate
}

// SetReleaseDate records the unlock time. Admin only; rejected once a
// release date exists and when the date falls outside the window.
func (v *Vault) SetReleaseDate(date, now uint64, w Window) error {
	if v.Started() {
		return ErrLockingStarted
	}
	if !w.Contains(date, now) {
		return ErrInvalidReleaseDate
	}
	v.ReleaseDate = date
	return nil
}

// Lock deposits tokens and returns the LP to mint, at a unit price of 1:1.
func (v *Vault) Lock(amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrZeroLockAmount
	}
	return amount, nil
}

// Unlock burns the caller's LP 1:1 for tokens. Blocked while the locking
// period is running.
func (v *Vault) Unlock(amount, callerLPBalance, now uint64) (uint64, error) {
	if v.Started() && !v.Ended(now) {
		return 0, ErrLockingStarted
	}
	if amount == 0 {
		return 0, ErrZeroWithdrawAmount
	}
	if amount > callerLPBalance {
		return 0, ErrInsufficientLPAmount
	}
	return amount, nil
}
