package farming

import "errors"

// Failure taxonomy of the farming pool state machine. Every operation tests
// its preconditions before mutating anything, so a returned error always
// means the pool and user records are unchanged.
var (
	// ErrAmountMustBeGreaterThanZero rejects zero-amount deposits and withdrawals.
	ErrAmountMustBeGreaterThanZero = errors.New("amount must be greater than zero")
	// ErrInsufficientFundWithdraw rejects withdrawing more than the staked balance.
	ErrInsufficientFundWithdraw = errors.New("insufficient funds to withdraw")
	// ErrPoolPaused rejects mutating operations on a paused pool.
	ErrPoolPaused = errors.New("pool is paused")
	// ErrPoolNotPaused rejects unpausing a pool that is not paused.
	ErrPoolNotPaused = errors.New("pool is not paused")
	// ErrPoolRewardsActive rejects pausing before the reward window has ended.
	ErrPoolRewardsActive = errors.New("reward period has not ended")
	// ErrDurationTooShort rejects reward durations below the configured minimum.
	ErrDurationTooShort = errors.New("reward duration is too short")
	// ErrSingleDepositTokenBCannotBeFunded rejects funding stream B of a
	// single-reward pool.
	ErrSingleDepositTokenBCannotBeFunded = errors.New("reward B cannot be funded - pool is single deposit")
	// ErrFunderNotAuthorized rejects funding by a principal outside the
	// authority and funder set.
	ErrFunderNotAuthorized = errors.New("funder is not authorized")
	// ErrFunderAlreadyAuthorized rejects re-adding a known funder.
	ErrFunderAlreadyAuthorized = errors.New("provided funder is already authorized to fund")
	// ErrMaxFunders rejects adding a funder when all slots are taken.
	ErrMaxFunders = errors.New("maximum funders already authorized")
	// ErrCannotDeauthorizePoolAuthority protects the primary authority.
	ErrCannotDeauthorizePoolAuthority = errors.New("cannot deauthorize the primary pool authority")
	// ErrCannotDeauthorizeMissingAuthority rejects removing an unknown funder.
	ErrCannotDeauthorizeMissingAuthority = errors.New("authority not found for deauthorization")
	// ErrUserNotEmpty rejects closing a position that still holds a balance
	// or pending rewards.
	ErrUserNotEmpty = errors.New("user has staked balance or pending rewards")
	// ErrPoolNotClosable rejects closing a pool whose preconditions
	// (paused, expired window, no users, drained staking vault) do not hold.
	ErrPoolNotClosable = errors.New("pool close preconditions not met")
)
