/*

Engine events. Observability only: the service layer records these for
off-chain indexers after an operation succeeds. Nothing in the engine reads
them back.

*/

package types

// Event is implemented by every engine event. Name returns a stable
// identifier used as the event-store discriminator.
type Event interface {
	Name() string
}

// EventDeposit is emitted when a user stakes into a farming pool.
type EventDeposit struct {
	Amount uint64 `json:"amount"`
}

// EventWithdraw is emitted when a user unstakes from a farming pool.
type EventWithdraw struct {
	Amount uint64 `json:"amount"`
}

// EventFund is emitted when a funder adds rewards to a farming pool.
type EventFund struct {
	AmountA uint64 `json:"amount_a"`
	AmountB uint64 `json:"amount_b"`
}

// EventClaim is emitted with the amounts actually paid out to a claimer.
type EventClaim struct {
	AmountA uint64 `json:"amount_a"`
	AmountB uint64 `json:"amount_b"`
}

// EventAuthorizeFunder is emitted when a funder is added to a pool.
type EventAuthorizeFunder struct {
	NewFunder Principal `json:"new_funder"`
}

// EventUnauthorizeFunder is emitted when a funder is removed from a pool.
type EventUnauthorizeFunder struct {
	Funder Principal `json:"funder"`
}

// EventStake is emitted when tokens are staked into a drip vault.
type EventStake struct {
	Token uint64 `json:"token"`
	LP    uint64 `json:"lp"`
}

// EventUnstake is emitted when LP is burned out of a drip vault.
type EventUnstake struct {
	Token uint64 `json:"token"`
	LP    uint64 `json:"lp"`
}

// EventLock is emitted when tokens are locked into a release-date vault.
type EventLock struct {
	Amount uint64 `json:"amount"`
}

// EventUnlock is emitted when tokens leave a release-date vault.
type EventUnlock struct {
	Amount uint64 `json:"amount"`
}

// EventReward is emitted when locked reward is deposited into a drip vault.
type EventReward struct {
	Amount uint64 `json:"amount"`
}

// EventPendingReward is emitted after settlement with the user's accrued
// but untransferred reward.
type EventPendingReward struct {
	Value uint64 `json:"value"`
}

// EventClaimReward is emitted with the amount transferred by a single-stream
// claim.
type EventClaimReward struct {
	Value uint64 `json:"value"`
}

func (EventDeposit) Name() string           { return "deposit" }
func (EventWithdraw) Name() string          { return "withdraw" }
func (EventFund) Name() string              { return "fund" }
func (EventClaim) Name() string             { return "claim" }
func (EventAuthorizeFunder) Name() string   { return "authorize_funder" }
func (EventUnauthorizeFunder) Name() string { return "unauthorize_funder" }
func (EventStake) Name() string             { return "stake" }
func (EventUnstake) Name() string           { return "unstake" }
func (EventReward) Name() string            { return "reward" }
func (EventLock) Name() string              { return "lock" }
func (EventUnlock) Name() string            { return "unlock" }
func (EventPendingReward) Name() string     { return "pending_reward" }
func (EventClaimReward) Name() string       { return "claim_reward" }
