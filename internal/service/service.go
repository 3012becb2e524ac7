/*

Service wraps the pure engine with the embedding concerns: it loads records
from the store, injects the clock, applies one engine operation, persists
the mutated records, and records the emitted event under a fresh receipt
id. The returned TransferPlan is the caller's to execute; the service never
moves tokens. Access to a given pool or vault record is serialised by the
embedding runtime, matching the engine's single-writer model.

*/

package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meridianfi/fvm/internal/clock"
	"github.com/meridianfi/fvm/internal/config"
	"github.com/meridianfi/fvm/internal/dripvault"
	"github.com/meridianfi/fvm/internal/farming"
	"github.com/meridianfi/fvm/internal/lockvault"
	"github.com/meridianfi/fvm/internal/logger"
	"github.com/meridianfi/fvm/internal/state"
	"github.com/meridianfi/fvm/internal/types"
)

// Service executes engine operations against persisted records.
type Service struct {
	logger zerolog.Logger
	clock  clock.Clock
}

// New creates a Service with the given clock.
func New(clk clock.Clock) (*Service, error) {
	if clk == nil {
		return nil, fmt.Errorf("clock cannot be nil")
	}
	return &Service{
		logger: logger.GetForComponent("service"),
		clock:  clk,
	}, nil
}

// recordEvent persists an event and logs the receipt. Event storage is
// observability only, so a failure is logged and swallowed rather than
// rolling back an already-persisted state transition.
func (s *Service) recordEvent(subject types.Principal, ev types.Event, now uint64) {
	receiptID, err := state.RecordEvent(subject, ev, now)
	if err != nil {
		s.logger.Error().Err(err).Str("event", ev.Name()).Msg("Failed to record event")
		return
	}
	s.logger.Debug().Str("event", ev.Name()).Str("receipt", receiptID).Msg("Event recorded")
}

// --- Farming pools ---

// InitializePool creates and persists a new farming pool. The minimum
// duration comes from configuration (one day, or one second in dev mode).
func (s *Service) InitializePool(cfg farming.PoolConfig) (*farming.Pool, error) {
	cfg.MinDuration = config.MinRewardDuration()
	pool, err := farming.NewPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := state.SavePool(pool); err != nil {
		return nil, err
	}
	s.logger.Info().Str("pool", pool.ID.String()).Uint64("duration", pool.RewardDuration).Msg("Pool initialized")
	return pool, nil
}

// CreateUser opens a position in a pool.
func (s *Service) CreateUser(poolID, owner types.Principal) (*farming.User, error) {
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return nil, err
	}
	user, err := pool.CreateUser(owner)
	if err != nil {
		return nil, err
	}
	if err := state.SavePool(pool); err != nil {
		return nil, err
	}
	if err := state.SaveUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Deposit stakes into a pool and returns the transfer to execute.
func (s *Service) Deposit(poolID, owner types.Principal, amount uint64) (types.TransferPlan, error) {
	now := s.clock.Now()
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return nil, err
	}
	user, err := state.LoadUser(poolID, owner)
	if err != nil {
		return nil, err
	}
	transfer, err := pool.Deposit(user, amount, now)
	if err != nil {
		return nil, err
	}
	if err := s.savePoolAndUser(pool, user); err != nil {
		return nil, err
	}
	s.recordEvent(poolID, types.EventDeposit{Amount: amount}, now)
	return types.TransferPlan{transfer}, nil
}

// Withdraw unstakes from a pool and returns the transfer to execute.
func (s *Service) Withdraw(poolID, owner types.Principal, amount uint64) (types.TransferPlan, error) {
	now := s.clock.Now()
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return nil, err
	}
	user, err := state.LoadUser(poolID, owner)
	if err != nil {
		return nil, err
	}
	transfer, err := pool.Withdraw(user, amount, now)
	if err != nil {
		return nil, err
	}
	if err := s.savePoolAndUser(pool, user); err != nil {
		return nil, err
	}
	s.recordEvent(poolID, types.EventWithdraw{Amount: amount}, now)
	if pool.SingleReward() {
		s.recordEvent(poolID, types.EventPendingReward{Value: user.PendingA}, now)
	}
	return types.TransferPlan{transfer}, nil
}

// Fund adds rewards to a pool and returns the funder transfers to execute.
func (s *Service) Fund(poolID, funder types.Principal, amountA, amountB uint64) (types.TransferPlan, error) {
	now := s.clock.Now()
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return nil, err
	}
	plan, err := pool.Fund(funder, amountA, amountB, now)
	if err != nil {
		return nil, err
	}
	if err := state.SavePool(pool); err != nil {
		return nil, err
	}
	s.recordEvent(poolID, types.EventFund{AmountA: amountA, AmountB: amountB}, now)
	return plan, nil
}

// Claim settles a user and returns the reward transfers. The caller
// supplies the live reward vault balances; payouts clamp to them.
func (s *Service) Claim(poolID, owner types.Principal, vaultABalance, vaultBBalance uint64) (types.TransferPlan, error) {
	now := s.clock.Now()
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return nil, err
	}
	user, err := state.LoadUser(poolID, owner)
	if err != nil {
		return nil, err
	}
	payA, payB, plan, err := pool.Claim(user, vaultABalance, vaultBBalance, now)
	if err != nil {
		return nil, err
	}
	if err := s.savePoolAndUser(pool, user); err != nil {
		return nil, err
	}
	if pool.SingleReward() {
		s.recordEvent(poolID, types.EventClaimReward{Value: payA}, now)
	} else {
		s.recordEvent(poolID, types.EventClaim{AmountA: payA, AmountB: payB}, now)
	}
	return plan, nil
}

// Pause pauses a pool once its reward window has elapsed.
func (s *Service) Pause(poolID types.Principal) error {
	return s.mutatePool(poolID, func(p *farming.Pool) error {
		return p.Pause(s.clock.Now())
	})
}

// Unpause reopens a paused pool.
func (s *Service) Unpause(poolID types.Principal) error {
	return s.mutatePool(poolID, func(p *farming.Pool) error {
		return p.Unpause()
	})
}

// AuthorizeFunder adds a funder to a pool.
func (s *Service) AuthorizeFunder(poolID, funder types.Principal) error {
	now := s.clock.Now()
	err := s.mutatePool(poolID, func(p *farming.Pool) error {
		return p.AuthorizeFunder(funder)
	})
	if err != nil {
		return err
	}
	s.recordEvent(poolID, types.EventAuthorizeFunder{NewFunder: funder}, now)
	return nil
}

// DeauthorizeFunder removes a funder from a pool.
func (s *Service) DeauthorizeFunder(poolID, funder types.Principal) error {
	now := s.clock.Now()
	err := s.mutatePool(poolID, func(p *farming.Pool) error {
		return p.DeauthorizeFunder(funder)
	})
	if err != nil {
		return err
	}
	s.recordEvent(poolID, types.EventUnauthorizeFunder{Funder: funder}, now)
	return nil
}

// CloseUser retires an empty position and deletes its record.
func (s *Service) CloseUser(poolID, owner types.Principal) error {
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return err
	}
	user, err := state.LoadUser(poolID, owner)
	if err != nil {
		return err
	}
	if err := pool.CloseUser(user); err != nil {
		return err
	}
	if err := state.SavePool(pool); err != nil {
		return err
	}
	return state.DeleteUser(poolID, owner)
}

// WithdrawExtraToken sweeps ghost tokens out of the staking vault.
func (s *Service) WithdrawExtraToken(poolID, recipient types.Principal, stakingVaultBalance uint64) (types.TransferPlan, error) {
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return nil, err
	}
	return pool.WithdrawExtraToken(recipient, stakingVaultBalance, s.clock.Now())
}

// ClosePool drains the reward vaults and retires the pool record.
func (s *Service) ClosePool(poolID, refundee types.Principal, stakingVaultBalance, vaultABalance, vaultBBalance uint64) (types.TransferPlan, error) {
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return nil, err
	}
	plan, err := pool.ClosePool(refundee, stakingVaultBalance, vaultABalance, vaultBBalance, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := state.DeletePool(poolID); err != nil {
		return nil, err
	}
	s.logger.Info().Str("pool", poolID.String()).Msg("Pool closed")
	return plan, nil
}

func (s *Service) mutatePool(poolID types.Principal, op func(*farming.Pool) error) error {
	pool, err := state.LoadPool(poolID)
	if err != nil {
		return err
	}
	if err := op(pool); err != nil {
		return err
	}
	return state.SavePool(pool)
}

func (s *Service) savePoolAndUser(pool *farming.Pool, user *farming.User) error {
	if err := state.SavePool(pool); err != nil {
		return err
	}
	return state.SaveUser(user)
}

// --- Drip vaults ---

// InitializeVault creates and persists a drip vault with the default
// 7-day degradation window.
func (s *Service) InitializeVault(v dripvault.Vault) (*dripvault.Vault, error) {
	v.Tracker = dripvault.NewLockedRewardTracker()
	if err := state.SaveVault(&v); err != nil {
		return nil, err
	}
	s.logger.Info().Str("vault", v.ID.String()).Msg("Drip vault initialized")
	return &v, nil
}

// StakeVault deposits into a drip vault. Returns the LP to mint and the
// deposit transfer.
func (s *Service) StakeVault(vaultID, staker types.Principal, tokens, lpSupply uint64) (uint64, types.TransferPlan, error) {
	now := s.clock.Now()
	vault, err := state.LoadVault(vaultID)
	if err != nil {
		return 0, nil, err
	}
	minted, err := vault.Stake(tokens, lpSupply, now)
	if err != nil {
		return 0, nil, err
	}
	if err := state.SaveVault(vault); err != nil {
		return 0, nil, err
	}
	s.recordEvent(vaultID, types.EventStake{Token: tokens, LP: minted}, now)
	plan := types.TransferPlan{{
		From: staker, To: vault.TokenVault, Authority: staker, Amount: tokens,
	}}
	return minted, plan, nil
}

// UnstakeVault burns LP out of a drip vault. Returns the tokens paid out
// and the vault-to-staker transfer.
func (s *Service) UnstakeVault(vaultID, staker types.Principal, lpBurn, callerLPBalance, lpSupply uint64) (uint64, types.TransferPlan, error) {
	now := s.clock.Now()
	vault, err := state.LoadVault(vaultID)
	if err != nil {
		return 0, nil, err
	}
	out, err := vault.Unstake(lpBurn, callerLPBalance, lpSupply, now)
	if err != nil {
		return 0, nil, err
	}
	if err := state.SaveVault(vault); err != nil {
		return 0, nil, err
	}
	s.recordEvent(vaultID, types.EventUnstake{Token: out, LP: lpBurn}, now)
	plan := types.TransferPlan{{
		From: vault.TokenVault, To: staker, Authority: vault.ID, Amount: out,
	}}
	return out, plan, nil
}

// RewardVault deposits locked reward into a drip vault. Funder must be the
// vault admin or its designated funder.
func (s *Service) RewardVault(vaultID, funder types.Principal, tokens uint64) (types.TransferPlan, error) {
	now := s.clock.Now()
	vault, err := state.LoadVault(vaultID)
	if err != nil {
		return nil, err
	}
	if funder != vault.Admin && funder != vault.Funder {
		return nil, dripvault.ErrUnauthorizedFunder
	}
	if err := vault.Reward(tokens, now); err != nil {
		return nil, err
	}
	if err := state.SaveVault(vault); err != nil {
		return nil, err
	}
	s.recordEvent(vaultID, types.EventReward{Amount: tokens}, now)
	return types.TransferPlan{{
		From: funder, To: vault.TokenVault, Authority: funder, Amount: tokens,
	}}, nil
}

// UpdateDegradation changes a vault's drip rate. Admin only.
func (s *Service) UpdateDegradation(vaultID, admin types.Principal, degradation uint64) error {
	vault, err := state.LoadVault(vaultID)
	if err != nil {
		return err
	}
	if admin != vault.Admin {
		return dripvault.ErrUnauthorizedAdmin
	}
	if err := vault.UpdateDegradation(degradation); err != nil {
		return err
	}
	return state.SaveVault(vault)
}

// TransferVaultAdmin hands a drip vault to a new admin. Admin only.
func (s *Service) TransferVaultAdmin(vaultID, admin, newAdmin types.Principal) error {
	vault, err := state.LoadVault(vaultID)
	if err != nil {
		return err
	}
	if admin != vault.Admin {
		return dripvault.ErrUnauthorizedAdmin
	}
	if err := vault.TransferAdmin(newAdmin); err != nil {
		return err
	}
	return state.SaveVault(vault)
}

// --- Lock vaults ---

// InitializeLockVault creates and persists a release-date vault.
func (s *Service) InitializeLockVault(v lockvault.Vault) (*lockvault.Vault, error) {
	if err := state.SaveLockVault(&v); err != nil {
		return nil, err
	}
	s.logger.Info().Str("vault", v.ID.String()).Msg("Lock vault initialized")
	return &v, nil
}

// SetReleaseDate records the unlock time on a lock vault, bounded by the
// configured window.
func (s *Service) SetReleaseDate(vaultID, admin types.Principal, date uint64) error {
	vault, err := state.LoadLockVault(vaultID)
	if err != nil {
		return err
	}
	if admin != vault.Admin {
		return lockvault.ErrUnauthorizedAdmin
	}
	lower, upper := config.ReleaseWindow()
	if err := vault.SetReleaseDate(date, s.clock.Now(), lockvault.Window{Lower: lower, Upper: upper}); err != nil {
		return err
	}
	return state.SaveLockVault(vault)
}

// Lock deposits into a lock vault at 1:1 and returns the LP to mint.
func (s *Service) Lock(vaultID, user types.Principal, amount uint64) (uint64, types.TransferPlan, error) {
	now := s.clock.Now()
	vault, err := state.LoadLockVault(vaultID)
	if err != nil {
		return 0, nil, err
	}
	minted, err := vault.Lock(amount)
	if err != nil {
		return 0, nil, err
	}
	s.recordEvent(vaultID, types.EventLock{Amount: amount}, now)
	return minted, types.TransferPlan{{
		From: user, To: vault.TokenVault, Authority: user, Amount: amount,
	}}, nil
}

// Unlock burns LP out of a lock vault at 1:1 once the release date passed.
func (s *Service) Unlock(vaultID, user types.Principal, amount, callerLPBalance uint64) (uint64, types.TransferPlan, error) {
	now := s.clock.Now()
	vault, err := state.LoadLockVault(vaultID)
	if err != nil {
		return 0, nil, err
	}
	out, err := vault.Unlock(amount, callerLPBalance, now)
	if err != nil {
		return 0, nil, err
	}
	s.recordEvent(vaultID, types.EventUnlock{Amount: out}, now)
	return out, types.TransferPlan{{
		From: vault.TokenVault, To: user, Authority: vault.ID, Amount: out,
	}}, nil
}
