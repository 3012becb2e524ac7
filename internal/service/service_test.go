package service

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/meridianfi/fvm/internal/clock"
	"github.com/meridianfi/fvm/internal/dripvault"
	"github.com/meridianfi/fvm/internal/farming"
	"github.com/meridianfi/fvm/internal/state"
	"github.com/meridianfi/fvm/internal/types"
)

func pr(b byte) types.Principal {
	var p types.Principal
	p[0] = b
	return p
}

// newMockService points the store at a sqlmock database and pins the clock.
func newMockService(t *testing.T, now uint64) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	prev := state.DB
	state.DB = db
	t.Cleanup(func() {
		state.DB = prev
		db.Close()
	})

	svc, err := New(clock.NewManual(now))
	require.NoError(t, err)
	return svc, mock
}

func poolFixture(t *testing.T, singleReward bool) *farming.Pool {
	t.Helper()
	cfg := farming.PoolConfig{
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
	if singleReward {
		cfg.RewardBToken = cfg.RewardAToken
	}
	pool, err := farming.NewPool(cfg)
	require.NoError(t, err)
	return pool
}

func expectPoolRow(mock sqlmock.Sqlmock, t *testing.T, pool *farming.Pool) {
	t.Helper()
	record, err := state.EncodePool(pool)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT record FROM pools WHERE pool_id").
		WithArgs(pool.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow(record))
}

func expectUserRow(mock sqlmock.Sqlmock, t *testing.T, user *farming.User) {
	t.Helper()
	record, err := state.EncodeUser(user)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT record FROM users WHERE pool_id").
		WithArgs(user.Pool.String(), user.Owner.String()).
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow(record))
}

func TestInitializePoolPersistsRecord(t *testing.T) {
	svc, mock := newMockService(t, 0)

	mock.ExpectExec("INSERT INTO pools").
		WithArgs(pr(1).String(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pool, err := svc.InitializePool(farming.PoolConfig{
		ID:             pr(1),
		Authority:      pr(2),
		StakingToken:   pr(3),
		StakingVault:   pr(4),
		RewardAToken:   pr(5),
		RewardAVault:   pr(6),
		RewardBToken:   pr(7),
		RewardBVault:   pr(8),
		RewardDuration: 7 * 86400,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(7*86400), pool.RewardDuration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInitializePoolRejectsShortDuration(t *testing.T) {
	svc, mock := newMockService(t, 0)

	// One hour is below the production minimum; nothing may hit the store.
	_, err := svc.InitializePool(farming.PoolConfig{
		ID:             pr(1),
		Authority:      pr(2),
		RewardDuration: 3600,
	})
	require.ErrorIs(t, err, farming.ErrDurationTooShort)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDepositAppliesAndPersists(t *testing.T) {
	svc, mock := newMockService(t, 50)
	pool := poolFixture(t, false)
	owner := pr(10)
	user, err := pool.CreateUser(owner)
	require.NoError(t, err)

	expectPoolRow(mock, t, pool)
	expectUserRow(mock, t, user)
	mock.ExpectExec("INSERT INTO pools").
		WithArgs(pool.ID.String(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WithArgs(pool.ID.String(), owner.String(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").
		WithArgs(sqlmock.AnyArg(), pool.ID.String(), "deposit", sqlmock.AnyArg(), uint64(50)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	plan, err := svc.Deposit(pool.ID, owner, 1000)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, owner, plan[0].From)
	require.Equal(t, pool.StakingVault, plan[0].To)
	require.Equal(t, uint64(1000), plan[0].Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectedDepositWritesNothing(t *testing.T) {
	svc, mock := newMockService(t, 50)
	pool := poolFixture(t, false)
	owner := pr(10)
	user, err := pool.CreateUser(owner)
	require.NoError(t, err)

	expectPoolRow(mock, t, pool)
	expectUserRow(mock, t, user)

	_, err = svc.Deposit(pool.ID, owner, 0)
	require.ErrorIs(t, err, farming.ErrAmountMustBeGreaterThanZero)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimSingleRewardEmitsClaimReward(t *testing.T) {
	pool := poolFixture(t, true)
	owner := pr(10)
	user, err := pool.CreateUser(owner)
	require.NoError(t, err)
	_, err = pool.Deposit(user, 1000, 0)
	require.NoError(t, err)
	_, err = pool.Fund(pool.Authority, 1_000_000, 0, 0)
	require.NoError(t, err)

	// The reward window has fully elapsed by claim time.
	svc, mock := newMockService(t, 200)
	expectPoolRow(mock, t, pool)
	expectUserRow(mock, t, user)
	mock.ExpectExec("INSERT INTO pools").
		WithArgs(pool.ID.String(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WithArgs(pool.ID.String(), owner.String(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").
		WithArgs(sqlmock.AnyArg(), pool.ID.String(), "claim_reward", sqlmock.AnyArg(), uint64(200)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	plan, err := svc.Claim(pool.ID, owner, 2_000_000, 0)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, pool.RewardAVault, plan[0].From)
	require.Equal(t, owner, plan[0].To)
	require.Positive(t, plan[0].Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardVaultRejectsUnknownFunder(t *testing.T) {
	svc, mock := newMockService(t, 100)
	vault := dripvault.Vault{
		ID:         pr(20),
		Token:      pr(21),
		TokenVault: pr(22),
		LPMint:     pr(23),
		Admin:      pr(24),
		Funder:     pr(25),
		Tracker:    dripvault.NewLockedRewardTracker(),
	}
	record, err := state.EncodeVault(&vault)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT record FROM vaults WHERE vault_id").
		WithArgs(vault.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow(record))

	_, err = svc.RewardVault(vault.ID, pr(99), 500)
	require.ErrorIs(t, err, dripvault.ErrUnauthorizedFunder)
	require.NoError(t, mock.ExpectationsWereMet())
}
