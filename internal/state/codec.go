/*

Fixed-width binary codec for the persisted engine records. Field order
follows the record declarations, every field has an explicit byte width,
integers are little-endian, and an 8-byte discriminator precedes each
record so a decoder can reject bytes of the wrong kind. Reserved trailers
absorb future fields without a layout break.

*/

package state

import (
	"encoding/binary"
	"errors"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianfi/fvm/internal/dripvault"
	"github.com/meridianfi/fvm/internal/farming"
	"github.com/meridianfi/fvm/internal/lockvault"
	"github.com/meridianfi/fvm/internal/types"
)

// Record sizes, discriminator included.
const (
	PoolRecordSize      = 477
	UserRecordSize      = 192
	VaultRecordSize     = 500
	LockVaultRecordSize = 244
)

var (
	poolDiscriminator      = [8]byte{'f', 'v', 'm', '.', 'p', 'o', 'o', 'l'}
	userDiscriminator      = [8]byte{'f', 'v', 'm', '.', 'u', 's', 'e', 'r'}
	vaultDiscriminator     = [8]byte{'f', 'v', 'm', '.', 'd', 'r', 'i', 'p'}
	lockVaultDiscriminator = [8]byte{'f', 'v', 'm', '.', 'l', 'o', 'c', 'k'}
)

var (
	// ErrBadRecord is returned when a record has the wrong length or
	// discriminator.
	ErrBadRecord = errors.New("malformed record bytes")
	// ErrAccumulatorWidth is returned when an accumulator does not fit its
	// 16-byte field.
	ErrAccumulatorWidth = errors.New("accumulator exceeds u128 storage width")
)

// cursor walks a record buffer sequentially in both directions.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) bytes(n int) []byte {
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) putPrincipal(p types.Principal) { copy(c.bytes(32), p[:]) }
func (c *cursor) principal() (p types.Principal) { copy(p[:], c.bytes(32)); return }

func (c *cursor) putU64(v uint64) { binary.LittleEndian.PutUint64(c.bytes(8), v) }
func (c *cursor) u64() uint64     { return binary.LittleEndian.Uint64(c.bytes(8)) }

func (c *cursor) putU32(v uint32) { binary.LittleEndian.PutUint32(c.bytes(4), v) }
func (c *cursor) u32() uint32     { return binary.LittleEndian.Uint32(c.bytes(4)) }

func (c *cursor) putU8(v uint8) { c.bytes(1)[0] = v }
func (c *cursor) u8() uint8     { return c.bytes(1)[0] }

func (c *cursor) putBool(v bool) {
	if v {
		c.putU8(1)
	} else {
		c.putU8(0)
	}
}
func (c *cursor) bool() bool { return c.u8() != 0 }

// putU128 stores a non-negative sdkmath.Int in 16 little-endian bytes.
func (c *cursor) putU128(v sdkmath.Int) error {
	raw := v.BigInt().Bytes() // big-endian, minimal
	if v.IsNegative() || len(raw) > 16 {
		return ErrAccumulatorWidth
	}
	field := c.bytes(16)
	for i, b := range raw {
		field[len(raw)-1-i] = b
	}
	return nil
}

func (c *cursor) u128() sdkmath.Int {
	field := c.bytes(16)
	be := make([]byte, 16)
	for i, b := range field {
		be[15-i] = b
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).SetBytes(be))
}

// EncodePool serialises a farming pool record. The pool ID is the storage
// key, not part of the record.
func EncodePool(p *farming.Pool) ([]byte, error) {
	buf := make([]byte, PoolRecordSize)
	c := &cursor{buf: buf}
	copy(c.bytes(8), poolDiscriminator[:])
	c.putPrincipal(p.Authority)
	c.putBool(p.Paused)
	c.putPrincipal(p.StakingToken)
	c.putPrincipal(p.StakingVault)
	c.putPrincipal(p.RewardAToken)
	c.putPrincipal(p.RewardAVault)
	c.putPrincipal(p.RewardBToken)
	c.putPrincipal(p.RewardBVault)
	c.putU64(p.RewardDuration)
	c.putU64(p.RewardEnd)
	c.putU64(p.LastUpdate)
	c.putU8(uint8(p.Schedule))
	c.putU64(p.RateA)
	c.putU64(p.RateB)
	if err := c.putU128(p.AccA); err != nil {
		return nil, err
	}
	if err := c.putU128(p.AccB); err != nil {
		return nil, err
	}
	c.putU32(p.UserCount)
	for _, f := range p.Funders {
		c.putPrincipal(f)
	}
	c.putU64(p.TotalStaked)
	// 31-byte reserved trailer stays zero.
	return buf, nil
}

// DecodePool deserialises a farming pool record stored under id.
func DecodePool(id types.Principal, raw []byte) (*farming.Pool, error) {
	if len(raw) != PoolRecordSize || string(raw[:8]) != string(poolDiscriminator[:]) {
		return nil, ErrBadRecord
	}
	c := &cursor{buf: raw, off: 8}
	p := &farming.Pool{ID: id}
	p.Authority = c.principal()
	p.Paused = c.bool()
	p.StakingToken = c.principal()
	p.StakingVault = c.principal()
	p.RewardAToken = c.principal()
	p.RewardAVault = c.principal()
	p.RewardBToken = c.principal()
	p.RewardBVault = c.principal()
	p.RewardDuration = c.u64()
	p.RewardEnd = c.u64()
	p.LastUpdate = c.u64()
	p.Schedule = farming.Schedule(c.u8())
	p.RateA = c.u64()
	p.RateB = c.u64()
	p.AccA = c.u128()
	p.AccB = c.u128()
	p.UserCount = c.u32()
	for i := range p.Funders {
		p.Funders[i] = c.principal()
	}
	p.TotalStaked = c.u64()
	return p, nil
}

// EncodeUser serialises a user position record.
func EncodeUser(u *farming.User) ([]byte, error) {
	buf := make([]byte, UserRecordSize)
	c := &cursor{buf: buf}
	copy(c.bytes(8), userDiscriminator[:])
	c.putPrincipal(u.Pool)
	c.putPrincipal(u.Owner)
	if err := c.putU128(u.CompleteA); err != nil {
		return nil, err
	}
	if err := c.putU128(u.CompleteB); err != nil {
		return nil, err
	}
	c.putU64(u.PendingA)
	c.putU64(u.PendingB)
	c.putU64(u.Balance)
	// 64-byte trailing pad stays zero.
	return buf, nil
}

// DecodeUser deserialises a user position record.
func DecodeUser(raw []byte) (*farming.User, error) {
	if len(raw) != UserRecordSize || string(raw[:8]) != string(userDiscriminator[:]) {
		return nil, ErrBadRecord
	}
	c := &cursor{buf: raw, off: 8}
	u := &farming.User{}
	u.Pool = c.principal()
	u.Owner = c.principal()
	u.CompleteA = c.u128()
	u.CompleteB = c.u128()
	u.PendingA = c.u64()
	u.PendingB = c.u64()
	u.Balance = c.u64()
	return u, nil
}

// EncodeVault serialises a drip-vault record.
func EncodeVault(v *dripvault.Vault) ([]byte, error) {
	buf := make([]byte, VaultRecordSize)
	c := &cursor{buf: buf}
	copy(c.bytes(8), vaultDiscriminator[:])
	c.putPrincipal(v.Token)
	c.putPrincipal(v.TokenVault)
	c.putPrincipal(v.LPMint)
	c.putPrincipal(v.Admin)
	c.putPrincipal(v.Funder)
	c.putU64(v.TotalAmount)
	c.putU64(v.Tracker.LastLocked)
	c.putU64(v.Tracker.LastReport)
	c.putU64(v.Tracker.Degradation)
	return buf, nil
}

// DecodeVault deserialises a drip-vault record stored under id.
func DecodeVault(id types.Principal, raw []byte) (*dripvault.Vault, error) {
	if len(raw) != VaultRecordSize || string(raw[:8]) != string(vaultDiscriminator[:]) {
		return nil, ErrBadRecord
	}
	c := &cursor{buf: raw, off: 8}
	v := &dripvault.Vault{ID: id}
	v.Token = c.principal()
	v.TokenVault = c.principal()
	v.LPMint = c.principal()
	v.Admin = c.principal()
	v.Funder = c.principal()
	v.TotalAmount = c.u64()
	v.Tracker.LastLocked = c.u64()
	v.Tracker.LastReport = c.u64()
	v.Tracker.Degradation = c.u64()
	return v, nil
}

// EncodeLockVault serialises a release-date vault record.
func EncodeLockVault(v *lockvault.Vault) ([]byte, error) {
	buf := make([]byte, LockVaultRecordSize)
	c := &cursor{buf: buf}
	copy(c.bytes(8), lockVaultDiscriminator[:])
	c.putPrincipal(v.Token)
	c.putPrincipal(v.TokenVault)
	c.putPrincipal(v.LPMint)
	c.putPrincipal(v.Admin)
	c.putU64(v.ReleaseDate)
	return buf, nil
}

// DecodeLockVault deserialises a release-date vault record stored under id.
func DecodeLockVault(id types.Principal, raw []byte) (*lockvault.Vault, error) {
	if len(raw) != LockVaultRecordSize || string(raw[:8]) != string(lockVaultDiscriminator[:]) {
		return nil, ErrBadRecord
	}
	c := &cursor{buf: raw, off: 8}
	v := &lockvault.Vault{ID: id}
	v.Token = c.principal()
	v.TokenVault = c.principal()
	v.LPMint = c.principal()
	v.Admin = c.principal()
	v.ReleaseDate = c.u64()
	return v, nil
}
