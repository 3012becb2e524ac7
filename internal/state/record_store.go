// ./internal/state/record_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/meridianfi/fvm/internal/dripvault"
	"github.com/meridianfi/fvm/internal/farming"
	"github.com/meridianfi/fvm/internal/lockvault"
	"github.com/meridianfi/fvm/internal/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = sql.ErrNoRows

// SavePool upserts a pool record: canonical bytes plus a JSONB snapshot.
func SavePool(p *farming.Pool) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	record, err := EncodePool(p)
	if err != nil {
		return fmt.Errorf("failed to encode pool record: %w", err)
	}
	snapshot, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pool snapshot: %w", err)
	}

	query := `
		INSERT INTO pools (pool_id, record, snapshot, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (pool_id) DO UPDATE
		SET record = EXCLUDED.record, snapshot = EXCLUDED.snapshot, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := DB.Exec(query, p.ID.String(), record, snapshot); err != nil {
		return fmt.Errorf("failed to save pool: %w", err)
	}
	return nil
}

// LoadPool reads a pool record by id.
func LoadPool(id types.Principal) (*farming.Pool, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	var record []byte
	err := DB.QueryRow(`SELECT record FROM pools WHERE pool_id = $1`, id.String()).Scan(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool %s: %w", id, err)
	}
	return DecodePool(id, record)
}

// ListPoolIDs returns all known pool ids.
func ListPoolIDs() ([]types.Principal, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	rows, err := DB.Query(`SELECT pool_id FROM pools ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	var ids []types.Principal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan pool id: %w", err)
		}
		id, err := types.PrincipalFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt pool id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeletePool removes a closed pool.
func DeletePool(id types.Principal) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := DB.Exec(`DELETE FROM pools WHERE pool_id = $1`, id.String()); err != nil {
		return fmt.Errorf("failed to delete pool: %w", err)
	}
	return nil
}

// SaveUser upserts a user position record.
func SaveUser(u *farming.User) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	record, err := EncodeUser(u)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}
	snapshot, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user snapshot: %w", err)
	}

	query := `
		INSERT INTO users (pool_id, owner, record, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (pool_id, owner) DO UPDATE
		SET record = EXCLUDED.record, snapshot = EXCLUDED.snapshot, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := DB.Exec(query, u.Pool.String(), u.Owner.String(), record, snapshot); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// LoadUser reads a user position by pool and owner.
func LoadUser(pool, owner types.Principal) (*farming.User, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	var record []byte
	err := DB.QueryRow(
		`SELECT record FROM users WHERE pool_id = $1 AND owner = $2`,
		pool.String(), owner.String(),
	).Scan(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s/%s: %w", pool, owner, err)
	}
	return DecodeUser(record)
}

// DeleteUser removes a closed user position.
func DeleteUser(pool, owner types.Principal) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := DB.Exec(
		`DELETE FROM users WHERE pool_id = $1 AND owner = $2`,
		pool.String(), owner.String(),
	); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// SaveVault upserts a drip-vault record.
func SaveVault(v *dripvault.Vault) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	record, err := EncodeVault(v)
	if err != nil {
		return fmt.Errorf("failed to encode vault record: %w", err)
	}
	snapshot, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal vault snapshot: %w", err)
	}

	query := `
		INSERT INTO vaults (vault_id, record, snapshot, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (vault_id) DO UPDATE
		SET record = EXCLUDED.record, snapshot = EXCLUDED.snapshot, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := DB.Exec(query, v.ID.String(), record, snapshot); err != nil {
		return fmt.Errorf("failed to save vault: %w", err)
	}
	return nil
}

// LoadVault reads a drip-vault record by id.
func LoadVault(id types.Principal) (*dripvault.Vault, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	var record []byte
	err := DB.QueryRow(`SELECT record FROM vaults WHERE vault_id = $1`, id.String()).Scan(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to load vault %s: %w", id, err)
	}
	return DecodeVault(id, record)
}

// SaveLockVault upserts a release-date vault record.
func SaveLockVault(v *lockvault.Vault) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	record, err := EncodeLockVault(v)
	if err != nil {
		return fmt.Errorf("failed to encode lock vault record: %w", err)
	}
	snapshot, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal lock vault snapshot: %w", err)
	}

	query := `
		INSERT INTO lock_vaults (vault_id, record, snapshot, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (vault_id) DO UPDATE
		SET record = EXCLUDED.record, snapshot = EXCLUDED.snapshot, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := DB.Exec(query, v.ID.String(), record, snapshot); err != nil {
		return fmt.Errorf("failed to save lock vault: %w", err)
	}
	return nil
}

// LoadLockVault reads a release-date vault record by id.
func LoadLockVault(id types.Principal) (*lockvault.Vault, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	var record []byte
	err := DB.QueryRow(`SELECT record FROM lock_vaults WHERE vault_id = $1`, id.String()).Scan(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to load lock vault %s: %w", id, err)
	}
	return DecodeLockVault(id, record)
}
