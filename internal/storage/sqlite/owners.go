package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bobmcallan/savings/internal/interfaces"
)

const (
	ownerClient = "client"
	ownerGroup  = "group"
)

// OwnerStore implements interfaces.OwnerDirectory. Owners without a row are
// treated as active.
type OwnerStore struct {
	*DB
}

var _ interfaces.OwnerDirectory = (*OwnerStore)(nil)

func NewOwnerStore(db *DB) *OwnerStore {
	return &OwnerStore{DB: db}
}

func (s *OwnerStore) ClientActive(ctx context.Context, clientID string) (bool, error) {
	return s.active(ctx, ownerClient, clientID)
}

func (s *OwnerStore) GroupActive(ctx context.Context, groupID string) (bool, error) {
	return s.active(ctx, ownerGroup, groupID)
}

func (s *OwnerStore) SetClientActive(ctx context.Context, clientID string, active bool) error {
	return s.setActive(ctx, ownerClient, clientID, active)
}

func (s *OwnerStore) SetGroupActive(ctx context.Context, groupID string, active bool) error {
	return s.setActive(ctx, ownerGroup, groupID, active)
}

func (s *OwnerStore) active(ctx context.Context, kind, id string) (bool, error) {
	var active bool
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT active FROM owners WHERE kind = ? AND owner_id = ?`, kind, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s %s: %w", kind, id, err)
	}
	return active, nil
}

func (s *OwnerStore) setActive(ctx context.Context, kind, id string, active bool) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO owners (kind, owner_id, active, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(kind, owner_id) DO UPDATE SET
			active     = excluded.active,
			updated_at = datetime('now')
	`, kind, id, active)
	if err != nil {
		return fmt.Errorf("failed to set %s %s active=%t: %w", kind, id, active, err)
	}
	return nil
}

// KVStore implements interfaces.SystemKVStore.
type KVStore struct {
	*DB
}

var _ interfaces.SystemKVStore = (*KVStore)(nil)

func NewKVStore(db *DB) *KVStore {
	return &KVStore{DB: db}
}

func (s *KVStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT value FROM system_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.New("system KV not found")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get system KV %s: %w", key, err)
	}
	return value, nil
}

func (s *KVStore) SetSystemKV(ctx context.Context, key, value string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO system_kv (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = datetime('now')
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set system KV %s: %w", key, err)
	}
	return nil
}
