package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type ownerRow struct {
	Kind    string `json:"kind"`
	OwnerID string `json:"owner_id"`
	Active  bool   `json:"active"`
}

// Owner ID format: owner:<kind>_<id>
func ownerID(kind, id string) string {
	return kind + "_" + id
}

// ClientActive reports false only for clients explicitly deactivated.
func (s *Store) ClientActive(ctx context.Context, clientID string) (bool, error) {
	return s.ownerActive(ctx, "client", clientID)
}

func (s *Store) GroupActive(ctx context.Context, groupID string) (bool, error) {
	return s.ownerActive(ctx, "group", groupID)
}

func (s *Store) SetClientActive(ctx context.Context, clientID string, active bool) error {
	return s.setOwnerActive(ctx, "client", clientID, active)
}

func (s *Store) SetGroupActive(ctx context.Context, groupID string, active bool) error {
	return s.setOwnerActive(ctx, "group", groupID, active)
}

func (s *Store) ownerActive(ctx context.Context, kind, id string) (bool, error) {
	row, err := surrealdb.Select[ownerRow](ctx, s.db, surrealmodels.NewRecordID(tableOwner, ownerID(kind, id)))
	if err != nil && !isNotFoundError(err) {
		return false, fmt.Errorf("failed to look up %s %s: %w", kind, id, err)
	}
	if row == nil {
		return true, nil
	}
	return row.Active, nil
}

func (s *Store) setOwnerActive(ctx context.Context, kind, id string, active bool) error {
	rid := surrealmodels.NewRecordID(tableOwner, ownerID(kind, id))
	return s.apply(ctx, write{verb: "UPSERT", rid: rid, row: ownerRow{Kind: kind, OwnerID: id, Active: active}})
}

type sysKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Store) GetSystemKV(ctx context.Context, key string) (string, error) {
	kv, err := surrealdb.Select[sysKV](ctx, s.db, surrealmodels.NewRecordID(tableKV, key))
	if err != nil || kv == nil {
		return "", errors.New("system KV not found")
	}
	return kv.Value, nil
}

func (s *Store) SetSystemKV(ctx context.Context, key, value string) error {
	sql := "UPSERT $rid CONTENT $kv"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tableKV, key), "kv": sysKV{Key: key, Value: value}}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]sysKV](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to set system KV after retries: %w", err)
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
