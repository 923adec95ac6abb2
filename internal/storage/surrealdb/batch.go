package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// write is one staged record statement.
type write struct {
	verb string // CREATE or UPSERT
	rid  surrealmodels.RecordID
	row  any
}

// batch collects the writes of one unit of work. It is committed as a single
// BEGIN/COMMIT query so the ledger never shows a half-applied operation.
type batch struct {
	mu     sync.Mutex
	writes []write
}

type batchKey struct{}

func batchFrom(ctx context.Context) *batch {
	b, _ := ctx.Value(batchKey{}).(*batch)
	return b
}

func (b *batch) add(w write) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, w)
}

// render builds the query text and its variables.
func render(writes []write) (string, map[string]any) {
	var sb strings.Builder
	vars := make(map[string]any, 2*len(writes))
	wrap := len(writes) > 1
	if wrap {
		sb.WriteString("BEGIN TRANSACTION;\n")
	}
	for i, w := range writes {
		fmt.Fprintf(&sb, "%s $rid%d CONTENT $row%d;\n", w.verb, i, i)
		vars[fmt.Sprintf("rid%d", i)] = w.rid
		vars[fmt.Sprintf("row%d", i)] = w.row
	}
	if wrap {
		sb.WriteString("COMMIT TRANSACTION;\n")
	}
	return sb.String(), vars
}

// apply stages w on the batch in ctx or runs it immediately.
func (s *Store) apply(ctx context.Context, w write) error {
	if b := batchFrom(ctx); b != nil {
		b.add(w)
		return nil
	}
	return s.commit(ctx, []write{w})
}

func (s *Store) commit(ctx context.Context, writes []write) error {
	if len(writes) == 0 {
		return nil
	}
	sql, vars := render(writes)
	results, err := surrealdb.Query[any](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to commit %d writes: %w", len(writes), err)
	}
	if results != nil {
		for i, r := range *results {
			if r.Status != "OK" {
				return fmt.Errorf("write %d failed with status %s: %v", i, r.Status, r.Result)
			}
		}
	}
	return nil
}

// Atomically stages every write made through ctx and commits them together
// when fn succeeds. Nested calls join the outer batch.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if batchFrom(ctx) != nil {
		return fn(ctx)
	}
	b := &batch{}
	if err := fn(context.WithValue(ctx, batchKey{}, b)); err != nil {
		s.logger.Debug().Int("discarded", len(b.writes)).Err(err).Msg("Unit of work discarded")
		return err
	}
	return s.commit(ctx, b.writes)
}
