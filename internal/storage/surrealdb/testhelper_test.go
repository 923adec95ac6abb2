package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/savings/internal/common"
	tcommon "github.com/bobmcallan/savings/tests/common"
)

// testConfig starts the shared SurrealDB container and returns a config
// pointing at a database unique to the test.
func testConfig(t *testing.T) *common.Config {
	t.Helper()
	sc := tcommon.StartSurrealDB(t)

	// SurrealDB rejects "/" in database names.
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := common.NewDefaultConfig()
	cfg.Environment = "test"
	cfg.Storage.Backend = "surrealdb"
	cfg.Storage.Address = sc.Address()
	cfg.Storage.Namespace = "savings_test"
	cfg.Storage.Database = fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
	return cfg
}

// testManager returns a connected manager with tables defined.
func testManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(context.Background(), testLogger(), testConfig(t))
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// rawDB exposes the connection for assertions that bypass the store.
func rawDB(m *Manager) *surreal.DB { return m.db }

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
