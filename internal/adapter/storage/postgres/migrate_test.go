package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_EmbeddedInPairs(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestMigrations_LedgerConstraints(t *testing.T) {
	raw, err := fs.ReadFile(migrationFS, "migrations/000001_init_ledger.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	assert.Contains(t, schema, "user_id    UUID NOT NULL UNIQUE", "one wallet per user")
	assert.Contains(t, schema, "CHECK (quantity >= 0)", "holdings never go negative")
	assert.Contains(t, schema, "UNIQUE (wallet_id, symbol)", "upsert conflict target")
	assert.Contains(t, schema, "BEFORE UPDATE ON transactions", "transactions are append-only")
}

func TestMigrations_TransactionDeletesOnlyCascade(t *testing.T) {
	raw, err := fs.ReadFile(migrationFS, "migrations/000002_guard_transaction_delete.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	assert.Contains(t, schema, "BEFORE DELETE ON transactions")
	assert.Contains(t, schema, "TG_OP = 'DELETE' AND pg_trigger_depth() > 1", "wallet cascade still removes rows")
	assert.Contains(t, schema, "RAISE EXCEPTION 'transactions are append-only'")

	down, err := fs.ReadFile(migrationFS, "migrations/000002_guard_transaction_delete.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TRIGGER IF EXISTS transactions_no_delete ON transactions")
}

func TestMigrate_InvalidDSN(t *testing.T) {
	err := Migrate("postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1", zerolog.Nop())
	assert.Error(t, err)
}
