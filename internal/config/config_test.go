package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"STORAGE", "SQLITE_PATH", "REQUESTS_TABLE", "IDEMPOTENCY_TABLE", "IDEMPOTENCY_TTL",
		"EVENTS_QUEUE_URL", "EXTRACTION_URL", "CATALOG_PATH", "RUN_LOCAL", "ADDR", "PROCUREMENT_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUESTS_TABLE", "requests")
	t.Setenv("IDEMPOTENCY_TABLE", "idem")
	t.Setenv("EVENTS_QUEUE_URL", "https://sqs.local/q")
	t.Setenv("RUN_LOCAL", "true")
	t.Setenv("IDEMPOTENCY_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageDynamoDB, cfg.Storage)
	assert.Equal(t, "requests", cfg.RequestsTable)
	assert.Equal(t, "idem", cfg.IdempotencyTable)
	assert.True(t, cfg.RunLocal)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 2*time.Hour, cfg.IdempotencyTTL)
}

func TestLoad_DynamoRequiresTable(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_UnknownStorage(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE", "postgres")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadTTL(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE", "memory")
	t.Setenv("IDEMPOTENCY_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE", "memory")
	path := filepath.Join(t.TempDir(), "procurement.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage: SQLite
sqlite_path: /tmp/p.db
extraction_url: http://extractor:9000
idempotency_ttl: 24h
transitions:
  Open: [In Progress]
  In Progress: [Closed]
`), 0o600))
	t.Setenv("PROCUREMENT_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, "/tmp/p.db", cfg.SQLitePath)
	assert.Equal(t, "http://extractor:9000", cfg.ExtractionURL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)

	table, err := cfg.TransitionTable()
	require.NoError(t, err)
	assert.True(t, table.Allows(procurement.StatusOpen, procurement.StatusInProgress))
	assert.False(t, table.Allows(procurement.StatusOpen, procurement.StatusClosed))
	assert.False(t, table.Allows(procurement.StatusClosed, procurement.StatusOpen))
}

func TestLoad_YAMLBadTransition(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE", "memory")
	path := filepath.Join(t.TempDir(), "procurement.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transitions:\n  Open: [Archived]\n"), 0o600))
	t.Setenv("PROCUREMENT_CONFIG", path)

	_, err := Load()
	assert.ErrorIs(t, err, procurement.ErrInvalidStatus)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCUREMENT_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestTransitionTable_DefaultNil(t *testing.T) {
	table, err := Config{}.TransitionTable()
	require.NoError(t, err)
	assert.Nil(t, table)
}
