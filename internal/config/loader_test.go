package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("FINRAG_TEST_HOST", "db.internal")

	in := "host: ${FINRAG_TEST_HOST}\nport: ${FINRAG_TEST_PORT:5433}\nkey: ${FINRAG_TEST_MISSING}"
	out := expandEnv(in)

	assert.Contains(t, out, "host: db.internal")
	assert.Contains(t, out, "port: 5433")
	assert.Contains(t, out, "key: ${FINRAG_TEST_MISSING}")
}

func TestLoadFromDefaultsWithoutFiles(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), false)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 10, cfg.Retrieval.MaxContextChunks)
	assert.Equal(t, 1000, cfg.Retrieval.MaxChunkChars)
	assert.Equal(t, 2020, cfg.Retrieval.YearMin)
	assert.Equal(t, 2025, cfg.Retrieval.YearMax)
	assert.Equal(t, []string{"GOOGL", "MSFT", "NVDA"}, cfg.Retrieval.Roster)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.SearchTimeout)
	assert.Equal(t, 60*time.Second, cfg.LLM.GenerateTimeout)
	assert.Equal(t, VectorBackendMemory, cfg.Vector.Backend)
	assert.Equal(t, 2000, cfg.Ingestion.MaxChunkSize)
}

func TestLoadFromRequiresBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir(), true)
	assert.Error(t, err)
}

func TestLoadFromMergesEnvFile(t *testing.T) {
	dir := t.TempDir()
	base := "retrieval:\n  top_k: 7\n  max_concurrency: ${FINRAG_TEST_CONC:3}\nvector:\n  backend: memory\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.staging.yaml"), []byte("retrieval:\n  top_k: 9\n"), 0o644))
	t.Setenv("APP_ENV", "staging")

	cfg, err := LoadFrom(dir, true)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.MaxConcurrency)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), false)
	require.NoError(t, err)

	bad := *cfg
	bad.Vector.Backend = "faiss"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Retrieval.YearMin = 2030
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Retrieval.TopK = 0
	assert.Error(t, bad.Validate())
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", c.DSN())
}
