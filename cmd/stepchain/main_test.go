package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-stepchain/internal/sample"
	"github.com/askiada/go-stepchain/pkg/pipeline"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func TestGratuity(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "gratuity", "-p", "100", "-t", "0.1", "-g", "0.2")
	require.NoError(t, err)
	assert.Equal(t, "Price: $100.00 USD\n"+
		"Tax: $10.00 USD\n"+
		"Total: $110.00 USD\n"+
		"Gratuity: $22.00 USD\n"+
		"Total with Gratuity: $132.00 USD\n", stdout)
}

func TestGratuityConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stepchain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("currency: EUR\nsymbol: \"€\"\ntax: 0.2\ngratuity: 0.1\ntimeout: 5s\n"), 0o600))

	stdout, _, err := execute(t, "gratuity", "--config", path, "--price", "10", "--gratuity", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Tax: €2.00 EUR\n")
	assert.Contains(t, stdout, "Gratuity: €0.00 EUR\n")
}

func TestGratuityInvalidPrice(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "gratuity", "--price=-3")
	require.ErrorIs(t, err, sample.ErrInvalidPrice)
	assert.Equal(t, pipeline.KindCallback, pipeline.KindOf(err))
}

func TestGratuityDotAndReport(t *testing.T) {
	t.Parallel()

	dot := filepath.Join(t.TempDir(), "calc.gv")

	_, stderr, err := execute(t, "gratuity", "--price", "20", "--dot", dot, "--report")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Calculate Tax: avg")
	assert.Contains(t, stderr, "Calculate Gratuity: avg")

	content, err := os.ReadFile(dot)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"Calculate Tax" -> "Calculate Gratuity"`)
	assert.Contains(t, string(content), `"Calculate Gratuity" -> "end"`)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	dir := t.TempDir()

	partial := filepath.Join(dir, "partial.yaml")
	require.NoError(t, os.WriteFile(partial, []byte("timeout: 1m30s\n"), 0o600))
	cfg, err = loadConfig(partial)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, "USD", cfg.Currency)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("tax: [\n"), 0o600))
	_, err = loadConfig(broken)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"query":"go","results":[{"created_at":"today","from_user":"gopher","text":"hello"}]}`))
	}))
	t.Cleanup(srv.Close)

	stdout, _, err := execute(t, "fetch", srv.URL, "--timeout", "5s")
	require.NoError(t, err)

	var feed sample.Feed
	require.NoError(t, json.Unmarshal([]byte(stdout), &feed))
	assert.Equal(t, sample.Feed{
		Query:   "go",
		Results: []sample.Record{{Date: "today", User: "gopher", Content: "hello"}},
	}, feed)
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "fetch")
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	_, _, err = execute(t, "fetch", srv.URL)
	assert.ErrorIs(t, err, sample.ErrUnexpectedStatus)
}

func TestInitLogger(t *testing.T) {
	t.Parallel()

	for _, lvl := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		_, err := initLogger(lvl, "text", &bytes.Buffer{})
		assert.NoError(t, err, lvl)
	}

	_, err := initLogger("info", "JSON", &bytes.Buffer{})
	assert.NoError(t, err)

	_, err = initLogger("verbose", "text", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = initLogger("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
