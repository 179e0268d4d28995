package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/miscutils"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		miscutils.EnvCodec, miscutils.EnvMaxDepth, miscutils.EnvLogLevel, miscutils.EnvLogFormat,
		miscutils.EnvCacheTTL, miscutils.EnvPasswordFile, miscutils.EnvSalt,
	} {
		t.Setenv(key, "")
	}
}

// run executes the root command with args and returns what it printed on
// stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeGraph(t *testing.T, path string, v any, opts ...miscutils.Option) {
	t.Helper()
	s, err := miscutils.NewSerializer(miscutils.NewFileStore(path), opts...)
	require.NoError(t, err)
	_, err = s.Serialize(context.Background(), v)
	require.NoError(t, err)
}

func TestInspect(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "state.pkl")
	writeGraph(t, path, map[string]any{
		"name":   "worker",
		"notify": func() {},
		"tags":   []any{"a", "b"},
	})

	out, err := run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"worker"`)
	assert.Contains(t, out, "Lost(")

	out, err = run(t, "inspect", "--placeholders", path)
	require.NoError(t, err)
	assert.Equal(t, "$[\"notify\"]\n", out)
}

func TestInspect_JSONCodec(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "state.json")
	writeGraph(t, path, map[string]any{"name": "worker"}, miscutils.WithCodecType(miscutils.CodecJSON))

	out, err := run(t, "inspect", "--codec", "json", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"worker"`)

	t.Setenv(miscutils.EnvCodec, "json")
	out, err = run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"worker"`)
}

func TestInspect_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := run(t, "inspect")
	assert.Error(t, err, "missing argument")

	garbage := filepath.Join(dir, "garbage.pkl")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pickle"), 0o600))
	_, err = run(t, "inspect", garbage)
	assert.ErrorIs(t, err, miscutils.ErrDecodeFailed)

	_, err = run(t, "inspect", "--codec", "gob", garbage)
	assert.True(t, miscutils.IsConfigurationError(err))

	_, err = run(t, "inspect", "--config", filepath.Join(dir, "missing.yaml"), garbage)
	assert.True(t, miscutils.IsConfigurationError(err))
}

func TestInspect_EmptyFile(t *testing.T) {
	clearEnv(t)
	out, err := run(t, "inspect", filepath.Join(t.TempDir(), "absent.pkl"))
	require.NoError(t, err)
	assert.Equal(t, "(interface {}) <nil>\n", out)
}

func TestCache(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "cache.pkl")

	out, err := run(t, "cache", "keys", "-f", file)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, "cache", "put", "-f", file, "host", "localhost")
	require.NoError(t, err)
	_, err = run(t, "cache", "put", "-f", file, "port", "8080")
	require.NoError(t, err)

	out, err = run(t, "cache", "keys", "-f", file)
	require.NoError(t, err)
	assert.Equal(t, "host\nport\n", out)

	out, err = run(t, "cache", "get", "-f", file, "host")
	require.NoError(t, err)
	assert.Equal(t, "localhost\n", out)

	out, err = run(t, "cache", "pop", "-f", file, "host")
	require.NoError(t, err)
	assert.Equal(t, "localhost\n", out)

	_, err = run(t, "cache", "get", "-f", file, "host")
	assert.ErrorIs(t, err, errKeyNotFound)
	_, err = run(t, "cache", "pop", "-f", file, "host")
	assert.ErrorIs(t, err, errKeyNotFound)

	out, err = run(t, "cache", "info", "-f", file)
	require.NoError(t, err)
	assert.Equal(t, "entries: 1\nexpiry: never\n", out)
}

func TestCache_ConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	config := filepath.Join(dir, "miscutils.yaml")
	require.NoError(t, os.WriteFile(config, []byte("codec: pickle\ncache_ttl: 1h\n"), 0o600))
	file := filepath.Join(dir, "cache.pkl")

	_, err := run(t, "--config", config, "cache", "put", "-f", file, "k", "v")
	require.NoError(t, err)

	out, err := run(t, "--config", config, "cache", "info", "-f", file)
	require.NoError(t, err)
	assert.Contains(t, out, "entries: 1\n")
	assert.NotContains(t, out, "never")

	out, err = run(t, "--config", config, "--log-level", "verbose", "cache", "keys", "-f", file)
	assert.True(t, miscutils.IsConfigurationError(err))
	assert.Empty(t, out)
}

func TestEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(miscutils.EnvCodec)
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(miscutils.EnvCodec+"=gob\n"), 0o600))

	_, err := run(t, "--env-file", envFile, "cache", "keys", "-f", filepath.Join(dir, "c.pkl"))
	assert.True(t, miscutils.IsConfigurationError(err))

	_, err = run(t, "--env-file", filepath.Join(dir, "missing.env"), "version")
	assert.NoError(t, err, "version does not load configuration")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, miscutils.VersionInfo()+"\n", out)

	out, err = run(t, "version", "--long")
	require.NoError(t, err)
	assert.Contains(t, out, "version: "+miscutils.Version)
}

func TestServeMux(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cache.pkl")
	handler, err := newServeMux([]string{file, dir}, prometheus.NewRegistry())
	require.NoError(t, err)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/health/check/cache.pkl")
	assert.Equal(t, http.StatusOK, rec.Code, "a missing file reads as empty")

	rec = get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "a directory cannot be read")
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)

	rec = get("/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "miscutils_health_checks 2")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
