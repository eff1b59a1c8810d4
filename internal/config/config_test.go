package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and cwd at a fresh temp dir so no user config leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	oldCwd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
	require.NoError(t, os.Chdir(home))
	return home
}

func TestFindEnvLocal_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	childDir := filepath.Join(tmpDir, "child")
	require.NoError(t, os.Mkdir(childDir, 0755))
	envPath := filepath.Join(tmpDir, ".env.local")
	require.NoError(t, os.WriteFile(envPath, []byte("HMP_MODE=API_ONLY"), 0644))

	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	require.NoError(t, os.Chdir(childDir))

	result := findEnvLocal()
	require.NotEmpty(t, result)

	expectedResolved, _ := filepath.EvalSymlinks(envPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	assert.Equal(t, expectedResolved, resultResolved)
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local", "share", "hmp", "hmp.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(home, ".local", "share", "hmp", "local.db"), cfg.LocalPath)
	assert.Equal(t, 150*time.Millisecond, cfg.PushDebounce())
	assert.Equal(t, 50, cfg.MaxImportMB)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	home := isolate(t)

	yamlDir := filepath.Join(home, ".config", "hmp")
	require.NoError(t, os.MkdirAll(yamlDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(yamlDir, "config.yaml"), []byte(
		"api_base: http://from-yaml:3001\nmode: LOCAL_ONLY\npush_debounce_ms: 300\n"), 0644))

	t.Setenv("HMP_MODE", "API_ONLY")
	t.Setenv("HMP_CORS_ORIGIN", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-yaml:3001", cfg.APIBase)
	assert.Equal(t, "API_ONLY", cfg.Mode)
	assert.Equal(t, 300, cfg.PushDebounceMS)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoad_SecretFromFile(t *testing.T) {
	home := isolate(t)

	secretPath := filepath.Join(home, "secret")
	require.NoError(t, os.WriteFile(secretPath, []byte("s3cret\n"), 0600))
	t.Setenv("HMP_JWT_ACCESS_SECRET_FILE", secretPath)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTAccessSecret)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	isolate(t)

	t.Setenv("HMP_LOG_LEVEL", "loud")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("HMP_LOG_LEVEL", "debug")
	t.Setenv("HMP_PUSH_DEBOUNCE_MS", "soon")
	_, err = Load()
	require.Error(t, err)
}
