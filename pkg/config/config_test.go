package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
database:
  host: observium.internal
  port: 3306
  user: observium_ro
  password: readonly
  name: observium
llm:
  provider: ollama
  url: http://llm.internal:11434
  model: qwen3:32b
ssh:
  jump_host: jump.internal
  user: diag
  key_file: /home/diag/.ssh/id_ed25519
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Session.MinCommands)
	assert.Equal(t, 50, cfg.Session.MaxIterations)
	assert.Equal(t, 3, cfg.Session.MaxAttempts)
	assert.Equal(t, 0.7, cfg.Session.SimilarityThreshold)
	assert.Equal(t, 3000, cfg.Session.OutputBudget)
	assert.Equal(t, 80, cfg.Session.AlertThreshold)
	assert.Equal(t, 90*time.Second, cfg.SSH.Timeout)
	assert.Equal(t, "cn", cfg.SSH.RelayCommand)
	assert.Equal(t, 5*time.Minute, cfg.LLM.Timeout)
	assert.Equal(t, "/var/log/diskdiag/audit.log", cfg.AuditFile)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
session:
  min_commands: 5
  max_iterations: 20
  alert_threshold: 90
audit_file: /tmp/audit.log
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Session.MinCommands)
	assert.Equal(t, 20, cfg.Session.MaxIterations)
	assert.Equal(t, 90, cfg.Session.AlertThreshold)
	assert.Equal(t, "/tmp/audit.log", cfg.AuditFile)
	// untouched fields still get defaults
	assert.Equal(t, 3, cfg.Session.MaxAttempts)
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  host: observium.internal
llm:
  provider: ollama
  url: http://llm.internal:11434
  model: qwen3:32b
ssh:
  jump_host: jump.internal
  user: diag
  key_file: /home/diag/.ssh/id_ed25519
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  host: observium.internal
  port: 3306
  user: observium_ro
  password: readonly
  name: observium
llm:
  provider: bedrock
  url: http://llm.internal:11434
  model: qwen3:32b
ssh:
  jump_host: jump.internal
  user: diag
  key_file: /home/diag/.ssh/id_ed25519
`))
	require.Error(t, err)
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("DISKDIAG_DB_PASSWORD", "s3cret-from-env")
	t.Setenv("DISKDIAG_LLM_API_KEY", "sk-env")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "s3cret-from-env", cfg.Database.Password)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestDSN(t *testing.T) {
	d := Database{Host: "db1", Port: 3306, User: "ro", Password: "pw", Name: "observium"}
	assert.Equal(t, "ro:pw@tcp(db1:3306)/observium?parseTime=true&timeout=10s", d.DSN())
}

func TestInsecureTLS(t *testing.T) {
	off := false
	on := true
	assert.False(t, LLM{}.InsecureTLS(), "verification on by default")
	assert.True(t, LLM{VerifyTLS: &off}.InsecureTLS())
	assert.False(t, LLM{VerifyTLS: &on}.InsecureTLS())
}
