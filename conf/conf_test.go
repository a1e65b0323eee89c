package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stratagem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("STRATAGEM_CONFIG", path)
}

func TestLoadFromFile(t *testing.T) {
	writeConfig(t, `
name: campaign-hq
bot:
  token: "12345:secret-token-value"
  generation_timeout: 5m
  admin_ids: [1001, 1002]
llm:
  catalog:
    model: claude-3-haiku
    providers: [blackbox, ddg]
store:
  dialect: sqlite
  dsn: "file:conf?mode=memory"
server:
  enabled: true
  port: 9100
workers:
  rescan:
    enabled: true
    cron: "*/15 * * * *"
    days: 3
`)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "campaign-hq", cfg.Name)
	require.Equal(t, "12345:secret-token-value", cfg.Bot.Token)
	require.Equal(t, 5*time.Minute, cfg.Bot.GenerationTimeout)
	require.Equal(t, []int64{1001, 1002}, cfg.Bot.AdminIDs)
	require.Equal(t, "claude-3-haiku", cfg.LLM.Catalog.Model)
	require.Equal(t, []string{"blackbox", "ddg"}, cfg.LLM.Catalog.Providers)
	require.Equal(t, "sqlite", cfg.Store.Dialect)
	require.True(t, cfg.Server.Enabled)
	require.Equal(t, 9100, cfg.Server.Port)
	require.True(t, cfg.Workers.Rescan.Enabled)
	require.Equal(t, "*/15 * * * *", cfg.Workers.Rescan.CRON)
	require.Equal(t, 3, cfg.Workers.Rescan.Days)
}

func TestLoadFillsDefaults(t *testing.T) {
	writeConfig(t, "{}\n")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "stratagem", cfg.Name)
	require.Equal(t, "stratagem", cfg.Server.Name)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8090, cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.False(t, cfg.Server.Enabled)
	require.False(t, cfg.Workers.Rescan.Enabled)
	require.Empty(t, cfg.Bot.Token)
}

func TestEnvironmentOverrides(t *testing.T) {
	writeConfig(t, "server:\n  port: 9100\n")

	t.Setenv("STRATAGEM_BOT_TOKEN", "999:env-token")
	t.Setenv("STRATAGEM_SERVER_PORT", "9200")
	t.Setenv("STRATAGEM_BOT_POLL_TIMEOUT", "45s")
	t.Setenv("STRATAGEM_LLM_CATALOG_PROVIDERS", "pollinations,liaobots")
	t.Setenv("STRATAGEM_PROXY_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "999:env-token", cfg.Bot.Token)
	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, 45*time.Second, cfg.Bot.PollTimeout)
	require.Equal(t, []string{"pollinations", "liaobots"}, cfg.LLM.Catalog.Providers)
	require.True(t, cfg.Proxy.Enabled)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("STRATAGEM_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	writeConfig(t, "bot: [not a mapping\n")

	_, err := Load()
	require.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.Bot.Token = "123456789:AAAAABBBBBCCCCC"
	cfg.Cache.Redis.Password = "hunter2"

	redacted := cfg.Redacted()

	require.Equal(t, "1234****CCCC", redacted.Bot.Token)
	require.Equal(t, "****", redacted.Cache.Redis.Password)
	require.Equal(t, "123456789:AAAAABBBBBCCCCC", cfg.Bot.Token)

	require.Empty(t, Config{}.Redacted().Bot.Token)
}
