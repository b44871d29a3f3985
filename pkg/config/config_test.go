package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/config"
)

func TestDefaultIsValid(t *testing.T) {
	gt.NoError(t, config.Default().Validate()).Required()
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("PULSEBOT_TEST_API_KEY", "secret-value")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`
agent:
  name: test-bot
  provider: anthropic
providers:
  anthropic:
    api_key: ${PULSEBOT_TEST_API_KEY}
    enabled: true
logging:
  format: ${LOG_FORMAT:-json}
`), 0o600)).Required()

	cfg, err := config.Load(path)
	gt.NoError(t, err).Required()
	gt.Value(t, cfg.Agent.Name).Equal("test-bot")
	gt.Value(t, cfg.Providers["anthropic"].APIKey).Equal("secret-value")
	gt.Value(t, cfg.Logging.Format).Equal("json")
}

func TestValidateRejectsBothIntervalAndCron(t *testing.T) {
	cfg := config.Default()
	cfg.ScheduledTasks["bad"] = config.ScheduledTaskConfig{Enabled: true, Interval: "5m", Cron: "0 * * * *"}
	gt.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownLoggingFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	gt.Error(t, cfg.Validate())
}

func TestRequireProviderUnknown(t *testing.T) {
	cfg := config.Default()
	_, err := cfg.RequireProvider("does-not-exist")
	gt.Error(t, err)
}
