package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzcare/crm/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CRM_POSTGRES_URL", "postgres://localhost/crm_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "INBOX", cfg.Mail.Mailbox)
	assert.Equal(t, 24*time.Hour, cfg.Bot.NotifyWindow)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Storage.CacheEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CRM_POSTGRES_URL", "postgres://db/crm")
	t.Setenv("CRM_PORT", "8888")
	t.Setenv("CRM_LOG_LEVEL", "debug")
	t.Setenv("CRM_POSTGRES_MAX_CONNS", "50")
	t.Setenv("CRM_S3_BUCKET", "crm-docs-staging")
	t.Setenv("CRM_CACHE_ENABLED", "false")
	t.Setenv("CRM_NOTIFY_WINDOW", "48h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 50, cfg.Storage.MaxConns)
	assert.Equal(t, "crm-docs-staging", cfg.Storage.S3Bucket)
	assert.False(t, cfg.Storage.CacheEnabled)
	assert.Equal(t, 48*time.Hour, cfg.Bot.NotifyWindow)
}

func TestValidateRejectsMissingDatabase(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: "8080", HealthPort: "9090"},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsPortClash(t *testing.T) {
	t.Setenv("CRM_POSTGRES_URL", "postgres://localhost/crm_test")
	t.Setenv("CRM_HEALTH_PORT", "8080")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "must be different")
}

func TestValidateMail(t *testing.T) {
	cfg := &Config{Mail: MailConfig{Server: "imap.example.com:993"}}
	assert.ErrorContains(t, cfg.ValidateMail(), "credentials")

	cfg.Mail.Username = "intake@example.com"
	cfg.Mail.Password = "secret"
	assert.NoError(t, cfg.ValidateMail())

	cfg.Mail.Server = ""
	assert.ErrorContains(t, cfg.ValidateMail(), "IMAP server")
}

func TestValidateBot(t *testing.T) {
	cfg := &Config{Bot: BotConfig{NotifyWindow: time.Hour}}
	assert.ErrorContains(t, cfg.ValidateBot(), "token")

	cfg.Bot.Token = "123:abc"
	assert.NoError(t, cfg.ValidateBot())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("WARNING"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("bogus"))
}
