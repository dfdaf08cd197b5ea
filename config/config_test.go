package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: 9090
stripe:
  webhook_secret: whsec_test
  plans:
    - price_id: price_single
      plan: single
      credits: 1
    - price_id: price_monthly
      plan: recurring
      credits: 4
llm:
  api_key: sk-test
oss:
  visibility: public
profile:
  ready_timeout_ms: 1500
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", testYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "whsec_test", cfg.Stripe.WebhookSecret)
	require.Len(t, cfg.Stripe.Plans, 2)
	assert.Equal(t, "price_single", cfg.Stripe.Plans[0].PriceID)
	assert.Equal(t, 4, cfg.Stripe.Plans[1].Credits)
	assert.False(t, cfg.OSS.Private())
	assert.Equal(t, 1500*time.Millisecond, cfg.Profile.ReadyTimeout())
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", testYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.Profile.DefaultMeals)
	assert.Equal(t, "fulfillment_dead_letter", cfg.Queue.DeadLetterQueue)
	assert.Equal(t, int64(86400), cfg.OSS.SignedURLExpireSeconds)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout())
}

func TestLoad_PrefersLocalConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", testYAML)
	writeConfig(t, dir, "config.local.yaml", "server:\n  port: 7070\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", testYAML)
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_from_env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "whsec_from_env", cfg.Stripe.WebhookSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Stripe: StripeConfig{
				WebhookSecret: "whsec",
				Plans:         []PlanConfig{{PriceID: "price_1", Plan: "single", Credits: 1}},
			},
			LLM: LLMConfig{APIKey: "sk"},
			JWT: JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing webhook secret", func(t *testing.T) {
		cfg := valid()
		cfg.Stripe.WebhookSecret = ""
		assert.ErrorContains(t, cfg.Validate(), "webhook_secret")
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		cfg := valid()
		cfg.JWT.Secret = ""
		assert.ErrorContains(t, cfg.Validate(), "jwt.secret")
	})

	t.Run("short jwt secret", func(t *testing.T) {
		cfg := valid()
		cfg.JWT.Secret = "changeme"
		assert.ErrorContains(t, cfg.Validate(), "at least 32")
	})

	t.Run("empty plan table", func(t *testing.T) {
		cfg := valid()
		cfg.Stripe.Plans = nil
		assert.ErrorContains(t, cfg.Validate(), "plans")
	})

	t.Run("duplicate price id", func(t *testing.T) {
		cfg := valid()
		cfg.Stripe.Plans = append(cfg.Stripe.Plans, PlanConfig{PriceID: "price_1", Plan: "single"})
		assert.ErrorContains(t, cfg.Validate(), "duplicate")
	})

	t.Run("unknown plan type", func(t *testing.T) {
		cfg := valid()
		cfg.Stripe.Plans[0].Plan = "lifetime"
		assert.ErrorContains(t, cfg.Validate(), "unknown plan")
	})
}

func TestProfileConfig_PollIntervalDefault(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, ProfileConfig{}.PollInterval())
	assert.Equal(t, 10*time.Minute, ProfileConfig{}.ClaimStaleAfter())
}
