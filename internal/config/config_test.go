package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Solana.WalletPubkey = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	return cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateRequiresWalletForExecution(t *testing.T) {
	for _, mode := range []string{"engine", "full"} {
		t.Run(mode, func(t *testing.T) {
			cfg := validConfig()
			cfg.Mode = mode
			cfg.Solana.WalletPubkey = ""
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "wallet_pubkey")
		})
	}

	// API mode never swaps, so no wallet is needed.
	cfg := validConfig()
	cfg.Mode = "api"
	cfg.Solana.WalletPubkey = ""
	require.NoError(t, cfg.Validate())
}

func TestValidateDevModeNeedsNoBackingServices(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "dev"
	cfg.Postgres = PostgresConfig{}
	cfg.Redis = RedisConfig{}
	cfg.Solana = SolanaConfig{}
	require.NoError(t, cfg.Validate())
}

func TestValidateStaleAfterGuard(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.StaleAfter = duration{30 * time.Second}
	cfg.Engine.SwapTimeout = duration{45 * time.Second}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale_after")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.WorkerCount = 0
	cfg.Engine.MaxSlippageBps = 20000
	cfg.Server.Port = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count")
	assert.Contains(t, err.Error(), "max_slippage_bps")
	assert.Contains(t, err.Error(), "invalid port")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "dev"
log_level = "debug"

[engine]
poll_interval = "10s"
max_retries = 3

[solana]
wallet_pubkey = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	// Untouched fields keep their defaults.
	assert.Equal(t, 4, cfg.Engine.WorkerCount)
	assert.Equal(t, "https://quote-api.jup.ag/v6", cfg.Jupiter.QuoteHost)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOLBOT_MODE", "engine")
	t.Setenv("SOLBOT_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("SOLBOT_ENGINE_POLL_INTERVAL", "5s")
	t.Setenv("SOLBOT_ENGINE_WORKER_COUNT", "8")
	t.Setenv("SOLBOT_SERVER_ENABLED", "false")
	t.Setenv("SOLBOT_NOTIFY_EVENTS", "order_filled, order_failed")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "engine", cfg.Mode)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 5*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, 8, cfg.Engine.WorkerCount)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, []string{"order_filled", "order_failed"}, cfg.Notify.Events)
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("SOLBOT_ENGINE_WORKER_COUNT", "lots")
	t.Setenv("SOLBOT_ENGINE_POLL_INTERVAL", "sometimes")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 4, cfg.Engine.WorkerCount)
	assert.Equal(t, 30*time.Second, cfg.Engine.PollInterval.Duration)
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))

	require.Error(t, d.UnmarshalText([]byte("ninety")))
}
