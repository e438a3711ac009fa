package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SOLBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SOLBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SOLBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SOLBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SOLBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SOLBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SOLBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SOLBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SOLBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SOLBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SOLBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SOLBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SOLBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOLBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SOLBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SOLBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SOLBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SOLBOT_REDIS_TLS_ENABLED")

	// ── Jupiter ──
	setStr(&cfg.Jupiter.QuoteHost, "SOLBOT_JUPITER_QUOTE_HOST")
	setStr(&cfg.Jupiter.TokenHost, "SOLBOT_JUPITER_TOKEN_HOST")
	setStr(&cfg.Jupiter.SolMint, "SOLBOT_JUPITER_SOL_MINT")
	setStr(&cfg.Jupiter.USDCMint, "SOLBOT_JUPITER_USDC_MINT")
	setDuration(&cfg.Jupiter.Timeout, "SOLBOT_JUPITER_TIMEOUT")

	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "SOLBOT_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WalletPubkey, "SOLBOT_SOLANA_WALLET_PUBKEY")
	setDuration(&cfg.Solana.Timeout, "SOLBOT_SOLANA_TIMEOUT")

	// ── Engine ──
	setDuration(&cfg.Engine.PollInterval, "SOLBOT_ENGINE_POLL_INTERVAL")
	setInt(&cfg.Engine.WorkerCount, "SOLBOT_ENGINE_WORKER_COUNT")
	setInt(&cfg.Engine.MaxRetries, "SOLBOT_ENGINE_MAX_RETRIES")
	setDuration(&cfg.Engine.RetryBackoff, "SOLBOT_ENGINE_RETRY_BACKOFF")
	setInt(&cfg.Engine.MaxSlippageBps, "SOLBOT_ENGINE_MAX_SLIPPAGE_BPS")
	setDuration(&cfg.Engine.SwapTimeout, "SOLBOT_ENGINE_SWAP_TIMEOUT")
	setDuration(&cfg.Engine.ConfirmTimeout, "SOLBOT_ENGINE_CONFIRM_TIMEOUT")
	setDuration(&cfg.Engine.StaleAfter, "SOLBOT_ENGINE_STALE_AFTER")
	setDuration(&cfg.Engine.ReconcileInterval, "SOLBOT_ENGINE_RECONCILE_INTERVAL")
	setDuration(&cfg.Engine.ReconcileGrace, "SOLBOT_ENGINE_RECONCILE_GRACE")
	setDuration(&cfg.Engine.TickLockTTL, "SOLBOT_ENGINE_TICK_LOCK_TTL")
	setInt(&cfg.Engine.SwapsPerOwner, "SOLBOT_ENGINE_SWAPS_PER_OWNER")
	setDuration(&cfg.Engine.SwapsWindow, "SOLBOT_ENGINE_SWAPS_WINDOW")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SOLBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SOLBOT_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SOLBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SOLBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SOLBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SOLBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SOLBOT_MODE")
	setStr(&cfg.LogLevel, "SOLBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
