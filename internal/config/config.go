// Package config defines the top-level configuration for the limit-order bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SOLBOT_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Jupiter  JupiterConfig  `toml:"jupiter"`
	Solana   SolanaConfig   `toml:"solana"`
	Engine   EngineConfig   `toml:"engine"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds connection parameters for the order store.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"sslmode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds connection parameters for the cache layer.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// JupiterConfig holds the DEX aggregator endpoints and well-known mints.
type JupiterConfig struct {
	QuoteHost string   `toml:"quote_host"`
	TokenHost string   `toml:"token_host"`
	SolMint   string   `toml:"sol_mint"`
	USDCMint  string   `toml:"usdc_mint"`
	Timeout   duration `toml:"timeout"`
}

// SolanaConfig holds the RPC endpoint used for transaction submission and
// status queries.
type SolanaConfig struct {
	RPCURL       string   `toml:"rpc_url"`
	WalletPubkey string   `toml:"wallet_pubkey"`
	Timeout      duration `toml:"timeout"`
}

// EngineConfig holds the execution engine tuning knobs.
type EngineConfig struct {
	PollInterval      duration `toml:"poll_interval"`
	WorkerCount       int      `toml:"worker_count"`
	MaxRetries        int      `toml:"max_retries"`
	RetryBackoff      duration `toml:"retry_backoff"`
	MaxSlippageBps    int      `toml:"max_slippage_bps"`
	SwapTimeout       duration `toml:"swap_timeout"`
	ConfirmTimeout    duration `toml:"confirm_timeout"`
	StaleAfter        duration `toml:"stale_after"`
	ReconcileInterval duration `toml:"reconcile_interval"`
	ReconcileGrace    duration `toml:"reconcile_grace"`
	TickLockTTL       duration `toml:"tick_lock_ttl"`
	// SwapsPerOwner bounds swap submissions per owner within SwapsWindow.
	SwapsPerOwner int      `toml:"swaps_per_owner"`
	SwapsWindow   duration `toml:"swaps_window"`
}

// ServerConfig holds the HTTP intake server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "30s" or "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults. Load merges the
// TOML file on top of these.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "solbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Jupiter: JupiterConfig{
			QuoteHost: "https://quote-api.jup.ag/v6",
			TokenHost: "https://tokens.jup.ag",
			SolMint:   "So11111111111111111111111111111111111111112",
			USDCMint:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Timeout:   duration{15 * time.Second},
		},
		Solana: SolanaConfig{
			RPCURL:  "https://api.mainnet-beta.solana.com",
			Timeout: duration{20 * time.Second},
		},
		Engine: EngineConfig{
			PollInterval:      duration{30 * time.Second},
			WorkerCount:       4,
			MaxRetries:        5,
			RetryBackoff:      duration{time.Minute},
			MaxSlippageBps:    50,
			SwapTimeout:       duration{45 * time.Second},
			ConfirmTimeout:    duration{90 * time.Second},
			StaleAfter:        duration{5 * time.Minute},
			ReconcileInterval: duration{2 * time.Minute},
			ReconcileGrace:    duration{10 * time.Minute},
			TickLockTTL:       duration{25 * time.Second},
			SwapsPerOwner:     5,
			SwapsWindow:       duration{time.Minute},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"engine": true,
	"api":    true,
	"full":   true,
	"dev":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for internal consistency and returns an
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine, api, full, dev)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsStores := c.Mode != "dev"
	if needsStores {
		if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
			errs = append(errs, "postgres: either dsn or host/database/user must be set for mode "+c.Mode)
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must be set for mode "+c.Mode)
		}
	}

	if c.Jupiter.QuoteHost == "" {
		errs = append(errs, "jupiter: quote_host must be set")
	}
	if c.Solana.RPCURL == "" && c.Mode != "dev" && c.Mode != "api" {
		errs = append(errs, "solana: rpc_url must be set for mode "+c.Mode)
	}
	if c.Solana.WalletPubkey == "" && (c.Mode == "engine" || c.Mode == "full") {
		errs = append(errs, "solana: wallet_pubkey must be set for mode "+c.Mode)
	}

	if c.Engine.PollInterval.Duration <= 0 {
		errs = append(errs, "engine: poll_interval must be positive")
	}
	if c.Engine.WorkerCount <= 0 {
		errs = append(errs, "engine: worker_count must be positive")
	}
	if c.Engine.MaxRetries < 0 {
		errs = append(errs, "engine: max_retries must not be negative")
	}
	if c.Engine.MaxSlippageBps <= 0 || c.Engine.MaxSlippageBps > 10000 {
		errs = append(errs, "engine: max_slippage_bps must be in (0, 10000]")
	}
	if c.Engine.StaleAfter.Duration <= c.Engine.SwapTimeout.Duration {
		errs = append(errs, "engine: stale_after must exceed swap_timeout, otherwise the reconciler races live executions")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
