package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mvolkov/sol-limit-bot/internal/cache/redis"
	"github.com/mvolkov/sol-limit-bot/internal/config"
	"github.com/mvolkov/sol-limit-bot/internal/domain"
	"github.com/mvolkov/sol-limit-bot/internal/notify"
	"github.com/mvolkov/sol-limit-bot/internal/platform/jupiter"
	"github.com/mvolkov/sol-limit-bot/internal/platform/solana"
	"github.com/mvolkov/sol-limit-bot/internal/service"
	"github.com/mvolkov/sol-limit-bot/internal/store/memory"
	"github.com/mvolkov/sol-limit-bot/internal/store/postgres"
)

// displayPriceTTL bounds how long a cached display price survives without a
// refresh from the scheduler.
const displayPriceTTL = 5 * time.Minute

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	Orders domain.OrderStore
	Trades domain.TradeStore

	Prices  domain.PriceSource
	Swapper domain.SwapService
	Chain   domain.ChainClient

	PriceCache domain.PriceCache
	Locks      domain.LockManager
	Limiter    domain.RateLimiter

	Notifier *notify.Notifier
}

// needsPostgres reports whether the mode persists orders durably. Dev mode
// runs on the in-memory store instead.
func needsPostgres(mode string) bool {
	switch mode {
	case "engine", "api", "full":
		return true
	default:
		return false
	}
}

// needsChain reports whether the mode submits real transactions.
func needsChain(mode string) bool {
	switch mode {
	case "engine", "full":
		return true
	default:
		return false
	}
}

// Wire constructs the concrete dependency implementations for the configured
// mode and returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Order and trade stores ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Orders = postgres.NewOrderStore(pool)
		deps.Trades = postgres.NewTradeStore(pool)
	} else {
		mem := memory.New()
		deps.Orders = mem
		deps.Trades = mem.Trades()
	}

	// --- Redis (advisory: display cache, tick lock, rate limiting) ---
	if cfg.Redis.Addr != "" && cfg.Mode != "dev" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient, displayPriceTTL)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.Limiter = redis.NewRateLimiter(redisClient)
	}

	// --- Price source and swap execution ---
	jup := jupiter.NewClient(jupiter.Config{
		QuoteHost: cfg.Jupiter.QuoteHost,
		TokenHost: cfg.Jupiter.TokenHost,
		SolMint:   cfg.Jupiter.SolMint,
		USDCMint:  cfg.Jupiter.USDCMint,
		Timeout:   cfg.Jupiter.Timeout.Duration,
	})
	deps.Prices = jup

	if needsChain(cfg.Mode) {
		chain := solana.NewClient(cfg.Solana.RPCURL, cfg.Solana.Timeout.Duration, logger)
		deps.Chain = chain
		deps.Swapper = jupiter.NewSwapper(jup, chain, cfg.Solana.WalletPubkey, logger)
	} else if cfg.Mode == "dev" {
		deps.Swapper = service.NewPaperSwapper(jup, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
