package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

const (
	lamportsPerSOL = 1_000_000_000.0
	usdcPerUnit    = 1_000_000.0

	// Slippage used for price-discovery quotes only. Execution quotes use
	// the caller-supplied tolerance.
	quoteSlippageBps = 50
)

// Config holds the Jupiter API endpoints and well-known mints.
type Config struct {
	QuoteHost string // e.g. "https://quote-api.jup.ag/v6"
	TokenHost string // e.g. "https://tokens.jup.ag"
	SolMint   string
	USDCMint  string
	Timeout   time.Duration
}

// Client is the REST client for the Jupiter v6 aggregator. It serves two
// roles: a price source (quoting one token unit into SOL, with a SOL/USDC
// leg for the USD price) and a swap-transaction builder for the executor.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu     sync.Mutex
	tokens map[string]tokenInfo // mint -> metadata, filled lazily
}

// NewClient creates a new Jupiter API client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     make(map[string]tokenInfo),
	}
}

// Quote returns the current market price of one token unit, in SOL and USD.
func (c *Client) Quote(ctx context.Context, mint string) (domain.TokenPrice, error) {
	solUSD, err := c.solPriceUSD(ctx)
	if err != nil {
		return domain.TokenPrice{}, fmt.Errorf("jupiter: quote sol/usdc: %w", err)
	}

	if mint == c.cfg.SolMint {
		return domain.TokenPrice{
			Mint:     mint,
			Symbol:   "SOL",
			PriceSOL: 1,
			PriceUSD: solUSD,
			AsOf:     time.Now(),
		}, nil
	}

	info, err := c.tokenMeta(ctx, mint)
	if err != nil {
		return domain.TokenPrice{}, fmt.Errorf("jupiter: quote %s: %w", mint, err)
	}

	oneUnit := rawAmount(1, info.Decimals)
	q, err := c.rawQuote(ctx, mint, c.cfg.SolMint, oneUnit, quoteSlippageBps, false)
	if err != nil {
		return domain.TokenPrice{}, fmt.Errorf("jupiter: quote %s: %w", mint, err)
	}

	outLamports, err := strconv.ParseFloat(q.OutAmount, 64)
	if err != nil {
		return domain.TokenPrice{}, fmt.Errorf("jupiter: quote %s: parse outAmount %q: %w", mint, q.OutAmount, err)
	}

	priceSOL := outLamports / lamportsPerSOL

	return domain.TokenPrice{
		Mint:     mint,
		Symbol:   info.Symbol,
		PriceSOL: priceSOL,
		PriceUSD: priceSOL * solUSD,
		AsOf:     time.Now(),
	}, nil
}

// solPriceUSD quotes 1 SOL into USDC.
func (c *Client) solPriceUSD(ctx context.Context) (float64, error) {
	q, err := c.rawQuote(ctx, c.cfg.SolMint, c.cfg.USDCMint, uint64(lamportsPerSOL), quoteSlippageBps, false)
	if err != nil {
		return 0, err
	}
	out, err := strconv.ParseFloat(q.OutAmount, 64)
	if err != nil {
		return 0, fmt.Errorf("parse outAmount %q: %w", q.OutAmount, err)
	}
	return out / usdcPerUnit, nil
}

// rawQuote calls GET /quote. amount is in the exact side's smallest units:
// the input token's for ExactIn, the output token's for ExactOut.
func (c *Client) rawQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int, exactOut bool) (quoteResponse, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))
	if exactOut {
		params.Set("swapMode", "ExactOut")
	}

	body, err := c.doGet(ctx, c.cfg.QuoteHost+"/quote?"+params.Encode())
	if err != nil {
		return quoteResponse{}, err
	}

	var q quoteResponse
	if err := json.Unmarshal(body, &q); err != nil {
		return quoteResponse{}, fmt.Errorf("decode quote: %w", err)
	}
	q.raw = body

	return q, nil
}

// swapTransaction calls POST /swap with the raw quote, returning a
// base64-encoded transaction for the given wallet.
func (c *Client) swapTransaction(ctx context.Context, quote quoteResponse, walletPubkey string) (swapResponse, error) {
	req := swapRequest{
		UserPublicKey:             walletPubkey,
		WrapAndUnwrapSol:          true,
		UseSharedAccounts:         true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: prioritizationFee{Auto: true},
		QuoteResponse:             quote.raw,
	}

	body, err := c.doPost(ctx, c.cfg.QuoteHost+"/swap", req)
	if err != nil {
		return swapResponse{}, err
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return swapResponse{}, fmt.Errorf("decode swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return swapResponse{}, fmt.Errorf("swap response missing transaction")
	}

	return resp, nil
}

// tokenMeta returns symbol and decimals for a mint, cached after first use.
// Metadata is immutable on chain so the cache never expires.
func (c *Client) tokenMeta(ctx context.Context, mint string) (tokenInfo, error) {
	c.mu.Lock()
	info, ok := c.tokens[mint]
	c.mu.Unlock()
	if ok {
		return info, nil
	}

	body, err := c.doGet(ctx, c.cfg.TokenHost+"/token/"+url.PathEscape(mint))
	if err != nil {
		return tokenInfo{}, fmt.Errorf("token metadata %s: %w", mint, err)
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return tokenInfo{}, fmt.Errorf("decode token metadata: %w", err)
	}
	if info.Decimals < 0 || info.Decimals > 18 {
		return tokenInfo{}, fmt.Errorf("token metadata %s: implausible decimals %d", mint, info.Decimals)
	}

	c.mu.Lock()
	c.tokens[mint] = info
	c.mu.Unlock()

	return info, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, rawURL string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, body)
	}

	return body, nil
}

// rawAmount converts a whole-unit amount to the token's smallest units.
func rawAmount(amount float64, decimals int) uint64 {
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return uint64(amount * scale)
}

// Compile-time interface check.
var _ domain.PriceSource = (*Client)(nil)
