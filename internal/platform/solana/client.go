package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

// confirmPollInterval is how often AwaitConfirmation re-queries signature
// status.
const confirmPollInterval = 2 * time.Second

// Client is a minimal Solana JSON-RPC client covering transaction submission
// and signature-status queries.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Solana RPC client.
func NewClient(rpcURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "solana_rpc")),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// signatureStatus mirrors one entry of the getSignatureStatuses result. Err
// is the on-chain transaction error, opaque to us beyond nil/non-nil.
type signatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// SubmitTransaction sends a base64-encoded serialized transaction and
// returns its signature. An error means no acceptance was observed. A
// transport failure after the request was delivered cannot rule out the
// transaction having landed anyway; callers accept that residual risk when
// they treat submission errors as retryable.
func (c *Client) SubmitTransaction(ctx context.Context, txBase64 string) (string, error) {
	params := []any{txBase64, map[string]any{
		"encoding":   "base64",
		"maxRetries": 3,
	}}

	var sig string
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", fmt.Errorf("solana: send transaction: %w", err)
	}

	return sig, nil
}

// TransactionStatus reports the chain-side view of a signature. A signature
// the cluster has no record of (dropped, or never landed) is TxUnknown.
func (c *Client) TransactionStatus(ctx context.Context, signature string) (domain.TxStatus, error) {
	params := []any{[]string{signature}, map[string]any{
		"searchTransactionHistory": true,
	}}

	var result struct {
		Value []*signatureStatus `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return domain.TxUnknown, fmt.Errorf("solana: signature status %s: %w", signature, err)
	}

	if len(result.Value) == 0 || result.Value[0] == nil {
		return domain.TxUnknown, nil
	}

	st := result.Value[0]
	if len(st.Err) > 0 && string(st.Err) != "null" {
		return domain.TxFailed, nil
	}

	switch st.ConfirmationStatus {
	case "confirmed", "finalized":
		return domain.TxConfirmed, nil
	default:
		// "processed" can still be dropped by the cluster.
		return domain.TxUnknown, nil
	}
}

// AwaitConfirmation polls the signature status until the transaction
// confirms or fails on chain. When the context ends first it returns
// TxUnknown with the context error; transient RPC failures are logged and
// retried until then.
func (c *Client) AwaitConfirmation(ctx context.Context, signature string) (domain.TxStatus, error) {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		status, err := c.TransactionStatus(ctx, signature)
		if err != nil {
			c.logger.Warn("signature status query failed",
				slog.String("signature", signature),
				slog.Any("error", err),
			)
		} else if status != domain.TxUnknown {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return domain.TxUnknown, ctx.Err()
		case <-ticker.C:
		}
	}
}

// call performs one JSON-RPC request and decodes its result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	return nil
}

// Compile-time interface check.
var _ domain.ChainClient = (*Client)(nil)
