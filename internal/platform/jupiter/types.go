package jupiter

import "encoding/json"

// quoteResponse is the subset of the Jupiter v6 /quote response the engine
// needs. Raw amounts are integer strings in the source/target tokens'
// smallest units. The full raw body is kept so it can be forwarded verbatim
// to /swap.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`

	raw json.RawMessage
}

// prioritizationFee asks the aggregator to pick a priority fee itself.
type prioritizationFee struct {
	Auto bool `json:"auto"`
}

// swapRequest is the Jupiter v6 /swap request body. QuoteResponse carries the
// unaltered /quote payload, as the API requires.
type swapRequest struct {
	UserPublicKey             string            `json:"userPublicKey"`
	WrapAndUnwrapSol          bool              `json:"wrapAndUnwrapSol"`
	UseSharedAccounts         bool              `json:"useSharedAccounts"`
	AsLegacyTransaction       bool              `json:"asLegacyTransaction"`
	DynamicComputeUnitLimit   bool              `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports prioritizationFee `json:"prioritizationFeeLamports"`
	QuoteResponse             json.RawMessage   `json:"quoteResponse"`
}

// swapResponse is the Jupiter v6 /swap response: a base64-encoded serialized
// transaction ready for submission.
type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// apiError is the error envelope Jupiter returns alongside non-2xx statuses.
type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// tokenInfo is the token metadata record from the Jupiter token API.
type tokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}
