// Package process implements the association set's five request
// pipelines: deposit, withdraw, swap, mint, burn. Each validates its
// input, computes commitments and nullifier hashes through the prover,
// drives the pool contract through the Relayer, and persists the result.
// Request/response field names match the pool's on-chain note layout so
// the HTTP layer can decode a body directly into these structs.
package process

import "github.com/zylith-labs/asp/model"

// DepositRequest is the body of POST /deposit.
type DepositRequest struct {
	Commitment string `json:"commitment"`
	// Label is an optional opaque client tag, never interpreted by the
	// ASP, echoed back on later GET /tree/path/{leaf_index} responses.
	Label string `json:"label,omitempty"`
}

// DepositResponse is the response to POST /deposit.
type DepositResponse struct {
	Status     string `json:"status"`
	LeafIndex  uint32 `json:"leaf_index"`
	TxHash     string `json:"tx_hash"`
	Root       string `json:"root"`
	RootTxHash string `json:"root_tx_hash"`
}

// WithdrawRequest is the body of POST /withdraw.
type WithdrawRequest struct {
	Secret     string `json:"secret"`
	Nullifier  string `json:"nullifier"`
	AmountLow  string `json:"amount_low"`
	AmountHigh string `json:"amount_high"`
	Token      string `json:"token"`
	LeafIndex  uint32 `json:"leaf_index"`
	Recipient  string `json:"recipient"`
}

// WithdrawResponse is the response to POST /withdraw.
type WithdrawResponse struct {
	Status        string `json:"status"`
	TxHash        string `json:"tx_hash"`
	NullifierHash string `json:"nullifier_hash"`
}

// NoteInput is a balance note plus the leaf index it is claimed to occupy.
type NoteInput struct {
	Secret      string `json:"secret"`
	Nullifier   string `json:"nullifier"`
	BalanceLow  string `json:"balance_low"`
	BalanceHigh string `json:"balance_high"`
	Token       string `json:"token"`
	LeafIndex   uint32 `json:"leaf_index"`
}

// NoteSecrets is the private half of a note the circuit will mint: a
// secret/nullifier pair with no balance attached (the balance is a
// circuit-derived public signal).
type NoteSecrets struct {
	Secret    string `json:"secret"`
	Nullifier string `json:"nullifier"`
}

// SwapParams carries the swap's public token/amount parameters.
type SwapParams struct {
	TokenIn       string `json:"token_in"`
	TokenOut      string `json:"token_out"`
	AmountIn      string `json:"amount_in"`
	AmountOutMin  string `json:"amount_out_min"`
	AmountOutLow  string `json:"amount_out_low"`
	AmountOutHigh string `json:"amount_out_high"`
}

// SwapRequest is the body of POST /swap.
type SwapRequest struct {
	PoolKey        model.PoolKey `json:"pool_key"`
	InputNote      NoteInput     `json:"input_note"`
	SwapParams     SwapParams    `json:"swap_params"`
	OutputNote     NoteSecrets   `json:"output_note"`
	ChangeNote     NoteSecrets   `json:"change_note"`
	SqrtPriceLimit string        `json:"sqrt_price_limit"`
}

// SwapResponse is the response to POST /swap.
type SwapResponse struct {
	Status           string `json:"status"`
	TxHash           string `json:"tx_hash"`
	NewCommitment    string `json:"new_commitment"`
	ChangeCommitment string `json:"change_commitment"`
}

// PositionInput is the position note a mint creates.
type PositionInput struct {
	Secret    string `json:"secret"`
	Nullifier string `json:"nullifier"`
	Liquidity string `json:"liquidity"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
}

// MintAmounts carries the two tokens' deposited amounts.
type MintAmounts struct {
	Amount0Low  string `json:"amount0_low"`
	Amount0High string `json:"amount0_high"`
	Amount1Low  string `json:"amount1_low"`
	Amount1High string `json:"amount1_high"`
}

// MintRequest is the body of POST /mint.
type MintRequest struct {
	PoolKey     model.PoolKey `json:"pool_key"`
	InputNote0  NoteInput     `json:"input_note_0"`
	InputNote1  NoteInput     `json:"input_note_1"`
	Position    PositionInput `json:"position"`
	Amounts     MintAmounts   `json:"amounts"`
	ChangeNote0 NoteSecrets   `json:"change_note_0"`
	ChangeNote1 NoteSecrets   `json:"change_note_1"`
	Liquidity   string        `json:"liquidity"`
}

// MintResponse is the response to POST /mint.
type MintResponse struct {
	Status             string `json:"status"`
	TxHash             string `json:"tx_hash"`
	PositionCommitment string `json:"position_commitment"`
	ChangeCommitment0  string `json:"change_commitment_0"`
	ChangeCommitment1  string `json:"change_commitment_1"`
}

// PositionNoteInput identifies the position a burn closes.
type PositionNoteInput struct {
	Secret    string `json:"secret"`
	Nullifier string `json:"nullifier"`
	Liquidity string `json:"liquidity"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	LeafIndex uint32 `json:"leaf_index"`
}

// OutputNoteInput is one of the two notes a burn produces.
type OutputNoteInput struct {
	Secret     string `json:"secret"`
	Nullifier  string `json:"nullifier"`
	AmountLow  string `json:"amount_low"`
	AmountHigh string `json:"amount_high"`
	Token      string `json:"token"`
}

// BurnRequest is the body of POST /burn.
type BurnRequest struct {
	PoolKey      model.PoolKey     `json:"pool_key"`
	PositionNote PositionNoteInput `json:"position_note"`
	OutputNote0  OutputNoteInput   `json:"output_note_0"`
	OutputNote1  OutputNoteInput   `json:"output_note_1"`
	Liquidity    string            `json:"liquidity"`
}

// BurnResponse is the response to POST /burn.
type BurnResponse struct {
	Status         string `json:"status"`
	TxHash         string `json:"tx_hash"`
	NewCommitment0 string `json:"new_commitment_0"`
	NewCommitment1 string `json:"new_commitment_1"`
}
