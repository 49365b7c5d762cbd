// Package model defines the ASP's persistent record shapes: the
// commitment/root/nullifier rows Store owns and the PoolKey the Relayer
// and RequestProcessor share.
package model

// CircuitType names which pipeline produced a spent nullifier.
type CircuitType string

const (
	CircuitMembership CircuitType = "membership"
	CircuitSwap       CircuitType = "swap"
	CircuitMint       CircuitType = "mint"
	CircuitBurn       CircuitType = "burn"
	CircuitSynced     CircuitType = "synced"
)

// Commitment is a row in the commitments table: a leaf of the global
// append-only Merkle tree.
type Commitment struct {
	LeafIndex uint32
	Value     string // decimal field-element string
	DepositTx string // empty if none
	// Label is an optional opaque client tag echoed back on path queries.
	// It is never interpreted by the ASP and never reaches the prover or
	// chain.
	Label string
}

// MerkleRoot is a row in the append-only merkle_roots log.
type MerkleRoot struct {
	ID        int64
	Root      string
	LeafCount uint32
	SubmitTx  string
}

// Nullifier is a row in the nullifiers table. Presence means spent.
type Nullifier struct {
	Hash        string
	CircuitType CircuitType
	TxHash      string
}

// PoolKey identifies an AMM pool: (token_0, token_1, fee, tick_spacing).
type PoolKey struct {
	Token0      string `json:"token_0"`
	Token1      string `json:"token_1"`
	Fee         string `json:"fee"`
	TickSpacing string `json:"tick_spacing"`
}
