// Package relayer abstracts submission of typed calls to the target
// chain. Relayer is a small capability interface (deposit, submit root,
// verify membership, swap, mint, burn); a real chain implementation and
// a test mock both satisfy it.
package relayer

import "github.com/zylith-labs/asp/model"

// Relayer submits proof-carrying calls to the chain coordinator/pool and
// waits for a terminal receipt before returning.
type Relayer interface {
	Deposit(commitmentHex string) (txHash string, err error)
	SubmitMerkleRoot(root string) (txHash string, err error)
	VerifyMembership(calldata []string) (txHash string, err error)
	ShieldedSwap(poolKey model.PoolKey, calldata []string, sqrtPriceLimitHex string) (txHash string, err error)
	ShieldedMint(poolKey model.PoolKey, calldata []string, liquidity string) (txHash string, err error)
	ShieldedBurn(poolKey model.PoolKey, calldata []string, liquidity string) (txHash string, err error)
}
