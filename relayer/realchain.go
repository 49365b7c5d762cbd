// realchain.go implements Relayer against a Starknet-style JSON-RPC
// endpoint. It reuses github.com/ethereum/go-ethereum/rpc.Client, a
// chain-agnostic JSON-RPC 2.0 transport. Each value handed to a RealChain
// method goes into calldata as the single word it was given; RealChain does
// not split u256 values into low/high 128-bit halves (felt.U256ToFelts is
// not called here). Terminal receipt polling uses github.com/cenkalti/backoff/v4's
// constant-interval retry loop in place of a bespoke time.Sleep loop.
package relayer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/zylith-labs/asp/apperr"
	applog "github.com/zylith-labs/asp/log"
	"github.com/zylith-labs/asp/model"
)

// felt252Mask bounds a selector/felt to < 2^250, matching
// get_selector_from_name's truncation of the Keccak digest.
var felt252Mask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// selectorFromName mirrors Starknet's get_selector_from_name: the low 250
// bits of Keccak256(name), formatted as a 0x-prefixed hex felt.
func selectorFromName(name string) string {
	digest := gethcrypto.Keccak256([]byte(name))
	v := new(big.Int).SetBytes(digest)
	v.And(v, felt252Mask)
	return "0x" + v.Text(16)
}

// SelectorFromName exports selectorFromName for packages outside relayer
// that need to recognize an event's selector (e.g. eventsync matching
// CommitmentAdded/NullifierSpent against an emitted event's keys[0]).
func SelectorFromName(name string) string {
	return selectorFromName(name)
}

// call is one Starknet INVOKE entry: a contract call's (to, selector,
// calldata).
type call struct {
	To       string
	Selector string
	Calldata []string
}

// RealChain submits calls to a live Starknet-style RPC endpoint using the
// admin account's private key. Keystore decryption is out of scope: the
// private key is read directly from the ADMIN_PRIVATE_KEY environment
// variable rather than decrypted from a keystore file.
type RealChain struct {
	mu sync.Mutex

	client          *rpc.Client
	adminAddress    string
	adminPrivateKey string
	coordinatorAddr string
	poolAddr        string
	pollInterval    time.Duration
	pollMaxAttempts uint64
	log             *applog.Logger
}

// NewRealChain dials rpcURL and returns a RealChain relayer.
func NewRealChain(rpcURL, adminAddress, adminPrivateKey, coordinatorAddr, poolAddr string) (*RealChain, error) {
	client, err := rpc.Dial(rpcURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRPCError, err)
	}
	return &RealChain{
		client:          client,
		adminAddress:    adminAddress,
		adminPrivateKey: adminPrivateKey,
		coordinatorAddr: coordinatorAddr,
		poolAddr:        poolAddr,
		pollInterval:    2 * time.Second,
		pollMaxAttempts: 60,
		log:             applog.Module("relayer"),
	}, nil
}

func (r *RealChain) send(calls []call) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ctx = context.Background()
	var txHash string
	err := r.client.CallContext(ctx, &txHash, "starknet_addInvokeTransaction", map[string]any{
		"sender_address": r.adminAddress,
		"calls":          calls,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindRPCError, err)
	}
	return r.watchTx(ctx, txHash)
}

// watchTx polls for a terminal receipt status every pollInterval, up to
// pollMaxAttempts times (2s x 60 = 2 minutes).
func (r *RealChain) watchTx(ctx context.Context, txHash string) (string, error) {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(r.pollInterval), r.pollMaxAttempts)

	var status string
	operation := func() error {
		var receipt struct {
			FinalityStatus  string `json:"finality_status"`
			ExecutionStatus string `json:"execution_status"`
		}
		if err := r.client.CallContext(ctx, &receipt, "starknet_getTransactionReceipt", txHash); err != nil {
			// Non-existence while pending is transient; keep polling.
			return err
		}
		switch strings.ToUpper(receipt.ExecutionStatus) {
		case "SUCCEEDED":
			status = "succeeded"
			return nil
		case "REVERTED":
			status = "reverted"
			return nil
		default:
			return fmt.Errorf("transaction %s not yet final", txHash)
		}
	}

	if err := backoff.Retry(operation, b); err != nil {
		return "", apperr.Newf(apperr.KindTransactionFailed, "transaction %s did not finalize: %v", txHash, err)
	}
	if status == "reverted" {
		return "", apperr.Newf(apperr.KindTransactionReverted, "transaction %s reverted", txHash)
	}
	return txHash, nil
}

// BlockNumber returns the chain's current block height, satisfying
// EventSource for the EventSyncer.
func (r *RealChain) BlockNumber() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result uint64
	if err := r.client.CallContext(context.Background(), &result, "starknet_blockNumber"); err != nil {
		return 0, apperr.Wrap(apperr.KindRPCError, err)
	}
	return result, nil
}

// GetEvents pages through starknet_getEvents for the given contract
// address and block range, satisfying EventSource.
func (r *RealChain) GetEvents(address string, fromBlock, toBlock uint64, continuationToken string, pageSize int) ([]Event, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	filter := map[string]any{
		"from_block": map[string]any{"block_number": fromBlock},
		"to_block":   map[string]any{"block_number": toBlock},
		"address":    address,
		"chunk_size": pageSize,
	}
	if continuationToken != "" {
		filter["continuation_token"] = continuationToken
	}

	var result struct {
		Events []struct {
			Keys            []string `json:"keys"`
			Data            []string `json:"data"`
			TransactionHash string   `json:"transaction_hash"`
		} `json:"events"`
		ContinuationToken string `json:"continuation_token"`
	}
	err := r.client.CallContext(context.Background(), &result, "starknet_getEvents", map[string]any{"filter": filter})
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindRPCError, err)
	}

	events := make([]Event, len(result.Events))
	for i, e := range result.Events {
		events[i] = Event{Keys: e.Keys, Data: e.Data, TxHash: e.TransactionHash}
	}
	return events, result.ContinuationToken, nil
}

func (r *RealChain) Deposit(commitmentHex string) (string, error) {
	return r.send([]call{{
		To:       r.poolAddr,
		Selector: selectorFromName("deposit"),
		Calldata: []string{commitmentHex},
	}})
}

func (r *RealChain) SubmitMerkleRoot(root string) (string, error) {
	return r.send([]call{{
		To:       r.coordinatorAddr,
		Selector: selectorFromName("submit_merkle_root"),
		Calldata: []string{root},
	}})
}

func (r *RealChain) VerifyMembership(calldata []string) (string, error) {
	return r.send([]call{{
		To:       r.coordinatorAddr,
		Selector: selectorFromName("verify_membership"),
		Calldata: buildSpanCalldata(calldata),
	}})
}

func (r *RealChain) ShieldedSwap(poolKey model.PoolKey, calldata []string, sqrtPriceLimitHex string) (string, error) {
	args := append(poolKeyCalldata(poolKey), buildSpanCalldata(calldata)...)
	args = append(args, sqrtPriceLimitHex)
	return r.send([]call{{
		To:       r.poolAddr,
		Selector: selectorFromName("shielded_swap"),
		Calldata: args,
	}})
}

func (r *RealChain) ShieldedMint(poolKey model.PoolKey, calldata []string, liquidity string) (string, error) {
	args := append(poolKeyCalldata(poolKey), buildSpanCalldata(calldata)...)
	args = append(args, liquidity)
	return r.send([]call{{
		To:       r.poolAddr,
		Selector: selectorFromName("shielded_mint"),
		Calldata: args,
	}})
}

func (r *RealChain) ShieldedBurn(poolKey model.PoolKey, calldata []string, liquidity string) (string, error) {
	args := append(poolKeyCalldata(poolKey), buildSpanCalldata(calldata)...)
	args = append(args, liquidity)
	return r.send([]call{{
		To:       r.poolAddr,
		Selector: selectorFromName("shielded_burn"),
		Calldata: args,
	}})
}

func poolKeyCalldata(k model.PoolKey) []string {
	return []string{k.Token0, k.Token1, k.Fee, k.TickSpacing}
}

// buildSpanCalldata encodes a variable-length Span<felt252> as
// [len, elem_0, ...], prepending the element count as a felt.
func buildSpanCalldata(values []string) []string {
	out := make([]string, 0, len(values)+1)
	out = append(out, fmt.Sprintf("0x%x", len(values)))
	out = append(out, values...)
	return out
}
