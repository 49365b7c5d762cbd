package relayer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/zylith-labs/asp/model"
)

// Mock is a test/local-run Relayer that always succeeds: deterministic
// output derived from the input, never touching the network.
type Mock struct {
	mu    sync.Mutex
	calls int
}

// NewMock creates a Mock relayer.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) nextTxHash(label string) string {
	m.mu.Lock()
	m.calls++
	seq := m.calls
	m.mu.Unlock()

	h := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", label, seq)))
	return "0x" + hex.EncodeToString(h[:])
}

func (m *Mock) Deposit(commitmentHex string) (string, error) {
	return m.nextTxHash("deposit:" + commitmentHex), nil
}

func (m *Mock) SubmitMerkleRoot(root string) (string, error) {
	return m.nextTxHash("submit_root:" + root), nil
}

func (m *Mock) VerifyMembership(calldata []string) (string, error) {
	return m.nextTxHash("verify_membership"), nil
}

func (m *Mock) ShieldedSwap(_ model.PoolKey, _ []string, _ string) (string, error) {
	return m.nextTxHash("swap"), nil
}

func (m *Mock) ShieldedMint(_ model.PoolKey, _ []string, _ string) (string, error) {
	return m.nextTxHash("mint"), nil
}

func (m *Mock) ShieldedBurn(_ model.PoolKey, _ []string, _ string) (string, error) {
	return m.nextTxHash("burn"), nil
}

// MockEventSource is a no-op EventSource for tests and local runs without a
// live chain: it reports a fixed block height and never produces events.
type MockEventSource struct {
	mu    sync.Mutex
	block uint64
}

// NewMockEventSource creates a MockEventSource starting at the given block.
func NewMockEventSource(block uint64) *MockEventSource {
	return &MockEventSource{block: block}
}

// SetBlockNumber advances the mock's reported chain height; tests use this
// to simulate new blocks arriving between sync cycles.
func (m *MockEventSource) SetBlockNumber(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = block
}

func (m *MockEventSource) BlockNumber() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.block, nil
}

func (m *MockEventSource) GetEvents(_ string, _, _ uint64, _ string, _ int) ([]Event, string, error) {
	return nil, "", nil
}
