package process_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/zylith-labs/asp/model"
	"github.com/zylith-labs/asp/process"
	"github.com/zylith-labs/asp/prover"
	"github.com/zylith-labs/asp/relayer"
	"github.com/zylith-labs/asp/store"
)

// fakeProver stands in for the prover subprocess: deterministic,
// in-process, no JSON framing involved.
type fakeProver struct{}

func (fakeProver) ComputeCommitment(secret, nullifier, amountLow, amountHigh, token string) (prover.CommitmentResult, error) {
	return prover.CommitmentResult{
		Commitment:    fmt.Sprintf("c:%s:%s:%s:%s:%s", secret, nullifier, amountLow, amountHigh, token),
		NullifierHash: "nh:" + nullifier,
	}, nil
}

func (fakeProver) ComputePositionCommitment(secret, nullifier string, tickLower, tickUpper uint32, liquidity string) (prover.CommitmentResult, error) {
	return prover.CommitmentResult{
		Commitment:    fmt.Sprintf("pc:%s:%d:%d:%s", secret, tickLower, tickUpper, liquidity),
		NullifierHash: "nh:" + nullifier,
	}, nil
}

func (fakeProver) GenerateProof(circuit string, inputs any) (prover.ProofResult, error) {
	return prover.ProofResult{
		Calldata: []string{"calldata:" + circuit},
		PublicSignals: []string{
			"change0", "change1", "root", "nh0", "nh1", "position", "tickLower", "tickUpper",
		},
	}, nil
}

// fakeTree stands in for the TreeEngine: an in-memory slice of leaves.
type fakeTree struct {
	mu     sync.Mutex
	leaves []string
}

func (t *fakeTree) Append(leaf string) (uint32, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := uint32(len(t.leaves))
	t.leaves = append(t.leaves, leaf)
	return idx, fmt.Sprintf("%d", len(t.leaves)), nil
}

func (t *fakeTree) Proof(leafIndex uint32) (prover.MerkleProof, error) {
	return prover.MerkleProof{Root: "root-x", PathElements: []string{"1", "2"}, PathIndices: []uint32{0, 1}}, nil
}

func (t *fakeTree) Root() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%d", len(t.leaves)), nil
}

func (t *fakeTree) LeafCount() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.leaves))
}

type ProcessorSuite struct {
	suite.Suite
	store *store.Store
	tree  *fakeTree
	proc  *process.Processor
}

func (s *ProcessorSuite) SetupTest() {
	dir := s.T().TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { st.Close() })

	s.store = st
	s.tree = &fakeTree{}
	var treeMu sync.Mutex
	s.proc = process.New(st, s.tree, fakeProver{}, relayer.NewMock(), &treeMu)
}

func (s *ProcessorSuite) TestDeposit() {
	resp, err := s.proc.Deposit(process.DepositRequest{
		Commitment: "0x1a2b3c",
		Label:      "my-note",
	})
	s.Require().NoError(err)
	s.Equal("confirmed", resp.Status)
	s.Equal(uint32(0), resp.LeafIndex)
	s.NotEmpty(resp.TxHash)
	s.NotEmpty(resp.RootTxHash)

	row, err := s.store.GetCommitment(0)
	s.Require().NoError(err)
	s.Require().NotNil(row)
	s.Equal("my-note", row.Label)
}

func (s *ProcessorSuite) TestDepositRejectsNonHex() {
	_, err := s.proc.Deposit(process.DepositRequest{Commitment: "not-hex"})
	s.Error(err)
}

func (s *ProcessorSuite) TestWithdrawHappyPath() {
	commitment, err := fakeProver{}.ComputeCommitment("secret1", "nullifier1", "100", "0", "0xaaaa")
	s.Require().NoError(err)
	s.Require().NoError(s.store.InsertCommitment(0, commitment.Commitment, "0xdeadbeef", ""))

	resp, err := s.proc.Withdraw(process.WithdrawRequest{
		Secret:     "secret1",
		Nullifier:  "nullifier1",
		AmountLow:  "100",
		AmountHigh: "0",
		Token:      "0xaaaa",
		LeafIndex:  0,
		Recipient:  "0xbbbb",
	})
	s.Require().NoError(err)
	s.Equal("confirmed", resp.Status)
	s.Equal(commitment.NullifierHash, resp.NullifierHash)

	spent, err := s.store.IsNullifierSpent(commitment.NullifierHash)
	s.Require().NoError(err)
	s.True(spent)
}

func (s *ProcessorSuite) TestWithdrawRejectsDoubleSpend() {
	commitment, err := fakeProver{}.ComputeCommitment("secret1", "nullifier1", "100", "0", "0xaaaa")
	s.Require().NoError(err)
	s.Require().NoError(s.store.InsertCommitment(0, commitment.Commitment, "0xdeadbeef", ""))
	s.Require().NoError(s.store.InsertNullifier(commitment.NullifierHash, model.CircuitMembership, "0xcafebabe"))

	_, err = s.proc.Withdraw(process.WithdrawRequest{
		Secret:     "secret1",
		Nullifier:  "nullifier1",
		AmountLow:  "100",
		AmountHigh: "0",
		Token:      "0xaaaa",
		LeafIndex:  0,
		Recipient:  "0xbbbb",
	})
	s.Error(err)
}

func (s *ProcessorSuite) TestWithdrawRejectsCommitmentMismatch() {
	s.Require().NoError(s.store.InsertCommitment(0, "some-other-commitment", "0xdeadbeef", ""))

	_, err := s.proc.Withdraw(process.WithdrawRequest{
		Secret:     "secret1",
		Nullifier:  "nullifier1",
		AmountLow:  "100",
		AmountHigh: "0",
		Token:      "0xaaaa",
		LeafIndex:  0,
		Recipient:  "0xbbbb",
	})
	s.Error(err)
}

func (s *ProcessorSuite) TestSwapAppendsOutputAndChangeLeaves() {
	input, err := fakeProver{}.ComputeCommitment("in-secret", "in-nullifier", "50", "0", "0xaaaa")
	s.Require().NoError(err)
	s.Require().NoError(s.store.InsertCommitment(0, input.Commitment, "0xdeadbeef", ""))

	resp, err := s.proc.Swap(process.SwapRequest{
		PoolKey: model.PoolKey{Token0: "0xaaaa", Token1: "0xbbbb", Fee: "3000", TickSpacing: "60"},
		InputNote: process.NoteInput{
			Secret: "in-secret", Nullifier: "in-nullifier",
			BalanceLow: "50", BalanceHigh: "0", Token: "0xaaaa", LeafIndex: 0,
		},
		SwapParams: process.SwapParams{
			TokenIn: "0xaaaa", TokenOut: "0xbbbb",
			AmountIn: "50", AmountOutMin: "1", AmountOutLow: "10", AmountOutHigh: "0",
		},
		OutputNote:     process.NoteSecrets{Secret: "out-secret", Nullifier: "out-nullifier"},
		ChangeNote:     process.NoteSecrets{Secret: "change-secret", Nullifier: "change-nullifier"},
		SqrtPriceLimit: "0x1",
	})
	s.Require().NoError(err)
	s.Equal("confirmed", resp.Status)
	s.Equal("change0", resp.ChangeCommitment) // publicSignals[0] from fakeProver
	s.NotEmpty(resp.NewCommitment)

	count, err := s.store.GetLeafCount()
	s.Require().NoError(err)
	s.Equal(uint32(3), count) // input + output + change
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}
