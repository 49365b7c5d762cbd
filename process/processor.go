package process

import (
	"sync"

	"github.com/zylith-labs/asp/apperr"
	"github.com/zylith-labs/asp/felt"
	applog "github.com/zylith-labs/asp/log"
	"github.com/zylith-labs/asp/model"
	"github.com/zylith-labs/asp/prover"
	"github.com/zylith-labs/asp/relayer"
	"github.com/zylith-labs/asp/store"
)

// proverClient is the subset of *prover.Worker the pipelines drive.
// Accepting it as an interface lets tests substitute a fake worker
// instead of spawning the real subprocess.
type proverClient interface {
	ComputeCommitment(secret, nullifier, amountLow, amountHigh, token string) (prover.CommitmentResult, error)
	ComputePositionCommitment(secret, nullifier string, tickLower, tickUpper uint32, liquidity string) (prover.CommitmentResult, error)
	GenerateProof(circuit string, inputs any) (prover.ProofResult, error)
}

// treeEngine is the subset of *tree.Engine the pipelines drive.
type treeEngine interface {
	Append(leaf string) (uint32, string, error)
	Proof(leafIndex uint32) (prover.MerkleProof, error)
	Root() (string, error)
	LeafCount() uint32
}

// Processor runs the five request pipelines against a shared Store,
// TreeEngine, Prover worker, and Relayer. treeMu guards every
// TreeEngine.append + Store.insert_commitment pair for one request and
// is released before the Relayer root-submission call. The same mutex
// pointer is handed to the EventSyncer so the two never interleave a
// tree mutation.
type Processor struct {
	store   *store.Store
	tree    treeEngine
	prover  proverClient
	relayer relayer.Relayer
	treeMu  *sync.Mutex
	log     *applog.Logger
}

// New builds a Processor over the given subsystems. treeMu must be the
// same mutex passed to the EventSyncer.
func New(st *store.Store, te treeEngine, pv proverClient, rl relayer.Relayer, treeMu *sync.Mutex) *Processor {
	return &Processor{
		store:   st,
		tree:    te,
		prover:  pv,
		relayer: rl,
		treeMu:  treeMu,
		log:     applog.Module("process"),
	}
}

// pendingLeaf is one commitment queued for appending after a proof has
// been verified and submitted on-chain.
type pendingLeaf struct {
	value string
}

// appendLeaves runs the serialized tree-write critical section: for each
// non-empty, non-"0" commitment, it takes leaf_index = get_leaf_count(),
// inserts the commitment, and appends it to the tree, all under treeMu.
// It returns the last root observed and whether anything was appended;
// it does NOT submit the root — that happens after the lock is released.
func (p *Processor) appendLeaves(leaves []pendingLeaf, originTx string) (lastRoot string, leafCount uint32, appended bool, err error) {
	p.treeMu.Lock()
	defer p.treeMu.Unlock()

	for _, l := range leaves {
		if l.value == "" || l.value == "0" {
			continue
		}
		idx, err := p.store.GetLeafCount()
		if err != nil {
			return "", 0, false, err
		}
		if err := p.store.InsertCommitment(idx, l.value, originTx, ""); err != nil {
			return "", 0, false, err
		}
		_, root, err := p.tree.Append(l.value)
		if err != nil {
			return "", 0, false, err
		}
		lastRoot = root
		appended = true
	}
	if appended {
		leafCount = p.tree.LeafCount()
	}
	return lastRoot, leafCount, appended, nil
}

// submitRoot submits the new root through the Relayer and records it in
// Store, outside the tree-write lock.
func (p *Processor) submitRoot(root string, leafCount uint32) (string, error) {
	txHash, err := p.relayer.SubmitMerkleRoot(root)
	if err != nil {
		return "", err
	}
	if err := p.store.InsertRoot(root, leafCount, txHash); err != nil {
		return "", err
	}
	return txHash, nil
}

// ---- Deposit ----

// Deposit submits the raw commitment on-chain first, then appends it
// locally and submits the resulting root.
func (p *Processor) Deposit(req DepositRequest) (resp DepositResponse, err error) {
	defer func() {
		if err != nil {
			p.log.Error("deposit failed", "error", err, "commitment", req.Commitment)
		}
	}()

	if err := felt.ValidateHexU256(req.Commitment, "commitment"); err != nil {
		return DepositResponse{}, err
	}

	decimal, err := felt.HexToDecimal(req.Commitment)
	if err != nil {
		return DepositResponse{}, err
	}

	depositTx, err := p.relayer.Deposit(req.Commitment)
	if err != nil {
		return DepositResponse{}, err
	}

	p.treeMu.Lock()
	leafIndex, root, err := p.tree.Append(decimal)
	if err != nil {
		p.treeMu.Unlock()
		return DepositResponse{}, err
	}
	if err := p.store.InsertCommitment(leafIndex, decimal, depositTx, req.Label); err != nil {
		p.treeMu.Unlock()
		return DepositResponse{}, err
	}
	leafCount := p.tree.LeafCount()
	p.treeMu.Unlock()

	rootTx, err := p.submitRoot(root, leafCount)
	if err != nil {
		return DepositResponse{}, err
	}

	rootHex, err := felt.DecimalToHex(root)
	if err != nil {
		return DepositResponse{}, err
	}

	p.log.Info("deposit confirmed", "leaf_index", leafIndex, "tx_hash", depositTx, "root_tx_hash", rootTx)
	return DepositResponse{
		Status:     "confirmed",
		LeafIndex:  leafIndex,
		TxHash:     depositTx,
		Root:       rootHex,
		RootTxHash: rootTx,
	}, nil
}

// ---- Withdraw ----

// Withdraw proves membership of an existing commitment and spends its
// nullifier; it appends no new leaf.
func (p *Processor) Withdraw(req WithdrawRequest) (resp WithdrawResponse, err error) {
	defer func() {
		if err != nil {
			p.log.Error("withdraw failed", "error", err, "leaf_index", req.LeafIndex)
		}
	}()

	if err := felt.ValidateSecret(req.Secret, "secret"); err != nil {
		return WithdrawResponse{}, err
	}
	if err := felt.ValidateSecret(req.Nullifier, "nullifier"); err != nil {
		return WithdrawResponse{}, err
	}
	if err := felt.ValidateDecimal(req.AmountLow, "amount_low"); err != nil {
		return WithdrawResponse{}, err
	}
	if err := felt.ValidateDecimal(req.AmountHigh, "amount_high"); err != nil {
		return WithdrawResponse{}, err
	}
	if err := felt.ValidateAddress(req.Token, "token"); err != nil {
		return WithdrawResponse{}, err
	}
	if err := felt.ValidateAddress(req.Recipient, "recipient"); err != nil {
		return WithdrawResponse{}, err
	}

	commitment, err := p.prover.ComputeCommitment(req.Secret, req.Nullifier, req.AmountLow, req.AmountHigh, req.Token)
	if err != nil {
		return WithdrawResponse{}, err
	}

	if err := p.assertCommitmentAt(req.LeafIndex, commitment.Commitment); err != nil {
		return WithdrawResponse{}, err
	}

	spent, err := p.store.IsNullifierSpent(commitment.NullifierHash)
	if err != nil {
		return WithdrawResponse{}, err
	}
	if spent {
		return WithdrawResponse{}, apperr.NullifierAlreadySpent(commitment.NullifierHash)
	}

	proof, err := p.tree.Proof(req.LeafIndex)
	if err != nil {
		return WithdrawResponse{}, err
	}

	inputs := map[string]any{
		"root":          proof.Root,
		"nullifierHash": commitment.NullifierHash,
		"recipient":     req.Recipient,
		"amount_low":    req.AmountLow,
		"amount_high":   req.AmountHigh,
		"token":         req.Token,
		"secret":        req.Secret,
		"nullifier":     req.Nullifier,
		"pathElements":  proof.PathElements,
		"pathIndices":   proof.PathIndices,
	}
	proofResult, err := p.prover.GenerateProof("membership", inputs)
	if err != nil {
		return WithdrawResponse{}, err
	}

	txHash, err := p.relayer.VerifyMembership(proofResult.Calldata)
	if err != nil {
		return WithdrawResponse{}, err
	}

	if err := p.store.InsertNullifier(commitment.NullifierHash, model.CircuitMembership, txHash); err != nil {
		return WithdrawResponse{}, err
	}

	p.log.Info("withdrawal confirmed", "tx_hash", txHash, "nullifier_hash", commitment.NullifierHash)
	return WithdrawResponse{
		Status:        "confirmed",
		TxHash:        txHash,
		NullifierHash: commitment.NullifierHash,
	}, nil
}

// assertCommitmentAt checks the store's commitment at leafIndex matches
// want, surfacing CommitmentNotFound or InvalidInput on mismatch.
func (p *Processor) assertCommitmentAt(leafIndex uint32, want string) error {
	stored, err := p.store.GetCommitment(leafIndex)
	if err != nil {
		return err
	}
	if stored == nil {
		return apperr.CommitmentNotFound(leafIndex)
	}
	if stored.Value != want {
		return apperr.Invalid("commitment mismatch at leaf %d", leafIndex)
	}
	return nil
}

// ---- Swap ----

// Swap spends one input note and appends an output note plus a
// circuit-derived change note.
func (p *Processor) Swap(req SwapRequest) (resp SwapResponse, err error) {
	defer func() {
		if err != nil {
			p.log.Error("swap failed", "error", err, "token_in", req.SwapParams.TokenIn, "token_out", req.SwapParams.TokenOut)
		}
	}()

	if err := validatePoolKey(req.PoolKey); err != nil {
		return SwapResponse{}, err
	}
	if err := validateNoteInput(req.InputNote, "input_note"); err != nil {
		return SwapResponse{}, err
	}
	if err := validateNoteSecrets(req.OutputNote, "output_note"); err != nil {
		return SwapResponse{}, err
	}
	if err := validateNoteSecrets(req.ChangeNote, "change_note"); err != nil {
		return SwapResponse{}, err
	}
	if err := felt.ValidateAddress(req.SwapParams.TokenIn, "swap_params.token_in"); err != nil {
		return SwapResponse{}, err
	}
	if err := felt.ValidateAddress(req.SwapParams.TokenOut, "swap_params.token_out"); err != nil {
		return SwapResponse{}, err
	}
	if err := felt.ValidateDecimal(req.SwapParams.AmountIn, "swap_params.amount_in"); err != nil {
		return SwapResponse{}, err
	}
	if err := felt.ValidateDecimal(req.SwapParams.AmountOutMin, "swap_params.amount_out_min"); err != nil {
		return SwapResponse{}, err
	}
	if err := felt.ValidateDecimal(req.SwapParams.AmountOutLow, "swap_params.amount_out_low"); err != nil {
		return SwapResponse{}, err
	}
	if err := felt.ValidateDecimal(req.SwapParams.AmountOutHigh, "swap_params.amount_out_high"); err != nil {
		return SwapResponse{}, err
	}
	if err := felt.ValidateHexU256(req.SqrtPriceLimit, "sqrt_price_limit"); err != nil {
		return SwapResponse{}, err
	}

	input := req.InputNote
	inputResult, err := p.prover.ComputeCommitment(input.Secret, input.Nullifier, input.BalanceLow, input.BalanceHigh, input.Token)
	if err != nil {
		return SwapResponse{}, err
	}
	if err := p.assertCommitmentAt(input.LeafIndex, inputResult.Commitment); err != nil {
		return SwapResponse{}, err
	}
	spent, err := p.store.IsNullifierSpent(inputResult.NullifierHash)
	if err != nil {
		return SwapResponse{}, err
	}
	if spent {
		return SwapResponse{}, apperr.NullifierAlreadySpent(inputResult.NullifierHash)
	}

	proof, err := p.tree.Proof(input.LeafIndex)
	if err != nil {
		return SwapResponse{}, err
	}

	outputResult, err := p.prover.ComputeCommitment(
		req.OutputNote.Secret, req.OutputNote.Nullifier,
		req.SwapParams.AmountOutLow, req.SwapParams.AmountOutHigh, req.SwapParams.TokenOut,
	)
	if err != nil {
		return SwapResponse{}, err
	}

	inputs := map[string]any{
		"root":            proof.Root,
		"nullifierHash":   inputResult.NullifierHash,
		"newCommitment":   outputResult.Commitment,
		"tokenIn":         req.SwapParams.TokenIn,
		"tokenOut":        req.SwapParams.TokenOut,
		"amountIn":        req.SwapParams.AmountIn,
		"amountOutMin":    req.SwapParams.AmountOutMin,
		"secret":          input.Secret,
		"nullifier":       input.Nullifier,
		"balance_low":     input.BalanceLow,
		"balance_high":    input.BalanceHigh,
		"pathElements":    proof.PathElements,
		"pathIndices":     proof.PathIndices,
		"newSecret":       req.OutputNote.Secret,
		"newNullifier":    req.OutputNote.Nullifier,
		"amountOut_low":   req.SwapParams.AmountOutLow,
		"amountOut_high":  req.SwapParams.AmountOutHigh,
		"changeSecret":    req.ChangeNote.Secret,
		"changeNullifier": req.ChangeNote.Nullifier,
	}
	proofResult, err := p.prover.GenerateProof("swap", inputs)
	if err != nil {
		return SwapResponse{}, err
	}

	txHash, err := p.relayer.ShieldedSwap(req.PoolKey, proofResult.Calldata, req.SqrtPriceLimit)
	if err != nil {
		return SwapResponse{}, err
	}

	if err := p.store.InsertNullifier(inputResult.NullifierHash, model.CircuitSwap, txHash); err != nil {
		return SwapResponse{}, err
	}

	var changeCommitment string
	if len(proofResult.PublicSignals) > 0 {
		changeCommitment = proofResult.PublicSignals[0]
	}

	lastRoot, leafCount, appended, err := p.appendLeaves([]pendingLeaf{
		{outputResult.Commitment},
		{changeCommitment},
	}, txHash)
	if err != nil {
		return SwapResponse{}, err
	}
	if appended {
		if _, err := p.submitRoot(lastRoot, leafCount); err != nil {
			return SwapResponse{}, err
		}
	}

	p.log.Info("shielded swap confirmed", "tx_hash", txHash)
	return SwapResponse{
		Status:           "confirmed",
		TxHash:           txHash,
		NewCommitment:    outputResult.Commitment,
		ChangeCommitment: changeCommitment,
	}, nil
}

// ---- Mint ----

// Mint spends two input notes and appends a position note plus up to
// two change notes.
func (p *Processor) Mint(req MintRequest) (resp MintResponse, err error) {
	defer func() {
		if err != nil {
			p.log.Error("mint failed", "error", err, "tick_lower", req.Position.TickLower, "tick_upper", req.Position.TickUpper)
		}
	}()

	if err := validatePoolKey(req.PoolKey); err != nil {
		return MintResponse{}, err
	}
	if err := validateNoteInput(req.InputNote0, "input_note_0"); err != nil {
		return MintResponse{}, err
	}
	if err := validateNoteInput(req.InputNote1, "input_note_1"); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateSecret(req.Position.Secret, "position.secret"); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateSecret(req.Position.Nullifier, "position.nullifier"); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateDecimal(req.Position.Liquidity, "position.liquidity"); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateTickRange(req.Position.TickLower, req.Position.TickUpper); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateDecimal(req.Amounts.Amount0Low, "amounts.amount0_low"); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateDecimal(req.Amounts.Amount0High, "amounts.amount0_high"); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateDecimal(req.Amounts.Amount1Low, "amounts.amount1_low"); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateDecimal(req.Amounts.Amount1High, "amounts.amount1_high"); err != nil {
		return MintResponse{}, err
	}
	if err := validateNoteSecrets(req.ChangeNote0, "change_note_0"); err != nil {
		return MintResponse{}, err
	}
	if err := validateNoteSecrets(req.ChangeNote1, "change_note_1"); err != nil {
		return MintResponse{}, err
	}
	if err := felt.ValidateDecimal(req.Liquidity, "liquidity"); err != nil {
		return MintResponse{}, err
	}

	input0, err := p.prover.ComputeCommitment(req.InputNote0.Secret, req.InputNote0.Nullifier, req.InputNote0.BalanceLow, req.InputNote0.BalanceHigh, req.InputNote0.Token)
	if err != nil {
		return MintResponse{}, err
	}
	input1, err := p.prover.ComputeCommitment(req.InputNote1.Secret, req.InputNote1.Nullifier, req.InputNote1.BalanceLow, req.InputNote1.BalanceHigh, req.InputNote1.Token)
	if err != nil {
		return MintResponse{}, err
	}

	if err := p.assertCommitmentAt(req.InputNote0.LeafIndex, input0.Commitment); err != nil {
		return MintResponse{}, err
	}
	if err := p.assertCommitmentAt(req.InputNote1.LeafIndex, input1.Commitment); err != nil {
		return MintResponse{}, err
	}
	for _, n := range []string{input0.NullifierHash, input1.NullifierHash} {
		spent, err := p.store.IsNullifierSpent(n)
		if err != nil {
			return MintResponse{}, err
		}
		if spent {
			return MintResponse{}, apperr.NullifierAlreadySpent(n)
		}
	}

	proof0, err := p.tree.Proof(req.InputNote0.LeafIndex)
	if err != nil {
		return MintResponse{}, err
	}
	proof1, err := p.tree.Proof(req.InputNote1.LeafIndex)
	if err != nil {
		return MintResponse{}, err
	}

	tickLower := felt.OffsetTick(req.Position.TickLower)
	tickUpper := felt.OffsetTick(req.Position.TickUpper)

	position, err := p.prover.ComputePositionCommitment(req.Position.Secret, req.Position.Nullifier, tickLower, tickUpper, req.Position.Liquidity)
	if err != nil {
		return MintResponse{}, err
	}

	inputs := map[string]any{
		"root":              proof0.Root,
		"nullifierHash0":    input0.NullifierHash,
		"nullifierHash1":    input1.NullifierHash,
		"tickLower":         tickLower,
		"tickUpper":         tickUpper,
		"secret0":           req.InputNote0.Secret,
		"nullifier0":        req.InputNote0.Nullifier,
		"balance0_low":      req.InputNote0.BalanceLow,
		"balance0_high":     req.InputNote0.BalanceHigh,
		"token0":            req.InputNote0.Token,
		"pathElements0":     proof0.PathElements,
		"pathIndices0":      proof0.PathIndices,
		"secret1":           req.InputNote1.Secret,
		"nullifier1":        req.InputNote1.Nullifier,
		"balance1_low":      req.InputNote1.BalanceLow,
		"balance1_high":     req.InputNote1.BalanceHigh,
		"token1":            req.InputNote1.Token,
		"pathElements1":     proof1.PathElements,
		"pathIndices1":      proof1.PathIndices,
		"positionSecret":    req.Position.Secret,
		"positionNullifier": req.Position.Nullifier,
		"liquidity":         req.Position.Liquidity,
		"amount0_low":       req.Amounts.Amount0Low,
		"amount0_high":      req.Amounts.Amount0High,
		"amount1_low":       req.Amounts.Amount1Low,
		"amount1_high":      req.Amounts.Amount1High,
		"changeSecret0":     req.ChangeNote0.Secret,
		"changeNullifier0":  req.ChangeNote0.Nullifier,
		"changeSecret1":     req.ChangeNote1.Secret,
		"changeNullifier1":  req.ChangeNote1.Nullifier,
	}
	proofResult, err := p.prover.GenerateProof("mint", inputs)
	if err != nil {
		return MintResponse{}, err
	}

	txHash, err := p.relayer.ShieldedMint(req.PoolKey, proofResult.Calldata, req.Liquidity)
	if err != nil {
		return MintResponse{}, err
	}

	for _, n := range []string{input0.NullifierHash, input1.NullifierHash} {
		if err := p.store.InsertNullifier(n, model.CircuitMint, txHash); err != nil {
			return MintResponse{}, err
		}
	}

	// Public-signal order: [changeCommitment0, changeCommitment1, root,
	// nullifierHash0, nullifierHash1, positionCommitment, tickLower, tickUpper].
	// See DESIGN.md for why this order was chosen over deriving the position
	// commitment from the prover result directly.
	var changeCommitment0, changeCommitment1 string
	if len(proofResult.PublicSignals) > 0 {
		changeCommitment0 = proofResult.PublicSignals[0]
	}
	if len(proofResult.PublicSignals) > 1 {
		changeCommitment1 = proofResult.PublicSignals[1]
	}
	positionCommitment := position.Commitment
	if len(proofResult.PublicSignals) > 5 {
		positionCommitment = proofResult.PublicSignals[5]
	}

	lastRoot, leafCount, appended, err := p.appendLeaves([]pendingLeaf{
		{changeCommitment0},
		{changeCommitment1},
		{positionCommitment}, // a mint always opens a position
	}, txHash)
	if err != nil {
		return MintResponse{}, err
	}
	if appended {
		if _, err := p.submitRoot(lastRoot, leafCount); err != nil {
			return MintResponse{}, err
		}
	}

	p.log.Info("shielded mint confirmed", "tx_hash", txHash, "position_commitment", positionCommitment)
	return MintResponse{
		Status:             "confirmed",
		TxHash:             txHash,
		PositionCommitment: positionCommitment,
		ChangeCommitment0:  changeCommitment0,
		ChangeCommitment1:  changeCommitment1,
	}, nil
}

// ---- Burn ----

// Burn spends a position note and appends two output notes.
func (p *Processor) Burn(req BurnRequest) (resp BurnResponse, err error) {
	defer func() {
		if err != nil {
			p.log.Error("burn failed", "error", err, "liquidity", req.Liquidity)
		}
	}()

	if err := validatePoolKey(req.PoolKey); err != nil {
		return BurnResponse{}, err
	}
	if err := felt.ValidateSecret(req.PositionNote.Secret, "position_note.secret"); err != nil {
		return BurnResponse{}, err
	}
	if err := felt.ValidateSecret(req.PositionNote.Nullifier, "position_note.nullifier"); err != nil {
		return BurnResponse{}, err
	}
	if err := felt.ValidateDecimal(req.PositionNote.Liquidity, "position_note.liquidity"); err != nil {
		return BurnResponse{}, err
	}
	if err := felt.ValidateTickRange(req.PositionNote.TickLower, req.PositionNote.TickUpper); err != nil {
		return BurnResponse{}, err
	}
	if err := validateOutputNote(req.OutputNote0, "output_note_0"); err != nil {
		return BurnResponse{}, err
	}
	if err := validateOutputNote(req.OutputNote1, "output_note_1"); err != nil {
		return BurnResponse{}, err
	}
	if err := felt.ValidateDecimal(req.Liquidity, "liquidity"); err != nil {
		return BurnResponse{}, err
	}

	tickLower := felt.OffsetTick(req.PositionNote.TickLower)
	tickUpper := felt.OffsetTick(req.PositionNote.TickUpper)

	position, err := p.prover.ComputePositionCommitment(req.PositionNote.Secret, req.PositionNote.Nullifier, tickLower, tickUpper, req.PositionNote.Liquidity)
	if err != nil {
		return BurnResponse{}, err
	}
	if err := p.assertCommitmentAt(req.PositionNote.LeafIndex, position.Commitment); err != nil {
		return BurnResponse{}, err
	}
	spent, err := p.store.IsNullifierSpent(position.NullifierHash)
	if err != nil {
		return BurnResponse{}, err
	}
	if spent {
		return BurnResponse{}, apperr.NullifierAlreadySpent(position.NullifierHash)
	}

	proof, err := p.tree.Proof(req.PositionNote.LeafIndex)
	if err != nil {
		return BurnResponse{}, err
	}

	output0, err := p.prover.ComputeCommitment(req.OutputNote0.Secret, req.OutputNote0.Nullifier, req.OutputNote0.AmountLow, req.OutputNote0.AmountHigh, req.OutputNote0.Token)
	if err != nil {
		return BurnResponse{}, err
	}
	output1, err := p.prover.ComputeCommitment(req.OutputNote1.Secret, req.OutputNote1.Nullifier, req.OutputNote1.AmountLow, req.OutputNote1.AmountHigh, req.OutputNote1.Token)
	if err != nil {
		return BurnResponse{}, err
	}

	inputs := map[string]any{
		"root":              proof.Root,
		"newCommitment0":    output0.Commitment,
		"newCommitment1":    output1.Commitment,
		"tickLower":         tickLower,
		"tickUpper":         tickUpper,
		"positionSecret":    req.PositionNote.Secret,
		"positionNullifier": req.PositionNote.Nullifier,
		"liquidity":         req.PositionNote.Liquidity,
		"pathElements":      proof.PathElements,
		"pathIndices":       proof.PathIndices,
		"newSecret0":        req.OutputNote0.Secret,
		"newNullifier0":     req.OutputNote0.Nullifier,
		"amount0_low":       req.OutputNote0.AmountLow,
		"amount0_high":      req.OutputNote0.AmountHigh,
		"token0":            req.OutputNote0.Token,
		"newSecret1":        req.OutputNote1.Secret,
		"newNullifier1":     req.OutputNote1.Nullifier,
		"amount1_low":       req.OutputNote1.AmountLow,
		"amount1_high":      req.OutputNote1.AmountHigh,
		"token1":            req.OutputNote1.Token,
	}
	proofResult, err := p.prover.GenerateProof("burn", inputs)
	if err != nil {
		return BurnResponse{}, err
	}

	txHash, err := p.relayer.ShieldedBurn(req.PoolKey, proofResult.Calldata, req.Liquidity)
	if err != nil {
		return BurnResponse{}, err
	}

	if err := p.store.InsertNullifier(position.NullifierHash, model.CircuitBurn, txHash); err != nil {
		return BurnResponse{}, err
	}

	lastRoot, leafCount, appended, err := p.appendLeaves([]pendingLeaf{
		{output0.Commitment},
		{output1.Commitment},
	}, txHash)
	if err != nil {
		return BurnResponse{}, err
	}
	if appended {
		if _, err := p.submitRoot(lastRoot, leafCount); err != nil {
			return BurnResponse{}, err
		}
	}

	p.log.Info("shielded burn confirmed", "tx_hash", txHash)
	return BurnResponse{
		Status:         "confirmed",
		TxHash:         txHash,
		NewCommitment0: output0.Commitment,
		NewCommitment1: output1.Commitment,
	}, nil
}
