// Package tree is a thin adapter over the prover's append-only leaf
// accumulator. Append returns (index, root, error) and Proof(index)
// returns siblings plus path bits; the actual hashing is delegated to the
// external prover rather than computed in-process, since the tree uses a
// ZK-circuit-friendly field hash the worker owns.
package tree

import (
	"github.com/zylith-labs/asp/apperr"
	"github.com/zylith-labs/asp/model"
	"github.com/zylith-labs/asp/prover"
)

// TreeHeight is the depth of the append-only LeanIMT (capacity 2^20 leaves).
const TreeHeight = 20

// Capacity is the maximum number of leaves the tree can hold.
const Capacity = 1 << TreeHeight

// workerClient is the subset of *prover.Worker the tree adapter drives.
// Accepting it as an interface lets tests substitute a fake worker
// instead of spawning the real subprocess.
type workerClient interface {
	InsertLeaf(leaf string) (string, error)
	GetRoot() (string, error)
	GetProof(leafIndex uint32) (prover.MerkleProof, error)
	BuildTree(leaves []string) (string, error)
}

// Engine drives the prover's in-worker tree and tracks the leaf count this
// process has observed.
type Engine struct {
	worker    workerClient
	leafCount uint32
}

// New wraps a prover worker as a TreeEngine.
func New(worker *prover.Worker) *Engine {
	return &Engine{worker: worker}
}

// newWithClient builds an Engine over an arbitrary workerClient; used by
// tests to substitute a fake worker.
func newWithClient(worker workerClient) *Engine {
	return &Engine{worker: worker}
}

// Append adds a leaf to the tree and returns its index and the new root.
func (e *Engine) Append(leaf string) (uint32, string, error) {
	if e.leafCount >= Capacity {
		return 0, "", apperr.New(apperr.KindTreeFull, "tree is at capacity")
	}
	root, err := e.worker.InsertLeaf(leaf)
	if err != nil {
		return 0, "", err
	}
	index := e.leafCount
	e.leafCount++
	return index, root, nil
}

// Root returns the tree's current root.
func (e *Engine) Root() (string, error) {
	return e.worker.GetRoot()
}

// Proof returns an inclusion proof for the given leaf index.
func (e *Engine) Proof(leafIndex uint32) (prover.MerkleProof, error) {
	return e.worker.GetProof(leafIndex)
}

// Rebuild resets the worker's tree to the given ordered leaves (by
// ascending leaf_index) and resynchronizes the local leaf count.
func (e *Engine) Rebuild(commitments []model.Commitment) (string, error) {
	leaves := make([]string, len(commitments))
	for i, c := range commitments {
		leaves[i] = c.Value
	}
	root, err := e.worker.BuildTree(leaves)
	if err != nil {
		return "", err
	}
	e.leafCount = uint32(len(commitments))
	return root, nil
}

// LeafCount returns the number of leaves this engine believes the tree
// holds.
func (e *Engine) LeafCount() uint32 {
	return e.leafCount
}
