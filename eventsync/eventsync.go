// Package eventsync reconciles the local tree and store against the
// chain's own CommitmentAdded / NullifierSpent event log. It runs as a
// lifecycle.Service on a ticker, polling a contiguous block range each
// cycle and applying only mutations it does not already know about, so
// that a crash or a restart is always safe to resume from the last
// committed cursor.
package eventsync

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/zylith-labs/asp/apperr"
	"github.com/zylith-labs/asp/felt"
	applog "github.com/zylith-labs/asp/log"
	"github.com/zylith-labs/asp/model"
	"github.com/zylith-labs/asp/relayer"
	"github.com/zylith-labs/asp/store"
)

const (
	lastBlockKey  = "last_block"
	eventPageSize = 100
)

var (
	commitmentAddedSelector = relayer.SelectorFromName("CommitmentAdded")
	nullifierSpentSelector  = relayer.SelectorFromName("NullifierSpent")
)

// treeEngine is the subset of *tree.Engine the syncer drives. Accepting
// it as an interface lets tests substitute a fake tree instead of
// spawning the prover subprocess.
type treeEngine interface {
	Append(leaf string) (uint32, string, error)
	Root() (string, error)
	LeafCount() uint32
}

// Syncer watches the pool contract's event log and replays
// CommitmentAdded / NullifierSpent events it has not yet applied.
// source reads chain state; rl (optional) submits the reconciled root;
// treeMu is the same tree-write lock the Processor uses.
type Syncer struct {
	store    *store.Store
	tree     treeEngine
	source   relayer.EventSource
	rl       relayer.Relayer
	poolAddr string
	treeMu   *sync.Mutex

	pollInterval time.Duration
	log          *applog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Syncer. rl may be nil: the syncer still applies local
// mutations but skips on-chain root submission, logging instead.
func New(st *store.Store, te treeEngine, source relayer.EventSource, rl relayer.Relayer, poolAddr string, treeMu *sync.Mutex, pollInterval time.Duration) *Syncer {
	return &Syncer{
		store:        st,
		tree:         te,
		source:       source,
		rl:           rl,
		poolAddr:     poolAddr,
		treeMu:       treeMu,
		pollInterval: pollInterval,
		log:          applog.Module("eventsync"),
	}
}

// Name satisfies lifecycle.Service.
func (s *Syncer) Name() string { return "eventsync" }

// Start satisfies lifecycle.Service: it launches the poll loop in the
// background and returns immediately.
func (s *Syncer) Start() error {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run()
	return nil
}

// Stop satisfies lifecycle.Service: it asks the poll loop to exit and
// waits for the in-flight cycle, if any, to finish.
func (s *Syncer) Stop() error {
	if s.stopCh == nil {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh
	return nil
}

func (s *Syncer) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.Cycle(); err != nil {
			s.log.Error("sync cycle failed", "error", err)
		}
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Cycle runs one reconciliation pass: determine the block range to
// cover, page through events in it, apply what is new, submit a
// reconciled root if one is owed, and only then advance the cursor.
func (s *Syncer) Cycle() error {
	fromStr, err := s.store.GetSyncState(lastBlockKey)
	if err != nil {
		return err
	}
	from := uint64(0)
	if fromStr != "" {
		parsed, ok := new(big.Int).SetString(fromStr, 10)
		if !ok {
			return apperr.Invalid("corrupt sync cursor %q", fromStr)
		}
		from = parsed.Uint64() + 1
	}

	to, err := s.source.BlockNumber()
	if err != nil {
		return err
	}
	if to < from {
		return nil // nothing new since the last cycle
	}

	events, err := s.pollEvents(from, to)
	if err != nil {
		return err
	}

	newCommitments, newNullifiers, err := s.classify(events)
	if err != nil {
		return err
	}

	if err := s.applyNullifiers(newNullifiers); err != nil {
		return err
	}
	if err := s.applyCommitments(newCommitments); err != nil {
		return err
	}

	if err := s.submitRootIfChanged(); err != nil {
		return err
	}

	return s.store.SetSyncState(lastBlockKey, fmt.Sprintf("%d", to))
}

// pollEvents pages through the pool contract's log for [from, to],
// following continuation tokens until the chain reports none left.
func (s *Syncer) pollEvents(from, to uint64) ([]relayer.Event, error) {
	var all []relayer.Event
	token := ""
	for {
		events, next, err := s.source.GetEvents(s.poolAddr, from, to, token, eventPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
		if next == "" {
			return all, nil
		}
		token = next
	}
}

type syncedCommitment struct {
	leafIndex uint32
	value     string
	txHash    string
}

type syncedNullifier struct {
	hash   string
	txHash string
}

// classify decodes each event's felt data and drops anything the store
// already knows, leaving only genuinely new mutations.
func (s *Syncer) classify(events []relayer.Event) ([]syncedCommitment, []syncedNullifier, error) {
	var commitments []syncedCommitment
	var nullifiers []syncedNullifier

	for _, ev := range events {
		if len(ev.Keys) == 0 {
			continue
		}
		switch ev.Keys[0] {
		case commitmentAddedSelector:
			if len(ev.Data) < 3 {
				continue
			}
			value, err := felt.FeltsToDecimal(ev.Data[0], ev.Data[1])
			if err != nil {
				return nil, nil, err
			}
			leafIndex, err := hexFeltToUint32(ev.Data[2])
			if err != nil {
				return nil, nil, err
			}
			if _, found, err := s.store.FindCommitmentLeafIndex(value); err != nil {
				return nil, nil, err
			} else if found {
				continue
			}
			commitments = append(commitments, syncedCommitment{leafIndex: leafIndex, value: value, txHash: ev.TxHash})

		case nullifierSpentSelector:
			if len(ev.Data) < 2 {
				continue
			}
			hash, err := felt.FeltsToDecimal(ev.Data[0], ev.Data[1])
			if err != nil {
				return nil, nil, err
			}
			spent, err := s.store.IsNullifierSpent(hash)
			if err != nil {
				return nil, nil, err
			}
			if spent {
				continue
			}
			nullifiers = append(nullifiers, syncedNullifier{hash: hash, txHash: ev.TxHash})
		}
	}

	sort.Slice(commitments, func(i, j int) bool { return commitments[i].leafIndex < commitments[j].leafIndex })
	return commitments, nullifiers, nil
}

// applyCommitments appends newly observed commitments to the tree in
// leaf-index order, under the shared tree-write lock.
func (s *Syncer) applyCommitments(commitments []syncedCommitment) error {
	if len(commitments) == 0 {
		return nil
	}

	s.treeMu.Lock()
	defer s.treeMu.Unlock()

	for _, c := range commitments {
		idx, _, err := s.tree.Append(c.value)
		if err != nil {
			return err
		}
		if idx != c.leafIndex {
			// TreeEngine only supports appending at the next free index, so
			// there is no way to force idx back to the chain-reported slot
			// here. Persisting idx anyway would silently diverge the local
			// tree from the chain's own numbering; fail the cycle instead so
			// it shows up as a repeated, visible error rather than a single
			// buried warning, and nothing past this commitment in the batch
			// gets applied on top of an already-wrong index.
			return apperr.Newf(apperr.KindInternal,
				"synced leaf index mismatch for commitment %s: chain reports index %d, local tree assigned %d",
				c.value, c.leafIndex, idx)
		}
		if err := s.store.InsertCommitment(idx, c.value, c.txHash, ""); err != nil {
			return err
		}
	}
	return nil
}

// applyNullifiers records newly observed spent nullifiers. No tree
// mutation is involved, so no lock is required.
func (s *Syncer) applyNullifiers(nullifiers []syncedNullifier) error {
	for _, n := range nullifiers {
		if err := s.store.InsertNullifier(n.hash, model.CircuitSynced, n.txHash); err != nil {
			return err
		}
	}
	return nil
}

// submitRootIfChanged compares the live tree root against the store's
// latest recorded root and submits/records a new one if they differ.
// With no Relayer configured it logs and leaves the store row absent,
// so the next cycle retries once a Relayer is available.
func (s *Syncer) submitRootIfChanged() error {
	root, err := s.tree.Root()
	if err != nil {
		return err
	}

	latest, err := s.store.GetLatestRoot()
	if err != nil {
		return err
	}
	if latest != nil && *latest == root {
		return nil
	}

	if s.rl == nil {
		s.log.Debug("root changed but no relayer configured, skipping submission", "root", root)
		return nil
	}

	txHash, err := s.rl.SubmitMerkleRoot(root)
	if err != nil {
		return err
	}
	return s.store.InsertRoot(root, s.tree.LeafCount(), txHash)
}

// hexFeltToUint32 parses a 0x-prefixed hex felt word as a uint32,
// used for the leaf_index component of a CommitmentAdded event.
func hexFeltToUint32(hexValue string) (uint32, error) {
	decimal, err := felt.HexToDecimal(hexValue)
	if err != nil {
		return 0, err
	}
	v, ok := new(big.Int).SetString(decimal, 10)
	if !ok || !v.IsUint64() || v.Uint64() > uint64(^uint32(0)) {
		return 0, apperr.Invalid("leaf index out of range: %s", hexValue)
	}
	return uint32(v.Uint64()), nil
}
