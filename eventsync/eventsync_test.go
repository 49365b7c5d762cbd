package eventsync_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/zylith-labs/asp/eventsync"
	"github.com/zylith-labs/asp/relayer"
	"github.com/zylith-labs/asp/store"
)

// fakeTree is an in-memory stand-in for the TreeEngine the syncer drives.
type fakeTree struct {
	mu     sync.Mutex
	leaves []string
}

func (t *fakeTree) Append(leaf string) (uint32, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := uint32(len(t.leaves))
	t.leaves = append(t.leaves, leaf)
	return idx, t.rootLocked(), nil
}

func (t *fakeTree) rootLocked() string {
	if len(t.leaves) == 0 {
		return "root-empty"
	}
	return "root-" + t.leaves[len(t.leaves)-1]
}

func (t *fakeTree) Root() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootLocked(), nil
}

func (t *fakeTree) LeafCount() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.leaves))
}

// fakeEventSource hands back a fixed event page once, then reports the
// same block height with nothing further to page through.
type fakeEventSource struct {
	mu     sync.Mutex
	block  uint64
	events []relayer.Event
}

func (s *fakeEventSource) BlockNumber() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block, nil
}

func (s *fakeEventSource) GetEvents(_ string, _, _ uint64, continuationToken string, _ int) ([]relayer.Event, string, error) {
	if continuationToken != "" {
		return nil, "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, "", nil
}

var (
	commitmentAddedSelector = relayer.SelectorFromName("CommitmentAdded")
	nullifierSpentSelector  = relayer.SelectorFromName("NullifierSpent")
)

type SyncerSuite struct {
	suite.Suite
	store  *store.Store
	tree   *fakeTree
	source *fakeEventSource
}

func (s *SyncerSuite) SetupTest() {
	dir := s.T().TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { st.Close() })

	s.store = st
	s.tree = &fakeTree{}
	s.source = &fakeEventSource{
		block: 10,
		events: []relayer.Event{
			{
				Keys:   []string{commitmentAddedSelector},
				Data:   []string{"12345", "0", "0x0"},
				TxHash: "0xcommitevent",
			},
			{
				Keys:   []string{nullifierSpentSelector},
				Data:   []string{"999", "0"},
				TxHash: "0xnullifierevent",
			},
		},
	}
}

func (s *SyncerSuite) TestCycleAppliesEventsAndSubmitsRoot() {
	var treeMu sync.Mutex
	rl := relayer.NewMock()
	syncer := eventsync.New(s.store, s.tree, s.source, rl, "0xpool", &treeMu, 0)

	s.Require().NoError(syncer.Cycle())

	leafIndex, found, err := s.store.FindCommitmentLeafIndex("12345")
	s.Require().NoError(err)
	s.True(found)
	s.Equal(uint32(0), leafIndex)

	spent, err := s.store.IsNullifierSpent("999")
	s.Require().NoError(err)
	s.True(spent)

	cursor, err := s.store.GetSyncState("last_block")
	s.Require().NoError(err)
	s.Equal("10", cursor)

	root, err := s.store.GetLatestRoot()
	s.Require().NoError(err)
	s.Require().NotNil(root)
	s.Equal("root-12345", *root)
}

func (s *SyncerSuite) TestCycleDegradesSilentlyWithoutRelayer() {
	var treeMu sync.Mutex
	syncer := eventsync.New(s.store, s.tree, s.source, nil, "0xpool", &treeMu, 0)

	s.Require().NoError(syncer.Cycle())

	_, found, err := s.store.FindCommitmentLeafIndex("12345")
	s.Require().NoError(err)
	s.True(found)

	root, err := s.store.GetLatestRoot()
	s.Require().NoError(err)
	s.Nil(root)
}

func (s *SyncerSuite) TestCycleIsIdempotent() {
	var treeMu sync.Mutex
	rl := relayer.NewMock()
	syncer := eventsync.New(s.store, s.tree, s.source, rl, "0xpool", &treeMu, 0)

	s.Require().NoError(syncer.Cycle())
	s.Require().NoError(syncer.Cycle())

	s.Equal(uint32(1), s.tree.LeafCount())
}

func TestSyncerSuite(t *testing.T) {
	suite.Run(t, new(SyncerSuite))
}
