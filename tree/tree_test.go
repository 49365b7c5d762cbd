package tree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zylith-labs/asp/model"
	"github.com/zylith-labs/asp/prover"
)

type fakeWorker struct {
	leaves []string
}

func (w *fakeWorker) InsertLeaf(leaf string) (string, error) {
	w.leaves = append(w.leaves, leaf)
	return w.rootFor(w.leaves), nil
}

func (w *fakeWorker) GetRoot() (string, error) {
	return w.rootFor(w.leaves), nil
}

func (w *fakeWorker) rootFor(leaves []string) string {
	if len(leaves) == 0 {
		return "empty-root"
	}
	return "root-over-" + leaves[len(leaves)-1]
}

func (w *fakeWorker) GetProof(leafIndex uint32) (prover.MerkleProof, error) {
	return prover.MerkleProof{
		Root:         w.rootFor(w.leaves),
		PathElements: []string{"1", "2"},
		PathIndices:  []uint32{0, 1},
	}, nil
}

func (w *fakeWorker) BuildTree(leaves []string) (string, error) {
	w.leaves = append([]string(nil), leaves...)
	return w.rootFor(w.leaves), nil
}

func TestAppendTracksLeafCountAndRoot(t *testing.T) {
	e := newWithClient(&fakeWorker{})

	idx0, root0, err := e.Append("10")
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx0)
	require.Equal(t, "root-over-10", root0)

	idx1, root1, err := e.Append("20")
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx1)
	require.Equal(t, "root-over-20", root1)

	require.Equal(t, uint32(2), e.LeafCount())

	root, err := e.Root()
	require.NoError(t, err)
	require.Equal(t, "root-over-20", root)
}

func TestAppendRejectsAtCapacity(t *testing.T) {
	e := newWithClient(&fakeWorker{})
	e.leafCount = Capacity

	_, _, err := e.Append("10")
	require.Error(t, err)
}

func TestProofPassesThroughToWorker(t *testing.T) {
	w := &fakeWorker{}
	e := newWithClient(w)
	_, _, err := e.Append("10")
	require.NoError(t, err)

	proof, err := e.Proof(0)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, proof.PathElements)
}

func TestRebuildResynchronizesLeafCount(t *testing.T) {
	e := newWithClient(&fakeWorker{})
	commitments := []model.Commitment{
		{LeafIndex: 0, Value: "10"},
		{LeafIndex: 1, Value: "20"},
		{LeafIndex: 2, Value: "30"},
	}

	root, err := e.Rebuild(commitments)
	require.NoError(t, err)
	require.Equal(t, "root-over-30", root)
	require.Equal(t, uint32(3), e.LeafCount())
}
