package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zylith-labs/asp/httpapi"
	"github.com/zylith-labs/asp/lifecycle"
	"github.com/zylith-labs/asp/process"
	"github.com/zylith-labs/asp/prover"
	"github.com/zylith-labs/asp/relayer"
	"github.com/zylith-labs/asp/store"
)

// fakeProver and fakeTree mirror process_test.go's fakes but live here too
// since Go test helpers aren't shared across package boundaries.

type fakeProver struct{}

func (fakeProver) ComputeCommitment(secret, nullifier, amountLow, amountHigh, token string) (prover.CommitmentResult, error) {
	return prover.CommitmentResult{Commitment: "c:" + secret, NullifierHash: "nh:" + nullifier}, nil
}

func (fakeProver) ComputePositionCommitment(secret, nullifier string, tickLower, tickUpper uint32, liquidity string) (prover.CommitmentResult, error) {
	return prover.CommitmentResult{Commitment: "pc:" + secret, NullifierHash: "nh:" + nullifier}, nil
}

func (fakeProver) GenerateProof(circuit string, inputs any) (prover.ProofResult, error) {
	return prover.ProofResult{Calldata: []string{"calldata:" + circuit}, PublicSignals: []string{"s0"}}, nil
}

type fakeTree struct {
	mu     sync.Mutex
	leaves []string
}

func (t *fakeTree) Append(leaf string) (uint32, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := uint32(len(t.leaves))
	t.leaves = append(t.leaves, leaf)
	return idx, "4660", nil
}

func (t *fakeTree) Proof(leafIndex uint32) (prover.MerkleProof, error) {
	return prover.MerkleProof{Root: "4660", PathElements: []string{"1"}, PathIndices: []uint32{0}}, nil
}

func (t *fakeTree) Root() (string, error) { return "4660", nil }

func (t *fakeTree) LeafCount() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.leaves))
}

func newTestServer(t *testing.T) (*httpapi.Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tr := &fakeTree{}
	var treeMu sync.Mutex
	proc := process.New(st, tr, fakeProver{}, relayer.NewMock(), &treeMu)
	health := lifecycle.NewHealthChecker()

	contracts := httpapi.Contracts{Coordinator: "0xcoord", Pool: "0xpool"}
	return httpapi.New(proc, st, tr, health, contracts, "test"), st
}

func doJSON(t *testing.T, server http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestDepositThenTreeRoot(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/deposit", process.DepositRequest{Commitment: "0x1a2b"})
	require.Equal(t, http.StatusOK, rec.Code)

	var depositResp process.DepositResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &depositResp))
	require.Equal(t, "confirmed", depositResp.Status)
	require.Equal(t, uint32(0), depositResp.LeafIndex)

	rec = doJSON(t, server, http.MethodGet, "/tree/root", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rootResp struct {
		Root      string `json:"root"`
		LeafCount uint32 `json:"leaf_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rootResp))
	require.Equal(t, "4660", rootResp.Root)
}

func TestDepositRejectsInvalidCommitment(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/deposit", process.DepositRequest{Commitment: "not-hex"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.NotEmpty(t, errResp.Error)
}

func TestTreePathReturnsNotFoundForMissingLeaf(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/tree/path/0", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNullifierReportsUnspentByDefault(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/nullifier/0xdeadbeef", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		NullifierHash string `json:"nullifier_hash"`
		Spent         bool   `json:"spent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Spent)
}

func TestSyncCommitmentsResolvesKnownLeafIndex(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/deposit", process.DepositRequest{Commitment: "0x1a2b"})
	require.Equal(t, http.StatusOK, rec.Code)

	// 0x1a2b decimal is 6699.
	rec = doJSON(t, server, http.MethodPost, "/sync-commitments", map[string]any{
		"commitments": []string{"6699", "999999"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Commitments []struct {
			Commitment string  `json:"commitment"`
			LeafIndex  *uint32 `json:"leaf_index,omitempty"`
		} `json:"commitments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Commitments, 2)
	require.NotNil(t, resp.Commitments[0].LeafIndex)
	require.Equal(t, uint32(0), *resp.Commitments[0].LeafIndex)
	require.Nil(t, resp.Commitments[1].LeafIndex)
}

func TestStatusReportsHealthyWithNoSubsystems(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Healthy bool `json:"healthy"`
		Tree    struct {
			LeafCount uint32 `json:"leaf_count"`
		} `json:"tree"`
		Contracts struct {
			Coordinator string `json:"coordinator"`
			Pool        string `json:"pool"`
		} `json:"contracts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Healthy)
	require.Equal(t, "0xcoord", resp.Contracts.Coordinator)
}
