// Package httpapi exposes the association set's operations over HTTP
// using github.com/gorilla/mux for routing and
// github.com/prometheus/client_golang/prometheus/promhttp for the
// /metrics surface. Every handler decodes a JSON body (where one is
// expected) straight into a process.* request struct and encodes the
// matching response struct back out; errors are translated through
// apperr.HTTPStatus into the wire status code.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zylith-labs/asp/apperr"
	applog "github.com/zylith-labs/asp/log"
	"github.com/zylith-labs/asp/lifecycle"
	"github.com/zylith-labs/asp/process"
	"github.com/zylith-labs/asp/prover"
	"github.com/zylith-labs/asp/store"
)

// treeReader is the subset of *tree.Engine the HTTP surface reads.
// Accepting it as an interface lets tests substitute a fake tree instead
// of spawning the prover subprocess.
type treeReader interface {
	Root() (string, error)
	Proof(leafIndex uint32) (prover.MerkleProof, error)
	LeafCount() uint32
}

// Contracts names the on-chain coordinator/pool addresses echoed by
// GET /status.
type Contracts struct {
	Coordinator string
	Pool        string
}

// Server wires the process pipelines, tree, store, and health aggregate
// into a routable http.Handler.
type Server struct {
	router    *mux.Router
	proc      *process.Processor
	store     *store.Store
	tree      treeReader
	health    *lifecycle.HealthChecker
	contracts Contracts
	version   string
	log       *applog.Logger
}

// New builds a Server and registers all routes.
func New(proc *process.Processor, st *store.Store, te treeReader, health *lifecycle.HealthChecker, contracts Contracts, version string) *Server {
	s := &Server{
		proc:      proc,
		store:     st,
		tree:      te,
		health:    health,
		contracts: contracts,
		version:   version,
		log:       applog.Module("httpapi"),
	}
	s.router = mux.NewRouter()
	s.routes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/deposit", s.handleDeposit).Methods(http.MethodPost)
	s.router.HandleFunc("/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	s.router.HandleFunc("/swap", s.handleSwap).Methods(http.MethodPost)
	s.router.HandleFunc("/mint", s.handleMint).Methods(http.MethodPost)
	s.router.HandleFunc("/burn", s.handleBurn).Methods(http.MethodPost)

	s.router.HandleFunc("/tree/root", s.handleTreeRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/tree/path/{leaf_index}", s.handleTreePath).Methods(http.MethodGet)

	s.router.HandleFunc("/nullifier/{hash}", s.handleNullifier).Methods(http.MethodGet)
	s.router.HandleFunc("/sync-commitments", s.handleSyncCommitments).Methods(http.MethodPost)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, log *applog.Logger, err error) {
	ae := apperr.As(err)
	log.Warn("request failed", "kind", ae.Kind.String(), "error", ae.Error())
	writeJSON(w, ae.HTTPStatus(), errorBody{Error: ae.Error(), Kind: ae.Kind.String()})
}

func decodeBody[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, apperr.Wrap(apperr.KindJSON, err)
	}
	return v, nil
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[process.DepositRequest](r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	resp, err := s.proc.Deposit(req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[process.WithdrawRequest](r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	resp, err := s.proc.Withdraw(req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[process.SwapRequest](r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	resp, err := s.proc.Swap(req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[process.MintRequest](r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	resp, err := s.proc.Mint(req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[process.BurnRequest](r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	resp, err := s.proc.Burn(req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type treeRootResponse struct {
	Root      string `json:"root"`
	LeafCount uint32 `json:"leaf_count"`
}

func (s *Server) handleTreeRoot(w http.ResponseWriter, r *http.Request) {
	root, err := s.tree.Root()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, treeRootResponse{Root: root, LeafCount: s.tree.LeafCount()})
}

type treePathResponse struct {
	LeafIndex    uint32   `json:"leaf_index"`
	Commitment   string   `json:"commitment"`
	Label        string   `json:"label,omitempty"`
	Root         string   `json:"root"`
	PathElements []string `json:"path_elements"`
	PathIndices  []uint32 `json:"path_indices"`
}

func (s *Server) handleTreePath(w http.ResponseWriter, r *http.Request) {
	leafIndex, err := parseLeafIndex(mux.Vars(r)["leaf_index"])
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	commitment, err := s.store.GetCommitment(leafIndex)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if commitment == nil {
		writeError(w, s.log, apperr.CommitmentNotFound(leafIndex))
		return
	}

	proof, err := s.tree.Proof(leafIndex)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, treePathResponse{
		LeafIndex:    leafIndex,
		Commitment:   commitment.Value,
		Label:        commitment.Label,
		Root:         proof.Root,
		PathElements: proof.PathElements,
		PathIndices:  proof.PathIndices,
	})
}

func parseLeafIndex(raw string) (uint32, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperr.Invalid("invalid leaf_index %q", raw)
	}
	return uint32(v), nil
}

type nullifierResponse struct {
	NullifierHash string `json:"nullifier_hash"`
	Spent         bool   `json:"spent"`
	CircuitType   string `json:"circuit_type,omitempty"`
	TxHash        string `json:"tx_hash,omitempty"`
}

func (s *Server) handleNullifier(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	n, err := s.store.GetNullifier(hash)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if n == nil {
		writeJSON(w, http.StatusOK, nullifierResponse{NullifierHash: hash, Spent: false})
		return
	}
	writeJSON(w, http.StatusOK, nullifierResponse{
		NullifierHash: n.Hash,
		Spent:         true,
		CircuitType:   string(n.CircuitType),
		TxHash:        n.TxHash,
	})
}

type syncCommitmentsRequest struct {
	Commitments []string `json:"commitments"`
}

type syncedCommitmentResult struct {
	Commitment string  `json:"commitment"`
	LeafIndex  *uint32 `json:"leaf_index,omitempty"`
}

type syncCommitmentsResponse struct {
	Commitments []syncedCommitmentResult `json:"commitments"`
}

// handleSyncCommitments lets a client resolve the leaf indices of
// commitments it already holds the secrets for, after EventSyncer has
// mirrored them in from a peer ASP's on-chain activity.
func (s *Server) handleSyncCommitments(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[syncCommitmentsRequest](r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	results := make([]syncedCommitmentResult, len(req.Commitments))
	for i, c := range req.Commitments {
		result := syncedCommitmentResult{Commitment: c}
		if idx, found, err := s.store.FindCommitmentLeafIndex(c); err != nil {
			writeError(w, s.log, err)
			return
		} else if found {
			result.LeafIndex = &idx
		}
		results[i] = result
	}
	writeJSON(w, http.StatusOK, syncCommitmentsResponse{Commitments: results})
}

type statusTree struct {
	LeafCount uint32 `json:"leaf_count"`
	Root      string `json:"root,omitempty"`
}

type statusSync struct {
	LastSyncedBlock string `json:"last_synced_block,omitempty"`
}

type statusContracts struct {
	Coordinator string `json:"coordinator"`
	Pool        string `json:"pool"`
}

type statusResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`

	Tree      statusTree      `json:"tree"`
	Sync      statusSync      `json:"sync"`
	Contracts statusContracts `json:"contracts"`

	// Ambient addition: per-subsystem health detail, beyond the single
	// boolean the distilled spec names.
	OverallStatus string                       `json:"overall_status,omitempty"`
	Subsystems    []*lifecycle.SubsystemHealth `json:"subsystems,omitempty"`
	CheckedAt     int64                        `json:"checked_at,omitempty"`
	UptimeSeconds int64                        `json:"uptime_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := s.health.CheckAll()
	root, _ := s.tree.Root()
	lastBlock, _ := s.store.GetSyncState("last_block")

	writeJSON(w, http.StatusOK, statusResponse{
		Healthy: report.OverallStatus == lifecycle.StatusHealthy,
		Version: s.version,
		Tree: statusTree{
			LeafCount: s.tree.LeafCount(),
			Root:      root,
		},
		Sync: statusSync{
			LastSyncedBlock: lastBlock,
		},
		Contracts: statusContracts{
			Coordinator: s.contracts.Coordinator,
			Pool:        s.contracts.Pool,
		},
		OverallStatus: report.OverallStatus,
		Subsystems:    report.Subsystems,
		CheckedAt:     report.CheckedAt,
		UptimeSeconds: report.Uptime,
	})
}
