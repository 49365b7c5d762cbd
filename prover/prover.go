// Package prover drives a long-lived subprocess over newline-delimited
// JSON on stdin/stdout: commitment hashing, tree maintenance, and SNARK
// proof generation all live in the external worker, not in this process.
// Request IDs are github.com/google/uuid values, matching the wire
// contract's "id: uuid" field. Framing uses bufio.Scanner/encoding/json
// directly since the protocol itself is a handful of lines (see
// DESIGN.md). Process supervision uses os/exec.
package prover

import (
	"bufio"
	"encoding/json"
	"io"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/zylith-labs/asp/apperr"
	applog "github.com/zylith-labs/asp/log"
)

type request struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Params  any    `json:"params"`
}

type response struct {
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Worker is a handle to the long-lived prover subprocess. Only one command
// may be in flight at a time; mu is held for the duration of each
// round trip.
type Worker struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Scanner
	log    *applog.Logger
}

// Spawn starts the worker process at workerPath ("node <workerPath>") and
// blocks until it emits its {"ready": true} startup line.
func Spawn(workerPath string) (*Worker, error) {
	cmd := exec.Command("node", workerPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindWorkerUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindWorkerUnavailable, err)
	}
	cmd.Stderr = workerStderr{log: applog.Module("prover")}

	if err := cmd.Start(); err != nil {
		return nil, apperr.Wrap(apperr.KindWorkerUnavailable, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	w := &Worker{
		cmd:    cmd,
		stdin:  stdin,
		reader: scanner,
		log:    applog.Module("prover"),
	}

	if !scanner.Scan() {
		return nil, apperr.New(apperr.KindWorkerUnavailable, "worker exited before ready handshake")
	}
	var ready struct {
		Ready bool `json:"ready"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &ready); err != nil || !ready.Ready {
		return nil, apperr.New(apperr.KindWorkerUnavailable, "worker did not send a ready handshake")
	}
	return w, nil
}

type workerStderr struct {
	log *applog.Logger
}

func (w workerStderr) Write(p []byte) (int, error) {
	w.log.Warn("worker stderr", "line", string(p))
	return len(p), nil
}

// Stop terminates the worker subprocess.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminate()
}

// terminate closes stdin and waits for the subprocess to exit. Caller
// must hold w.mu.
func (w *Worker) terminate() error {
	w.stdin.Close()
	return w.cmd.Wait()
}

// Ping checks the worker is alive and responsive.
func (w *Worker) Ping() error {
	_, err := w.call("ping", nil)
	return err
}

// call sends one request and waits for its matching response, holding the
// exclusive worker lock for the full round trip.
func (w *Worker) call(command string, params any) (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := uuid.NewString()
	req := request{ID: id, Command: command, Params: params}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	line = append(line, '\n')

	if _, err := w.stdin.Write(line); err != nil {
		return nil, apperr.Wrap(apperr.KindWorkerUnavailable, err)
	}

	if !w.reader.Scan() {
		if err := w.reader.Err(); err != nil {
			return nil, apperr.Wrap(apperr.KindWorkerUnavailable, err)
		}
		return nil, apperr.New(apperr.KindWorkerUnavailable, "worker closed the connection")
	}

	var resp response
	if err := json.Unmarshal(w.reader.Bytes(), &resp); err != nil {
		return nil, apperr.Newf(apperr.KindWorkerUnavailable, "malformed worker response: %v", err)
	}
	if resp.ID != id {
		// A response for the wrong request means the protocol is no longer
		// trustworthy — the worker might be answering a stale or duplicated
		// request. Kill it rather than keep talking to it.
		if err := w.terminate(); err != nil {
			w.log.Warn("worker termination after id mismatch returned an error", "error", err)
		}
		return nil, apperr.New(apperr.KindInternal, "worker response id mismatch")
	}
	if !resp.OK {
		return nil, apperr.Newf(apperr.KindProverError, "worker rejected command %s: %s", command, resp.Error)
	}
	return resp.Data, nil
}

func decode[T any](data json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, apperr.Newf(apperr.KindProverError, "malformed worker payload: %v", err)
	}
	return out, nil
}

// BuildTree resets the in-worker tree to the given ordered leaves.
func (w *Worker) BuildTree(leaves []string) (string, error) {
	data, err := w.call("build_tree", map[string]any{"leaves": leaves})
	if err != nil {
		return "", err
	}
	out, err := decode[struct {
		Root string `json:"root"`
	}](data)
	return out.Root, err
}

// InsertLeaf appends leaf and returns the worker's new root.
func (w *Worker) InsertLeaf(leaf string) (string, error) {
	data, err := w.call("insert_leaf", map[string]any{"leaf": leaf})
	if err != nil {
		return "", err
	}
	out, err := decode[struct {
		Root string `json:"root"`
	}](data)
	return out.Root, err
}

// GetRoot returns the worker's current root.
func (w *Worker) GetRoot() (string, error) {
	data, err := w.call("get_root", nil)
	if err != nil {
		return "", err
	}
	out, err := decode[struct {
		Root string `json:"root"`
	}](data)
	return out.Root, err
}

// MerkleProof is the membership path returned by get_proof.
type MerkleProof struct {
	PathElements []string `json:"pathElements"`
	PathIndices  []uint32 `json:"pathIndices"`
	Root         string   `json:"root"`
}

// GetProof returns an inclusion proof for the given leaf index.
func (w *Worker) GetProof(leafIndex uint32) (MerkleProof, error) {
	data, err := w.call("get_proof", map[string]any{"leafIndex": leafIndex})
	if err != nil {
		return MerkleProof{}, err
	}
	return decode[MerkleProof](data)
}

// CommitmentResult is the pair a commitment computation returns.
type CommitmentResult struct {
	Commitment    string `json:"commitment"`
	NullifierHash string `json:"nullifierHash"`
}

// ComputeCommitment derives a balance note's commitment and nullifier hash.
func (w *Worker) ComputeCommitment(secret, nullifier, amountLow, amountHigh, token string) (CommitmentResult, error) {
	data, err := w.call("compute_commitment", map[string]any{
		"secret":      secret,
		"nullifier":   nullifier,
		"amount_low":  amountLow,
		"amount_high": amountHigh,
		"token":       token,
	})
	if err != nil {
		return CommitmentResult{}, err
	}
	return decode[CommitmentResult](data)
}

// ComputePositionCommitment derives a position note's commitment and
// nullifier hash. tickLower/tickUpper are the unsigned (offset) ticks.
func (w *Worker) ComputePositionCommitment(secret, nullifier string, tickLower, tickUpper uint32, liquidity string) (CommitmentResult, error) {
	data, err := w.call("compute_position_commitment", map[string]any{
		"secret":    secret,
		"nullifier": nullifier,
		"tickLower": tickLower,
		"tickUpper": tickUpper,
		"liquidity": liquidity,
	})
	if err != nil {
		return CommitmentResult{}, err
	}
	return decode[CommitmentResult](data)
}

// ProofResult is the calldata and public signals generate_proof returns.
type ProofResult struct {
	Calldata      []string `json:"calldata"`
	PublicSignals []string `json:"publicSignals"`
}

// GenerateProof runs the named circuit ("membership", "swap", "mint",
// "burn") over the given inputs.
func (w *Worker) GenerateProof(circuit string, inputs any) (ProofResult, error) {
	data, err := w.call("generate_proof", map[string]any{
		"circuit": circuit,
		"inputs":  inputs,
	})
	if err != nil {
		return ProofResult{}, err
	}
	return decode[ProofResult](data)
}

