package prover

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
)

// fakeWorker exercises the request/response framing logic directly,
// without spawning a subprocess: it decodes a request line the same way
// the real worker would and hands back a canned response.
func fakeWorker(t *testing.T, line []byte, command string, data any) []byte {
	t.Helper()
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Command != command {
		t.Fatalf("want command %s, got %s", command, req.Command)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp := response{ID: req.ID, OK: true, Data: payload}
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return out
}

func TestRequestResponseFraming(t *testing.T) {
	req := request{ID: "abc-123", Command: "ping", Params: nil}
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	out := fakeWorker(t, line, "ping", map[string]bool{"pong": true})

	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		t.Fatal("expected one line")
	}

	var resp response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ID != "abc-123" || !resp.OK {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDecodeMerkleProof(t *testing.T) {
	raw := json.RawMessage(`{"pathElements":["1","2"],"pathIndices":[0,1],"root":"42"}`)
	proof, err := decode[MerkleProof](raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if proof.Root != "42" || len(proof.PathElements) != 2 || len(proof.PathIndices) != 2 {
		t.Fatalf("unexpected proof: %+v", proof)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	raw := json.RawMessage(`not json`)
	_, err := decode[MerkleProof](raw)
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
