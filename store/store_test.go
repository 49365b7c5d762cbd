package store

import (
	"path/filepath"
	"testing"

	"github.com/zylith-labs/asp/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGetCommitment(t *testing.T) {
	s := newTestStore(t)

	if err := s.InsertCommitment(0, "123456789", "0xdeadbeef", ""); err != nil {
		t.Fatalf("InsertCommitment: %v", err)
	}

	row, err := s.GetCommitment(0)
	if err != nil {
		t.Fatalf("GetCommitment: %v", err)
	}
	if row == nil {
		t.Fatal("expected row, got nil")
	}
	if row.Value != "123456789" || row.DepositTx != "0xdeadbeef" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestGetCommitmentMissing(t *testing.T) {
	s := newTestStore(t)
	row, err := s.GetCommitment(42)
	if err != nil {
		t.Fatalf("GetCommitment: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil, got %+v", row)
	}
}

func TestGetLeafCount(t *testing.T) {
	s := newTestStore(t)

	count, err := s.GetLeafCount()
	if err != nil {
		t.Fatalf("GetLeafCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("want 0, got %d", count)
	}

	s.InsertCommitment(0, "1", "", "")
	s.InsertCommitment(1, "2", "", "")

	count, err = s.GetLeafCount()
	if err != nil {
		t.Fatalf("GetLeafCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("want 2, got %d", count)
	}
}

func TestInsertCommitmentIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.InsertCommitment(0, "123", "", ""); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.InsertCommitment(0, "123", "", ""); err != nil {
		t.Fatalf("idempotent re-insert should be a no-op: %v", err)
	}

	count, _ := s.GetLeafCount()
	if count != 1 {
		t.Fatalf("want 1, got %d", count)
	}

	if err := s.InsertCommitment(0, "999", "", ""); err == nil {
		t.Fatal("expected conflict error for differing commitment at same leaf_index")
	}
}

func TestInsertAndGetRoot(t *testing.T) {
	s := newTestStore(t)

	if err := s.InsertRoot("root1", 1, "0xroot1"); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	root, err := s.GetLatestRoot()
	if err != nil {
		t.Fatalf("GetLatestRoot: %v", err)
	}
	if root == nil || *root != "root1" {
		t.Fatalf("want root1, got %v", root)
	}

	if err := s.InsertRoot("root2", 2, "0xroot2"); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	root, err = s.GetLatestRoot()
	if err != nil {
		t.Fatalf("GetLatestRoot: %v", err)
	}
	if root == nil || *root != "root2" {
		t.Fatalf("want root2, got %v", root)
	}
}

func TestGetLatestRootEmpty(t *testing.T) {
	s := newTestStore(t)
	root, err := s.GetLatestRoot()
	if err != nil {
		t.Fatalf("GetLatestRoot: %v", err)
	}
	if root != nil {
		t.Fatalf("want nil, got %v", root)
	}
}

func TestNullifierLifecycle(t *testing.T) {
	s := newTestStore(t)

	spent, err := s.IsNullifierSpent("abc")
	if err != nil {
		t.Fatalf("IsNullifierSpent: %v", err)
	}
	if spent {
		t.Fatal("expected unspent before insert")
	}

	if err := s.InsertNullifier("abc", model.CircuitMembership, "0xtx"); err != nil {
		t.Fatalf("InsertNullifier: %v", err)
	}

	spent, err = s.IsNullifierSpent("abc")
	if err != nil {
		t.Fatalf("IsNullifierSpent: %v", err)
	}
	if !spent {
		t.Fatal("expected spent after insert")
	}

	row, err := s.GetNullifier("abc")
	if err != nil {
		t.Fatalf("GetNullifier: %v", err)
	}
	if row == nil || row.CircuitType != model.CircuitMembership || row.TxHash != "0xtx" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestNullifierNotFound(t *testing.T) {
	s := newTestStore(t)
	row, err := s.GetNullifier("missing")
	if err != nil {
		t.Fatalf("GetNullifier: %v", err)
	}
	if row != nil {
		t.Fatalf("want nil, got %+v", row)
	}
}

func TestNullifierIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.InsertNullifier("abc", model.CircuitMembership, "0xtx1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.InsertNullifier("abc", model.CircuitSwap, "0xtx2"); err != nil {
		t.Fatalf("second insert should be a no-op: %v", err)
	}

	row, _ := s.GetNullifier("abc")
	if row.CircuitType != model.CircuitMembership || row.TxHash != "0xtx1" {
		t.Fatalf("first write should win: %+v", row)
	}
}

func TestSyncState(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetSyncState("last_block")
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}
	if v != "" {
		t.Fatalf("want empty, got %q", v)
	}

	if err := s.SetSyncState("last_block", "100"); err != nil {
		t.Fatalf("SetSyncState: %v", err)
	}
	v, err = s.GetSyncState("last_block")
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}
	if v != "100" {
		t.Fatalf("want 100, got %q", v)
	}

	if err := s.SetSyncState("last_block", "200"); err != nil {
		t.Fatalf("SetSyncState: %v", err)
	}
	v, _ = s.GetSyncState("last_block")
	if v != "200" {
		t.Fatalf("want 200, got %q", v)
	}
}

func TestIsHealthy(t *testing.T) {
	s := newTestStore(t)
	if !s.IsHealthy() {
		t.Fatal("expected healthy store")
	}
}

func TestGetAllCommitmentsOrdered(t *testing.T) {
	s := newTestStore(t)

	s.InsertCommitment(2, "c2", "", "")
	s.InsertCommitment(0, "c0", "", "")
	s.InsertCommitment(1, "c1", "", "")

	rows, err := s.GetAllCommitments()
	if err != nil {
		t.Fatalf("GetAllCommitments: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.LeafIndex != uint32(i) {
			t.Fatalf("want leaf_index %d at position %d, got %d", i, i, row.LeafIndex)
		}
	}
}

func TestFindCommitmentLeafIndex(t *testing.T) {
	s := newTestStore(t)
	s.InsertCommitment(5, "target", "", "")

	idx, found, err := s.FindCommitmentLeafIndex("target")
	if err != nil {
		t.Fatalf("FindCommitmentLeafIndex: %v", err)
	}
	if !found || idx != 5 {
		t.Fatalf("want found=true idx=5, got found=%v idx=%d", found, idx)
	}

	_, found, err = s.FindCommitmentLeafIndex("nonexistent")
	if err != nil {
		t.Fatalf("FindCommitmentLeafIndex: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}
