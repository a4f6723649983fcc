package bot

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestMemoryStoreApply(t *testing.T) {
	s := NewMemoryStore()
	signer := common.HexToAddress("0x1111111111111111111111111111111111111111")

	b := NewBatch()
	b.Put[0] = validOrder()
	b.SetSeq(1)
	b.Nonces[signer] = 1
	if err := s.Apply(b); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	o, ok, err := s.Order(0)
	if err != nil || !ok {
		t.Fatalf("Order: ok=%v err=%v", ok, err)
	}
	if o.Owner != testOwner {
		t.Errorf("Owner = %s", o.Owner.Hex())
	}
	if seq, _ := s.Seq(); seq != 1 {
		t.Errorf("Seq = %d, want 1", seq)
	}
	if n, _ := s.Nonce(signer); n != 1 {
		t.Errorf("Nonce = %d, want 1", n)
	}

	b2 := NewBatch()
	b2.Delete = append(b2.Delete, 0)
	if err := s.Apply(b2); err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	if _, ok, _ := s.Order(0); ok {
		t.Error("deleted order still present")
	}
	// Sequence is never reused after deletion.
	if seq, _ := s.Seq(); seq != 1 {
		t.Errorf("Seq after delete = %d, want 1", seq)
	}
}

func TestMemoryStoreClonesRecords(t *testing.T) {
	s := NewMemoryStore()

	in := validOrder()
	b := NewBatch()
	b.Put[7] = in
	if err := s.Apply(b); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Mutating the submitted record must not reach the store.
	in.Budget.SetInt64(999_999)

	out, _, _ := s.Order(7)
	if out.Budget.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("stored Budget = %s, want 250", out.Budget)
	}

	// Mutating a read copy must not reach the store either.
	out.TotalSpent.SetInt64(42)
	again, _, _ := s.Order(7)
	if again.TotalSpent.Sign() != 0 {
		t.Fatalf("read copy mutated stored TotalSpent: %s", again.TotalSpent)
	}
}

func TestMemoryStoreOrdersSkipsDeadRecords(t *testing.T) {
	s := NewMemoryStore()

	live := validOrder()
	dead := validOrder()
	dead.Account = common.Address{}

	b := NewBatch()
	b.Put[1] = live
	b.Put[2] = dead
	if err := s.Apply(b); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	orders, err := s.Orders()
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("len(orders) = %d, want 1", len(orders))
	}
	if _, ok := orders[1]; !ok {
		t.Error("live order missing")
	}
}
