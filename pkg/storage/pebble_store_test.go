package storage

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/drinkius/gearbot/pkg/bot"
)

var (
	testOwner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAccount = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func openTestStore(t *testing.T) (*PebbleStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "orders")
	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func testRecord() *bot.Order {
	return &bot.Order{
		Owner:             testOwner,
		Manager:           common.HexToAddress("0x5555555555555555555555555555555555555555"),
		Account:           testAccount,
		TokenOut:          common.HexToAddress("0x7777777777777777777777777777777777777777"),
		Budget:            big.NewInt(250),
		Interval:          3600,
		AmountPerInterval: big.NewInt(100),
		TotalSpent:        big.NewInt(0),
		LastPrice:         big.NewInt(1000),
	}
}

func TestPebbleStoreRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	b := bot.NewBatch()
	b.Put[0] = testRecord()
	b.SetSeq(1)
	b.Nonces[testOwner] = 1
	if err := s.Apply(b); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	o, ok, err := s.Order(0)
	if err != nil || !ok {
		t.Fatalf("Order: ok=%v err=%v", ok, err)
	}
	if o.Owner != testOwner || o.Budget.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("record round trip mismatch: %+v", o)
	}
	if n, _ := s.Nonce(testOwner); n != 1 {
		t.Errorf("Nonce = %d, want 1", n)
	}
	if seq, _ := s.Seq(); seq != 1 {
		t.Errorf("Seq = %d, want 1", seq)
	}

	if _, ok, _ := s.Order(99); ok {
		t.Error("missing order reported present")
	}
}

func TestPebbleStoreDelete(t *testing.T) {
	s, _ := openTestStore(t)

	b := bot.NewBatch()
	b.Put[3] = testRecord()
	b.SetSeq(4)
	if err := s.Apply(b); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	del := bot.NewBatch()
	del.Delete = append(del.Delete, 3)
	if err := s.Apply(del); err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	if _, ok, _ := s.Order(3); ok {
		t.Error("deleted order still readable")
	}
	if seq, _ := s.Seq(); seq != 4 {
		t.Errorf("Seq after delete = %d, want 4 (ids never reused)", seq)
	}
}

func TestPebbleStoreOrdersListing(t *testing.T) {
	s, _ := openTestStore(t)

	live := testRecord()
	dead := testRecord()
	dead.Account = common.Address{}

	b := bot.NewBatch()
	b.Put[1] = live
	b.Put[2] = dead
	b.SetSeq(3)
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
		t.Error("live order missing from listing")
	}
}

func TestPebbleStoreSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "orders")
	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	b := bot.NewBatch()
	b.Put[0] = testRecord()
	b.SetSeq(1)
	b.Nonces[testOwner] = 2
	if err := s.Apply(b); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	if _, ok, _ := reopened.Order(0); !ok {
		t.Error("order lost across reopen")
	}
	if n, _ := reopened.Nonce(testOwner); n != 2 {
		t.Errorf("nonce lost across reopen: %d", n)
	}
	if seq, _ := reopened.Seq(); seq != 1 {
		t.Errorf("seq lost across reopen: %d", seq)
	}
}
