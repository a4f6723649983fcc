package bot

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Batch stages every mutation of one engine operation: order writes and
// deletes, consumed nonces, and the advanced order id sequence. A store
// applies the whole batch in a single step so a failure at any earlier point
// leaves no trace.
type Batch struct {
	Seq    *uint64
	Put    map[uint64]*Order
	Delete []uint64
	Nonces map[common.Address]uint64
}

func NewBatch() *Batch {
	return &Batch{
		Put:    make(map[uint64]*Order),
		Nonces: make(map[common.Address]uint64),
	}
}

// SetSeq records the new value of the order id sequence.
func (b *Batch) SetSeq(next uint64) {
	b.Seq = &next
}

// Store is the sole durable state of the engine: the order mapping keyed by
// a never-reused integer id, per-signer nonce counters, and the id sequence.
type Store interface {
	// Order returns the stored record for id. The bool is false when no
	// record exists.
	Order(id uint64) (*Order, bool, error)
	// Orders returns all live order records keyed by id.
	Orders() (map[uint64]*Order, error)
	// Nonce returns the signer's current counter, zero if never used.
	Nonce(signer common.Address) (uint64, error)
	// Seq returns the next unissued order id.
	Seq() (uint64, error)
	// Apply commits the batch atomically.
	Apply(*Batch) error
}

// MemoryStore keeps all engine state in process memory. Records are cloned
// on the way in and out so callers can never mutate stored state directly.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[uint64]*Order
	nonces map[common.Address]uint64
	seq    uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[uint64]*Order),
		nonces: make(map[common.Address]uint64),
	}
}

func (s *MemoryStore) Order(id uint64) (*Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false, nil
	}
	return o.Clone(), true, nil
}

func (s *MemoryStore) Orders() (map[uint64]*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]*Order, len(s.orders))
	for id, o := range s.orders {
		if o.Live() {
			out[id] = o.Clone()
		}
	}
	return out, nil
}

func (s *MemoryStore) Nonce(signer common.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonces[signer], nil
}

func (s *MemoryStore) Seq() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, nil
}

func (s *MemoryStore) Apply(b *Batch) error {
	if b == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range b.Put {
		s.orders[id] = o.Clone()
	}
	for _, id := range b.Delete {
		delete(s.orders, id)
	}
	for signer, n := range b.Nonces {
		s.nonces[signer] = n
	}
	if b.Seq != nil {
		s.seq = *b.Seq
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
