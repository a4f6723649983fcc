package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/drinkius/gearbot/pkg/bot"
)

// PebbleStore is the durable order store. A bot.Batch maps onto a single
// pebble batch committed with Sync, which gives the all-or-nothing boundary
// the engine relies on.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) Order(id uint64) (*bot.Order, bool, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get order: %w", err)
	}
	defer closer.Close()

	var o bot.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, false, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, true, nil
}

func (s *PebbleStore) Orders() (map[uint64]*bot.Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[uint64]*bot.Order)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefixOrder)+8 {
			continue
		}
		var o bot.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue
		}
		if !o.Live() {
			continue
		}
		id := binary.BigEndian.Uint64(key[len(prefixOrder):])
		out[id] = &o
	}
	return out, nil
}

func (s *PebbleStore) Nonce(signer common.Address) (uint64, error) {
	data, closer, err := s.db.Get(nonceKey(signer))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get nonce: %w", err)
	}
	defer closer.Close()
	return decodeUint64(data), nil
}

func (s *PebbleStore) Seq() (uint64, error) {
	data, closer, err := s.db.Get(seqKey())
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get seq: %w", err)
	}
	defer closer.Close()
	return decodeUint64(data), nil
}

func (s *PebbleStore) Apply(b *bot.Batch) error {
	if b == nil {
		return nil
	}
	wb := s.db.NewBatch()
	defer wb.Close()

	for id, o := range b.Put {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal order: %w", err)
		}
		if err := wb.Set(orderKey(id), data, nil); err != nil {
			return err
		}
	}
	for _, id := range b.Delete {
		if err := wb.Delete(orderKey(id), nil); err != nil {
			return err
		}
	}
	for signer, n := range b.Nonces {
		if err := wb.Set(nonceKey(signer), encodeUint64(n), nil); err != nil {
			return err
		}
	}
	if b.Seq != nil {
		if err := wb.Set(seqKey(), encodeUint64(*b.Seq), nil); err != nil {
			return err
		}
	}
	return wb.Commit(pebble.Sync)
}

var _ bot.Store = (*PebbleStore)(nil)
