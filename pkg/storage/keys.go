package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema:
//
//	ord:<8-byte big-endian id> → Order (JSON)
//	non:<20-byte address>      → nonce counter (8-byte big-endian)
//	seq                        → next unissued order id (8-byte big-endian)

const (
	prefixOrder = "ord:"
	prefixNonce = "non:"
)

func orderKey(id uint64) []byte {
	k := make([]byte, len(prefixOrder)+8)
	copy(k, prefixOrder)
	binary.BigEndian.PutUint64(k[len(prefixOrder):], id)
	return k
}

func nonceKey(addr common.Address) []byte {
	return append([]byte(prefixNonce), addr.Bytes()...)
}

func seqKey() []byte { return []byte("seq") }

func encodeUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
