package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// AddressFromUncompressedPub derives the EIP-55 checksummed address string
// from a 65-byte uncompressed secp256k1 public key (0x04 || X || Y).
func AddressFromUncompressedPub(pub []byte) string {
	if len(pub) != 65 || pub[0] != 0x04 {
		return ""
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:])
	sum := h.Sum(nil)
	return EIP55(sum[12:])
}

// EIP55 computes the checksummed hex address string from a 20-byte raw
// address per EIP-55: a hex letter is uppercased when the corresponding
// nibble of keccak256(lowercase hex) is >= 8.
func EIP55(addr20 []byte) string {
	hexaddr := hex.EncodeToString(addr20)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)

	out := make([]byte, 2+len(hexaddr))
	copy(out, "0x")
	for i, c := range []byte(hexaddr) {
		if c >= 'a' && c <= 'f' {
			nibble := hash[i/2] & 0x0f
			if i%2 == 0 {
				nibble = hash[i/2] >> 4
			}
			if nibble >= 8 {
				c = c - 'a' + 'A'
			}
		}
		out[2+i] = c
	}
	return string(out)
}
