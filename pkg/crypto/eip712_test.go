package crypto

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "GearBot",
		Version:           "1",
		ChainID:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000A1"),
	}
}

func testOrderMessage(owner common.Address, nonce uint64) *OrderMessage {
	return &OrderMessage{
		Owner:             owner,
		Manager:           common.HexToAddress("0x00000000000000000000000000000000000000A1"),
		Account:           common.HexToAddress("0x00000000000000000000000000000000000000B1"),
		TokenOut:          common.HexToAddress("0x00000000000000000000000000000000000000E0"),
		Budget:            big.NewInt(1_000_000_000),
		Interval:          big.NewInt(86400),
		AmountPerInterval: big.NewInt(100_000_000),
		Deadline:          big.NewInt(0),
		Nonce:             new(big.Int).SetUint64(nonce),
	}
}

func TestOrderSignRecover(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := NewEIP712Signer(testDomain())
	msg := testOrderMessage(key.Address(), 0)

	sig, err := signer.SignOrder(key, msg)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	recovered, err := signer.RecoverOrderSigner(msg, sig)
	if err != nil {
		t.Fatalf("RecoverOrderSigner: %v", err)
	}
	if recovered != key.Address() {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), key.Address().Hex())
	}
}

func TestOrderDigestBindsNonce(t *testing.T) {
	signer := NewEIP712Signer(testDomain())
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")

	h0, err := signer.HashOrder(testOrderMessage(owner, 0))
	if err != nil {
		t.Fatalf("HashOrder: %v", err)
	}
	h1, err := signer.HashOrder(testOrderMessage(owner, 1))
	if err != nil {
		t.Fatalf("HashOrder: %v", err)
	}
	if bytes.Equal(h0, h1) {
		t.Fatal("digests for different nonces are identical")
	}
}

func TestOrderDigestBindsDomain(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := testOrderMessage(key.Address(), 0)

	sig, err := NewEIP712Signer(testDomain()).SignOrder(key, msg)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}

	// The same signature verified under a different chain id must not
	// resolve to the signer: replay across deployments is impossible.
	other := testDomain()
	other.ChainID = big.NewInt(5)
	recovered, err := NewEIP712Signer(other).RecoverOrderSigner(msg, sig)
	if err == nil && recovered == key.Address() {
		t.Fatal("signature replayed across domains")
	}
}

func TestCancelSignRecover(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := NewEIP712Signer(testDomain())
	msg := &CancelMessage{OrderID: big.NewInt(7), Nonce: big.NewInt(3)}

	sig, err := signer.SignCancel(key, msg)
	if err != nil {
		t.Fatalf("SignCancel: %v", err)
	}
	recovered, err := signer.RecoverCancelSigner(msg, sig)
	if err != nil {
		t.Fatalf("RecoverCancelSigner: %v", err)
	}
	if recovered != key.Address() {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), key.Address().Hex())
	}

	// Cancel and order digests never collide even over related fields.
	orderHash, err := signer.HashOrder(testOrderMessage(key.Address(), 3))
	if err != nil {
		t.Fatalf("HashOrder: %v", err)
	}
	cancelHash, err := signer.HashCancel(msg)
	if err != nil {
		t.Fatalf("HashCancel: %v", err)
	}
	if bytes.Equal(orderHash, cancelHash) {
		t.Fatal("order and cancel digests collide")
	}
}

func TestDomainSeparatorStable(t *testing.T) {
	signer := NewEIP712Signer(testDomain())
	a, err := signer.DomainSeparator()
	if err != nil {
		t.Fatalf("DomainSeparator: %v", err)
	}
	b, err := signer.DomainSeparator()
	if err != nil {
		t.Fatalf("DomainSeparator: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("domain separator not deterministic")
	}
	if len(a) != 32 {
		t.Fatalf("separator length = %d, want 32", len(a))
	}
}

func TestVerifySignature(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
	}
	sig, err := key.Sign(hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !VerifySignature(key.Address(), hash, sig) {
		t.Fatal("valid signature rejected")
	}
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	if VerifySignature(other, hash, sig) {
		t.Fatal("signature verified for wrong address")
	}

	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0xff
	if VerifySignature(key.Address(), hash, tampered) {
		t.Fatal("tampered signature verified")
	}
}

func TestKeyRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := FromPrivateKeyHex(key.PrivateKeyHex())
	if err != nil {
		t.Fatalf("FromPrivateKeyHex: %v", err)
	}
	if restored.Address() != key.Address() {
		t.Fatalf("restored address %s, want %s", restored.Address().Hex(), key.Address().Hex())
	}
}

func TestAddressFromUncompressedPub(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	got := AddressFromUncompressedPub(key.PublicKeyBytes())
	if got != key.Address().Hex() {
		t.Fatalf("checksummed address = %s, want %s", got, key.Address().Hex())
	}
	if AddressFromUncompressedPub([]byte{0x04, 0x01}) != "" {
		t.Fatal("malformed key accepted")
	}
}

func TestEIP55KnownVector(t *testing.T) {
	// Test vector from the EIP-55 reference.
	raw := common.HexToAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	want := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	if got := EIP55(raw.Bytes()); got != want {
		t.Fatalf("EIP55 = %s, want %s", got, want)
	}
}
