package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain binds signed messages to a specific deployment so a signature
// produced for one bot instance can never be replayed against another.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// OrderMessage is the typed payload an owner signs to authorize a recurring
// purchase order remotely. It carries every submittable order field plus the
// nonce the signature consumes.
type OrderMessage struct {
	Owner             common.Address
	Manager           common.Address // credit manager governing the account
	Account           common.Address // credit account the order acts on
	TokenOut          common.Address // asset being accumulated
	Budget            *big.Int       // lifetime spend cap in the quote asset, 0 = unlimited
	Interval          *big.Int       // seconds between executions
	AmountPerInterval *big.Int       // nominal spend per execution
	Deadline          *big.Int       // unix seconds, 0 = no deadline
	Nonce             *big.Int
}

// CancelMessage is the typed payload an owner signs to cancel an order
// remotely: the order id plus the consumed nonce.
type CancelMessage struct {
	OrderID *big.Int
	Nonce   *big.Int
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var orderType = []apitypes.Type{
	{Name: "owner", Type: "address"},
	{Name: "manager", Type: "address"},
	{Name: "account", Type: "address"},
	{Name: "tokenOut", Type: "address"},
	{Name: "budget", Type: "uint256"},
	{Name: "interval", Type: "uint256"},
	{Name: "amountPerInterval", Type: "uint256"},
	{Name: "deadline", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
}

var cancelType = []apitypes.Type{
	{Name: "orderId", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
}

// DefaultDomain is the devnet deployment domain. Production deployments build
// their own from configuration.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "GearBot",
		Version:           "1",
		ChainID:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000A1"),
	}
}

// EIP712Signer hashes and verifies the two message shapes the engine accepts.
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) typedDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

// DomainSeparator returns the 32-byte hash of the deployment domain.
func (e *EIP712Signer) DomainSeparator() ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:  apitypes.Types{"EIP712Domain": domainType},
		Domain: e.typedDomain(),
	}
	sep, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	return sep, nil
}

// HashOrder returns the digest an owner signs to submit the order.
func (e *EIP712Signer) HashOrder(msg *OrderMessage) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"Order":        orderType,
		},
		PrimaryType: "Order",
		Domain:      e.typedDomain(),
		Message: apitypes.TypedDataMessage{
			"owner":             msg.Owner.Hex(),
			"manager":           msg.Manager.Hex(),
			"account":           msg.Account.Hex(),
			"tokenOut":          msg.TokenOut.Hex(),
			"budget":            bigOrZero(msg.Budget).String(),
			"interval":          bigOrZero(msg.Interval).String(),
			"amountPerInterval": bigOrZero(msg.AmountPerInterval).String(),
			"deadline":          bigOrZero(msg.Deadline).String(),
			"nonce":             bigOrZero(msg.Nonce).String(),
		},
	}
	return e.digest(typedData)
}

// HashCancel returns the digest an owner signs to cancel the order.
func (e *EIP712Signer) HashCancel(msg *CancelMessage) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"CancelOrder":  cancelType,
		},
		PrimaryType: "CancelOrder",
		Domain:      e.typedDomain(),
		Message: apitypes.TypedDataMessage{
			"orderId": bigOrZero(msg.OrderID).String(),
			"nonce":   bigOrZero(msg.Nonce).String(),
		},
	}
	return e.digest(typedData)
}

// digest computes keccak256("\x19\x01" || domainSeparator || structHash).
func (e *EIP712Signer) digest(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}
	raw := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(structHash)))
	return crypto.Keccak256Hash(raw).Bytes(), nil
}

// SignOrder signs the order message with the given key.
func (e *EIP712Signer) SignOrder(signer *Signer, msg *OrderMessage) ([]byte, error) {
	hash, err := e.HashOrder(msg)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

// SignCancel signs the cancel message with the given key.
func (e *EIP712Signer) SignCancel(signer *Signer, msg *CancelMessage) ([]byte, error) {
	hash, err := e.HashCancel(msg)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

// RecoverOrderSigner recovers the address that signed the order message.
func (e *EIP712Signer) RecoverOrderSigner(msg *OrderMessage, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(msg)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, signature)
}

// RecoverCancelSigner recovers the address that signed the cancel message.
func (e *EIP712Signer) RecoverCancelSigner(msg *CancelMessage, signature []byte) (common.Address, error) {
	hash, err := e.HashCancel(msg)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, signature)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
