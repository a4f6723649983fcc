// Package gear defines the external collaborator contracts the purchase
// engine consumes: the credit manager registry that maps a credit account to
// its current borrower, the price oracle used for conversions, and the
// execution facade that runs a bounded swap with the account's own authority.
//
// The engine only depends on these interfaces; concrete adapters (on-chain
// bindings, RPC clients) live with the deployment that wires them in.
package gear

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownAccount is returned by a CreditManager when the queried
	// credit account is not registered with it.
	ErrUnknownAccount = errors.New("gear: unknown credit account")
)

// CreditManager is the custodian registry for a set of credit accounts.
// It resolves the current borrower of an account, the oracle configured for
// price conversions, and the execution entrypoint scoped to the account.
type CreditManager interface {
	// Borrower returns the principal currently controlling the account.
	// Fails with ErrUnknownAccount when the account is not known.
	Borrower(account common.Address) (common.Address, error)

	// PriceOracle returns the oracle configured for the account's manager.
	PriceOracle(account common.Address) (PriceOracle, error)

	// Facade returns the execution entrypoint for the account. Calls routed
	// through the facade run with the account's own authority.
	Facade(account common.Address) (ExecutionFacade, error)
}

// PriceOracle converts an amount of one asset into another at current market
// terms. Amounts are expressed in the from-asset's smallest unit.
type PriceOracle interface {
	Convert(amount *big.Int, from, to common.Address) (*big.Int, error)
}

// SwapCall describes a single bounded exact-input swap: spend AmountIn of
// TokenIn, receive at least MinAmountOut of TokenOut, delivered to Recipient
// before Deadline. PriceLimit of nil means no pool price override.
type SwapCall struct {
	TokenIn      common.Address
	TokenOut     common.Address
	FeeTier      uint32
	Recipient    common.Address
	Deadline     uint64
	AmountIn     *big.Int
	MinAmountOut *big.Int
	PriceLimit   *big.Int
}

// ExecutionFacade submits a swap instruction addressed to a credit account,
// scoped so it can only perform that one instruction. Returns the amount of
// TokenOut actually received.
type ExecutionFacade interface {
	ExecuteSwap(account common.Address, call SwapCall) (*big.Int, error)
}
