// Package bot implements the recurring purchase engine: a store of
// budget-capped orders, replay-safe owner authorization, and the
// validation-and-execution state machine that turns a stored order into a
// single bounded swap against the owner's credit account.
package bot

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrCallerNotBorrower: the caller (or recovered signer) is not the
	// principal controlling the order or its credit account.
	ErrCallerNotBorrower = errors.New("bot: caller is not the borrower")
	// ErrIncorrectSignatureNonce: the declared nonce does not match the
	// signer's current counter.
	ErrIncorrectSignatureNonce = errors.New("bot: incorrect signature nonce")
	// ErrInvalidOrder: malformed order parameters at submission.
	ErrInvalidOrder = errors.New("bot: invalid order")
	// ErrOrderIsCancelled: the order does not exist or has reached a
	// terminal state.
	ErrOrderIsCancelled = errors.New("bot: order is cancelled")
	// ErrBorrowerChanged: control of the credit account moved to another
	// principal since the order was submitted.
	ErrBorrowerChanged = errors.New("bot: credit account borrower changed")
	// ErrExpired: the order deadline has passed.
	ErrExpired = errors.New("bot: order expired")
	// ErrIntervalNotPassed: the minimum interval since the last purchase
	// has not yet elapsed.
	ErrIntervalNotPassed = errors.New("bot: interval not passed")
	// ErrPriceSwingTooLarge: price moved beyond the acceptable band since
	// the last snapshot; the owner must reset the order to re-arm it.
	ErrPriceSwingTooLarge = errors.New("bot: price swing too large")
	// ErrUnknownManager: the order references a credit manager the engine
	// is not wired to.
	ErrUnknownManager = errors.New("bot: unknown credit manager")
)

// Order is a recurring, budget-capped purchase authorization tied to one
// credit account and one output asset. Amounts are in the token's smallest
// unit; times are unix seconds.
type Order struct {
	Owner             common.Address `json:"owner"`
	Manager           common.Address `json:"manager"`  // credit manager governing the account
	Account           common.Address `json:"account"`  // credit account the order acts on
	TokenOut          common.Address `json:"tokenOut"` // asset being accumulated
	Budget            *big.Int       `json:"budget"`   // lifetime spend cap in the quote asset, 0 = unlimited
	Interval          uint64         `json:"interval"` // minimum seconds between executions
	AmountPerInterval *big.Int       `json:"amountPerInterval"`
	TotalSpent        *big.Int       `json:"totalSpent"`
	LastPrice         *big.Int       `json:"lastPrice"` // circuit-breaker baseline, 0 = not armed
	LastPurchaseTime  uint64         `json:"lastPurchaseTime"`
	Deadline          uint64         `json:"deadline"` // 0 = no deadline
}

// Live reports whether the record represents an existing order. A cleared
// account reference marks the cancelled/completed sentinel even when other
// fields survive in storage.
func (o *Order) Live() bool {
	return o != nil && o.Account != (common.Address{})
}

// Clone returns a deep copy so staged mutations never leak into the store
// before commit.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Budget = cloneBig(o.Budget)
	cp.AmountPerInterval = cloneBig(o.AmountPerInterval)
	cp.TotalSpent = cloneBig(o.TotalSpent)
	cp.LastPrice = cloneBig(o.LastPrice)
	return &cp
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
