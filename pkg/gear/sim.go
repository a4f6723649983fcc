package gear

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientOutput is returned by the simulated facade when a swap's
// quoted output falls below the caller's minimum.
var ErrInsufficientOutput = errors.New("gear: insufficient output amount")

type ratePair struct {
	from, to common.Address
}

// SimManager is an in-process rendition of the credit protocol, used by
// devnet runs and tests. Accounts map to borrowers, conversions come from a
// fixed-rate table, and swaps settle instantly at the quoted rate.
type SimManager struct {
	mu        sync.RWMutex
	borrowers map[common.Address]common.Address
	rates     map[ratePair]*big.Rat
}

func NewSimManager() *SimManager {
	return &SimManager{
		borrowers: make(map[common.Address]common.Address),
		rates:     make(map[ratePair]*big.Rat),
	}
}

// OpenAccount registers a credit account under a borrower. Re-opening an
// existing account reassigns the borrower, mirroring account transfer.
func (m *SimManager) OpenAccount(account, borrower common.Address) {
	m.mu.Lock()
	m.borrowers[account] = borrower
	m.mu.Unlock()
}

// CloseAccount removes the account from the registry.
func (m *SimManager) CloseAccount(account common.Address) {
	m.mu.Lock()
	delete(m.borrowers, account)
	m.mu.Unlock()
}

// SetRate fixes the conversion rate from one asset to another: amount*num/den
// smallest units of to per smallest unit of from. The reverse direction is
// not derived; set both if both are queried.
func (m *SimManager) SetRate(from, to common.Address, num, den *big.Int) {
	m.mu.Lock()
	m.rates[ratePair{from, to}] = new(big.Rat).SetFrac(new(big.Int).Set(num), new(big.Int).Set(den))
	m.mu.Unlock()
}

func (m *SimManager) Borrower(account common.Address) (common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.borrowers[account]
	if !ok {
		return common.Address{}, ErrUnknownAccount
	}
	return b, nil
}

func (m *SimManager) PriceOracle(account common.Address) (PriceOracle, error) {
	if _, err := m.Borrower(account); err != nil {
		return nil, err
	}
	return simOracle{m: m}, nil
}

func (m *SimManager) Facade(account common.Address) (ExecutionFacade, error) {
	if _, err := m.Borrower(account); err != nil {
		return nil, err
	}
	return simFacade{m: m}, nil
}

var _ CreditManager = (*SimManager)(nil)

type simOracle struct {
	m *SimManager
}

func (o simOracle) Convert(amount *big.Int, from, to common.Address) (*big.Int, error) {
	o.m.mu.RLock()
	rate, ok := o.m.rates[ratePair{from, to}]
	o.m.mu.RUnlock()
	if !ok {
		return nil, errors.New("gear: no rate configured for pair")
	}
	out := new(big.Rat).Mul(new(big.Rat).SetInt(amount), rate)
	// Truncate toward zero, matching integer token math.
	return new(big.Int).Quo(out.Num(), out.Denom()), nil
}

type simFacade struct {
	m *SimManager
}

// ExecuteSwap settles at the current table rate. The output lands with the
// account, so only the min-out bound can fail it.
func (f simFacade) ExecuteSwap(account common.Address, call SwapCall) (*big.Int, error) {
	if _, err := f.m.Borrower(account); err != nil {
		return nil, err
	}
	out, err := simOracle{m: f.m}.Convert(call.AmountIn, call.TokenIn, call.TokenOut)
	if err != nil {
		return nil, err
	}
	if call.MinAmountOut != nil && out.Cmp(call.MinAmountOut) < 0 {
		return nil, ErrInsufficientOutput
	}
	return out, nil
}
