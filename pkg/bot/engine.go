package bot

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	gbcrypto "github.com/drinkius/gearbot/pkg/crypto"
	"github.com/drinkius/gearbot/pkg/gear"
)

// maxPriceSwingPct is the circuit-breaker band: an absolute price move above
// this percentage relative to the order's last snapshot blocks execution
// until the owner resets the order.
const maxPriceSwingPct = 10

// Config carries the per-deployment parameters of the engine.
type Config struct {
	// QuoteToken is the asset every order spends; budgets and per-interval
	// amounts are denominated in it.
	QuoteToken    common.Address
	QuoteDecimals uint8
	// FeeTier is the venue pool fee applied to every swap instruction.
	FeeTier uint32
	// SwapDeadline is the slack added to the current time for the venue's
	// absolute deadline.
	SwapDeadline time.Duration
	// Domain binds signed authorizations to this deployment.
	Domain gbcrypto.EIP712Domain
}

// Engine validates and executes recurring purchase orders. Every public
// operation runs under a single mutex and commits its mutations in one store
// batch after all checks and the venue call succeed, so a failure at any
// step leaves the store, including nonce counters, untouched.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	store    Store
	signer   *gbcrypto.EIP712Signer
	managers map[common.Address]gear.CreditManager
	emitter  Emitter
	log      *zap.SugaredLogger
	nowFn    func() uint64
}

// NewEngine constructs an engine with an in-memory store and no-op emitter.
// Callers wire the durable store, emitter, and credit managers afterwards.
func NewEngine(cfg Config) *Engine {
	if cfg.QuoteDecimals == 0 {
		cfg.QuoteDecimals = 6
	}
	if cfg.SwapDeadline == 0 {
		cfg.SwapDeadline = 5 * time.Minute
	}
	return &Engine{
		cfg:      cfg,
		store:    NewMemoryStore(),
		signer:   gbcrypto.NewEIP712Signer(cfg.Domain),
		managers: make(map[common.Address]gear.CreditManager),
		emitter:  NoopEmitter{},
		log:      zap.NewNop().Sugar(),
		nowFn:    func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetStore wires the engine to its durable state backend.
func (e *Engine) SetStore(s Store) {
	if s != nil {
		e.store = s
	}
}

// SetEmitter configures the lifecycle notification sink. Passing nil resets
// it to a no-op.
func (e *Engine) SetEmitter(em Emitter) {
	if em == nil {
		e.emitter = NoopEmitter{}
		return
	}
	e.emitter = em
}

// SetLogger configures structured logging.
func (e *Engine) SetLogger(log *zap.SugaredLogger) {
	if log != nil {
		e.log = log
	}
}

// SetNowFunc overrides the time source. Intended for tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// RegisterManager wires a credit manager the engine may act against.
func (e *Engine) RegisterManager(addr common.Address, mgr gear.CreditManager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.managers[addr] = mgr
}

func (e *Engine) manager(addr common.Address) (gear.CreditManager, error) {
	mgr, ok := e.managers[addr]
	if !ok {
		return nil, ErrUnknownManager
	}
	return mgr, nil
}

// DomainSeparator returns the deployment's EIP-712 domain separator.
func (e *Engine) DomainSeparator() ([]byte, error) {
	return e.signer.DomainSeparator()
}

// Nonce returns the signer's current counter.
func (e *Engine) Nonce(signer common.Address) (uint64, error) {
	return e.store.Nonce(signer)
}

// Order returns a copy of the stored record, or ErrOrderIsCancelled when no
// live record exists.
func (e *Engine) Order(id uint64) (*Order, error) {
	o, ok, err := e.store.Order(id)
	if err != nil {
		return nil, err
	}
	if !ok || !o.Live() {
		return nil, ErrOrderIsCancelled
	}
	return o, nil
}

// Orders returns all live orders keyed by id.
func (e *Engine) Orders() (map[uint64]*Order, error) {
	return e.store.Orders()
}

// SubmitOrder creates an order on behalf of a directly identified caller.
// The caller must be the declared owner and the credit manager must confirm
// that the owner currently controls the account.
func (e *Engine) SubmitOrder(caller common.Address, o *Order) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if o == nil {
		return 0, ErrInvalidOrder
	}
	mgr, err := e.manager(o.Manager)
	if err != nil {
		return 0, err
	}
	if caller != o.Owner {
		return 0, ErrCallerNotBorrower
	}
	borrower, err := mgr.Borrower(o.Account)
	if err != nil {
		return 0, fmt.Errorf("resolve borrower: %w", err)
	}
	if borrower != o.Owner {
		return 0, ErrCallerNotBorrower
	}
	return e.submitLocked(mgr, o, nil)
}

// SubmitOrderWithSignature creates an order authorized by an offline EIP-712
// signature over the order fields and the declared nonce. The nonce must
// equal the signer's current counter and is consumed atomically with the
// submission.
func (e *Engine) SubmitOrderWithSignature(o *Order, nonce uint64, signature []byte) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if o == nil {
		return 0, ErrInvalidOrder
	}
	mgr, err := e.manager(o.Manager)
	if err != nil {
		return 0, err
	}
	signer, err := e.signer.RecoverOrderSigner(orderMessage(o, nonce), signature)
	if err != nil {
		return 0, fmt.Errorf("recover order signer: %w", err)
	}
	if signer != o.Owner {
		return 0, ErrCallerNotBorrower
	}
	current, err := e.store.Nonce(o.Owner)
	if err != nil {
		return 0, err
	}
	if nonce != current {
		return 0, ErrIncorrectSignatureNonce
	}
	consume := nonceBump{signer: o.Owner, next: current + 1}
	return e.submitLocked(mgr, o, &consume)
}

type nonceBump struct {
	signer common.Address
	next   uint64
}

// submitLocked validates order parameters, captures the price baseline, and
// commits the new record together with any consumed nonce.
func (e *Engine) submitLocked(mgr gear.CreditManager, o *Order, consume *nonceBump) (uint64, error) {
	switch {
	case o.TokenOut == e.cfg.QuoteToken,
		o.AmountPerInterval == nil || o.AmountPerInterval.Sign() <= 0,
		o.Interval == 0,
		o.TotalSpent != nil && o.TotalSpent.Sign() != 0:
		return 0, ErrInvalidOrder
	}

	oracle, err := mgr.PriceOracle(o.Account)
	if err != nil {
		return 0, fmt.Errorf("resolve oracle: %w", err)
	}
	price, err := currentPrice(oracle, e.cfg.QuoteToken, o.TokenOut, e.cfg.QuoteDecimals)
	if err != nil {
		return 0, err
	}

	id, err := e.store.Seq()
	if err != nil {
		return 0, err
	}

	rec := o.Clone()
	rec.TotalSpent = big.NewInt(0)
	rec.LastPurchaseTime = 0
	rec.LastPrice = price

	batch := NewBatch()
	batch.Put[id] = rec
	batch.SetSeq(id + 1)
	if consume != nil {
		batch.Nonces[consume.signer] = consume.next
	}
	if err := e.store.Apply(batch); err != nil {
		return 0, err
	}

	e.log.Infow("order_submitted", "orderId", id, "owner", rec.Owner.Hex(),
		"account", rec.Account.Hex(), "tokenOut", rec.TokenOut.Hex(),
		"budget", rec.Budget.String(), "lastPrice", price.String())
	e.emitter.Emit(newOrderCreatedEvent(rec.Owner, id))
	return id, nil
}

// CancelOrder cancels an order on behalf of a directly identified caller.
func (e *Engine) CancelOrder(caller common.Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.loadLocked(id)
	if err != nil {
		return err
	}
	if caller != o.Owner {
		return ErrCallerNotBorrower
	}
	mgr, err := e.manager(o.Manager)
	if err != nil {
		return err
	}
	borrower, err := mgr.Borrower(o.Account)
	if err != nil {
		return fmt.Errorf("resolve borrower: %w", err)
	}
	if borrower != o.Owner {
		return ErrCallerNotBorrower
	}
	return e.cancelLocked(o, id, nil)
}

// CancelOrderWithSignature cancels an order authorized by an offline EIP-712
// signature over the order id and the declared nonce.
func (e *Engine) CancelOrderWithSignature(id uint64, nonce uint64, signature []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.loadLocked(id)
	if err != nil {
		return err
	}
	msg := &gbcrypto.CancelMessage{
		OrderID: new(big.Int).SetUint64(id),
		Nonce:   new(big.Int).SetUint64(nonce),
	}
	signer, err := e.signer.RecoverCancelSigner(msg, signature)
	if err != nil {
		return fmt.Errorf("recover cancel signer: %w", err)
	}
	if signer != o.Owner {
		return ErrCallerNotBorrower
	}
	current, err := e.store.Nonce(o.Owner)
	if err != nil {
		return err
	}
	if nonce != current {
		return ErrIncorrectSignatureNonce
	}
	return e.cancelLocked(o, id, &nonceBump{signer: o.Owner, next: current + 1})
}

func (e *Engine) cancelLocked(o *Order, id uint64, consume *nonceBump) error {
	batch := NewBatch()
	batch.Delete = append(batch.Delete, id)
	if consume != nil {
		batch.Nonces[consume.signer] = consume.next
	}
	if err := e.store.Apply(batch); err != nil {
		return err
	}
	e.log.Infow("order_cancelled", "orderId", id, "owner", o.Owner.Hex())
	e.emitter.Emit(newOrderCancelledEvent(o.Owner, id))
	return nil
}

// ExecutionResult reports the outcome of one purchase.
type ExecutionResult struct {
	OrderID      uint64   `json:"orderId"`
	Spent        *big.Int `json:"spent"`
	MinAmountOut *big.Int `json:"minAmountOut"`
	Received     *big.Int `json:"received"`
	Price        *big.Int `json:"price"`
	Completed    bool     `json:"completed"`
}

// ExecuteOrder runs one purchase for the order. Any executor may call it;
// the validation sequence gates existence, borrower consistency, deadline,
// interval, the price-swing circuit breaker, and the budget clamp before the
// venue is invoked.
func (e *Engine) ExecuteOrder(executor common.Address, id uint64) (*ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.loadLocked(id)
	if err != nil {
		return nil, err
	}
	mgr, err := e.manager(o.Manager)
	if err != nil {
		return nil, err
	}

	// Control of the account can change out-of-band between submission and
	// execution; a stale order must never act against a new owner's assets.
	borrower, err := mgr.Borrower(o.Account)
	if err != nil {
		return nil, fmt.Errorf("resolve borrower: %w", err)
	}
	if borrower != o.Owner {
		return nil, ErrBorrowerChanged
	}

	now := e.nowFn()
	if o.Deadline > 0 && now > o.Deadline {
		return nil, ErrExpired
	}
	if o.LastPurchaseTime > 0 && now < o.LastPurchaseTime+o.Interval {
		return nil, ErrIntervalNotPassed
	}

	oracle, err := mgr.PriceOracle(o.Account)
	if err != nil {
		return nil, fmt.Errorf("resolve oracle: %w", err)
	}
	price, err := currentPrice(oracle, e.cfg.QuoteToken, o.TokenOut, e.cfg.QuoteDecimals)
	if err != nil {
		return nil, err
	}
	// A zero baseline means the breaker is not yet armed.
	if o.LastPrice != nil && o.LastPrice.Sign() > 0 {
		if priceSwingPct(price, o.LastPrice).Cmp(big.NewInt(maxPriceSwingPct)) > 0 {
			return nil, ErrPriceSwingTooLarge
		}
	}

	spend := cloneBig(o.AmountPerInterval)
	if o.Budget != nil && o.Budget.Sign() > 0 {
		remaining := new(big.Int).Sub(o.Budget, o.TotalSpent)
		if spend.Cmp(remaining) > 0 {
			spend = remaining
		}
	}
	minOut := minAmountOut(spend, price, e.cfg.QuoteDecimals)

	facade, err := mgr.Facade(o.Account)
	if err != nil {
		return nil, fmt.Errorf("resolve facade: %w", err)
	}
	received, err := facade.ExecuteSwap(o.Account, gear.SwapCall{
		TokenIn:      e.cfg.QuoteToken,
		TokenOut:     o.TokenOut,
		FeeTier:      e.cfg.FeeTier,
		Recipient:    o.Account,
		Deadline:     now + uint64(e.cfg.SwapDeadline.Seconds()),
		AmountIn:     cloneBig(spend),
		MinAmountOut: cloneBig(minOut),
	})
	if err != nil {
		return nil, fmt.Errorf("execute swap: %w", err)
	}
	if received == nil {
		received = cloneBig(minOut)
	}

	rec := o.Clone()
	rec.LastPurchaseTime = now
	rec.TotalSpent = new(big.Int).Add(rec.TotalSpent, spend)
	rec.LastPrice = cloneBig(price)

	completed := rec.Budget != nil && rec.Budget.Sign() > 0 && rec.TotalSpent.Cmp(rec.Budget) >= 0

	batch := NewBatch()
	if completed {
		batch.Delete = append(batch.Delete, id)
	} else {
		batch.Put[id] = rec
	}
	if err := e.store.Apply(batch); err != nil {
		return nil, err
	}

	e.log.Infow("purchase_completed", "orderId", id, "executor", executor.Hex(),
		"spent", spend.String(), "received", received.String(), "price", price.String())
	e.emitter.Emit(newPurchaseCompletedEvent(executor, id, received))
	if completed {
		e.log.Infow("order_completed", "orderId", id, "totalSpent", rec.TotalSpent.String())
		e.emitter.Emit(newOrderCompletedEvent(executor, id, received, rec.TotalSpent))
	}

	return &ExecutionResult{
		OrderID:      id,
		Spent:        spend,
		MinAmountOut: minOut,
		Received:     received,
		Price:        price,
		Completed:    completed,
	}, nil
}

// ResetOrder recomputes the order's price baseline from the current oracle
// reading, re-arming the circuit breaker. Owner-only; there is no signed
// path for reset.
func (e *Engine) ResetOrder(caller common.Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.loadLocked(id)
	if err != nil {
		return err
	}
	if caller != o.Owner {
		return ErrCallerNotBorrower
	}
	mgr, err := e.manager(o.Manager)
	if err != nil {
		return err
	}
	oracle, err := mgr.PriceOracle(o.Account)
	if err != nil {
		return fmt.Errorf("resolve oracle: %w", err)
	}
	price, err := currentPrice(oracle, e.cfg.QuoteToken, o.TokenOut, e.cfg.QuoteDecimals)
	if err != nil {
		return err
	}

	rec := o.Clone()
	rec.LastPrice = price

	batch := NewBatch()
	batch.Put[id] = rec
	if err := e.store.Apply(batch); err != nil {
		return err
	}
	e.log.Infow("order_reset", "orderId", id, "owner", o.Owner.Hex(), "lastPrice", price.String())
	e.emitter.Emit(newOrderResetEvent(o.Owner, id))
	return nil
}

// CurrentPrice exposes the oracle reading used by the engine: one whole
// quote unit converted into tokenOut.
func (e *Engine) CurrentPrice(oracle gear.PriceOracle, tokenOut common.Address) (*big.Int, error) {
	return currentPrice(oracle, e.cfg.QuoteToken, tokenOut, e.cfg.QuoteDecimals)
}

// Price resolves the oracle configured for the account under the given
// manager and returns the current reading for tokenOut.
func (e *Engine) Price(manager, account, tokenOut common.Address) (*big.Int, error) {
	e.mu.Lock()
	mgr, err := e.manager(manager)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	oracle, err := mgr.PriceOracle(account)
	if err != nil {
		return nil, fmt.Errorf("resolve oracle: %w", err)
	}
	return currentPrice(oracle, e.cfg.QuoteToken, tokenOut, e.cfg.QuoteDecimals)
}

func (e *Engine) loadLocked(id uint64) (*Order, error) {
	o, ok, err := e.store.Order(id)
	if err != nil {
		return nil, err
	}
	if !ok || !o.Live() {
		return nil, ErrOrderIsCancelled
	}
	return o, nil
}

// orderMessage maps an order and its declared nonce onto the typed payload
// the authorization subsystem hashes.
func orderMessage(o *Order, nonce uint64) *gbcrypto.OrderMessage {
	return &gbcrypto.OrderMessage{
		Owner:             o.Owner,
		Manager:           o.Manager,
		Account:           o.Account,
		TokenOut:          o.TokenOut,
		Budget:            cloneBig(o.Budget),
		Interval:          new(big.Int).SetUint64(o.Interval),
		AmountPerInterval: cloneBig(o.AmountPerInterval),
		Deadline:          new(big.Int).SetUint64(o.Deadline),
		Nonce:             new(big.Int).SetUint64(nonce),
	}
}
