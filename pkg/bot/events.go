package bot

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	EventTypeOrderCreated      = "order.created"
	EventTypeOrderCancelled    = "order.cancelled"
	EventTypeOrderReset        = "order.reset"
	EventTypePurchaseCompleted = "order.purchase_completed"
	EventTypeOrderCompleted    = "order.completed"
)

// Event is a lifecycle notification emitted by the engine. Attributes are
// string-encoded so they survive JSON and gossip transports unchanged.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter receives lifecycle notifications. Implementations must not block;
// the engine emits inside its atomic boundary.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// FanoutEmitter forwards each event to every registered sink.
type FanoutEmitter []Emitter

func (f FanoutEmitter) Emit(ev Event) {
	for _, e := range f {
		if e != nil {
			e.Emit(ev)
		}
	}
}

func newOrderCreatedEvent(owner common.Address, orderID uint64) Event {
	return Event{Type: EventTypeOrderCreated, Attributes: map[string]string{
		"owner":   owner.Hex(),
		"orderId": strconv.FormatUint(orderID, 10),
	}}
}

func newOrderCancelledEvent(owner common.Address, orderID uint64) Event {
	return Event{Type: EventTypeOrderCancelled, Attributes: map[string]string{
		"owner":   owner.Hex(),
		"orderId": strconv.FormatUint(orderID, 10),
	}}
}

func newOrderResetEvent(owner common.Address, orderID uint64) Event {
	return Event{Type: EventTypeOrderReset, Attributes: map[string]string{
		"owner":   owner.Hex(),
		"orderId": strconv.FormatUint(orderID, 10),
	}}
}

func newPurchaseCompletedEvent(executor common.Address, orderID uint64, received *big.Int) Event {
	return Event{Type: EventTypePurchaseCompleted, Attributes: map[string]string{
		"executor": executor.Hex(),
		"orderId":  strconv.FormatUint(orderID, 10),
		"received": cloneBig(received).String(),
	}}
}

func newOrderCompletedEvent(executor common.Address, orderID uint64, purchased, totalSpent *big.Int) Event {
	return Event{Type: EventTypeOrderCompleted, Attributes: map[string]string{
		"executor":   executor.Hex(),
		"orderId":    strconv.FormatUint(orderID, 10),
		"purchased":  cloneBig(purchased).String(),
		"totalSpent": cloneBig(totalSpent).String(),
	}}
}
