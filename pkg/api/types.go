package api

// Request and response types for the REST surface and WebSocket stream.

// OrderPayload carries the submittable order fields. Big integers travel as
// decimal strings so precision survives JSON.
type OrderPayload struct {
	Owner             string `json:"owner"`
	Manager           string `json:"manager"`
	Account           string `json:"account"`
	TokenOut          string `json:"tokenOut"`
	Budget            string `json:"budget"`
	Interval          uint64 `json:"interval"`
	AmountPerInterval string `json:"amountPerInterval"`
	Deadline          uint64 `json:"deadline"`
}

// SubmitOrderRequest submits a signed order. Signature covers the order
// fields plus the declared nonce (EIP-712). An empty signature with a caller
// set uses the direct path instead.
type SubmitOrderRequest struct {
	Order     OrderPayload `json:"order"`
	Nonce     uint64       `json:"nonce"`
	Signature string       `json:"signature,omitempty"`
	Caller    string       `json:"caller,omitempty"`
}

// CancelOrderRequest cancels an order, either by signature over the order id
// and nonce, or directly by the declared caller.
type CancelOrderRequest struct {
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature,omitempty"`
	Caller    string `json:"caller,omitempty"`
}

// ExecuteOrderRequest triggers one purchase. Any executor may call.
type ExecuteOrderRequest struct {
	Executor string `json:"executor"`
}

// ResetOrderRequest re-arms the price circuit breaker. Owner only.
type ResetOrderRequest struct {
	Caller string `json:"caller"`
}

// OrderInfo mirrors a stored order record.
type OrderInfo struct {
	ID                uint64 `json:"id"`
	Owner             string `json:"owner"`
	Manager           string `json:"manager"`
	Account           string `json:"account"`
	TokenOut          string `json:"tokenOut"`
	Budget            string `json:"budget"`
	Interval          uint64 `json:"interval"`
	AmountPerInterval string `json:"amountPerInterval"`
	TotalSpent        string `json:"totalSpent"`
	LastPrice         string `json:"lastPrice"`
	LastPurchaseTime  uint64 `json:"lastPurchaseTime"`
	Deadline          uint64 `json:"deadline"`
}

// SubmitOrderResponse returns the allocated order id.
type SubmitOrderResponse struct {
	OrderID uint64 `json:"orderId"`
}

// ExecuteOrderResponse reports one completed purchase.
type ExecuteOrderResponse struct {
	OrderID      uint64 `json:"orderId"`
	Spent        string `json:"spent"`
	MinAmountOut string `json:"minAmountOut"`
	Received     string `json:"received"`
	Price        string `json:"price"`
	Completed    bool   `json:"completed"`
}

// NonceResponse returns a signer's current counter.
type NonceResponse struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// DomainResponse returns the deployment's EIP-712 domain separator.
type DomainResponse struct {
	DomainSeparator string `json:"domainSeparator"`
}

// PriceResponse returns the current oracle reading for an output asset.
type PriceResponse struct {
	Manager  string `json:"manager"`
	Account  string `json:"account"`
	TokenOut string `json:"tokenOut"`
	Price    string `json:"price"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WSMessage wraps one lifecycle notification for WebSocket delivery.
type WSMessage struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// WSSubscribeRequest is the client-side subscription control message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
