package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/drinkius/gearbot/pkg/bot"
	"github.com/drinkius/gearbot/pkg/gear"
)

// Server exposes the purchase engine over REST plus a WebSocket stream of
// lifecycle notifications. Execution requests are gated by the permission
// registry before they reach the engine.
type Server struct {
	engine  *bot.Engine
	perms   gear.PermissionRegistry
	botAddr common.Address
	router  *mux.Router
	hub     *Hub
}

// NewServer wires the REST surface to an engine. perms may be nil, in which
// case execution requests are not permission-gated.
func NewServer(engine *bot.Engine, perms gear.PermissionRegistry, botAddr common.Address) *Server {
	s := &Server{
		engine:  engine,
		perms:   perms,
		botAddr: botAddr,
		router:  mux.NewRouter(),
		hub:     NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/execute", s.handleExecuteOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/reset", s.handleResetOrder).Methods("POST")

	api.HandleFunc("/accounts/{address}/nonce", s.handleGetNonce).Methods("GET")
	api.HandleFunc("/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/domain", s.handleGetDomain).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Emit forwards a lifecycle notification to WebSocket subscribers: the
// firehose "orders" channel plus the per-order channel.
func (s *Server) Emit(ev bot.Event) {
	msg := WSMessage{Type: ev.Type, Data: ev.Attributes}
	s.hub.BroadcastToChannel("orders", msg)
	if id, ok := ev.Attributes["orderId"]; ok {
		s.hub.BroadcastToChannel("orders:"+id, msg)
	}
}

var _ bot.Emitter = (*Server)(nil)

// Start runs the hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.engine.Orders()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list orders", err.Error())
		return
	}
	out := make([]OrderInfo, 0, len(orders))
	for id, o := range orders {
		out = append(out, orderInfo(id, o))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	o, err := s.engine.Order(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, orderInfo(id, o))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	order, err := orderFromPayload(req.Order)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	var id uint64
	if req.Signature != "" {
		sig, err := decodeSignature(req.Signature)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
			return
		}
		id, err = s.engine.SubmitOrderWithSignature(order, req.Nonce, sig)
		if err != nil {
			respondEngineError(w, err)
			return
		}
	} else {
		if !common.IsHexAddress(req.Caller) {
			respondError(w, http.StatusBadRequest, "caller or signature required", "")
			return
		}
		id, err = s.engine.SubmitOrder(common.HexToAddress(req.Caller), order)
		if err != nil {
			respondEngineError(w, err)
			return
		}
	}
	respondJSON(w, SubmitOrderResponse{OrderID: id})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.Signature != "" {
		sig, err := decodeSignature(req.Signature)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
			return
		}
		if err := s.engine.CancelOrderWithSignature(id, req.Nonce, sig); err != nil {
			respondEngineError(w, err)
			return
		}
	} else {
		if !common.IsHexAddress(req.Caller) {
			respondError(w, http.StatusBadRequest, "caller or signature required", "")
			return
		}
		if err := s.engine.CancelOrder(common.HexToAddress(req.Caller), id); err != nil {
			respondEngineError(w, err)
			return
		}
	}
	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req ExecuteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Executor) {
		respondError(w, http.StatusBadRequest, "invalid executor address", "")
		return
	}

	if s.perms != nil {
		o, err := s.engine.Order(id)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		granted, err := s.perms.HasExternalCallPermission(s.botAddr, o.Manager, o.Account)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "permission check", err.Error())
			return
		}
		if !granted {
			respondError(w, http.StatusForbidden, "external call permission not granted", "")
			return
		}
	}

	res, err := s.engine.ExecuteOrder(common.HexToAddress(req.Executor), id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ExecuteOrderResponse{
		OrderID:      res.OrderID,
		Spent:        res.Spent.String(),
		MinAmountOut: res.MinAmountOut.String(),
		Received:     res.Received.String(),
		Price:        res.Price.String(),
		Completed:    res.Completed,
	})
}

func (s *Server) handleResetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req ResetOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		respondError(w, http.StatusBadRequest, "invalid caller address", "")
		return
	}
	if err := s.engine.ResetOrder(common.HexToAddress(req.Caller), id); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "reset"})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addressStr)
	nonce, err := s.engine.Nonce(addr)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "nonce lookup", err.Error())
		return
	}
	respondJSON(w, NonceResponse{Address: addr.Hex(), Nonce: nonce})
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	manager, account, tokenOut := q.Get("manager"), q.Get("account"), q.Get("tokenOut")
	for _, addr := range []string{manager, account, tokenOut} {
		if !common.IsHexAddress(addr) {
			respondError(w, http.StatusBadRequest, "manager, account and tokenOut addresses required", "")
			return
		}
	}
	price, err := s.engine.Price(common.HexToAddress(manager), common.HexToAddress(account), common.HexToAddress(tokenOut))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, PriceResponse{
		Manager:  common.HexToAddress(manager).Hex(),
		Account:  common.HexToAddress(account).Hex(),
		TokenOut: common.HexToAddress(tokenOut).Hex(),
		Price:    price.String(),
	})
}

func (s *Server) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	sep, err := s.engine.DomainSeparator()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "domain separator", err.Error())
		return
	}
	respondJSON(w, DomainResponse{DomainSeparator: "0x" + hex.EncodeToString(sep)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func parseOrderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return 0, false
	}
	return id, true
}

func orderFromPayload(p OrderPayload) (*bot.Order, error) {
	for name, addr := range map[string]string{
		"owner": p.Owner, "manager": p.Manager, "account": p.Account, "tokenOut": p.TokenOut,
	} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid %s address: %q", name, addr)
		}
	}
	budget, err := parseBig(p.Budget)
	if err != nil {
		return nil, fmt.Errorf("invalid budget: %w", err)
	}
	amount, err := parseBig(p.AmountPerInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid amountPerInterval: %w", err)
	}
	return &bot.Order{
		Owner:             common.HexToAddress(p.Owner),
		Manager:           common.HexToAddress(p.Manager),
		Account:           common.HexToAddress(p.Account),
		TokenOut:          common.HexToAddress(p.TokenOut),
		Budget:            budget,
		Interval:          p.Interval,
		AmountPerInterval: amount,
		TotalSpent:        big.NewInt(0),
		Deadline:          p.Deadline,
	}, nil
}

func orderInfo(id uint64, o *bot.Order) OrderInfo {
	return OrderInfo{
		ID:                id,
		Owner:             o.Owner.Hex(),
		Manager:           o.Manager.Hex(),
		Account:           o.Account.Hex(),
		TokenOut:          o.TokenOut.Hex(),
		Budget:            o.Budget.String(),
		Interval:          o.Interval,
		AmountPerInterval: o.AmountPerInterval.String(),
		TotalSpent:        o.TotalSpent.String(),
		LastPrice:         o.LastPrice.String(),
		LastPurchaseTime:  o.LastPurchaseTime,
		Deadline:          o.Deadline,
	}
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", s)
	}
	return v, nil
}

func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}
	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}
	return sigBytes, nil
}

func respondEngineError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error(), "")
}

// statusForError maps the engine's error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, bot.ErrOrderIsCancelled):
		return http.StatusNotFound
	case errors.Is(err, bot.ErrCallerNotBorrower):
		return http.StatusForbidden
	case errors.Is(err, bot.ErrIncorrectSignatureNonce):
		return http.StatusConflict
	case errors.Is(err, bot.ErrInvalidOrder), errors.Is(err, bot.ErrUnknownManager):
		return http.StatusBadRequest
	case errors.Is(err, bot.ErrExpired), errors.Is(err, bot.ErrIntervalNotPassed),
		errors.Is(err, bot.ErrPriceSwingTooLarge), errors.Is(err, bot.ErrBorrowerChanged):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Details: details})
}
