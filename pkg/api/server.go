package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/daehyun-ko/crossfill/pkg/escrow"
	"github.com/daehyun-ko/crossfill/pkg/trigger"
	"github.com/daehyun-ko/crossfill/pkg/venue"
)

// Server exposes the venue's read surface and the event websocket.
// All endpoints are reads: order flow enters through the engine, not HTTP.
type Server struct {
	ledger    *escrow.Ledger
	authority *trigger.Authority
	venues    *venue.Registry
	router    *mux.Router
	hub       *Hub
}

// NewServer creates the read API. authority may be nil on venue-only nodes.
func NewServer(ledger *escrow.Ledger, authority *trigger.Authority, venues *venue.Registry) *Server {
	s := &Server{
		ledger:    ledger,
		authority: authority,
		venues:    venues,
		router:    mux.NewRouter(),
		hub:       NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/venues", s.handleGetVenues).Methods("GET")
	api.HandleFunc("/venues/{id}/orders", s.handleGetVenueOrders).Methods("GET")

	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	api.HandleFunc("/accounts/{address}/orders", s.handleGetAccountOrders).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances/{asset}", s.handleGetBalance).Methods("GET")

	api.HandleFunc("/triggers", s.handleGetTriggers).Methods("GET")
	api.HandleFunc("/triggers/{id}", s.handleGetTrigger).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the websocket hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleGetVenues(w http.ResponseWriter, r *http.Request) {
	venues := s.venues.List()

	response := make([]VenueInfo, len(venues))
	for i, v := range venues {
		id := v.Fingerprint()
		response[i] = VenueInfo{
			ID:          id.Hex(),
			Asset0:      v.Asset0.Hex(),
			Asset1:      v.Asset1.Hex(),
			FeeBps:      v.FeeBps,
			TickSpacing: v.TickSpacing,
			LiveOrders:  len(s.ledger.LiveOrders(id)),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetVenueOrders(w http.ResponseWriter, r *http.Request) {
	id := common.HexToHash(mux.Vars(r)["id"])
	if !s.venues.Exists(id) {
		respondError(w, http.StatusNotFound, "venue not found", "")
		return
	}

	response := []OrderInfo{}
	for _, orderID := range s.ledger.LiveOrders(id) {
		if o, ok := s.ledger.Order(orderID); ok {
			response = append(response, orderInfo(o))
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	o, ok := s.ledger.Order(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, orderInfo(o))
}

func (s *Server) handleGetAccountOrders(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	orders := s.ledger.Orders(common.HexToAddress(addressStr))
	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = orderInfo(o)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !common.IsHexAddress(vars["address"]) || !common.IsHexAddress(vars["asset"]) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}

	account := common.HexToAddress(vars["address"])
	asset := common.HexToAddress(vars["asset"])

	respondJSON(w, BalanceInfo{
		Account: account.Hex(),
		Asset:   asset.Hex(),
		Amount:  s.ledger.Balance(account, asset),
	})
}

func (s *Server) handleGetTriggers(w http.ResponseWriter, r *http.Request) {
	if s.authority == nil {
		respondJSON(w, []TriggerInfo{})
		return
	}

	triggers := s.authority.Triggers()
	response := make([]TriggerInfo, len(triggers))
	for i, t := range triggers {
		response[i] = triggerInfo(t)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trigger id", err.Error())
		return
	}

	if s.authority == nil {
		respondError(w, http.StatusNotFound, "trigger not found", "")
		return
	}
	t, ok := s.authority.Trigger(id)
	if !ok {
		respondError(w, http.StatusNotFound, "trigger not found", "")
		return
	}
	respondJSON(w, triggerInfo(t))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods
// ==============================

// BroadcastFill pushes a settled fill to "fills" subscribers.
func (s *Server) BroadcastFill(r escrow.FillReceipt) {
	s.hub.BroadcastToChannel("fills", FillEvent{
		Type:          "fill",
		OrderID:       r.OrderID,
		Maker:         r.Maker.Hex(),
		Counterparty:  r.Counterparty.Hex(),
		AssetToMaker:  r.AssetToMaker.Hex(),
		AmountToMaker: r.AmountToMaker,
		AssetToTaker:  r.AssetToTaker.Hex(),
		AmountToTaker: r.AmountToTaker,
		Timestamp:     time.Now().UnixMilli(),
	})
}

// BroadcastTrigger pushes a fired trigger to "triggers" subscribers.
func (s *Server) BroadcastTrigger(triggerID, orderID, price uint64) {
	s.hub.BroadcastToChannel("triggers", TriggerEvent{
		Type:      "trigger",
		TriggerID: triggerID,
		OrderID:   orderID,
		Price:     price,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ==============================
// Helper Functions
// ==============================

func orderInfo(o escrow.Order) OrderInfo {
	return OrderInfo{
		ID:             o.ID,
		Maker:          o.Maker.Hex(),
		VenueID:        o.VenueID.Hex(),
		SellsAssetZero: o.SellsAssetZero,
		SellAsset:      o.SellAsset.Hex(),
		BuyAsset:       o.BuyAsset.Hex(),
		AmountIn:       o.AmountIn,
		MinAmountOut:   o.MinAmountOut,
		Expiry:         o.Expiry,
		Active:         o.Active,
		Origin:         o.Origin.String(),
		CreatedAt:      o.CreatedAt,
	}
}

func triggerInfo(t trigger.Trigger) TriggerInfo {
	return TriggerInfo{
		ID:         t.ID,
		OrderID:    t.OrderID,
		Maker:      t.Maker.Hex(),
		Direction:  t.Direction.String(),
		LimitPrice: t.LimitPrice,
		Active:     t.Active,
		CreatedAt:  t.CreatedAt,
		FiredAt:    t.FiredAt,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
