package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	deliveryservice "fulfillment/contexts/fulfillment/delivery-service"
	inventoryservice "fulfillment/contexts/fulfillment/inventory-service"
	orderservice "fulfillment/contexts/fulfillment/order-service"
	paymentservice "fulfillment/contexts/fulfillment/payment-service"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "fulfillment/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	orders    orderservice.Module
	inventory inventoryservice.Module
	payments  paymentservice.Module
	delivery  deliveryservice.Module
}

func New(
	orders orderservice.Module,
	inventory inventoryservice.Module,
	payments paymentservice.Module,
	delivery deliveryservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		orders:    orders,
		inventory: inventory,
		payments:  payments,
		delivery:  delivery,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for in-process readers and tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /fulfillment/orders", s.handlePlaceOrder)
	s.mux.HandleFunc("GET /fulfillment/orders/{order_id}", s.handleGetOrder)

	s.mux.HandleFunc("POST /fulfillment/inventory/restock", s.handleRestock)

	s.mux.HandleFunc("GET /fulfillment/payments/{payment_id}", s.handleGetPayment)
	s.mux.HandleFunc("GET /fulfillment/orders/{order_id}/payment", s.handleGetPaymentByOrder)
	s.mux.HandleFunc("POST /fulfillment/payments/{payment_id}/refund", s.handleRefundPayment)
	s.mux.HandleFunc("POST /fulfillment/payments/{payment_id}/cancel", s.handleCancelPayment)

	s.mux.HandleFunc("GET /fulfillment/shipments/{shipment_id}", s.handleGetShipment)
	s.mux.HandleFunc("GET /fulfillment/orders/{order_id}/shipment", s.handleGetShipmentByOrder)
	s.mux.HandleFunc("POST /fulfillment/shipments/{shipment_id}/dispatch", s.handleMarkDispatched)
	s.mux.HandleFunc("POST /fulfillment/shipments/{shipment_id}/in-transit", s.handleMarkInTransit)
	s.mux.HandleFunc("POST /fulfillment/shipments/{shipment_id}/deliver", s.handleMarkDelivered)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
