package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/middleware"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// KeyRateSource reports the central bank key rate and the EMI rate derived from it
type KeyRateSource interface {
	GetKeyRate(ctx context.Context) (float64, error)
	SuggestedRate(ctx context.Context) (float64, error)
}

type Handler struct {
	svc   *service.Service
	log   *logrus.Logger
	rates KeyRateSource
}

func NewHandler(svc *service.Service, log *logrus.Logger, rates KeyRateSource) *Handler {
	return &Handler{svc: svc, log: log, rates: rates}
}

// NewRouter wires every route. Routes under the auth subrouter require a
// bearer token issued by Login. metricsHandler, when set, is served on /metrics.
func NewRouter(h *Handler, m *metrics.Metrics, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(h.log, m))

	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/key-rate", h.KeyRate).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	// Protected routes
	auth := r.PathPrefix("/").Subrouter()
	auth.Use(middleware.AuthMiddleware(h.svc))

	auth.HandleFunc("/cards", h.ListCards).Methods(http.MethodGet)
	auth.HandleFunc("/cards", h.AddCard).Methods(http.MethodPost)
	auth.HandleFunc("/cards/{id:[0-9]+}", h.GetCard).Methods(http.MethodGet)
	auth.HandleFunc("/cards/{id:[0-9]+}/block", h.BlockCard).Methods(http.MethodPost)
	auth.HandleFunc("/cards/{id:[0-9]+}/unblock", h.UnblockCard).Methods(http.MethodPost)
	auth.HandleFunc("/cards/{id:[0-9]+}/pin", h.UpdatePIN).Methods(http.MethodPut)
	auth.HandleFunc("/cards/{id:[0-9]+}/transactions", h.ListTransactions).Methods(http.MethodGet)
	auth.HandleFunc("/cards/{id:[0-9]+}/transactions", h.ChargeCard).Methods(http.MethodPost)

	auth.HandleFunc("/emis", h.ListEMIs).Methods(http.MethodGet)
	auth.HandleFunc("/emis", h.CreateEMI).Methods(http.MethodPost)
	auth.HandleFunc("/emis/summary", h.EMISummary).Methods(http.MethodGet)
	auth.HandleFunc("/emis/calculator", h.Calculate).Methods(http.MethodPost)
	auth.HandleFunc("/emis/{id:[0-9]+}", h.GetEMI).Methods(http.MethodGet)
	auth.HandleFunc("/emis/{id:[0-9]+}", h.UpdateEMI).Methods(http.MethodPut)
	auth.HandleFunc("/emis/{id:[0-9]+}", h.CancelEMI).Methods(http.MethodDelete)
	auth.HandleFunc("/emis/{id:[0-9]+}/pay", h.PayEMI).Methods(http.MethodPost)
	auth.HandleFunc("/emis/{id:[0-9]+}/pre-close", h.PreCloseEMI).Methods(http.MethodPost)
	auth.HandleFunc("/emis/{id:[0-9]+}/default", h.DefaultEMI).Methods(http.MethodPost)
	auth.HandleFunc("/emis/{id:[0-9]+}/auto-pay", h.SetAutoPay).Methods(http.MethodPut)
	auth.HandleFunc("/emis/{id:[0-9]+}/schedule", h.EMISchedule).Methods(http.MethodGet)

	auth.HandleFunc("/bills", h.ListBills).Methods(http.MethodGet)
	auth.HandleFunc("/bills", h.CreateBill).Methods(http.MethodPost)
	auth.HandleFunc("/bills/types", h.BillTypes).Methods(http.MethodGet)
	auth.HandleFunc("/bills/summary", h.BillSummary).Methods(http.MethodGet)
	auth.HandleFunc("/bills/{id:[0-9]+}", h.GetBill).Methods(http.MethodGet)
	auth.HandleFunc("/bills/{id:[0-9]+}", h.UpdateBill).Methods(http.MethodPut)
	auth.HandleFunc("/bills/{id:[0-9]+}", h.CancelBill).Methods(http.MethodDelete)
	auth.HandleFunc("/bills/{id:[0-9]+}/pay", h.PayBill).Methods(http.MethodPost)
	auth.HandleFunc("/bills/{id:[0-9]+}/auto-pay", h.SetBillAutoPay).Methods(http.MethodPut)

	auth.HandleFunc("/notifications", h.ListNotifications).Methods(http.MethodGet)
	auth.HandleFunc("/notifications/read-all", h.MarkAllNotificationsRead).Methods(http.MethodPut)
	auth.HandleFunc("/notifications/{id:[0-9]+}/read", h.MarkNotificationRead).Methods(http.MethodPut)

	return r
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithField("path", r.URL.Path).Errorf("Request failed: %v", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err))
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be omitted
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err))
	return false
}

// pathID reads the numeric {id} route variable
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// userID returns the authenticated user. The auth middleware guarantees it
// on protected routes.
func userID(r *http.Request) int64 {
	id, _ := middleware.UserID(r.Context())
	return id
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", models.ErrValidation, name)
	}
	return n, nil
}
