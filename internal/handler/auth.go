package handler

import (
	"net/http"

	"github.com/Dan9191/card-service/internal/service"
)

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.svc.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &in) {
		return
	}
	token, user, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// KeyRate returns the central bank key rate and the EMI rate suggested from it
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "key rate source not configured"})
		return
	}
	rate, err := h.rates.GetKeyRate(r.Context())
	if err != nil {
		h.log.Warnf("Failed to get key rate: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to get key rate"})
		return
	}
	suggested, err := h.rates.SuggestedRate(r.Context())
	if err != nil {
		suggested = rate
	}
	writeJSON(w, http.StatusOK, map[string]float64{"key_rate": rate, "suggested_emi_rate": suggested})
}
