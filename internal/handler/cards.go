package handler

import (
	"net/http"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
)

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.ListCards(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	now := time.Now()
	views := make([]models.CardView, 0, len(cards))
	for i := range cards {
		views = append(views, cards[i].View(now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": views})
}

func (h *Handler) AddCard(w http.ResponseWriter, r *http.Request) {
	var in service.AddCardInput
	if !h.decode(w, r, &in) {
		return
	}
	card, err := h.svc.AddCard(r.Context(), userID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card.View(time.Now()))
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.svc.GetCard(r.Context(), userID(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card.View(time.Now()))
}

func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if !h.decodeOptional(w, r, &in) {
		return
	}
	card, err := h.svc.BlockCard(r.Context(), userID(r), pathID(r), in.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card.View(time.Now()))
}

func (h *Handler) UnblockCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.svc.UnblockCard(r.Context(), userID(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card.View(time.Now()))
}

func (h *Handler) UpdatePIN(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CurrentPIN string `json:"current_pin"`
		NewPIN     string `json:"new_pin"`
	}
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.svc.UpdatePIN(r.Context(), userID(r), pathID(r), in.CurrentPIN, in.NewPIN); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "PIN updated"})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txns, err := h.svc.ListTransactions(r.Context(), userID(r), pathID(r), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (h *Handler) ChargeCard(w http.ResponseWriter, r *http.Request) {
	var in service.ChargeInput
	if !h.decode(w, r, &in) {
		return
	}
	txn, err := h.svc.ChargeCard(r.Context(), userID(r), pathID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}
