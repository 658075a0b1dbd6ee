package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
)

// ListBills supports the card_id, status, type, due_soon, page and per_page
// query parameters
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BillFilter{Status: models.BillStatus(q.Get("status")), BillType: q.Get("type")}
	var err error
	if filter.Page, err = queryInt(r, "page"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.PerPage, err = queryInt(r, "per_page"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if raw := q.Get("card_id"); raw != "" {
		if filter.CardID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: card_id must be an integer", models.ErrValidation))
			return
		}
	}
	dueSoon := false
	if raw := q.Get("due_soon"); raw != "" {
		if dueSoon, err = strconv.ParseBool(raw); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: due_soon must be a boolean", models.ErrValidation))
			return
		}
	}

	page, err := h.svc.ListBills(r.Context(), userID(r), filter, dueSoon)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBillInput
	if !h.decode(w, r, &in) {
		return
	}
	view, err := h.svc.CreateBill(r.Context(), userID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetBill(r.Context(), userID(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	var in service.BillDetails
	if !h.decode(w, r, &in) {
		return
	}
	view, err := h.svc.UpdateBill(r.Context(), userID(r), pathID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CancelBill withdraws the bill; it stays listed as cancelled
func (h *Handler) CancelBill(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.CancelBill(r.Context(), userID(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PayBill accepts an optional body; without an amount the remainder is paid
func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount *float64 `json:"amount"`
	}
	if !h.decodeOptional(w, r, &in) {
		return
	}
	res, err := h.svc.PayBill(r.Context(), userID(r), pathID(r), in.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SetBillAutoPay(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Enabled bool `json:"enabled"`
	}
	if !h.decode(w, r, &in) {
		return
	}
	view, err := h.svc.SetBillAutoPay(r.Context(), userID(r), pathID(r), in.Enabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) BillTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"bill_types": h.svc.BillTypes()})
}

func (h *Handler) BillSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.BillSummary(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
