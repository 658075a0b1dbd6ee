package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/reports"
	"github.com/Dan9191/card-service/internal/service"
)

// ListEMIs supports the status, card_id, page and per_page query parameters
func (h *Handler) ListEMIs(w http.ResponseWriter, r *http.Request) {
	filter := models.EMIFilter{Status: models.EMIStatus(r.URL.Query().Get("status"))}
	var err error
	if filter.Page, err = queryInt(r, "page"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.PerPage, err = queryInt(r, "per_page"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("card_id"); raw != "" {
		if filter.CardID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			h.writeError(w, r, fmt.Errorf("%w: card_id must be an integer", models.ErrValidation))
			return
		}
	}

	page, err := h.svc.ListEMIs(r.Context(), userID(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) CreateEMI(w http.ResponseWriter, r *http.Request) {
	var in service.CreateEMIInput
	if !h.decode(w, r, &in) {
		return
	}
	view, err := h.svc.CreateEMI(r.Context(), userID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetEMI(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetEMI(r.Context(), userID(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) UpdateEMI(w http.ResponseWriter, r *http.Request) {
	var in service.EMIDetails
	if !h.decode(w, r, &in) {
		return
	}
	view, err := h.svc.UpdateEMIDetails(r.Context(), userID(r), pathID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) CancelEMI(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.CancelEMI(r.Context(), userID(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) DefaultEMI(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.MarkEMIDefaulted(r.Context(), userID(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PayEMI accepts an optional body; without one the installment is paid today
func (h *Handler) PayEMI(w http.ResponseWriter, r *http.Request) {
	var in service.PaymentInput
	if !h.decodeOptional(w, r, &in) {
		return
	}
	res, err := h.svc.PayEMI(r.Context(), userID(r), pathID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) PreCloseEMI(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount *float64 `json:"amount"`
	}
	if !h.decodeOptional(w, r, &in) {
		return
	}
	res, err := h.svc.PreCloseEMI(r.Context(), userID(r), pathID(r), in.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SetAutoPay(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Enabled bool `json:"enabled"`
		Day     int  `json:"auto_pay_date"`
	}
	if !h.decode(w, r, &in) {
		return
	}
	view, err := h.svc.SetAutoPay(r.Context(), userID(r), pathID(r), in.Enabled, in.Day)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) EMISummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.EMISummary(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var in service.CalculateInput
	if !h.decode(w, r, &in) {
		return
	}
	quote, err := h.svc.Calculate(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// EMISchedule returns the projected schedule as JSON, or as a PDF download
// with ?format=pdf
func (h *Handler) EMISchedule(w http.ResponseWriter, r *http.Request) {
	e, rows, err := h.svc.EMISchedule(r.Context(), userID(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") != "pdf" {
		writeJSON(w, http.StatusOK, map[string]any{"emi_id": e.Code, "schedule": rows})
		return
	}

	var buf bytes.Buffer
	if err := reports.SchedulePDF(&buf, e, rows, time.Now()); err != nil {
		h.writeError(w, r, fmt.Errorf("failed to render schedule: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+e.Code+`-schedule.pdf"`)
	w.Write(buf.Bytes())
}
