package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"carmarket/internal/middleware"
	"carmarket/internal/models"
	"carmarket/internal/service"
	"carmarket/internal/util"
)

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListingID string `json:"car_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ListingID) == "" {
		badRequest(w, r, "car_id is required")
		return
	}
	o, err := h.svc.Checkout(r.Context(), middleware.Actor(r.Context()), req.ListingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		badRequest(w, r, "order_id is required")
		return
	}
	o, err := h.svc.ConfirmPayment(r.Context(), middleware.Actor(r.Context()), req.OrderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, o)
}

func (h *Handlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	items, total, err := h.svc.MyOrders(r.Context(), middleware.Actor(r.Context()), service.Page{Limit: p.limit(), Offset: p.offset()})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, p, items, total)
}

func (h *Handlers) SellerOrders(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	query := models.OrderQuery{Limit: p.limit(), Offset: p.offset()}
	for _, s := range splitCSV(r.URL.Query().Get("status")) {
		st := models.OrderStatus(strings.ToLower(s))
		if !st.Valid() {
			badRequest(w, r, "invalid status filter")
			return
		}
		query.Statuses = append(query.Statuses, st)
	}
	items, total, err := h.svc.SellerOrders(r.Context(), middleware.Actor(r.Context()), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, p, items, total)
}

func (h *Handlers) SellerCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in service.ManualOrderInput
	if !decodeJSON(w, r, &in) {
		return
	}
	o, err := h.svc.CreateManualOrder(r.Context(), middleware.Actor(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handlers) SellerUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	to := models.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	o, err := h.svc.UpdateOrderStatus(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, o)
}

func (h *Handlers) AddOrderDocument(w http.ResponseWriter, r *http.Request) {
	var in service.DocumentInput
	if !decodeJSON(w, r, &in) {
		return
	}
	o, err := h.svc.AddDocument(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handlers) SellerReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.SellerReport(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rep)
}
