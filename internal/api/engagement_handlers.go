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

func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListFavorites(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"favorites": ids})
}

func (h *Handlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
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
	res, err := h.svc.ToggleFavorite(r.Context(), middleware.Actor(r.Context()), req.ListingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) ListMyInquiries(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	items, total, err := h.svc.ListMyInquiries(r.Context(), middleware.Actor(r.Context()), service.Page{Limit: p.limit(), Offset: p.offset()})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, p, items, total)
}

func (h *Handlers) CreateInquiry(w http.ResponseWriter, r *http.Request) {
	var in service.InquiryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	inq, err := h.svc.CreateInquiry(r.Context(), middleware.Actor(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, inq)
}

func (h *Handlers) SellerInquiries(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	query := models.InquiryQuery{
		Status: models.InquiryStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))),
		Limit:  p.limit(),
		Offset: p.offset(),
	}
	items, total, err := h.svc.ListSellerInquiries(r.Context(), middleware.Actor(r.Context()), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, p, items, total)
}

func (h *Handlers) SellerUpdateInquiry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	to := models.InquiryStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	inq, err := h.svc.UpdateInquiryStatus(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, inq)
}

func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListReviews(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	var in service.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rev, err := h.svc.CreateReview(r.Context(), middleware.Actor(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, rev)
}
