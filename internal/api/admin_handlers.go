package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"carmarket/internal/middleware"
	"carmarket/internal/models"
	"carmarket/internal/service"
	"carmarket/internal/util"
)

func (h *Handlers) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	q := r.URL.Query()
	query := models.UserQuery{Q: q.Get("q"), Limit: p.limit(), Offset: p.offset()}
	if v := strings.TrimSpace(q.Get("role")); v != "" {
		role, err := models.ParseRole(v)
		if err != nil {
			badRequest(w, r, "invalid role")
			return
		}
		query.Role = role
	}
	if v := strings.TrimSpace(q.Get("is_active")); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, r, "invalid is_active")
			return
		}
		query.Active = &active
	}
	users, total, err := h.svc.ListUsers(r.Context(), middleware.Actor(r.Context()), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, p, users, total)
}

func (h *Handlers) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.svc.AdminCreateUser(r.Context(), middleware.Actor(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handlers) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateUserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.svc.AdminUpdateUser(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}

func (h *Handlers) AdminCreateSeller(w http.ResponseWriter, r *http.Request) {
	var in service.CreateSellerInput
	if !decodeJSON(w, r, &in) {
		return
	}
	out, err := h.svc.CreateSeller(r.Context(), middleware.Actor(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handlers) AdminListCars(w http.ResponseWriter, r *http.Request) {
	query, ok := listingQuery(r)
	if !ok {
		badRequest(w, r, "invalid filter")
		return
	}
	items, total, err := h.svc.ListAllListings(r.Context(), middleware.Actor(r.Context()), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, pageOf(r), items, total)
}

func (h *Handlers) AdminApproveCar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := h.svc.ApproveOrReject(r.Context(), middleware.Actor(r.Context()), chi.URLParam(r, "id"), req.Status, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, l)
}

func parseDay(v string, endOfDay bool) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), true
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, true
}

func (h *Handlers) AdminActions(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	q := r.URL.Query()
	from, ok1 := parseDay(q.Get("start_date"), false)
	to, ok2 := parseDay(q.Get("end_date"), true)
	if !ok1 || !ok2 {
		badRequest(w, r, "dates must be YYYY-MM-DD or RFC3339")
		return
	}
	items, total, err := h.svc.ListAdminActions(r.Context(), middleware.Actor(r.Context()), models.AdminActionQuery{
		ActionType: strings.TrimSpace(q.Get("action_type")),
		From:       from,
		To:         to,
		Limit:      p.limit(),
		Offset:     p.offset(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePage(w, p, items, total)
}

func (h *Handlers) AdminSalesReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.SalesReport(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rep)
}
