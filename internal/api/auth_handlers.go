package api

import (
	"errors"
	"log"
	"net/http"

	"carmarket/internal/captcha"
	"carmarket/internal/middleware"
	"carmarket/internal/service"
	"carmarket/internal/util"
)

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ip := middleware.ClientIP(r, h.cfg.TrustProxy)
	if err := h.captchaVerifier.Verify(r.Context(), req.CaptchaToken, ip); err != nil {
		rid := middleware.RequestID(r.Context())
		if errors.Is(err, captcha.ErrUnavailable) {
			log.Printf("captcha verify unavailable request_id=%s err=%v", rid, err)
			util.WriteError(w, http.StatusServiceUnavailable, "captcha_unavailable", "captcha verification unavailable", rid)
			return
		}
		util.WriteError(w, http.StatusBadRequest, "captcha_required", "captcha validation failed", rid)
		return
	}
	u, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), u.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), middleware.Actor(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), middleware.Actor(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), middleware.Actor(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
