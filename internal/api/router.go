package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"carmarket/internal/captcha"
	"carmarket/internal/config"
	"carmarket/internal/middleware"
	"carmarket/internal/models"
	"carmarket/internal/rate"
	"carmarket/internal/service"
	"carmarket/internal/util"
	"carmarket/internal/version"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	cfg             config.Config
	svc             *service.Service
	db              Pinger
	limiter         *rate.Limiter
	captchaVerifier captcha.Verifier
}

type Option func(*Handlers)

func WithCaptcha(v captcha.Verifier) Option {
	return func(h *Handlers) { h.captchaVerifier = v }
}

func NewRouter(cfg config.Config, svc *service.Service, db Pinger, opts ...Option) http.Handler {
	h := &Handlers{
		cfg:             cfg,
		svc:             svc,
		db:              db,
		limiter:         rate.NewLimiter(),
		captchaVerifier: captcha.New(cfg),
	}
	for _, o := range opts {
		o(h)
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", h.Ready)

	prefix := "/" + strings.Trim(cfg.UploadURLPrefix, "/")
	if prefix == "/" {
		prefix = "/uploads"
	}
	files := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.UploadDir)))
	r.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})

	authn := middleware.Authn(h.svc)
	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			util.WriteJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		})
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			util.WriteJSON(w, http.StatusOK, version.Current())
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(h.limiter, "register", 10, time.Minute, cfg.TrustProxy)).Post("/register", h.Register)
			r.With(middleware.RateLimit(h.limiter, "login", 20, time.Minute, cfg.TrustProxy)).Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthn(h.svc))
			r.Get("/cars", h.ListCars)
			r.Get("/cars/{id}", h.GetCar)
			r.Get("/cars/{id}/images", h.ListCarImages)
			r.Get("/reviews/car/{id}", h.ListReviews)
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Get("/users/me", h.Me)
			r.Patch("/users/me", h.UpdateMe)
			r.With(middleware.RateLimit(h.limiter, "password", 10, time.Minute, cfg.TrustProxy)).Post("/users/me/password", h.ChangePassword)

			r.Post("/cars", h.CreateCar)
			r.Patch("/cars/{id}", h.UpdateCar)
			r.Delete("/cars/{id}", h.DeleteCar)
			r.Post("/cars/{id}/images", h.UploadCarImages)
			r.Patch("/cars/{id}/images/{imageID}", h.UpdateCarImage)
			r.Delete("/cars/{id}/images/{imageID}", h.DeleteCarImage)

			r.Post("/payments/checkout", h.Checkout)
			r.Post("/payments/confirm-payment", h.ConfirmPayment)
			r.Get("/payments/my-orders", h.MyOrders)

			r.Get("/favorites", h.ListFavorites)
			r.Post("/favorites/toggle", h.ToggleFavorite)
			r.Get("/inquiries", h.ListMyInquiries)
			r.With(middleware.RateLimit(h.limiter, "inquiry", 30, time.Minute, cfg.TrustProxy)).Post("/inquiries", h.CreateInquiry)
			r.Post("/reviews", h.CreateReview)

			r.Route("/seller", func(r chi.Router) {
				r.Use(middleware.RequireRoles(models.RoleSeller, models.RoleAdmin))
				r.Get("/inquiries", h.SellerInquiries)
				r.Patch("/inquiries/{id}", h.SellerUpdateInquiry)
				r.Get("/orders", h.SellerOrders)
				r.Post("/orders", h.SellerCreateOrder)
				r.Patch("/orders/{id}", h.SellerUpdateOrder)
				r.Post("/orders/{id}/documents", h.AddOrderDocument)
				r.Patch("/inventory/{id}/reserve", h.ReserveCar)
				r.Get("/reports", h.SellerReport)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Get("/users", h.AdminListUsers)
				r.Post("/users", h.AdminCreateUser)
				r.Patch("/users/{id}", h.AdminUpdateUser)
				r.Post("/sellers", h.AdminCreateSeller)
				r.Get("/cars", h.AdminListCars)
				r.Patch("/cars/{id}/approval", h.AdminApproveCar)
				r.Get("/actions", h.AdminActions)
				r.Get("/reports/sales", h.AdminSalesReport)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusNotFound, "not_found", "route not found", middleware.RequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.RequestID(r.Context()))
	})
	return r
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	out := map[string]any{"checked_at": time.Now().UTC().Format(time.RFC3339)}
	if err := h.db.Ping(ctx); err != nil {
		out["status"] = "degraded"
		out["database"] = map[string]any{"ok": false, "error": err.Error()}
		util.WriteJSON(w, http.StatusServiceUnavailable, out)
		return
	}
	out["status"] = "ready"
	out["database"] = map[string]any{"ok": true}
	util.WriteJSON(w, http.StatusOK, out)
}
