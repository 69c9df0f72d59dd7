// Package handlers exposes the dispatch operations as a JSON API
package handlers

import (
	"log"
	"net/http"

	"cleanbuddy-dispatch/res/auth"
	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/dispatch"
	"cleanbuddy-dispatch/sys/http/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Logger   *log.Logger
	Store    store.Store
	Auth     auth.Auth
	Dispatch *dispatch.Service

	// Live serves the dispatch board websocket; nil disables /api/v1/live
	Live http.Handler

	// Defaults to the prometheus default gatherer
	MetricsHandler http.Handler

	Production  bool
	FrontendURL string
}

type handler struct {
	logger   *log.Logger
	dispatch *dispatch.Service
}

// New builds the router with the middleware stack and every dispatch route
func New(cfg *Config) http.Handler {
	h := &handler{logger: cfg.Logger, dispatch: cfg.Dispatch}

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestLogger(&chimiddleware.DefaultLogFormatter{Logger: cfg.Logger, NoColor: true}))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CSPMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.Production, cfg.FrontendURL))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Logger, cfg.Store, cfg.Auth))
		r.Use(h.requireActor)

		if cfg.Live != nil {
			r.Handle("/live", cfg.Live)
		}

		r.Get("/slots", h.getAvailableSlots)
		r.Get("/staff", h.getStaffAvailability)
		r.Get("/conflicts", h.listConflicts)
		r.Post("/auto-confirm", h.checkAutoConfirm)

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.listAppointments)
			r.Post("/", h.createAppointment)

			r.Route("/{appointmentID}", func(r chi.Router) {
				r.Get("/", h.getAppointment)
				r.Post("/move", h.proposeMove)
				r.Put("/time", h.updateTime)
				r.Put("/resource", h.updateResource)
				r.Post("/reschedule", h.reschedule)
				r.Put("/status", h.updateStatus)
				r.Put("/status/override", h.overrideStatus)
				r.Post("/cancel", h.cancel)
				r.Post("/confirm", h.confirm)
				r.Put("/tip", h.setTip)
			})
		})
	})

	return r
}

// requireActor rejects anonymous requests
func (h *handler) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetCurrentActor(r.Context()); !ok {
			if err := middleware.EmitErrorResponse(w, http.StatusUnauthorized, codeUnauthenticated, "Authentication required"); err != nil {
				h.logger.Printf("Error serializing error response: %s", err)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actor(r *http.Request) dispatch.Actor {
	a, _ := middleware.GetCurrentActor(r.Context())
	return a
}
