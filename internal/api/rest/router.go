package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full HTTP surface. requireAuth puts the API
// routes behind bearer-token sessions; health, metrics and the auth
// endpoints stay open either way.
func (h *Handler) NewRouter(requireAuth bool, gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.Post("/register", h.Register)
			a.Post("/login", h.Login)
			a.Post("/logout", h.Logout)
			a.Get("/google/login", h.GoogleLogin)
			a.Get("/google/callback", h.GoogleCallback)
		})

		api.Group(func(g chi.Router) {
			if requireAuth {
				g.Use(h.requireSession)
			}
			g.Post("/datasets", h.CreateDataset)
			g.Post("/datasets/github", h.ImportGitHub)
			g.Post("/runs", h.StartRun)
			g.Get("/runs", h.ListRuns)
			g.Get("/runs/{id}", h.GetRun)
			g.Get("/runs/{id}/assignments", h.GetAssignments)
			g.Post("/runs/{id}/notifications/send", h.SendNotifications)
		})
	})

	return r
}
