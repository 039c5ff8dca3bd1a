package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter assembles the HTTP surface. The webhook route sits outside the
// auth group: it is called by the provider, not by end users.
func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.Locale("en"))

	r.Get("/v1/healthz", app.Health)

	r.Route("/time-machine", func(r chi.Router) {
		r.Use(middleware.Auth(app.Config.JWTSecret))
		r.Get("/balance", app.Balance)
		r.Get("/config", app.TimeMachineConfig)
		r.Post("/generate", app.Generate)
		r.Get("/history", app.History)
		r.Post("/check/{id}", app.Check)
		r.Get("/{id}", app.GetPhoto)
	})

	r.Post("/webhooks/kie", app.KieWebhook)

	uploads := stdhttp.StripPrefix("/uploads/", stdhttp.FileServer(stdhttp.Dir(app.Uploads.BasePath())))
	r.Get("/uploads/*", uploads.ServeHTTP)

	return r
}
