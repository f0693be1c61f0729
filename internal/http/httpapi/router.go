package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
	"github.com/fortunto2/super-turbo-sub006/internal/http/handlers"
	"github.com/fortunto2/super-turbo-sub006/internal/middleware"
)

// NewRouter mounts the API. Everything under /v1 except healthz sits behind
// bearer JWT auth; admin balance routes additionally require the admin role
// claim.
func NewRouter(app *handlers.App, countryLookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
		middleware.CORS(app.Config.AllowedOrigins),
		middleware.I18N(app.Config.DefaultLocale, countryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret))

		r.Post("/images/generate", app.ImagesGenerate)
		r.Post("/videos/generate", app.VideosGenerate)

		r.Route("/jobs/{chat_id}", func(r chi.Router) {
			r.Get("/", app.JobStatus)
			r.Post("/check", app.JobForceCheck)
			r.Delete("/", app.JobReset)
		})

		r.Post("/save-message", app.SaveMessage)
		r.Route("/chats/{chat_id}", func(r chi.Router) {
			r.Get("/messages", app.ChatMessages)
			r.Get("/artifacts", app.ChatArtifacts)
			r.Get("/artifacts.zip", app.ChatArtifactsZip)
		})

		r.Get("/balance", app.BalanceMe)

		r.Route("/admin/balance", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(domain.UserRoleAdmin)))
			r.Post("/add", app.AdminBalanceAdd)
			r.Post("/set", app.AdminBalanceSet)
			r.Get("/{user_id}/transactions", app.AdminBalanceTransactions)
		})

		r.Get("/debug/tracker", app.DebugTracker)
	})

	return r
}
