package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"warbler/internal/authz"
	"warbler/internal/handler"
	"warbler/internal/httputil"
	"warbler/internal/metrics"
	"warbler/internal/session"
	authmw "warbler/internal/transport/http/middleware"
	"warbler/internal/view"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	MessageHandler *handler.MessageHandler
	HomeHandler    *handler.HomeHandler
	APIHandler     *handler.APIHandler

	Users    authz.UserLookup
	Sessions *session.Manager
	Tokens   authmw.TokenVerifier
	Metrics  *metrics.Metrics
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(authmw.RequestLogger(cfg.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	r.Handle("/static/*", view.Static())

	r.Group(func(r chi.Router) {
		r.Use(authmw.CurrentUser(cfg.Users, cfg.Sessions, cfg.Tokens))

		// Public pages
		r.Get("/", cfg.HomeHandler.Home)
		r.Get("/signup", cfg.AuthHandler.SignupForm)
		r.Post("/signup", cfg.AuthHandler.Signup)
		r.Get("/login", cfg.AuthHandler.LoginForm)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Get("/logout", cfg.AuthHandler.Logout)

		r.Get("/users", cfg.UserHandler.Index)
		r.Get("/users/{id}", cfg.UserHandler.Show)
		r.Get("/messages/{id}", cfg.MessageHandler.Show)

		// Pages that need a logged-in user
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireUser(cfg.Sessions, cfg.Metrics))

			r.Get("/users/{id}/following", cfg.UserHandler.Following)
			r.Get("/users/{id}/followers", cfg.UserHandler.Followers)
			r.Get("/users/{id}/likes", cfg.UserHandler.Likes)
			r.Post("/users/follow/{id}", cfg.UserHandler.Follow)
			r.Post("/users/stop-following/{id}", cfg.UserHandler.StopFollowing)
			r.Post("/users/add_like/{id}", cfg.UserHandler.AddLike)
			r.Get("/users/profile", cfg.UserHandler.EditForm)
			r.Post("/users/profile", cfg.UserHandler.Edit)
			r.Post("/users/delete", cfg.UserHandler.Delete)

			r.Get("/messages/new", cfg.MessageHandler.NewForm)
			r.Post("/messages/new", cfg.MessageHandler.Create)
			r.Post("/messages/{id}/delete", cfg.MessageHandler.Delete)
		})

		// JSON API for bearer-token clients
		r.Route("/api", func(r chi.Router) {
			r.Post("/token", cfg.AuthHandler.Token)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireAPIUser(cfg.Metrics))

				r.Get("/timeline", cfg.APIHandler.Timeline)
				r.Post("/messages", cfg.APIHandler.CreateMessage)
				r.Get("/messages/{id}", cfg.APIHandler.GetMessage)
			})
		})
	})

	return r
}
