package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	if apiHandler.provider != nil {
		r.Route("/auth/google", func(r chi.Router) {
			r.Get("/login", apiHandler.GoogleLoginHandler)
			r.Get("/callback", apiHandler.GoogleCallbackHandler)
		})
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", apiHandler.HealthHandler)
		r.Post("/auth/logout", apiHandler.LogoutHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AuthMiddleware)

			r.Get("/questions", apiHandler.ListQuestionsHandler)

			r.Get("/sessions", apiHandler.ListSessionsHandler)
			r.Post("/sessions", apiHandler.CreateSessionHandler)
			r.Get("/sessions/{sessionID}", apiHandler.GetSessionHandler)
			r.Get("/sessions/{sessionID}/details", apiHandler.GetSessionDetailsHandler)

			r.Get("/profile", apiHandler.GetProfileHandler)
			r.Patch("/profile", apiHandler.UpdateProfileHandler)
		})
	})

	return r
}
