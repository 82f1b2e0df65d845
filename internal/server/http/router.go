package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the Cart Storage API: the six cart operations
// plus the price lookup, all behind session authentication.
func NewRouter(handler *CartHandler, resolve TokenResolver, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/cart", func(r chi.Router) {
		// Price lookup is catalog data, not user data.
		r.Post("/get-price", handler.GetPrice)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(resolve))

			r.Get("/", handler.GetCart)
			r.Post("/", handler.ReplaceCart)
			r.Post("/add", handler.AddItem)
			r.Post("/update", handler.UpdateItem)
			r.Post("/remove", handler.RemoveItem)
			r.Post("/clear", handler.ClearCart)
		})
	})

	return r
}
