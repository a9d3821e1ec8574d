package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/foodcourt-system/internal/middleware"
	"github.com/mmeshcher/foodcourt-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса фудкорт.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"alive": true}`)
	})

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/logout", h.Logout)
	r.Get("/api/menu", h.GetMenu)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/update-profile", h.UpdateProfile)

		r.Post("/api/cart/add", h.AddToCart)
		r.Get("/api/cart/view", h.ViewCart)
		r.Post("/api/order/checkout", h.Checkout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.RequireRole(model.RoleAdmin))

			r.Get("/admin", h.AdminDashboard)
			r.Post("/admin/add-item", h.AddMenuItem)
			r.Get("/admin/orders", h.ListOrders)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
