package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/fecoanthony/pointInvest/internal/middleware"
	"github.com/fecoanthony/pointInvest/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware платформы.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Get("/plans", h.GetPlans)
		r.Get("/plans/{id}", h.GetPlan)

		r.Route("/user", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/dashboard", h.GetDashboard)
			r.Get("/profile", h.GetProfile)
			r.Get("/balance", h.GetBalance)

			r.Get("/transactions", h.GetTransactions)
			r.Get("/transactions/{id}", h.GetTransaction)

			r.Post("/deposits/crypto", h.CreateCryptoDeposit)
			r.Post("/withdrawals", h.RequestWithdrawal)

			r.Get("/investments", h.GetInvestments)
			r.Post("/investments", h.CreateInvestment)
			r.Post("/investments/{id}/cancel", h.CancelInvestment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(custommiddleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin))

			r.Get("/users", h.AdminListUsers)
			r.Get("/users/{id}", h.AdminGetUser)
			r.Post("/users/{id}/suspend", h.AdminToggleUserSuspend)

			r.Post("/deposits", h.AdminDeposit)
			r.Get("/deposits/crypto/pending", h.AdminPendingDeposits)
			r.Post("/deposits/crypto/{id}/approve", h.AdminApproveDeposit)

			r.Post("/withdrawals/{id}/process", h.AdminProcessWithdrawal)

			r.Get("/transactions", h.AdminListTransactions)

			r.Get("/investments", h.AdminListInvestments)
			r.Post("/investments/{id}/toggle", h.AdminToggleInvestment)

			r.Get("/plans", h.AdminListPlans)
			r.Post("/plans", h.AdminCreatePlan)
			r.Put("/plans/{id}", h.AdminUpdatePlan)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleSuperAdmin))

				r.Put("/users/{id}/role", h.AdminSetUserRole)
				r.Post("/investments/{id}/force-cancel", h.AdminForceCancelInvestment)
				r.Post("/plans/{id}/toggle", h.AdminTogglePlan)
			})
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
