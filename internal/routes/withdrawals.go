package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soko-pay/soko_ledger/internal/withdrawal"
)

// RegisterWithdrawalRoutes wires withdrawal request and approval endpoints.
// Processing a request is an operator action and sits behind admin auth.
func RegisterWithdrawalRoutes(api fiber.Router, h *withdrawal.Handler, admin, idem fiber.Handler) {
	api.Get("/withdrawals", h.List)
	api.Get("/withdrawals/:requestId", h.Get)

	if idem != nil {
		api.Post("/withdrawals", idem, h.Create)
		api.Post("/withdrawals/:requestId/process", admin, idem, h.Process)
		return
	}
	api.Post("/withdrawals", h.Create)
	api.Post("/withdrawals/:requestId/process", admin, h.Process)
}
