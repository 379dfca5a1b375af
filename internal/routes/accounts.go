package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soko-pay/soko_ledger/internal/settlement"
)

// RegisterAccountRoutes wires account and event ingestion endpoints. The
// idempotency middleware may be nil when no cache is configured.
func RegisterAccountRoutes(api fiber.Router, h *settlement.Handler, idem fiber.Handler) {
	api.Get("/accounts/:ownerId/balance", h.Balance)
	api.Get("/accounts/:ownerId/transactions", h.Transactions)

	if idem != nil {
		api.Post("/accounts", idem, h.Register)
		api.Post("/events", idem, h.Event)
		return
	}
	api.Post("/accounts", h.Register)
	api.Post("/events", h.Event)
}
