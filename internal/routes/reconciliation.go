package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soko-pay/soko_ledger/internal/reconciliation"
)

// RegisterReconciliationRoutes wires the COD reconciliation report and the
// manual recompute trigger.
func RegisterReconciliationRoutes(api fiber.Router, h *reconciliation.Handler, admin fiber.Handler) {
	api.Get("/reconciliation/:courierId", h.Report)
	api.Post("/reconciliation/:courierId/run", admin, h.Run)
}
