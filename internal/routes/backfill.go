package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soko-pay/soko_ledger/internal/backfill"
)

// RegisterBackfillRoutes wires the manual backfill trigger. The run walks the
// whole order history, so it is admin-only and rate limited.
func RegisterBackfillRoutes(api fiber.Router, h *backfill.Handler, admin, rateLimit fiber.Handler) {
	api.Post("/backfill/run", admin, rateLimit, h.Run)
}
