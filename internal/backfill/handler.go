package backfill

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the manual backfill trigger.
type Handler struct {
	sync *Sync
}

// NewHandler builds a backfill HTTP handler.
func NewHandler(sync *Sync) *Handler {
	return &Handler{sync: sync}
}

// Run triggers one synchronous backfill pass and returns its report.
func (h *Handler) Run(c *fiber.Ctx) error {
	report, err := h.sync.Run(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(report)
}
