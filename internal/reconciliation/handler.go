package reconciliation

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/soko-pay/soko_ledger/internal/ledger"
)

// Handler exposes reconciliation HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a reconciliation HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type recordResponse struct {
	CourierID      string    `json:"courier_id"`
	Date           string    `json:"date"`
	TotalCollected int64     `json:"total_collected"`
	TotalDeposited int64     `json:"total_deposited"`
	Difference     int64     `json:"difference"`
	Status         string    `json:"status"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toResponse(rec Record) recordResponse {
	return recordResponse{
		CourierID:      rec.CourierID,
		Date:           rec.Date,
		TotalCollected: rec.TotalCollected,
		TotalDeposited: rec.TotalDeposited,
		Difference:     rec.Difference,
		Status:         string(rec.Status),
		UpdatedAt:      rec.UpdatedAt,
	}
}

// Report lists a courier's reconciliation records for a date range.
func (h *Handler) Report(c *fiber.Ctx) error {
	records, err := h.service.Report(c.UserContext(), c.Params("courierId"), c.Query("from"), c.Query("to"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toResponse(rec))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"courier_id": c.Params("courierId"), "records": out})
}

// Run recomputes one courier's record for the given date (default today).
func (h *Handler) Run(c *fiber.Ctx) error {
	date := c.Query("date")
	if date == "" {
		date = DateOf(time.Now())
	}

	rec, err := h.service.Run(c.UserContext(), c.Params("courierId"), date)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}
