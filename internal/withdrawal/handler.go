package withdrawal

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/soko-pay/soko_ledger/internal/ledger"
)

// Handler exposes withdrawal HTTP endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a withdrawal HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type requestRequest struct {
	OwnerID       string `json:"owner_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

type processRequest struct {
	Decision    string `json:"decision" validate:"required,oneof=approved rejected"`
	AdminNote   string `json:"admin_note"`
	ProcessedBy string `json:"processed_by" validate:"required"`
}

type requestResponse struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Amount      int64      `json:"amount"`
	Status      string     `json:"status"`
	AdminNote   string     `json:"admin_note,omitempty"`
	ProcessedBy string     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toResponse(req Request) requestResponse {
	resp := requestResponse{
		ID:          req.ID,
		OwnerID:     req.OwnerID,
		Amount:      req.Amount,
		Status:      string(req.Status),
		AdminNote:   req.AdminNote,
		ProcessedBy: req.ProcessedBy,
		CreatedAt:   req.CreatedAt,
	}
	if !req.ProcessedAt.IsZero() && req.ProcessedAt.Unix() != 0 {
		t := req.ProcessedAt
		resp.ProcessedAt = &t
	}
	return resp
}

// Create opens a withdrawal request for the owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var body requestRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	req, err := h.service.Request(c.UserContext(), RequestInput{
		OwnerID: body.OwnerID,
		Amount:  body.Amount,
		Bank: ledger.BankDetails{
			BankName:      body.BankName,
			AccountNumber: body.AccountNumber,
			AccountHolder: body.AccountHolder,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrAccountNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toResponse(req))
}

// Process applies an admin approve/reject decision.
func (h *Handler) Process(c *fiber.Ctx) error {
	var body processRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	req, err := h.service.Process(c.UserContext(), c.Params("requestId"), Decision(body.Decision), body.AdminNote, body.ProcessedBy)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidState):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(toResponse(req))
}

// List returns withdrawal requests, optionally filtered by status.
func (h *Handler) List(c *fiber.Ctx) error {
	status := Status(c.Query("status"))
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	requests, err := h.service.List(c.UserContext(), status, limit, offset)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toResponse(req))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"withdrawals": out, "limit": limit, "offset": offset})
}

// Get returns one withdrawal request.
func (h *Handler) Get(c *fiber.Ctx) error {
	req, err := h.service.Get(c.UserContext(), c.Params("requestId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(req))
}
