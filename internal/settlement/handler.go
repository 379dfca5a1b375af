package settlement

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/soko-pay/soko_ledger/internal/ledger"
)

// Handler exposes the account and event intake HTTP endpoints.
type Handler struct {
	engine   *Engine
	validate *validator.Validate
}

// NewHandler builds a settlement HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine, validate: validator.New()}
}

type registerRequest struct {
	OwnerID       string `json:"owner_id" validate:"required"`
	OwnerType     string `json:"owner_type" validate:"required,oneof=seller courier"`
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	AccountHolder string `json:"account_holder" validate:"required"`
}

type accountResponse struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id"`
	OwnerType     string `json:"owner_type"`
	Balance       int64  `json:"balance"`
	TotalCredited int64  `json:"total_credited"`
	TotalDebited  int64  `json:"total_debited"`
	Pending       int64  `json:"pending"`
	Active        bool   `json:"active"`
}

func toAccountResponse(acct ledger.Account) accountResponse {
	return accountResponse{
		ID:            acct.ID,
		OwnerID:       acct.OwnerID,
		OwnerType:     string(acct.OwnerType),
		Balance:       acct.Balance,
		TotalCredited: acct.TotalCredited,
		TotalDebited:  acct.TotalDebited,
		Pending:       acct.Pending,
		Active:        acct.Active,
	}
}

// Register creates a ledger account with payout details and sweeps any escrow.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	acct, err := h.engine.RegisterAccount(c.UserContext(), RegisterInput{
		OwnerID:   req.OwnerID,
		OwnerType: ledger.OwnerType(req.OwnerType),
		Bank: ledger.BankDetails{
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			AccountHolder: req.AccountHolder,
		},
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAccountExists) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toAccountResponse(acct))
}

// Balance returns the owner's current account state.
func (h *Handler) Balance(c *fiber.Ctx) error {
	acct, err := h.engine.Account(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(acct))
}

type entryResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	OrderRef      string    `json:"order_ref,omitempty"`
	ReferenceCode string    `json:"reference_code,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transactions lists the owner's entry log, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	entries, err := h.engine.Entries(c.UserContext(), c.Params("ownerId"), limit, offset)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:            e.ID,
			Kind:          string(e.Kind),
			Amount:        e.Amount,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			OrderRef:      e.OrderRef,
			ReferenceCode: e.ReferenceCode,
			Description:   e.Description,
			CreatedAt:     e.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner_id":     c.Params("ownerId"),
		"transactions": out,
		"limit":        limit,
		"offset":       offset,
	})
}

type eventRequest struct {
	OwnerID    string    `json:"owner_id" validate:"required"`
	OrderRef   string    `json:"order_ref" validate:"required"`
	Amount     int64     `json:"amount" validate:"required,gt=0"`
	EffectType string    `json:"effect_type" validate:"required,oneof=order_delivered order_cancelled cod_collected cod_deposited"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event ingests one order/shipment workflow event. Replays of the same order
// reference settle as no-ops.
func (h *Handler) Event(c *fiber.Ctx) error {
	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	err := h.engine.HandleEvent(c.UserContext(), Event{
		OwnerID:    req.OwnerID,
		OrderRef:   req.OrderRef,
		Amount:     req.Amount,
		EffectType: EffectType(req.EffectType),
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownEffect), errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}
