package handler

import (
	"errors"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Helper to take the owner identity from context (set by auth middleware)
func ownerID(c *fiber.Ctx) uuid.UUID {
	id, ok := c.Locals("user_id").(uuid.UUID)
	if !ok {
		return uuid.Nil // Shouldn't happen on protected routes
	}
	return id
}

// Maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrStockNotFound),
		errors.Is(err, service.ErrSaleNotFound),
		errors.Is(err, service.ErrBatchNotFound):
		return 404
	case errors.Is(err, service.ErrWrongOwner):
		return 403
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrBatchAlreadyProcessing),
		errors.Is(err, service.ErrBatchTerminal):
		return 409
	default:
		return 400
	}
}

type StockHandler struct {
	service service.StockService
}

func NewStockHandler(s service.StockService) *StockHandler {
	return &StockHandler{service: s}
}

func (h *StockHandler) GetStocks(c *fiber.Ctx) error {
	stocks, err := h.service.GetStocks(ownerID(c), c.Query("q"))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(stocks)
}

func (h *StockHandler) GetLowStocks(c *fiber.Ctx) error {
	stocks, err := h.service.GetLowStocks(ownerID(c))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(stocks)
}

func (h *StockHandler) GetStock(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid stock ID"})
	}

	stock, err := h.service.GetStock(ownerID(c), id)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(stock)
}

func (h *StockHandler) CreateStock(c *fiber.Ctx) error {
	var stock model.Stock
	if err := c.BodyParser(&stock); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if err := h.service.CreateStock(ownerID(c), &stock); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(201).JSON(fiber.Map{"message": "Stock item created", "data": stock})
}

func (h *StockHandler) UpdateStock(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid stock ID"})
	}

	var stock model.Stock
	if err := c.BodyParser(&stock); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	updated, err := h.service.UpdateStock(ownerID(c), id, &stock)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Stock item updated", "data": updated})
}

func (h *StockHandler) DeleteStock(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid stock ID"})
	}

	if err := h.service.DeleteStock(ownerID(c), id); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Stock item deleted"})
}
