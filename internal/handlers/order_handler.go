package handlers

import (
	"errors"

	"pixstore/internal/repositories"
	"pixstore/internal/services"
	"pixstore/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles buyer-facing order requests.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
}

// HandleCreateOrder reserves stock and returns the order with its Pix payload.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	checkout, err := h.service.CreateOrder(c.UserContext(), req)
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(checkout)
	case errors.Is(err, repositories.ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Quantity must be at least 1",
			"error":   err.Error(),
		})
	case errors.Is(err, repositories.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Product not found",
			"error":   err.Error(),
		})
	case errors.Is(err, repositories.ErrOutOfStock):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Not enough stock for this order",
			"error":   err.Error(),
		})
	default:
		logger.FromContext(c.UserContext()).Error().Err(err).Str("product_id", req.ProductID).Msg("failed to create order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create order",
		})
	}
}

// HandleGetOrderByID returns an order; the payload is included while it is still payable.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	checkout, err := h.service.GetOrder(c.UserContext(), orderID)
	if errors.Is(err, repositories.ErrOrderNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Order not found",
		})
	}
	if err != nil {
		logger.FromContext(c.UserContext()).Error().Err(err).Str("order_id", orderID).Msg("failed to get order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve order",
		})
	}
	return c.JSON(checkout)
}
