package handlers

import (
	"context"
	"errors"

	"pixstore/internal/models"
	"pixstore/internal/repositories"
	"pixstore/internal/services"
	"pixstore/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// SweepRunner runs one expiry and redrive pass.
type SweepRunner interface {
	RunOnce(ctx context.Context) (services.SweepResult, error)
}

// AdminHandler serves the operator back-office. Every route requires a token.
type AdminHandler struct {
	orders   *services.OrderService
	products *services.ProductService
	sweeper  SweepRunner
}

// NewAdminHandler creates a new AdminHandler. sweeper may be nil.
func NewAdminHandler(orders *services.OrderService, products *services.ProductService, sweeper SweepRunner) *AdminHandler {
	return &AdminHandler{orders: orders, products: products, sweeper: sweeper}
}

// RegisterRoutes registers the admin routes on router, which must already
// enforce operator authentication.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/orders", h.HandleListOrders)
	router.Post("/orders/:id/cancel", h.HandleCancelOrder)
	router.Post("/products", h.HandleCreateProduct)
	router.Post("/sweep", h.HandleSweep)
}

// HandleListOrders lists orders, optionally filtered by status and buyer.
func (h *AdminHandler) HandleListOrders(c *fiber.Ctx) error {
	filter := repositories.OrderFilter{
		Status:         models.OrderStatus(c.Query("status")),
		BuyerReference: c.Query("buyer_reference"),
		Limit:          c.QueryInt("limit"),
		Offset:         c.QueryInt("offset"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Unknown order status",
		})
	}
	if filter.Offset < 0 || filter.Limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Offset and limit must not be negative",
		})
	}
	orders, err := h.orders.ListOrders(c.UserContext(), filter)
	if err != nil {
		logger.FromContext(c.UserContext()).Error().Err(err).Msg("failed to list orders")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
		})
	}
	return c.JSON(orders)
}

// HandleCancelOrder cancels a pending order and returns its stock.
func (h *AdminHandler) HandleCancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.orders.CancelOrder(c.UserContext(), orderID)
	switch {
	case err == nil:
		logger.FromContext(c.UserContext()).Info().Str("order_id", orderID).Msg("order cancelled by operator")
		return c.JSON(order)
	case errors.Is(err, repositories.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Order not found",
		})
	case errors.Is(err, services.ErrOrderNotCancellable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Order can no longer be cancelled",
			"error":   err.Error(),
		})
	default:
		logger.FromContext(c.UserContext()).Error().Err(err).Str("order_id", orderID).Msg("failed to cancel order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not cancel order",
		})
	}
}

// HandleCreateProduct adds a product to the catalog.
func (h *AdminHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badBody(c, err)
	}
	err := h.products.CreateProduct(c.UserContext(), &product)
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(product)
	case errors.Is(err, repositories.ErrDuplicateID):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Product already exists",
		})
	case isValidation(err):
		return validationFailed(c, err)
	default:
		logger.FromContext(c.UserContext()).Error().Err(err).Str("product_id", product.ID).Msg("failed to create product")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create product",
		})
	}
}

// HandleSweep runs an expiry and redrive pass immediately.
func (h *AdminHandler) HandleSweep(c *fiber.Ctx) error {
	if h.sweeper == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Sweeper is not configured",
		})
	}
	res, err := h.sweeper.RunOnce(c.UserContext())
	if err != nil {
		logger.FromContext(c.UserContext()).Error().Err(err).Msg("manual sweep finished with errors")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Sweep finished with errors",
			"result":  res,
			"error":   err.Error(),
		})
	}
	return c.JSON(res)
}
