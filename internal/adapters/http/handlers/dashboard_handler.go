package handlers

import (
	"facture-workflow/internal/core/services"
	"facture-workflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler handles dashboard and statistics endpoints
type DashboardHandler struct {
	statsService *services.StatsService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(statsService *services.StatsService) *DashboardHandler {
	return &DashboardHandler{
		statsService: statsService,
	}
}

// GetDashboard returns the caller's dashboard
// @Summary Dashboard
// @Description Counts and amounts over the invoices the caller can view, plus their own pending tasks
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	data, err := h.statsService.Dashboard(c.Context(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Dashboard retrieved successfully", data)
}

// TopSuppliers ranks suppliers by paid volume (Admin only)
// @Summary Top suppliers
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Ranking size" default(10)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/stats/suppliers [get]
func (h *DashboardHandler) TopSuppliers(c *fiber.Ctx) error {
	rows, err := h.statsService.TopSuppliers(c.Context(), c.QueryInt("limit", services.DefaultTopSuppliers))
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Supplier ranking retrieved successfully", rows)
}

// ValidatorPerformance counts decisions per validator (Admin only)
// @Summary Validator performance
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/stats/validators [get]
func (h *DashboardHandler) ValidatorPerformance(c *fiber.Ctx) error {
	rows, err := h.statsService.ValidatorPerformance(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Validator performance retrieved successfully", rows)
}
