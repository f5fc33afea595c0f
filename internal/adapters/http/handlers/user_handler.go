package handlers

import (
	"strconv"

	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/core/services"
	"facture-workflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles listing users (Admin only)
// @Summary List users
// @Description Paginated list of non-admin users (Admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param search query string false "Matches name or email"
// @Param role query string false "U1, V1, V2 or T1"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	result, err := h.userService.ListUsers(c.Context(), &services.ListUsersInput{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
		Role:   c.Query("role"),
	})
	if err != nil {
		return respondError(c, err)
	}

	return response.Success(c, "Users retrieved successfully", result)
}

// GetUser handles getting a user by ID (Admin only)
// @Summary Get user by ID
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	user, err := h.userService.GetUserByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return response.Success(c, "User retrieved successfully", fiber.Map{
		"user": user,
	})
}

// CreateUser handles creating a user (Admin only)
// @Summary Create user
// @Description ADMIN accounts cannot be created through the API
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateUserInput true "User data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req services.CreateUserInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.CreateUser(c.Context(), &req)
	if err != nil {
		return respondError(c, err)
	}

	return response.Created(c, "User created successfully", fiber.Map{
		"user": user,
	})
}

// UpdateUser handles updating a user (Admin only)
// @Summary Update user
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body services.UpdateUserByAdminInput true "Update data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/users/{id} [put]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}
	admin, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req services.UpdateUserByAdminInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.UpdateUserByAdmin(c.Context(), id, admin.ID, &req)
	if err != nil {
		return respondError(c, err)
	}

	return response.Success(c, "User updated successfully", fiber.Map{
		"user": user,
	})
}

// DeactivateUser disables a user's login (Admin only)
// @Summary Deactivate user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/users/{id}/deactivate [post]
func (h *UserHandler) DeactivateUser(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}
	admin, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	user, err := h.userService.DeactivateUser(c.Context(), id, admin.ID)
	if err != nil {
		return respondError(c, err)
	}

	return response.Success(c, "User deactivated successfully", fiber.Map{
		"user": user,
	})
}

// DeleteUser handles deleting a user (Admin only)
// @Summary Delete user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}
	admin, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	if err := h.userService.DeleteUser(c.Context(), id, admin.ID); err != nil {
		return respondError(c, err)
	}

	return response.Success(c, "User deleted successfully", nil)
}

// ReferenceList returns the active users of one workflow role
// @Summary Assignable users
// @Description Active V1 validators, V2 validators or treasurers
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param kind path string true "v1, v2 or treasurers"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/reference/{kind} [get]
func (h *UserHandler) ReferenceList(c *fiber.Ctx) error {
	var role domain.Role
	switch c.Params("kind") {
	case "v1":
		role = domain.RoleV1
	case "v2":
		role = domain.RoleV2
	case "treasurers":
		role = domain.RoleT1
	default:
		return response.NotFound(c, "Unknown reference list")
	}

	refs, err := h.userService.ReferenceList(c.Context(), role)
	if err != nil {
		return respondError(c, err)
	}

	return response.Success(c, "Reference list retrieved successfully", refs)
}

// MyStats returns the caller's workflow counters
// @Summary My counters
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /users/me/stats [get]
func (h *UserHandler) MyStats(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	stats, err := h.userService.Stats(c.Context(), actor.ID)
	if err != nil {
		return respondError(c, err)
	}

	return response.Success(c, "Statistics retrieved successfully", stats)
}
