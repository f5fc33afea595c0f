package handlers

import (
	"facture-workflow/internal/core/services"
	"facture-workflow/internal/pkg/pagination"
	"facture-workflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// NotificationHandler handles in-app notification endpoints
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List returns the caller's notifications, newest first
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread ones"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /notifications [get]
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	list, err := h.notificationService.List(c.Context(), actor.ID, c.QueryBool("unread"), pagination.GetParams(c))
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Notifications retrieved successfully", list)
}

// UnreadCount returns the number of unread notifications
// @Summary Unread count
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	n, err := h.notificationService.CountUnread(c.Context(), actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Unread count retrieved successfully", fiber.Map{"unread": n})
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := paramID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid notification ID")
	}

	if err := h.notificationService.MarkRead(c.Context(), id, actor.ID); err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Notification marked as read", nil)
}

// MarkAllRead marks every notification of the caller as read
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	n, err := h.notificationService.MarkAllRead(c.Context(), actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Notifications marked as read", fiber.Map{"updated": n})
}
