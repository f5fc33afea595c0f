package handlers

import (
	"errors"
	"strconv"

	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/core/services"
	"facture-workflow/internal/pkg/logger"
	"facture-workflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Error codes carried next to the message so clients can branch on them
const (
	CodeTokenExpired     = "token_expired"
	CodeInvalidToken     = "invalid_token"
	CodeWrongState       = "wrong_state"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeConcurrentUpdate = "concurrent_update"
	CodeInternal         = "internal_error"
)

// respondError maps a service error onto the HTTP taxonomy. Anything
// unrecognised is logged and reported as a generic 500.
func respondError(c *fiber.Ctx, err error) error {
	var verrs domain.ValidationErrors
	var terr *domain.TransitionError

	switch {
	case errors.As(err, &verrs):
		return response.ValidationFailed(c, verrs)

	case errors.As(err, &terr):
		switch {
		case errors.Is(terr, domain.ErrWrongRole), errors.Is(terr, domain.ErrNotAssigned):
			return response.ErrorWithCode(c, fiber.StatusForbidden, CodeForbidden, terr.Error())
		default:
			return response.ErrorWithCode(c, fiber.StatusBadRequest, CodeWrongState, terr.Error())
		}

	case errors.Is(err, services.ErrInvoiceNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrAttachmentNotFound):
		return response.ErrorWithCode(c, fiber.StatusNotFound, CodeNotFound, err.Error())

	case errors.Is(err, services.ErrInvoiceAccessDenied),
		errors.Is(err, services.ErrCreateForbidden),
		errors.Is(err, services.ErrAdminNotManageable),
		errors.Is(err, services.ErrUserInactive):
		return response.ErrorWithCode(c, fiber.StatusForbidden, CodeForbidden, err.Error())

	case errors.Is(err, services.ErrEmailAlreadyExists):
		return response.ErrorWithCode(c, fiber.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, services.ErrConcurrentUpdate):
		return response.ErrorWithCode(c, fiber.StatusConflict, CodeConcurrentUpdate, err.Error())

	case errors.Is(err, services.ErrCannotDeleteSelf),
		errors.Is(err, services.ErrCannotChangeOwnRole),
		errors.Is(err, services.ErrOldPasswordWrong),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrNotReferenceRole):
		return response.BadRequest(c, err.Error())

	case errors.Is(err, services.ErrTokenExpired):
		return response.ErrorWithCode(c, fiber.StatusUnauthorized, CodeTokenExpired, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrTokenRevoked):
		return response.ErrorWithCode(c, fiber.StatusUnauthorized, CodeInvalidToken, err.Error())
	}

	logger.L().Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return response.ErrorWithCode(c, fiber.StatusInternalServerError, CodeInternal,
		"Something went wrong, please try again later")
}

// actorFrom reads the identity set by the auth middleware
func actorFrom(c *fiber.Ctx) (domain.Actor, bool) {
	id, ok := c.Locals("userID").(uint)
	if !ok {
		return domain.Actor{}, false
	}
	role, _ := c.Locals("role").(string)
	return domain.Actor{ID: id, Role: domain.Role(role)}, true
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
