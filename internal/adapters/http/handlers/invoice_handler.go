package handlers

import (
	"fmt"
	"net/url"
	"strconv"

	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/core/services"
	"facture-workflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// InvoiceHandler handles the facture endpoints
type InvoiceHandler struct {
	invoiceService *services.InvoiceService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoiceService *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// List returns a page of invoices
// @Summary List invoices
// @Description scope is one of mine, pending-v1, pending-v2, pending-treasury, all, urgent, overdue; it defaults to the caller's work queue
// @Tags Factures
// @Produce json
// @Security BearerAuth
// @Param scope query string false "List scope"
// @Param status query string false "Status filter"
// @Param search query string false "Supplier, number or designation"
// @Param legal_form query string false "Legal form"
// @Param modality query string false "Payment modality"
// @Param number query string false "Part of the invoice number"
// @Param issue_from query string false "Issued on or after (YYYY-MM-DD)"
// @Param issue_to query string false "Issued on or before (YYYY-MM-DD)"
// @Param due_from query string false "Due on or after (YYYY-MM-DD)"
// @Param due_to query string false "Due on or before (YYYY-MM-DD)"
// @Param sort query string false "created_at, number, supplier_name, issue_date, due_date, amount_ttc or status"
// @Param order query string false "asc or desc" default(desc)
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /factures [get]
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	result, err := h.invoiceService.List(c.Context(), actor, &services.ListInvoicesInput{
		Scope:     c.Query("scope"),
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		LegalForm: c.Query("legal_form"),
		Modality:  c.Query("modality"),
		Number:    c.Query("number"),
		IssueFrom: c.Query("issue_from"),
		IssueTo:   c.Query("issue_to"),
		DueFrom:   c.Query("due_from"),
		DueTo:     c.Query("due_to"),
		Sort:      c.Query("sort"),
		Order:     c.Query("order"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Invoices retrieved successfully", result)
}

// Create records a draft invoice
// @Summary Create invoice
// @Tags Factures
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.InvoiceInput true "Invoice"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /factures [post]
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req services.InvoiceInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	inv, err := h.invoiceService.Create(c.Context(), actor, &req)
	if err != nil {
		return respondError(c, err)
	}
	return response.Created(c, "Invoice created successfully", inv)
}

// Get returns one invoice
// @Summary Get invoice
// @Tags Factures
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /factures/{id} [get]
func (h *InvoiceHandler) Get(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}

	inv, err := h.invoiceService.Get(c.Context(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Invoice retrieved successfully", inv)
}

// Update edits a draft or rejected invoice
// @Summary Update invoice
// @Description A rejected invoice goes back to draft
// @Tags Factures
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param body body services.InvoiceInput true "Invoice"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /factures/{id} [put]
func (h *InvoiceHandler) Update(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}

	var req services.InvoiceInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	inv, err := h.invoiceService.Update(c.Context(), actor, id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Invoice updated successfully", inv)
}

// Delete removes a draft invoice
// @Summary Delete invoice
// @Tags Factures
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /factures/{id} [delete]
func (h *InvoiceHandler) Delete(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}

	if err := h.invoiceService.Delete(c.Context(), actor, id); err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Invoice deleted successfully", nil)
}

// Submit sends a draft to level-1 validation
// @Summary Submit invoice
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /factures/{id}/submit [post]
func (h *InvoiceHandler) Submit(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}

	inv, err := h.invoiceService.Submit(c.Context(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Invoice submitted", inv)
}

type decisionFunc func(*InvoiceHandler, *fiber.Ctx, domain.Actor, uint, *services.DecisionInput) (interface{}, error)

// decide parses the optional comment body shared by the decision routes
func (h *InvoiceHandler) decide(message string, run decisionFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, id, err := h.target(c)
		if err != nil {
			return err
		}

		var req services.DecisionInput
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return response.BadRequest(c, "Invalid request body")
			}
		}

		inv, err := run(h, c, actor, id, &req)
		if err != nil {
			return respondError(c, err)
		}
		return response.Success(c, message, inv)
	}
}

// Cancel abandons a draft
// @Summary Cancel invoice
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param body body services.DecisionInput false "Comment"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /factures/{id}/cancel [post]
func (h *InvoiceHandler) Cancel() fiber.Handler {
	return h.decide("Invoice cancelled", func(h *InvoiceHandler, c *fiber.Ctx, a domain.Actor, id uint, in *services.DecisionInput) (interface{}, error) {
		return h.invoiceService.Cancel(c.Context(), a, id, in)
	})
}

// ApproveV1 records the level-1 approval
// @Summary Approve at level 1
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param body body services.DecisionInput false "Optional note, at least 10 characters"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /factures/{id}/approve-v1 [post]
func (h *InvoiceHandler) ApproveV1() fiber.Handler {
	return h.decide("Invoice approved at level 1", func(h *InvoiceHandler, c *fiber.Ctx, a domain.Actor, id uint, in *services.DecisionInput) (interface{}, error) {
		return h.invoiceService.ApproveV1(c.Context(), a, id, in)
	})
}

// RejectV1 rejects at level 1
// @Summary Reject at level 1
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param body body services.DecisionInput true "Reason, 10 to 500 characters"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /factures/{id}/reject-v1 [post]
func (h *InvoiceHandler) RejectV1() fiber.Handler {
	return h.decide("Invoice rejected at level 1", func(h *InvoiceHandler, c *fiber.Ctx, a domain.Actor, id uint, in *services.DecisionInput) (interface{}, error) {
		return h.invoiceService.RejectV1(c.Context(), a, id, in)
	})
}

// ApproveV2 records the level-2 approval
// @Summary Approve at level 2
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param body body services.DecisionInput false "Optional note, at least 10 characters"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /factures/{id}/approve-v2 [post]
func (h *InvoiceHandler) ApproveV2() fiber.Handler {
	return h.decide("Invoice approved at level 2", func(h *InvoiceHandler, c *fiber.Ctx, a domain.Actor, id uint, in *services.DecisionInput) (interface{}, error) {
		return h.invoiceService.ApproveV2(c.Context(), a, id, in)
	})
}

// RejectV2 rejects at level 2
// @Summary Reject at level 2
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param body body services.DecisionInput true "Reason, 10 to 500 characters"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /factures/{id}/reject-v2 [post]
func (h *InvoiceHandler) RejectV2() fiber.Handler {
	return h.decide("Invoice rejected at level 2", func(h *InvoiceHandler, c *fiber.Ctx, a domain.Actor, id uint, in *services.DecisionInput) (interface{}, error) {
		return h.invoiceService.RejectV2(c.Context(), a, id, in)
	})
}

// Pay records a payment
// @Summary Pay invoice
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param body body services.PayInput true "Payment"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /factures/{id}/pay [post]
func (h *InvoiceHandler) Pay(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}

	var req services.PayInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	inv, err := h.invoiceService.Pay(c.Context(), actor, id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Invoice paid", inv)
}

// BatchPay pays several invoices at once
// @Summary Pay several invoices
// @Description Each invoice succeeds or fails on its own; an empty reference becomes PAY{YYYYMMDD}-{id}
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.BatchPayInput true "Batch"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /factures/batch-pay [post]
func (h *InvoiceHandler) BatchPay(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req services.BatchPayInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	out, err := h.invoiceService.BatchPay(c.Context(), actor, &req)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, fmt.Sprintf("%d paid, %d failed", out.Paid, out.Failed), out)
}

// History returns the validation trail
// @Summary Invoice history
// @Tags Factures
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /factures/{id}/history [get]
func (h *InvoiceHandler) History(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}

	traces, err := h.invoiceService.History(c.Context(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "History retrieved successfully", traces)
}

// UploadAttachment stores the invoice scan
// @Summary Upload attachment
// @Description PDF, JPEG, PNG, DOC or DOCX up to 10MB, sent as the multipart field "file"
// @Tags Factures
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param file formData file true "Scan"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /factures/{id}/attachment [post]
func (h *InvoiceHandler) UploadAttachment(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return response.ValidationFailed(c, map[string]string{"file": "is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer f.Close()

	inv, err := h.invoiceService.AttachFile(c.Context(), actor, id,
		fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		return respondError(c, err)
	}
	return response.Success(c, "Attachment stored", inv)
}

// DownloadAttachment streams the invoice scan
// @Summary Download attachment
// @Tags Factures
// @Produce octet-stream
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {file} file
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /factures/{id}/attachment [get]
func (h *InvoiceHandler) DownloadAttachment(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}

	file, err := h.invoiceService.Attachment(c.Context(), actor, id)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, file.MIME)
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(file.Name)))
	// fasthttp closes the file once the body is written
	return c.SendStream(file.File, int(file.Size))
}

// target reads the caller and the :id parameter. Failures are returned
// as *fiber.Error for the app error handler to render.
func (h *InvoiceHandler) target(c *fiber.Ctx) (domain.Actor, uint, error) {
	actor, ok := actorFrom(c)
	if !ok {
		return actor, 0, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := paramID(c)
	if err != nil {
		return actor, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid invoice ID")
	}
	return actor, id, nil
}
