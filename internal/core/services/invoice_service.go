package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/adapters/persistence/repositories"
	"facture-workflow/internal/config"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/cache"
	"facture-workflow/internal/pkg/logger"
	"facture-workflow/internal/pkg/pagination"
	"facture-workflow/internal/pkg/validator"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Invoice service errors
var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrInvoiceAccessDenied = errors.New("you are not allowed to view this invoice")
	ErrCreateForbidden     = errors.New("only U1 users can create invoices")
	ErrConcurrentUpdate    = errors.New("invoice was modified by someone else, reload and retry")
)

// List scopes
const (
	ScopeMine            = "mine"
	ScopePendingV1       = "pending-v1"
	ScopePendingV2       = "pending-v2"
	ScopePendingTreasury = "pending-treasury"
	ScopeAll             = "all"
	ScopeUrgent          = "urgent"
	ScopeOverdue         = "overdue"
)

// InvoiceService handles invoice business logic
type InvoiceService struct {
	invoiceRepo repositories.InvoiceRepository
	userRepo    repositories.UserRepository
	traceRepo   repositories.TraceRepository
	notifier    WorkflowNotifier
	files       FileStore
	cache       *cache.Cache
	workflow    config.WorkflowConfig
	log         *zap.Logger
	now         func() time.Time
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	invoiceRepo repositories.InvoiceRepository,
	userRepo repositories.UserRepository,
	traceRepo repositories.TraceRepository,
	notifier WorkflowNotifier,
	files FileStore,
	c *cache.Cache,
	workflow config.WorkflowConfig,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		userRepo:    userRepo,
		traceRepo:   traceRepo,
		notifier:    notifier,
		files:       files,
		cache:       c,
		workflow:    workflow,
		log:         logger.Named("invoices"),
		now:         time.Now,
	}
}

// InvoiceInput carries the user-editable invoice fields. Dates accept
// YYYY-MM-DD, DD/MM/YYYY or RFC 3339.
type InvoiceInput struct {
	SupplierName  string   `json:"supplier_name" validate:"required,max=200"`
	LegalForm     string   `json:"legal_form" validate:"legal_form"`
	AmountHT      float64  `json:"amount_ht"`
	VATRate       *float64 `json:"vat_rate"`
	WithheldVAT   float64  `json:"withheld_vat"`
	Modality      string   `json:"modality" validate:"modality"`
	Rebillable    bool     `json:"rebillable"`
	IssueDate     string   `json:"issue_date"`
	ReceptionDate string   `json:"reception_date"`
	DeliveryDate  string   `json:"delivery_date"`
	Designation   string   `json:"designation"`
	OrderRef      string   `json:"order_ref" validate:"max=100"`
	Period        string   `json:"period" validate:"max=50"`
	Comments      string   `json:"comments"`
	Validator1ID  *uint    `json:"validator1_id"`
	Validator2ID  *uint    `json:"validator2_id"`
	// TreasurerID is optional; unassigned invoices get the least busy
	// treasurer at second-level approval.
	TreasurerID *uint `json:"treasurer_id"`
}

// ListInvoicesInput represents list invoices input. Dates accept the same
// layouts as InvoiceInput; ranges include both ends.
type ListInvoicesInput struct {
	Scope     string
	Status    string
	Search    string
	LegalForm string
	Modality  string
	Number    string
	IssueFrom string
	IssueTo   string
	DueFrom   string
	DueTo     string
	// Sort is a column of repositories.SortFields; Order is asc or desc.
	Sort  string
	Order string
	Page  int
	Limit int
}

// InvoiceList is a page of invoices
type InvoiceList struct {
	Items   []*models.InvoiceResponse `json:"items"`
	Summary domain.Summary            `json:"summary"`
	Meta    *pagination.Meta          `json:"meta"`
}

// Create records a new draft invoice for a U1 user
func (s *InvoiceService) Create(ctx context.Context, actor domain.Actor, input *InvoiceInput) (*models.InvoiceResponse, error) {
	if actor.Role != domain.RoleU1 {
		return nil, ErrCreateForbidden
	}

	inv := &models.Invoice{
		Status:    string(domain.StatusDraft),
		CreatorID: actor.ID,
	}
	if err := s.apply(ctx, inv, input); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.CreateNumbered(ctx, inv); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info("invoice created",
		zap.Uint("invoice_id", inv.ID),
		zap.String("number", inv.Number),
		zap.Uint("creator_id", actor.ID),
	)
	return s.Get(ctx, actor, inv.ID)
}

// Update changes the fields of a draft or rejected invoice. A rejected
// invoice goes back to draft with an EDIT entry on its trail.
func (s *InvoiceService) Update(ctx context.Context, actor domain.Actor, id uint, input *InvoiceInput) (*models.InvoiceResponse, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckTransition(inv.Subject(), actor, domain.ActionEdit); err != nil {
		return nil, err
	}

	if err := s.apply(ctx, inv, input); err != nil {
		return nil, err
	}

	from := inv.Status
	var trace *models.ValidationTrace
	if domain.Status(from) == domain.StatusRejected {
		inv.Status = string(domain.StatusDraft)
		inv.RejectionReason = ""
		inv.SubmittedAt = nil
		inv.ValidatedV1At = nil
		inv.ValidatedV2At = nil
		trace = &models.ValidationTrace{
			UserID:         actor.ID,
			Action:         string(domain.ActionEdit),
			Level:          string(domain.RoleU1),
			PreviousStatus: from,
			NewStatus:      inv.Status,
			Approved:       true,
		}
	}

	if err := s.invoiceRepo.Update(ctx, inv, from, trace); err != nil {
		if errors.Is(err, repositories.ErrStaleStatus) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info("invoice updated",
		zap.Uint("invoice_id", id),
		zap.Uint("user_id", actor.ID),
		zap.String("from", from),
		zap.String("to", inv.Status),
	)
	return s.Get(ctx, actor, id)
}

// Delete removes a draft invoice and its attachment
func (s *InvoiceService) Delete(ctx context.Context, actor domain.Actor, id uint) error {
	inv, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := domain.CheckTransition(inv.Subject(), actor, domain.ActionDelete); err != nil {
		return err
	}

	if err := s.invoiceRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)

	if err := s.files.Remove(inv.AttachmentPath); err != nil {
		s.log.Warn("could not remove attachment", zap.Uint("invoice_id", id), zap.Error(err))
	}

	s.log.Info("invoice deleted", zap.Uint("invoice_id", id), zap.Uint("user_id", actor.ID))
	return nil
}

// Get returns one invoice with its due-date metrics and the actions open
// to actor
func (s *InvoiceService) Get(ctx context.Context, actor domain.Actor, id uint) (*models.InvoiceResponse, error) {
	key, err := s.cache.Key(ctx, "invoice", fmt.Sprint(id), "user", fmt.Sprint(actor.ID))
	if err != nil {
		s.log.Warn("cache key unavailable", zap.Error(err))
	}

	var resp models.InvoiceResponse
	err = s.cached(ctx, key, &resp, func(ctx context.Context) (interface{}, error) {
		inv, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if !domain.CanView(inv.Subject(), actor) {
			return nil, ErrInvoiceAccessDenied
		}
		return inv.ToResponse(actor, s.now(), s.workflow.UrgencyThresholdDays), nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns a page of invoices for one of the list scopes. An empty
// scope picks the natural one for the actor's role.
func (s *InvoiceService) List(ctx context.Context, actor domain.Actor, input *ListInvoicesInput) (*InvoiceList, error) {
	params := pagination.New(input.Page, input.Limit)

	scope := input.Scope
	if scope == "" {
		scope = DefaultScope(actor.Role)
	}
	filter, err := s.scopeFilter(actor, scope)
	if err != nil {
		return nil, err
	}
	if input.Status != "" {
		status, ok := domain.ParseStatus(input.Status)
		if !ok {
			return nil, domain.ValidationErrors{"status": "unknown status"}
		}
		if !narrowStatus(&filter, status) {
			return &InvoiceList{
				Items:   []*models.InvoiceResponse{},
				Summary: domain.Summarize(nil, s.now(), s.workflow.UrgencyThresholdDays),
				Meta:    pagination.GetMeta(params, 0),
			}, nil
		}
	}
	filter.Search = strings.TrimSpace(input.Search)
	if err := searchCriteria(&filter, input); err != nil {
		return nil, err
	}

	key, err := s.cache.Key(ctx, "invoices", fmt.Sprint(actor.ID), string(actor.Role), scope,
		strings.ToUpper(input.Status), strings.ToLower(filter.Search),
		filter.LegalForm, filter.Modality, strings.ToLower(filter.Number),
		dayKey(filter.Issued.From), dayKey(filter.Issued.To),
		dayKey(filter.Due.From), dayKey(filter.Due.To),
		filter.Sort, fmt.Sprint(filter.Desc),
		fmt.Sprint(params.Page), fmt.Sprint(params.Limit))
	if err != nil {
		s.log.Warn("cache key unavailable", zap.Error(err))
	}

	var out InvoiceList
	err = s.cached(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		invoices, total, err := s.invoiceRepo.List(ctx, filter, params.Offset, params.Limit)
		if err != nil {
			return nil, err
		}

		now := s.now()
		items := make([]*models.InvoiceResponse, len(invoices))
		subjects := make([]domain.Subject, len(invoices))
		for i, inv := range invoices {
			items[i] = inv.ToResponse(actor, now, s.workflow.UrgencyThresholdDays)
			subjects[i] = inv.Subject()
		}

		return &InvoiceList{
			Items:   items,
			Summary: domain.Summarize(subjects, now, s.workflow.UrgencyThresholdDays),
			Meta:    pagination.GetMeta(params, total),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the validation trail of an invoice the actor can view
func (s *InvoiceService) History(ctx context.Context, actor domain.Actor, id uint) ([]*models.ValidationTrace, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanView(inv.Subject(), actor) {
		return nil, ErrInvoiceAccessDenied
	}
	return s.traceRepo.ListByInvoice(ctx, id)
}

// searchCriteria copies the optional list criteria onto f
func searchCriteria(f *repositories.InvoiceFilter, input *ListInvoicesInput) error {
	errs := domain.ValidationErrors{}

	if raw := strings.TrimSpace(input.LegalForm); raw != "" {
		form := domain.LegalForm(strings.ToUpper(raw))
		if !form.IsValid() {
			errs["legal_form"] = "unknown legal form"
		}
		f.LegalForm = string(form)
	}
	if raw := strings.TrimSpace(input.Modality); raw != "" {
		m, ok := domain.ParseModality(raw)
		if !ok {
			errs["modality"] = "unknown modality"
		}
		f.Modality = string(m)
	}
	f.Number = strings.TrimSpace(input.Number)

	f.Issued.From = parseOptionalDate(input.IssueFrom, "issue_from", errs)
	f.Issued.To = parseOptionalDate(input.IssueTo, "issue_to", errs)
	f.Due.From = parseOptionalDate(input.DueFrom, "due_from", errs)
	f.Due.To = parseOptionalDate(input.DueTo, "due_to", errs)

	if field := strings.ToLower(strings.TrimSpace(input.Sort)); field != "" {
		if _, ok := repositories.SortFields[field]; !ok {
			errs["sort"] = "unknown sort field"
		}
		f.Sort = field
	}
	switch strings.ToLower(strings.TrimSpace(input.Order)) {
	case "", "desc":
		f.Desc = true
	case "asc":
	default:
		errs["order"] = "must be asc or desc"
	}

	return errs.Err()
}

func dayKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// DefaultScope is the list a role lands on
func DefaultScope(role domain.Role) string {
	switch role {
	case domain.RoleV1:
		return ScopePendingV1
	case domain.RoleV2:
		return ScopePendingV2
	case domain.RoleT1:
		return ScopePendingTreasury
	case domain.RoleAdmin:
		return ScopeAll
	}
	return ScopeMine
}

func (s *InvoiceService) scopeFilter(actor domain.Actor, scope string) (repositories.InvoiceFilter, error) {
	return ScopeFilter(actor, scope, s.now(), s.workflow.UrgencyThresholdDays)
}

// ScopeFilter translates a list scope into a repository filter. Scopes
// that are not tied to an assignment are restricted to what actor can view.
func ScopeFilter(actor domain.Actor, scope string, now time.Time, threshold int) (repositories.InvoiceFilter, error) {
	var f repositories.InvoiceFilter
	admin := actor.Role == domain.RoleAdmin
	id := actor.ID
	day := 24 * time.Hour

	switch scope {
	case ScopeMine:
		f.CreatorID = &id
	case ScopePendingV1:
		f.Statuses = []string{string(domain.StatusPendingV1)}
		if !admin {
			f.Validator1ID = &id
		}
	case ScopePendingV2:
		f.Statuses = []string{string(domain.StatusPendingV2)}
		if !admin {
			f.Validator2ID = &id
		}
	case ScopePendingTreasury:
		f.Statuses = []string{string(domain.StatusPendingTreasury)}
		if !admin {
			f.TreasuryQueueFor = &id
		}
	case ScopeAll:
	case ScopeUrgent:
		// ceil(days) in [0, threshold]
		from := now.Add(-day + time.Nanosecond)
		before := now.Add(time.Duration(threshold)*day + time.Nanosecond)
		f.Statuses = pendingStatuses()
		f.DueFrom, f.DueBefore = &from, &before
	case ScopeOverdue:
		// ceil(days) < 0
		before := now.Add(-day + time.Nanosecond)
		f.Statuses = pendingStatuses()
		f.DueBefore = &before
	default:
		return f, domain.ValidationErrors{"scope": "unknown scope " + scope}
	}

	if !admin && f.CreatorID == nil && f.Validator1ID == nil && f.Validator2ID == nil && f.TreasuryQueueFor == nil {
		f.Visible = &repositories.Visibility{UserID: id, OpenTreasury: actor.Role == domain.RoleT1}
	}
	return f, nil
}

// narrowStatus restricts f to status and reports whether anything can
// still match
func narrowStatus(f *repositories.InvoiceFilter, status domain.Status) bool {
	if len(f.Statuses) == 0 {
		f.Statuses = []string{string(status)}
		return true
	}
	for _, st := range f.Statuses {
		if st == string(status) {
			f.Statuses = []string{st}
			return true
		}
	}
	return false
}

func pendingStatuses() []string {
	out := make([]string, len(domain.PendingStatuses))
	for i, st := range domain.PendingStatuses {
		out[i] = string(st)
	}
	return out
}

// apply validates input and copies it onto inv, recomputing the derived
// amounts and due date
func (s *InvoiceService) apply(ctx context.Context, inv *models.Invoice, input *InvoiceInput) error {
	errs := domain.ValidationErrors{}
	var verrs domain.ValidationErrors
	if err := validator.Struct(input); err != nil {
		if !errors.As(err, &verrs) {
			return err
		}
		for k, v := range verrs {
			errs[k] = v
		}
	}

	vat := s.workflow.DefaultVATRate
	if input.VATRate != nil {
		vat = *input.VATRate
	}
	modality := domain.Modality(input.Modality)
	if m, ok := domain.ParseModality(input.Modality); ok {
		modality = m
	}

	issue := parseOptionalDate(input.IssueDate, "issue_date", errs)
	reception := parseOptionalDate(input.ReceptionDate, "reception_date", errs)
	delivery := parseOptionalDate(input.DeliveryDate, "delivery_date", errs)

	inv.SupplierName = strings.TrimSpace(input.SupplierName)
	inv.LegalForm = input.LegalForm
	inv.AmountHT = input.AmountHT
	inv.VATRate = vat
	inv.WithheldVAT = input.WithheldVAT
	inv.Modality = string(modality)
	inv.Rebillable = input.Rebillable
	inv.IssueDate = issue
	inv.ReceptionDate = reception
	inv.DeliveryDate = delivery
	inv.Designation = strings.TrimSpace(input.Designation)
	inv.OrderRef = strings.TrimSpace(input.OrderRef)
	inv.Period = strings.TrimSpace(input.Period)
	inv.Comments = strings.TrimSpace(input.Comments)
	inv.Validator1ID = nonZero(input.Validator1ID)
	inv.Validator2ID = nonZero(input.Validator2ID)
	inv.TreasurerID = nonZero(input.TreasurerID)
	// relations may be stale once the ids change
	inv.Validator1, inv.Validator2, inv.Treasurer = nil, nil, nil

	if err := domain.ValidateFields(inv.Fields()); err != nil {
		if !errors.As(err, &verrs) {
			return err
		}
		for k, v := range verrs {
			errs[k] = v
		}
	}
	if err := s.checkAssignee(ctx, inv.Validator1ID, domain.RoleV1, "validator1_id", errs); err != nil {
		return err
	}
	if err := s.checkAssignee(ctx, inv.Validator2ID, domain.RoleV2, "validator2_id", errs); err != nil {
		return err
	}
	if err := s.checkAssignee(ctx, inv.TreasurerID, domain.RoleT1, "treasurer_id", errs); err != nil {
		return err
	}
	if err := errs.Err(); err != nil {
		return err
	}

	inv.Recompute()
	return nil
}

// checkAssignee records a field error when id is not an active user with
// role. Only infrastructure failures are returned.
func (s *InvoiceService) checkAssignee(ctx context.Context, id *uint, role domain.Role, field string, errs domain.ValidationErrors) error {
	if id == nil || errs[field] != "" {
		return nil
	}
	user, err := s.userRepo.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errs[field] = "user not found"
			return nil
		}
		return err
	}
	if !user.IsActive || domain.Role(user.Role) != role {
		errs[field] = fmt.Sprintf("must be an active %s user", role)
	}
	return nil
}

func (s *InvoiceService) load(ctx context.Context, id uint) (*models.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

// cached reads through the cache when a key could be built
func (s *InvoiceService) cached(ctx context.Context, key string, dest interface{}, load func(context.Context) (interface{}, error)) error {
	if key == "" {
		var bypass *cache.Cache
		return bypass.Fetch(ctx, key, dest, load)
	}
	return s.cache.Fetch(ctx, key, dest, load)
}

func (s *InvoiceService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("cache invalidation failed", zap.Error(err))
	}
}

func parseOptionalDate(raw, field string, errs domain.ValidationErrors) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, ok := domain.ParseDate(raw)
	if !ok {
		errs[field] = "must be a date (YYYY-MM-DD)"
		return nil
	}
	return &t
}

func nonZero(id *uint) *uint {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}
