package services

import (
	"context"
	"fmt"
	"time"

	"facture-workflow/internal/adapters/persistence/repositories"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/cache"
	"facture-workflow/internal/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTopSuppliers is the ranking size when none is requested
const DefaultTopSuppliers = 10

// StatsService computes dashboard figures
type StatsService struct {
	invoiceRepo repositories.InvoiceRepository
	traceRepo   repositories.TraceRepository
	notifRepo   repositories.NotificationRepository
	cache       *cache.Cache
	threshold   int
	log         *zap.Logger
	now         func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(
	invoiceRepo repositories.InvoiceRepository,
	traceRepo repositories.TraceRepository,
	notifRepo repositories.NotificationRepository,
	c *cache.Cache,
	urgencyThreshold int,
) *StatsService {
	return &StatsService{
		invoiceRepo: invoiceRepo,
		traceRepo:   traceRepo,
		notifRepo:   notifRepo,
		cache:       c,
		threshold:   urgencyThreshold,
		log:         logger.Named("stats"),
		now:         time.Now,
	}
}

// Dashboard represents the figures shown on a user's home page. Counts
// cover the invoices the user can view.
type Dashboard struct {
	ByStatus      map[string]int64 `json:"by_status"`
	Total         int64            `json:"total"`
	Urgent        int64            `json:"urgent"`
	Overdue       int64            `json:"overdue"`
	PendingAmount float64          `json:"pending_amount"`
	PaidAmount    float64          `json:"paid_amount"`
	MyTasks       int64            `json:"my_tasks"`
	Unread        int64            `json:"unread_notifications"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// Dashboard gathers the actor's figures, querying in parallel
func (s *StatsService) Dashboard(ctx context.Context, actor domain.Actor) (*Dashboard, error) {
	key, err := s.cache.Key(ctx, "dashboard", fmt.Sprint(actor.ID), string(actor.Role))
	if err != nil {
		s.log.Warn("cache key unavailable", zap.Error(err))
		key = ""
	}

	var out Dashboard
	load := func(ctx context.Context) (interface{}, error) {
		return s.computeDashboard(ctx, actor)
	}
	if key == "" {
		var bypass *cache.Cache
		err = bypass.Fetch(ctx, key, &out, load)
	} else {
		err = s.cache.Fetch(ctx, key, &out, load)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StatsService) computeDashboard(ctx context.Context, actor domain.Actor) (*Dashboard, error) {
	now := s.now()
	filters := map[string]repositories.InvoiceFilter{}
	for _, scope := range []string{ScopeAll, ScopeUrgent, ScopeOverdue} {
		f, err := ScopeFilter(actor, scope, now, s.threshold)
		if err != nil {
			return nil, err
		}
		filters[scope] = f
	}

	pending := filters[ScopeAll]
	pending.Statuses = pendingStatuses()
	paid := filters[ScopeAll]
	paid.Statuses = []string{string(domain.StatusPaid)}

	d := &Dashboard{GeneratedAt: now}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.invoiceRepo.CountByStatus(gctx, filters[ScopeAll])
		if err != nil {
			return err
		}
		d.ByStatus = counts
		for _, n := range counts {
			d.Total += n
		}
		return nil
	})
	g.Go(func() (err error) {
		d.Urgent, err = s.invoiceRepo.Count(gctx, filters[ScopeUrgent])
		return err
	})
	g.Go(func() (err error) {
		d.Overdue, err = s.invoiceRepo.Count(gctx, filters[ScopeOverdue])
		return err
	})
	g.Go(func() (err error) {
		d.PendingAmount, err = s.invoiceRepo.SumTTC(gctx, pending)
		return err
	})
	g.Go(func() (err error) {
		d.PaidAmount, err = s.invoiceRepo.SumTTC(gctx, paid)
		return err
	})
	g.Go(func() (err error) {
		tasks, ok, err := s.taskFilter(actor, now)
		if err != nil || !ok {
			return err
		}
		d.MyTasks, err = s.invoiceRepo.Count(gctx, tasks)
		return err
	})
	g.Go(func() (err error) {
		d.Unread, err = s.notifRepo.CountUnread(gctx, actor.ID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// taskFilter selects the invoices waiting on actor. Admins have none.
func (s *StatsService) taskFilter(actor domain.Actor, now time.Time) (repositories.InvoiceFilter, bool, error) {
	if actor.Role == domain.RoleAdmin {
		return repositories.InvoiceFilter{}, false, nil
	}
	f, err := ScopeFilter(actor, DefaultScope(actor.Role), now, s.threshold)
	if err != nil {
		return f, false, err
	}
	if actor.Role == domain.RoleU1 {
		f.Statuses = []string{string(domain.StatusDraft), string(domain.StatusRejected)}
	}
	return f, true, nil
}

// TopSuppliers ranks suppliers by paid volume
func (s *StatsService) TopSuppliers(ctx context.Context, limit int) ([]repositories.SupplierTotal, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultTopSuppliers
	}
	key, err := s.cache.Key(ctx, "stats", "suppliers", fmt.Sprint(limit))
	if err != nil {
		rows, err := s.invoiceRepo.TopSuppliers(ctx, limit)
		return rows, err
	}

	var rows []repositories.SupplierTotal
	err = s.cache.Fetch(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.invoiceRepo.TopSuppliers(ctx, limit)
	})
	return rows, err
}

// ValidatorPerformance counts approvals and rejections per validator
func (s *StatsService) ValidatorPerformance(ctx context.Context) ([]repositories.ValidatorStat, error) {
	key, err := s.cache.Key(ctx, "stats", "validators")
	if err != nil {
		return s.traceRepo.ValidatorPerformance(ctx)
	}

	var rows []repositories.ValidatorStat
	err = s.cache.Fetch(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.traceRepo.ValidatorPerformance(ctx)
	})
	return rows, err
}
