package services

import (
	"context"
	"os"
	"testing"
	"time"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/adapters/persistence/repositories"
	"facture-workflow/internal/config"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/cache"
	"facture-workflow/internal/pkg/logger"
	"facture-workflow/internal/pkg/pagination"
	"facture-workflow/internal/pkg/password"
	"facture-workflow/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testPassword = "secret123"

func TestMain(m *testing.M) {
	password.SetCost(bcrypt.MinCost)
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

// fixedNow is mid-June so a DELAI_30 invoice issued on June 1st is due in
// 16 days
var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type harness struct {
	db    *gorm.DB
	redis *miniredis.Miniredis
	cache *cache.Cache

	userRepo    repositories.UserRepository
	invoiceRepo repositories.InvoiceRepository
	notifRepo   repositories.NotificationRepository

	auth      *AuthService
	users     *UserService
	invoices  *InvoiceService
	notifier  *NotificationService
	stats     *StatsService
	reminders *ReminderService

	u1, u1b, v1, v1b, v2, t1, admin *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testdb.Open(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewCache(client, time.Minute)

	cfg := &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			RefreshSecret:    "test-refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
		Workflow: config.WorkflowConfig{
			UrgencyThresholdDays: domain.DefaultUrgencyThreshold,
			DefaultVATRate:       domain.DefaultVATRate,
		},
	}

	h := &harness{
		db:          db,
		redis:       mr,
		cache:       c,
		userRepo:    repositories.NewUserRepository(db),
		invoiceRepo: repositories.NewInvoiceRepository(db),
		notifRepo:   repositories.NewNotificationRepository(db),
	}
	traceRepo := repositories.NewTraceRepository(db)
	threshold := cfg.Workflow.UrgencyThresholdDays

	h.notifier = NewNotificationService(h.notifRepo, c, threshold)
	h.auth = NewAuthService(h.userRepo, repositories.NewRefreshTokenRepository(db), cfg)
	h.users = NewUserService(h.userRepo, h.invoiceRepo, traceRepo, c)
	h.invoices = NewInvoiceService(h.invoiceRepo, h.userRepo, traceRepo, h.notifier,
		NewAttachmentStore(t.TempDir(), 0), c, cfg.Workflow)
	h.stats = NewStatsService(h.invoiceRepo, traceRepo, h.notifRepo, c, threshold)
	h.reminders = NewReminderService(h.invoiceRepo, h.userRepo, h.notifier, threshold)

	clock := func() time.Time { return fixedNow }
	h.notifier.now = clock
	h.invoices.now = clock
	h.stats.now = clock
	h.reminders.now = clock

	h.u1 = h.seed(t, "alice@example.com", "Martin", domain.RoleU1)
	h.u1b = h.seed(t, "bob@example.com", "Bernard", domain.RoleU1)
	h.v1 = h.seed(t, "chloe@example.com", "Durand", domain.RoleV1)
	h.v1b = h.seed(t, "david@example.com", "Petit", domain.RoleV1)
	h.v2 = h.seed(t, "emma@example.com", "Leroy", domain.RoleV2)
	h.t1 = h.seed(t, "farid@example.com", "Moreau", domain.RoleT1)
	h.admin = h.seed(t, "admin@example.com", "Admin", domain.RoleAdmin)
	return h
}

func (h *harness) seed(t *testing.T, email, nom string, role domain.Role) *models.User {
	t.Helper()
	hashed, err := password.Hash(testPassword)
	require.NoError(t, err)
	u := &models.User{Email: email, Password: hashed, Nom: nom, Prenom: "Test", Role: string(role), IsActive: true}
	require.NoError(t, h.userRepo.Create(context.Background(), u))
	return u
}

func (h *harness) input(issueDate string) *InvoiceInput {
	return &InvoiceInput{
		SupplierName: "Acme SARL",
		LegalForm:    string(domain.LegalFormSARL),
		AmountHT:     1000,
		Modality:     string(domain.Modality30),
		IssueDate:    issueDate,
		Designation:  "Prestations de juin",
		Validator1ID: &h.v1.ID,
		Validator2ID: &h.v2.ID,
	}
}

// draft creates a draft issued on issueDate
func (h *harness) draft(t *testing.T, issueDate string) *models.InvoiceResponse {
	t.Helper()
	resp, err := h.invoices.Create(context.Background(), h.u1.Actor(), h.input(issueDate))
	require.NoError(t, err)
	return resp
}

// advance walks a fresh draft forward until it reaches status
func (h *harness) advance(t *testing.T, issueDate string, status domain.Status) *models.InvoiceResponse {
	t.Helper()
	ctx := context.Background()
	resp := h.draft(t, issueDate)
	steps := []struct {
		to  domain.Status
		run func() (*models.InvoiceResponse, error)
	}{
		{domain.StatusPendingV1, func() (*models.InvoiceResponse, error) {
			return h.invoices.Submit(ctx, h.u1.Actor(), resp.ID)
		}},
		{domain.StatusPendingV2, func() (*models.InvoiceResponse, error) {
			return h.invoices.ApproveV1(ctx, h.v1.Actor(), resp.ID, &DecisionInput{})
		}},
		{domain.StatusPendingTreasury, func() (*models.InvoiceResponse, error) {
			return h.invoices.ApproveV2(ctx, h.v2.Actor(), resp.ID, &DecisionInput{})
		}},
		{domain.StatusPaid, func() (*models.InvoiceResponse, error) {
			return h.invoices.Pay(ctx, h.t1.Actor(), resp.ID, &PayInput{PaymentReference: "VIR-0001"})
		}},
	}
	for _, step := range steps {
		if domain.Status(resp.Status) == status {
			break
		}
		var err error
		resp, err = step.run()
		require.NoError(t, err)
		require.Equal(t, string(step.to), resp.Status)
	}
	return resp
}

func paginationAll() *pagination.Params {
	return pagination.New(1, pagination.MaxLimit)
}
