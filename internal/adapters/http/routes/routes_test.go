package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"facture-workflow/internal/adapters/http/middleware"
	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/config"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/core/services"
	"facture-workflow/internal/pkg/cache"
	"facture-workflow/internal/pkg/jwt"
	"facture-workflow/internal/pkg/logger"
	"facture-workflow/internal/pkg/password"
	"facture-workflow/internal/pkg/testdb"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	adminEmail   = "admin@example.com"
	testPassword = "secret123"
)

func TestMain(m *testing.M) {
	password.SetCost(bcrypt.MinCost)
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Errors  map[string]string `json:"errors"`
}

type testServer struct {
	app   *fiber.App
	cfg   *config.Config
	db    *gorm.DB
	users map[domain.Role]*models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testdb.Open(t)
	cfg := &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret:           "access-secret",
			RefreshSecret:    "refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
		Cookie:   config.CookieConfig{SameSite: "lax"},
		Workflow: config.WorkflowConfig{UrgencyThresholdDays: 7, DefaultVATRate: 20, ReminderSchedule: "0 8 * * *"},
		Upload:   config.UploadConfig{Dir: t.TempDir(), MaxBytes: domain.MaxAttachmentSize},
	}
	config.DB = db
	t.Cleanup(func() { config.DB = nil })

	require.NoError(t, config.NewSeeder(db).Run(adminEmail, testPassword, true, testPassword))

	users := map[domain.Role]*models.User{}
	emails := map[domain.Role]string{domain.RoleAdmin: adminEmail}
	for _, u := range config.DemoUsers {
		emails[u.Role] = u.Email
	}
	for role, email := range emails {
		var u models.User
		require.NoError(t, db.Where("email = ?", email).First(&u).Error)
		users[role] = &u
	}

	svc := services.NewContainer(db, cache.NewCache(nil, 0), cfg)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	middleware.Setup(app, cfg)
	Setup(app, svc, cfg)

	return &testServer{app: app, cfg: cfg, db: db, users: users}
}

func (s *testServer) token(t *testing.T, role domain.Role) string {
	t.Helper()
	u := s.users[role]
	tok, err := jwt.GenerateAccessToken(u.ID, u.Email, u.Role, s.cfg.JWT.Secret, 15)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

type invoiceBody struct {
	ID      uint     `json:"id"`
	Number  string   `json:"number"`
	Status  string   `json:"status"`
	Actions []string `json:"actions"`
}

func decodeInvoice(t *testing.T, env envelope) invoiceBody {
	t.Helper()
	var inv invoiceBody
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	return inv
}

func (s *testServer) createDraft(t *testing.T) invoiceBody {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/v1/factures", s.token(t, domain.RoleU1), map[string]interface{}{
		"supplier_name": "Acme SARL",
		"legal_form":    "SARL",
		"amount_ht":     1000,
		"modality":      "DELAI_30",
		"issue_date":    time.Now().Format("2006-01-02"),
		"designation":   "Maintenance annuelle",
		"validator1_id": s.users[domain.RoleV1].ID,
		"validator2_id": s.users[domain.RoleV2].ID,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	return decodeInvoice(t, env)
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env := s.do(t, http.MethodGet, "/api/v1/info", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		bytes.NewBufferString(fmt.Sprintf(`{"email":%q,"password":%q}`, adminEmail, testPassword)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	names := map[string]bool{}
	for _, c := range resp.Cookies() {
		names[c.Name] = c.HttpOnly
	}
	assert.True(t, names["access_token"])
	assert.True(t, names["refresh_token"])

	status, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": adminEmail, "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_token", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", env.Code)
	assert.Contains(t, env.Errors, "email")
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/factures", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_token", env.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/factures", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_token", env.Code)

	u := s.users[domain.RoleU1]
	expired, err := jwt.GenerateAccessToken(u.ID, u.Email, u.Role, s.cfg.JWT.Secret, -1)
	require.NoError(t, err)
	status, env = s.do(t, http.MethodGet, "/api/v1/factures", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token_expired", env.Code)

	status, _ = s.do(t, http.MethodGet, "/api/v1/auth/me", s.token(t, domain.RoleU1), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		role   domain.Role
		want   int
	}{
		{"admin users as U1", http.MethodGet, "/api/v1/admin/users", domain.RoleU1, http.StatusForbidden},
		{"admin users as admin", http.MethodGet, "/api/v1/admin/users", domain.RoleAdmin, http.StatusOK},
		{"validator stats as V1", http.MethodGet, "/api/v1/admin/stats/validators", domain.RoleV1, http.StatusForbidden},
		{"batch pay as U1", http.MethodPost, "/api/v1/factures/batch-pay", domain.RoleU1, http.StatusForbidden},
		{"reference list", http.MethodGet, "/api/v1/users/reference/v1", domain.RoleU1, http.StatusOK},
		{"unknown reference list", http.MethodGet, "/api/v1/users/reference/boss", domain.RoleU1, http.StatusNotFound},
		{"dashboard", http.MethodGet, "/api/v1/dashboard", domain.RoleT1, http.StatusOK},
		{"notifications", http.MethodGet, "/api/v1/notifications", domain.RoleV2, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body interface{}
			if tt.method == http.MethodPost {
				body = map[string]interface{}{"ids": []uint{1}}
			}
			status, env := s.do(t, tt.method, tt.path, s.token(t, tt.role), body)
			assert.Equal(t, tt.want, status, env.Error)
		})
	}
}

func TestInvoiceWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	inv := s.createDraft(t)
	assert.Equal(t, "DRAFT", inv.Status)
	assert.Regexp(t, `^FAC-\d{4}-0001$`, inv.Number)

	path := func(action string) string {
		return fmt.Sprintf("/api/v1/factures/%d/%s", inv.ID, action)
	}

	status, env := s.do(t, http.MethodPost, path("submit"), s.token(t, domain.RoleU1), nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "PENDING_V1", decodeInvoice(t, env).Status)

	// V2 is not the level-1 validator
	status, env = s.do(t, http.MethodPost, path("approve-v1"), s.token(t, domain.RoleV2), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", env.Code)

	status, env = s.do(t, http.MethodPost, path("reject-v1"), s.token(t, domain.RoleV1),
		map[string]string{"comment": "court"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", env.Code)

	status, env = s.do(t, http.MethodPost, path("approve-v1"), s.token(t, domain.RoleV1), nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "PENDING_V2", decodeInvoice(t, env).Status)

	status, env = s.do(t, http.MethodPost, path("approve-v1"), s.token(t, domain.RoleV1), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "wrong_state", env.Code)

	status, env = s.do(t, http.MethodPost, path("approve-v2"), s.token(t, domain.RoleV2), nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "PENDING_TREASURY", decodeInvoice(t, env).Status)

	status, env = s.do(t, http.MethodPost, path("pay"), s.token(t, domain.RoleT1),
		map[string]string{"payment_reference": "VIR-2025-001", "payment_date": time.Now().Format("2006-01-02")})
	require.Equal(t, http.StatusOK, status, env.Error)
	paid := decodeInvoice(t, env)
	assert.Equal(t, "PAID", paid.Status)
	assert.Empty(t, paid.Actions)

	status, env = s.do(t, http.MethodGet, path("history"), s.token(t, domain.RoleU1), nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 4)

	status, env = s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", s.token(t, domain.RoleU1), nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var unread struct {
		Unread int64 `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &unread))
	assert.Positive(t, unread.Unread)
}

func TestInvoiceListQuery(t *testing.T) {
	s := newTestServer(t)
	inv := s.createDraft(t)

	list := func(query string) []uint {
		t.Helper()
		status, env := s.do(t, http.MethodGet, "/api/v1/factures?scope=mine&"+query, s.token(t, domain.RoleU1), nil)
		require.Equal(t, http.StatusOK, status, env.Error)
		var page struct {
			Items []invoiceBody `json:"items"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &page))
		ids := make([]uint, 0, len(page.Items))
		for _, item := range page.Items {
			ids = append(ids, item.ID)
		}
		return ids
	}

	assert.Equal(t, []uint{inv.ID}, list("legal_form=SARL&modality=DELAI_30"))
	assert.Empty(t, list("modality=DELAI_90"))
	assert.Equal(t, []uint{inv.ID}, list("number="+inv.Number+"&sort=due_date&order=asc"))
	assert.Empty(t, list("issue_to=2000-01-01"))
}

func TestInvoiceErrors(t *testing.T) {
	s := newTestServer(t)
	inv := s.createDraft(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/factures/999", s.token(t, domain.RoleU1), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Code)

	status, _ = s.do(t, http.MethodGet, "/api/v1/factures/abc", s.token(t, domain.RoleU1), nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(t, http.MethodPost, "/api/v1/factures", s.token(t, domain.RoleV1),
		map[string]interface{}{"supplier_name": "Acme"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/factures", s.token(t, domain.RoleU1),
		map[string]interface{}{"supplier_name": "", "amount_ht": -5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", env.Code)
	assert.NotEmpty(t, env.Errors)

	status, env = s.do(t, http.MethodGet, "/api/v1/factures?sort=password&due_from=demain", s.token(t, domain.RoleU1), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", env.Code)

	// the treasurer cannot pay a draft
	status, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/factures/%d/pay", inv.ID), s.token(t, domain.RoleT1),
		map[string]string{"payment_reference": "VIR-1"})
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}, status)
	assert.False(t, env.Success)
}

func TestAdminUserManagement(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, domain.RoleAdmin)

	newUser := map[string]string{
		"email":    "gaelle@example.com",
		"password": "secret123",
		"nom":      "Girard",
		"prenom":   "Gaëlle",
		"role":     "V1",
	}
	status, env := s.do(t, http.MethodPost, "/api/v1/admin/users", admin, newUser)
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = s.do(t, http.MethodPost, "/api/v1/admin/users", admin, newUser)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", env.Code)

	status, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", s.users[domain.RoleAdmin].ID), admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
