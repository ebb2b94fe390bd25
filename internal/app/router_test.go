package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts/accountstest"
	"github.com/odyssey-erp/estate-ledger/internal/observability"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	_ "github.com/odyssey-erp/estate-ledger/internal/testing/guard"
	"github.com/odyssey-erp/estate-ledger/jobs"
)

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := rbac.Middleware{Logger: logger}
	accountsService := accounts.NewService(accountstest.NewSeeded(), logger)
	return NewRouter(RouterParams{
		Logger:          logger,
		Config:          cfg,
		RBAC:            guard,
		Metrics:         observability.NewMetrics(),
		AccountsHandler: accounts.NewHandler(logger, accountsService, guard),
		JobHandler:      jobs.NewHandler(nil, logger),
	})
}

func do(t *testing.T, h http.Handler, method, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		req.Header.Set(rbac.HeaderActorID, "u-1")
		req.Header.Set(rbac.HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, &Config{RateLimitPerMinute: 100})

	rec := do(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeEnvelope(t, rec)["success"])
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, router, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "estate_http_requests_total")
}

func TestHealthzReportsFailingChecks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterParams{
		Logger: logger,
		Config: &Config{},
		RBAC:   rbac.Middleware{Logger: logger},
		HealthChecks: map[string]func(context.Context) error{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := do(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	require.Equal(t, "degraded", data["status"])
	checks := data["checks"].(map[string]any)
	require.Equal(t, "ok", checks["postgres"])
	require.Equal(t, "connection refused", checks["redis"])
}

func TestRouterJSONFallbacks(t *testing.T) {
	router := newTestRouter(t, &Config{})

	rec := do(t, router, http.MethodGet, "/nowhere", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, false, decodeEnvelope(t, rec)["success"])

	rec = do(t, router, http.MethodPut, "/healthz", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterFinanceRoutesRequireActor(t *testing.T) {
	router := newTestRouter(t, &Config{})

	rec := do(t, router, http.MethodGet, "/api/finance/accounts", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/finance/accounts", rbac.RoleFinanceUser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeEnvelope(t, rec)["success"])
}

func TestRouterRateLimit(t *testing.T) {
	router := newTestRouter(t, &Config{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz", "").Code)
	}
	rec := do(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLoadConfigMergesWellKnownAccounts(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("WELL_KNOWN_ACCOUNTS", "cash_default:1001,MISC_EXPENSE:5098")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "1001", cfg.WellKnownAccounts["CASH_DEFAULT"])
	require.Equal(t, "5098", cfg.WellKnownAccounts["MISC_EXPENSE"])
	require.Equal(t, "2000", cfg.WellKnownAccounts["AP_DEFAULT"])
	require.Equal(t, "0 2 * * *", cfg.IntegrityCheckSchedule)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=production\nSTATEMENT_RATE_PER_MINUTE=7\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("APP_ENV", "")
	require.NoError(t, os.Unsetenv("APP_ENV"))
	t.Setenv("STATEMENT_RATE_PER_MINUTE", "")
	require.NoError(t, os.Unsetenv("STATEMENT_RATE_PER_MINUTE"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 7, cfg.StatementRatePerMinute)
}

func TestInTestModeFromGuard(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel(&Config{LogLevel: "DEBUG"}))
	require.Equal(t, slog.LevelWarn, parseLevel(&Config{LogLevel: "warning"}))
	require.Equal(t, slog.LevelInfo, parseLevel(nil))
}
