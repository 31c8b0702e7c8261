package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FOCUS1407/gestion-immobiliere/config"
	"github.com/FOCUS1407/gestion-immobiliere/internal/auth"
	"github.com/FOCUS1407/gestion-immobiliere/internal/database"
	"github.com/FOCUS1407/gestion-immobiliere/internal/services"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
)

const testPassword = "Password123!"

type testServer struct {
	t      *testing.T
	router *gin.Engine
	svc    *services.Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewTestDB()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	files, err := storage.NewStore(t.TempDir(), 1<<20, 64, logger)
	require.NoError(t, err)

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	svc := services.NewServices(services.Dependencies{
		DB:     db,
		Config: config.Default(),
		Tokens: tokens,
		Files:  files,
		Logger: logger,
	})
	handler := NewHandler(svc, tokens, logger)
	handler.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

	return &testServer{t: t, router: NewRouter(handler, []string{"*"}, logger), svc: svc}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest))
}

func (s *testServer) login(identifier, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"identifier": identifier, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var result services.LoginResult
	decode(s.t, w, &result)
	return result.Token
}

// registerAgency returns a token for a fresh agency account.
func (s *testServer) registerAgency(username, siret string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"password": testPassword,
		"email":    username + "@example.com",
		"siret":    siret,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(username, testPassword)
}

// createOwner returns the owner id and the owner's temporary credentials.
func (s *testServer) createOwner(agencyToken, first, last string) (uint, string, string) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/owners", agencyToken, gin.H{
		"first_name":      first,
		"last_name":       last,
		"email":           strings.ToLower(first+"."+last) + "@example.com",
		"commission_rate": 10,
		"contract_start":  "2024-01-01",
		"contract_months": 12,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var created services.OwnerCreated
	decode(s.t, w, &created)
	return created.Owner.ID, created.Username, created.TemporaryPassword
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/dashboard", "/api/owners", "/api/notifications", "/api/auth/me"} {
		w := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := s.do(http.MethodGet, "/api/dashboard", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	s.registerAgency("agence", "12345678901234")

	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "agence", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "agence",
		"password": testPassword,
		"email":    "agence@example.com",
		"siret":    "123",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decode(t, w, &body)
	assert.Contains(t, body.Fields, "siret")
}

func TestAgencyDashboard(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAgency("agence", "12345678901234")
	s.createOwner(token, "Jean", "Dupont")

	w := s.do(http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var dashboard struct {
		Role   string `json:"role"`
		Owners int64  `json:"owners"`
	}
	decode(t, w, &dashboard)
	assert.Equal(t, "agency", dashboard.Role)
	assert.Equal(t, int64(1), dashboard.Owners)
}

func TestOwnerMustChangePassword(t *testing.T) {
	s := newTestServer(t)
	agencyToken := s.registerAgency("agence", "12345678901234")
	_, username, temp := s.createOwner(agencyToken, "Jean", "Dupont")

	token := s.login(username, temp)

	w := s.do(http.MethodGet, "/api/dashboard", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me MeResponse
	decode(t, w, &me)
	assert.True(t, me.User.MustChangePassword)
	assert.NotNil(t, me.Owner)

	w = s.do(http.MethodPost, "/api/auth/change-password", token, gin.H{
		"old_password": temp,
		"new_password": "Nouveau.Passe42",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result services.LoginResult
	decode(t, w, &result)
	assert.False(t, result.MustChangePassword)

	w = s.do(http.MethodGet, "/api/dashboard", result.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestOwnerCannotUseAgencyEndpoints(t *testing.T) {
	s := newTestServer(t)
	agencyToken := s.registerAgency("agence", "12345678901234")
	_, username, temp := s.createOwner(agencyToken, "Jean", "Dupont")

	w := s.do(http.MethodPost, "/api/auth/change-password", s.login(username, temp), gin.H{
		"old_password": temp,
		"new_password": "Nouveau.Passe42",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var result services.LoginResult
	decode(t, w, &result)

	for _, path := range []string{"/api/owners", "/api/tenants", "/api/notifications"} {
		w := s.do(http.MethodGet, path, result.Token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestOwnerAccessAcrossAgencies(t *testing.T) {
	s := newTestServer(t)
	first := s.registerAgency("agence1", "12345678901234")
	second := s.registerAgency("agence2", "12345678901235")
	ownerID, _, _ := s.createOwner(first, "Jean", "Dupont")

	path := fmt.Sprintf("/api/owners/%d", ownerID)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, first, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, path, second, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, path, second, gin.H{
		"first_name":      "Jean",
		"last_name":       "Dupont",
		"email":           "jean.dupont@example.com",
		"contract_start":  "2024-01-01",
		"contract_months": 12,
	}).Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/owners/9999", first, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/owners/abc", first, nil).Code)
}

func TestDuplicateOwnerEmail(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAgency("agence", "12345678901234")
	s.createOwner(token, "Jean", "Dupont")

	w := s.do(http.MethodPost, "/api/owners", token, gin.H{
		"first_name":      "Jean",
		"last_name":       "Dupont",
		"email":           "jean.dupont@example.com",
		"contract_start":  "2024-01-01",
		"contract_months": 12,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFinancialReportCSV(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAgency("agence", "12345678901234")
	ownerID, _, _ := s.createOwner(token, "Jean", "Dupont")

	w := s.do(http.MethodGet, "/api/reports/financial.csv?month=2024-03", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="financial_report_2024-03.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "Month,Owner,Building"))

	w = s.do(http.MethodGet, fmt.Sprintf("/api/reports/financial.csv?month=2024-03&owner_id=%d", ownerID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="financial_report_Jean_Dupont_2024-03.csv"`, w.Header().Get("Content-Disposition"))

	w = s.do(http.MethodGet, "/api/reports/financial?month=13-2024", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRentReportStatusFilter(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAgency("agence", "12345678901234")

	w := s.do(http.MethodGet, "/api/reports/rents?status=late", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/reports/rents?status=unpaid", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestNotificationsReadAll(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAgency("agence", "12345678901234")

	w := s.do(http.MethodPost, "/api/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":0}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/notifications/unread", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentMethodsCatalog(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAgency("agence", "12345678901234")

	w := s.do(http.MethodGet, "/api/payment-methods", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var methods []struct {
		Code string `json:"code"`
	}
	decode(t, w, &methods)
	assert.NotEmpty(t, methods)

	methodsBefore, err := s.svc.Payments.ListPaymentMethods(context.Background())
	require.NoError(t, err)
	assert.Len(t, methods, len(methodsBefore))
}
