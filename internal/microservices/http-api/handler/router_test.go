package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"libraryhub/internal/cache"
	"libraryhub/internal/logging"
	"libraryhub/internal/microservices/http-api/handler"
	"libraryhub/internal/microservices/http-api/middleware"
	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"
	"libraryhub/internal/microservices/http-api/service"
	"libraryhub/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routerSecret = "router-test-secret-0123456789abcdef"

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
	tokens *middleware.Tokens
}

func newAPI(t *testing.T) (*apiClient, repository.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.Discard()
	ledger := repository.NewMemoryLedger()
	inbox := repository.NewMemoryNotificationRepository()
	deps := service.Deps{
		Ledger:    ledger,
		Cache:     cache.NewMemoryCache(),
		Notifier:  notify.NewBroadcaster(nil, inbox, logger),
		Reminders: notify.NewMemoryReminderQueue(),
		Logger:    logger,
	}
	policy := service.DefaultPolicy()

	reservations := service.NewReservationService(deps, policy)
	loans := service.NewLoanService(deps, policy, reservations)
	tokens := middleware.NewTokens(routerSecret)

	rt := handler.Router{
		Logger:        logger,
		Tokens:        tokens,
		RateLimiter:   middleware.NewRateLimiter(100, 100),
		Loans:         handler.NewLoanHandler(loans, reservations, logger),
		Reservations:  handler.NewReservationHandler(reservations, logger),
		Fines:         handler.NewFineHandler(service.NewFineService(deps), logger),
		Books:         handler.NewBookHandler(service.NewBookService(deps, policy), logger),
		Notifications: handler.NewNotificationHandler(service.NewNotificationService(inbox), nil, logger),
	}
	return &apiClient{t: t, engine: rt.Engine(), tokens: tokens}, ledger
}

func (a *apiClient) token(userID, role string) string {
	tok, err := a.tokens.Issue(userID, role, time.Hour)
	require.NoError(a.t, err)
	return tok
}

func (a *apiClient) call(token, method, path string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func seedUser(t *testing.T, ledger repository.Ledger, name, role string) string {
	t.Helper()
	u := &models.User{Email: name + "@example.com", Name: name, Role: role, IsActive: true}
	require.NoError(t, ledger.WithinTx(context.Background(), func(tx repository.LedgerTx) error {
		return tx.CreateUser(context.Background(), u)
	}))
	return u.ID
}

func TestRouter_ReturnHandsCopyToNextInQueue(t *testing.T) {
	api, ledger := newAPI(t)
	desk := api.token(seedUser(t, ledger, "desk", models.RoleLibrarian), models.RoleLibrarian)
	alice := api.token(seedUser(t, ledger, "alice", models.RoleReader), models.RoleReader)
	bob := api.token(seedUser(t, ledger, "bob", models.RoleReader), models.RoleReader)

	var book struct {
		ID              string `json:"id"`
		AvailableCopies int    `json:"availableCopies"`
	}
	code := api.call(desk, http.MethodPost, "/api/v1/books",
		map[string]any{"isbn": "978-0441013593", "title": "Dune", "author": "Herbert", "totalCopies": 1}, &book)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, 1, book.AvailableCopies)

	var loan struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusCreated, api.call(alice, http.MethodPost, "/api/v1/loans/borrow", map[string]string{"bookId": book.ID}, &loan))
	assert.Equal(t, "ACTIVE", loan.Status)

	var errBody struct {
		Code string `json:"code"`
	}
	assert.Equal(t, http.StatusConflict, api.call(bob, http.MethodPost, "/api/v1/loans/borrow", map[string]string{"bookId": book.ID}, &errBody))
	assert.Equal(t, "BOOK_NOT_AVAILABLE", errBody.Code)

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusCreated, api.call(bob, http.MethodPost, "/api/v1/reservations", map[string]string{"bookId": book.ID}, &res))
	assert.Equal(t, "PENDING", res.Status)

	// bob cannot see or return alice's loan
	assert.Equal(t, http.StatusNotFound, api.call(bob, http.MethodPost, "/api/v1/loans/"+loan.ID+"/return", nil, nil))

	require.Equal(t, http.StatusOK, api.call(alice, http.MethodPost, "/api/v1/loans/"+loan.ID+"/return", nil, &loan))
	assert.Equal(t, "RETURNED", loan.Status)

	var mine struct {
		Data []struct {
			ID         string  `json:"id"`
			Status     string  `json:"status"`
			ExpiryDate *string `json:"expiryDate"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, api.call(bob, http.MethodGet, "/api/v1/reservations/my", nil, &mine))
	require.Len(t, mine.Data, 1)
	assert.Equal(t, "READY", mine.Data[0].Status)
	assert.NotNil(t, mine.Data[0].ExpiryDate)

	var inbox struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.Equal(t, http.StatusOK, api.call(bob, http.MethodGet, "/api/v1/notifications/unread", nil, &inbox))
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, string(notify.ReservationReady), inbox.Notifications[0].Type)

	var claimed struct {
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusCreated, api.call(bob, http.MethodPost, "/api/v1/reservations/"+res.ID+"/claim", nil, &claimed))
	assert.Equal(t, "ACTIVE", claimed.Status)

	require.Equal(t, http.StatusOK, api.call(desk, http.MethodGet, "/api/v1/books/"+book.ID, nil, &book))
	assert.Equal(t, 0, book.AvailableCopies)
}

func TestRouter_AuthAndRoles(t *testing.T) {
	api, ledger := newAPI(t)
	reader := api.token(seedUser(t, ledger, "carol", models.RoleReader), models.RoleReader)

	assert.Equal(t, http.StatusOK, api.call("", http.MethodGet, "/healthz", nil, nil))

	var body struct {
		Code string `json:"code"`
	}
	assert.Equal(t, http.StatusUnauthorized, api.call("", http.MethodGet, "/api/v1/loans/my", nil, &body))
	assert.Equal(t, "UNAUTHORIZED", body.Code)

	assert.Equal(t, http.StatusUnauthorized, api.call("not-a-jwt", http.MethodGet, "/api/v1/loans/my", nil, nil))

	other := middleware.NewTokens("another-secret-0123456789abcdef0123")
	forged, err := other.Issue("carol", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, api.call(forged, http.MethodGet, "/api/v1/loans/my", nil, nil))

	assert.Equal(t, http.StatusForbidden, api.call(reader, http.MethodPost, "/api/v1/books",
		map[string]any{"isbn": "1", "title": "t", "author": "a", "totalCopies": 1}, &body))
	assert.Equal(t, "FORBIDDEN", body.Code)

	assert.Equal(t, http.StatusServiceUnavailable, api.call(reader, http.MethodGet, "/ws/notifications", nil, nil))
}
