package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/repository/postgres"
	"github.com/nkiryanov/ledger/internal/service/auth"
	"github.com/nkiryanov/ledger/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/ledger/internal/service/catalog"
	"github.com/nkiryanov/ledger/internal/service/ledger"
	"github.com/nkiryanov/ledger/internal/service/purchase"
	"github.com/nkiryanov/ledger/internal/service/user"
	"github.com/nkiryanov/ledger/internal/service/webhook"
	"github.com/nkiryanov/ledger/internal/signature"
	"github.com/nkiryanov/ledger/internal/testutil"
)

// Whole API on top of one transaction (one connection), so requests have to be sequential
func TestFlow(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
		l := logger.NewNoOpLogger()
		storage := postgres.NewStorage(tx)
		hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

		tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
		require.NoError(t, err)
		authService, err := auth.NewService(tokens, hasher, storage.User())
		require.NoError(t, err)
		signer, err := signature.New("webhook-secret", signature.AlgorithmSHA1)
		require.NoError(t, err)

		userService := user.NewService(hasher, storage)
		ledgerService := ledger.NewService(storage, nil, l)

		srv := httptest.NewServer(NewRouter(Config{}, Services{
			Auth:     authService,
			Users:    userService,
			Ledger:   ledgerService,
			Catalog:  catalog.NewService(storage.Product()),
			Purchase: purchase.NewService(storage.Product(), ledgerService, l),
			Webhook:  webhook.NewProcessor(webhook.Config{}, signer, ledgerService, l),
		}, l))
		defer srv.Close()

		_, _, err = userService.EnsureSuperuser(t.Context(), "admin", "admin-password")
		require.NoError(t, err)

		login := func(username, password string) string {
			resp, body := do(t, http.MethodPost, srv.URL+"/login", "", fmt.Sprintf(`{"username": %q, "password": %q}`, username, password))
			require.Equalf(t, http.StatusOK, resp.StatusCode, "login failed: %s", body)
			return strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
		}

		// Register and activate
		resp, body := do(t, http.MethodPost, srv.URL+"/users", "", `{"username": "buyer", "password": "StrongEnoughPassword"}`)
		require.Equalf(t, http.StatusOK, resp.StatusCode, "register failed: %s", body)
		var registered struct {
			ActivateLink string `json:"activate_link"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &registered))

		resp, _ = do(t, http.MethodPost, srv.URL+"/login", "", `{"username": "buyer", "password": "StrongEnoughPassword"}`)
		require.Equal(t, http.StatusForbidden, resp.StatusCode, "not activated user can't login")

		_, path, ok := strings.Cut(registered.ActivateLink, "/activate/")
		require.True(t, ok, "unexpected activation link %s", registered.ActivateLink)
		resp, _ = do(t, http.MethodGet, srv.URL+"/activate/"+path, "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		token := login("buyer", "StrongEnoughPassword")
		adminToken := login("admin", "admin-password")

		// Default account
		var accounts []struct {
			ID      int64           `json:"id"`
			UserID  int64           `json:"user_id"`
			Balance decimal.Decimal `json:"balance"`
		}
		_, body = do(t, http.MethodGet, srv.URL+"/accounts/me", token, "")
		require.NoError(t, json.Unmarshal([]byte(body), &accounts))
		require.Len(t, accounts, 1)
		account := accounts[0]
		require.True(t, account.Balance.IsZero())

		// Provider credits account, retries are no-op
		fields := signature.Fields{TransactionID: 1, UserID: account.UserID, BillID: account.ID, Amount: decimal.RequireFromString("100.5")}
		payload := fmt.Sprintf(`{"signature": %q, "transaction_id": 1, "user_id": %d, "bill_id": %d, "amount": 100.5}`,
			signer.Sign(fields), account.UserID, account.ID)
		resp, body = do(t, http.MethodPost, srv.URL+"/payment/webhook", "", payload)
		require.Equalf(t, http.StatusOK, resp.StatusCode, "webhook failed: %s", body)
		require.JSONEq(t, `{"success": true, "already_applied": false}`, body)
		resp, body = do(t, http.MethodPost, srv.URL+"/payment/webhook", "", payload)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"success": true, "already_applied": true}`, body)

		resp, _ = do(t, http.MethodPost, srv.URL+"/payment/webhook", "", strings.Replace(payload, "100.5", "1000.5", 1))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "changed amount breaks signature")

		resp, body = do(t, http.MethodPost, srv.URL+"/payment/webhook", "", strings.Replace(payload, "100.5", "1e2000000000", 1))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, body, "Invalid amount")

		// Catalog is managed by superuser
		resp, _ = do(t, http.MethodPost, srv.URL+"/products", token, `{"title": "book", "price": 30}`)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		var product struct {
			ID int64 `json:"id"`
		}
		_, body = do(t, http.MethodPost, srv.URL+"/products", adminToken, `{"title": "book", "description": "paper", "price": 30}`)
		require.NoError(t, json.Unmarshal([]byte(body), &product))
		var car struct {
			ID int64 `json:"id"`
		}
		_, body = do(t, http.MethodPost, srv.URL+"/products", adminToken, `{"title": "car", "price": 1000000}`)
		require.NoError(t, json.Unmarshal([]byte(body), &car))

		// Buy
		buy := fmt.Sprintf(`{"account_id": %d}`, account.ID)
		resp, _ = do(t, http.MethodPost, fmt.Sprintf("%s/products/buy/%d", srv.URL, car.ID), token, buy)
		require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

		for range 2 {
			resp, body = do(t, http.MethodPost, fmt.Sprintf("%s/products/buy/%d", srv.URL, product.ID), token, buy, "Idempotency-Key", "cart-1")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "buy failed: %s", body)
		}

		_, body = do(t, http.MethodGet, srv.URL+"/accounts/me", token, "")
		require.NoError(t, json.Unmarshal([]byte(body), &accounts))
		require.Equal(t, "70.5", accounts[0].Balance.String(), "one credit and one purchase expected")

		var history []struct {
			Kind   string          `json:"kind"`
			Amount decimal.Decimal `json:"amount"`
		}
		_, body = do(t, http.MethodGet, srv.URL+"/transactions/me", token, "")
		require.NoError(t, json.Unmarshal([]byte(body), &history))
		require.Len(t, history, 2)

		// Deactivated user is locked out with valid token
		var me struct {
			ID int64 `json:"id"`
		}
		_, body = do(t, http.MethodGet, srv.URL+"/users/me", token, "")
		require.NoError(t, json.Unmarshal([]byte(body), &me))
		resp, _ = do(t, http.MethodPost, srv.URL+"/users/deactivate", adminToken, fmt.Sprintf(`{"user_id": %d}`, me.ID))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = do(t, http.MethodGet, srv.URL+"/users/me", token, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
