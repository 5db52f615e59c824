package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/handlers/middleware"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
	"github.com/nkiryanov/ledger/internal/service/purchase"
	"github.com/nkiryanov/ledger/internal/service/webhook"
)

type Config struct {
	// Mount endpoint that signs webhook payloads, for development only
	Debug bool

	// Origins allowed to call API from browser. Empty disables CORS handling.
	AllowedOrigins []string
}

type Services struct {
	Auth     authService
	Users    userService
	Ledger   ledgerService
	Catalog  catalogService
	Purchase purchaseService
	Webhook  webhookService
}

func NewRouter(cfg Config, s Services, logger logger.Logger) http.Handler {
	auth := middleware.NewAuth(s.Auth)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(chimiddleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			ExposedHeaders: []string{"Authorization", middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		render.NotFound(w)
	})

	r.Method(http.MethodPost, "/login", handleLogin(s.Auth, logger))
	r.Method(http.MethodPost, "/users", handleRegister(s.Users, logger))
	r.Method(http.MethodGet, "/activate/{token}", handleActivate(s.Users, logger))

	r.Method(http.MethodPost, "/payment/webhook", handleWebhook(s.Webhook, logger))
	if cfg.Debug {
		r.Method(http.MethodPost, "/payment/webhook/sign", handleSignWebhook(s.Webhook))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Auth)

		r.Method(http.MethodGet, "/users/me", handleUserMe(s.Users, logger))
		r.Method(http.MethodGet, "/accounts/me", handleMyAccounts(s.Users, logger))
		r.Method(http.MethodGet, "/transactions/me", handleMyTransactions(s.Ledger, logger))

		r.Method(http.MethodGet, "/products", handleListProducts(s.Catalog, logger))
		r.Method(http.MethodGet, "/products/{id}", handleGetProduct(s.Catalog, logger))
		r.Method(http.MethodPost, "/products/buy/{id}", handleBuy(s.Purchase, logger))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Superuser)

		r.Method(http.MethodGet, "/users", handleListUsers(s.Users, logger))
		r.Method(http.MethodGet, "/users/{id}", handleGetUser(s.Users, logger))
		r.Method(http.MethodPost, "/users/activate", handleSetActivated(s.Users, true, logger))
		r.Method(http.MethodPost, "/users/deactivate", handleSetActivated(s.Users, false, logger))

		r.Method(http.MethodPost, "/products", handleCreateProduct(s.Catalog, logger))
	})

	return r
}

type authService interface {
	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound if user not found or password is wrong
	// Has to return apperrors.ErrUserNotActivated if user is not activated
	Login(ctx context.Context, username string, password string) (models.IssuedToken, error)

	// Has to return apperrors.ErrUnauthorized if token is invalid or user is not active
	Authorize(ctx context.Context, token string) (models.User, error)

	// Has to return apperrors.ErrForbidden if user is not superuser
	RequireSuperuser(ctx context.Context, token string) (models.User, error)
}

type userService interface {
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, password string) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if token is unknown
	Activate(ctx context.Context, token uuid.UUID) (models.User, error)

	SetActivated(ctx context.Context, userID int64, activated bool) (models.User, error)
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListAccounts(ctx context.Context, userID int64) ([]models.Account, error)
}

type ledgerService interface {
	History(ctx context.Context, userID int64) ([]models.Transaction, error)
}

type catalogService interface {
	CreateProduct(ctx context.Context, title string, description string, price money.Amount) (models.Product, error)

	// Has to return apperrors.ErrProductNotFound if product not found
	GetProduct(ctx context.Context, productID int64) (models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type purchaseService interface {
	Buy(ctx context.Context, user models.User, p purchase.Params) (purchase.Result, error)
}

type webhookService interface {
	Process(ctx context.Context, payload webhook.Payload) (webhook.Result, error)
	Sign(payload webhook.Payload) (string, error)
}
