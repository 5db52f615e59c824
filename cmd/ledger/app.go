package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/ledger/internal/db"
	"github.com/nkiryanov/ledger/internal/events"
	"github.com/nkiryanov/ledger/internal/handlers"
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
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	pool      *pgxpool.Pool
	publisher events.Publisher
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config. Err: %w", err)
	}

	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	signer, err := signature.New(c.WebhookSecret, c.SignatureAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("error while creating webhook signer. Err: %w", err)
	}

	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey, TTL: c.TokenTTL})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if c.AMQPURL != "" {
		publisher, err = events.NewAMQPPublisher(c.AMQPURL, events.DefaultExchange, l)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("error while connecting to broker. Err: %w", err)
		}
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	userService := user.NewService(auth.DefaultHasher, storage)
	authService, err := auth.NewService(tokenManager, auth.DefaultHasher, storage.User())
	if err != nil {
		pool.Close()
		_ = publisher.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	ledgerService := ledger.NewService(storage, publisher, l)
	webhookProcessor := webhook.NewProcessor(webhook.Config{Timeout: c.WebhookTimeout}, signer, ledgerService, l)

	if c.AdminLogin != "" {
		_, created, err := userService.EnsureSuperuser(ctx, c.AdminLogin, c.AdminPassword)
		if err != nil {
			pool.Close()
			_ = publisher.Close()
			return nil, fmt.Errorf("error while creating superuser. Err: %w", err)
		}
		if created {
			l.Info("Superuser created", "username", c.AdminLogin)
		}
	}

	mux := handlers.NewRouter(
		handlers.Config{
			Debug:          c.Environment == logger.EnvDevelopment,
			AllowedOrigins: c.CORSOrigins,
		},
		handlers.Services{
			Auth:     authService,
			Users:    userService,
			Ledger:   ledgerService,
			Catalog:  catalog.NewService(storage.Product()),
			Purchase: purchase.NewService(storage.Product(), ledgerService, l),
			Webhook:  webhookProcessor,
		},
		l,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     l,
		pool:       pool,
		publisher:  publisher,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
// Database pool and broker connection are released when server stopped
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()
	defer func() {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("Failed to close events publisher", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
