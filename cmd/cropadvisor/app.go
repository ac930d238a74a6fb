package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nkiryanov/cropadvisor/internal/handlers"
	"github.com/nkiryanov/cropadvisor/internal/handlers/middleware"
	"github.com/nkiryanov/cropadvisor/internal/logger"
	"github.com/nkiryanov/cropadvisor/internal/repository/mongodb"
	"github.com/nkiryanov/cropadvisor/internal/service/auth"
	"github.com/nkiryanov/cropadvisor/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/cropadvisor/internal/service/predictor"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if c.SecretKey == "" {
		return nil, errors.New("secret key must be set")
	}

	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Load classifier parameters. Missing or broken model is a fatal startup error
	model, err := predictor.Load(c.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("error while loading model. Err: %w", err)
	}

	// Connect to mongo and prepare users collection
	client, err := mongodb.Connect(ctx, c.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	db := client.Database(c.MongoDatabase)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("error while preparing db. Err: %w", err)
	}

	userRepo := mongodb.NewUserRepo(db)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  time.Duration(c.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(c.RefreshTTLDays) * 24 * time.Hour,
	}, userRepo)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{
		AccessCookieName:  c.AccessCookieName,
		RefreshCookieName: c.RefreshCookieName,
	}, tokenManager, userRepo)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	// Complete all together as router
	router := handlers.NewRouter(
		handlers.NewAuth(authService),
		handlers.NewPredict(model),
		middleware.AuthMiddleware(authService),
		middleware.LoggerMiddleware(log),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			// Consider to use logger dependency
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		// Consider to use logger dependency
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
