// Package api exposes reconciliation and read-only account views over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// Store is the persistence the API reads and reconciles through.
type Store interface {
	reconcile.Store
	ListTransactionsFiltered(ctx context.Context, accountID string, filter service.TransactionFilter) ([]model.Transaction, error)
}

// Server wires handlers to a Store.
type Server struct {
	store      Store
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
	now        func() time.Time
}

// NewServer creates a Server backed by store.
func NewServer(store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")
	return &Server{
		store:      store,
		reconciler: reconcile.New(store, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/accounts/{id}/recalculate", s.handleRecalculate)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcileAll)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("GET /api/accounts/{id}/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /health", s.handleHealth)

	return Chain(mux,
		Recovery(s.logger),
		RequestID,
		Logger(s.logger),
		CORS,
	)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
// A nil tlsConfig serves plain HTTP.
func (s *Server) ListenAndServe(ctx context.Context, cfg *config.Server, tlsConfig *tls.Config) error {
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		TLSConfig:         tlsConfig,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", "addr", cfg.Addr, "tls", tlsConfig != nil)
		var err error
		if tlsConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}
