package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/floxi-finance/floxi-keeper/database/models"
)

// Store is the read side of the keeper database.
type Store interface {
	Ping(ctx context.Context) error
	GetLastIndexedBlocks(ctx context.Context) ([]models.LastIndexedBlock, error)
	ListWithdrawalRequests(ctx context.Context, filter models.Filter, page, pageSize int64) (*models.PaginatedResult, error)
	ListQueuedWithdrawals(ctx context.Context, page, pageSize int64) (*models.PaginatedResult, error)
	ListCompletedWithdrawals(ctx context.Context, filter models.Filter, page, pageSize int64) (*models.PaginatedResult, error)
	ListPassengers(ctx context.Context, filter models.Filter, page, pageSize int64) (*models.PaginatedResult, error)
	ListUnmatchedDeposits(ctx context.Context, page, pageSize int64) (*models.PaginatedResult, error)
}

// API server
type Server struct {
	r    chi.Router
	log  *slog.Logger
	db   Store
	opts ServerOpts
}

type ServerOpts struct {
	Logger   *slog.Logger
	Database Store
	Port     string
}

// Create API server
func NewServer(opts ServerOpts) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Port == "" {
		opts.Port = "8080"
	}

	s := &Server{
		log:  opts.Logger,
		db:   opts.Database,
		opts: opts,
	}
	s.routes()

	return s
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.opts.Port,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("📡 Server Started. API Server is now listening on http://localhost:" + s.opts.Port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	s.log.Info("api server stopped")
	return nil
}

// Turns server into http server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Returns JSON response to the API user. HTTP status code
// and data must be provided
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}

// Returns an error to the API user
func ERROR(w http.ResponseWriter, statusCode int, err error) {
	w.WriteHeader(statusCode)
	err = json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
	if err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}
