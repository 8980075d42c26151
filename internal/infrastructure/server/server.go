package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/eslsoft/deeplisten/api/backup/v1/backupv1connect"
	"github.com/eslsoft/deeplisten/internal/adapter/connectrpc"
	"github.com/eslsoft/deeplisten/internal/infrastructure/blob"
	"github.com/eslsoft/deeplisten/internal/infrastructure/config"
)

// Server represents the application server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewServer mounts the Connect service, the upload endpoint, signed blob
// downloads and metrics on one h2c listener.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	backupSvc backupv1connect.BackupServiceHandler,
	uploads *connectrpc.UploadHandler,
	blobs *blob.Gateway,
	signer *blob.URLSigner,
) *Server {
	mux := http.NewServeMux()
	mux.Handle(backupv1connect.NewBackupServiceHandler(backupSvc,
		connect.WithInterceptors(Logger(logger), connectrpc.NewAuthInterceptor()),
	))
	mux.Handle(connectrpc.UploadPath, connectrpc.RequireUserID(uploads))
	mux.Handle("GET "+blob.SignedPathPrefix+"{bucket}/{key...}", newBlobHandler(blobs, signer, logger))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := withCORS(cfg.Server.CORSOrigins, mux)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		logger:     logger,
	}
}

func withCORS(origins []string, h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: append(connectcors.AllowedMethods(), http.MethodPut),
		AllowedHeaders: append(connectcors.AllowedHeaders(), backupv1connect.UserIDHeader),
		ExposedHeaders: connectcors.ExposedHeaders(),
		MaxAge:         7200,
	}).Handler(h)
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// StartHTTP serves until Shutdown is called.
func (s *Server) StartHTTP() error {
	s.logger.Infof("HTTP server starting on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
