package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"storyboard/internal/config"
	"storyboard/internal/logging"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("POST /api/projects", srv.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{projectID}/document", srv.handleGetDocument)
	mux.HandleFunc("PUT /api/projects/{projectID}/document", srv.handlePutDocument)
	mux.HandleFunc("GET /api/projects/{projectID}/phases", srv.handlePhases)
	mux.HandleFunc("GET /api/projects/{projectID}/versions", srv.handleListVersions)
	mux.HandleFunc("POST /api/projects/{projectID}/versions", srv.handleSaveVersion)
	mux.HandleFunc("GET /api/projects/{projectID}/versions/{number}", srv.handleGetVersion)
	mux.HandleFunc("POST /api/projects/{projectID}/versions/{number}/restore", srv.handleRestoreVersion)
	mux.HandleFunc("POST /api/projects/{projectID}/generate/prompts", srv.handleGeneratePrompts)
	mux.HandleFunc("POST /api/projects/{projectID}/generate/images", srv.handleGenerateImages)
	mux.HandleFunc("GET /api/projects/{projectID}/scenes/{sceneID}/assets", srv.handleSceneAssets)

	srv.server = &http.Server{
		Handler:           authMiddleware(srv.token, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Image batches run inside the request; give them room.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
