package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/cohesion/internal/panel"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the analysis panel. The panel state
// lives in ctrl, so every browser tab sees the same panel. frameAncestors
// lists the host origins allowed to embed it.
func NewServer(ctrl *panel.Controller, db *sql.DB, logger *slog.Logger, version, bind string, port int, frameAncestors []string) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           newHandler(ctrl, db, logger, version, frameAncestors),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newHandler(ctrl *panel.Controller, db *sql.DB, logger *slog.Logger, version string, frameAncestors []string) http.Handler {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("failed to create template sub-FS: %v", err))
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to create static sub-FS: %v", err))
	}

	h := &Handlers{
		ctrl:     ctrl,
		db:       db,
		renderer: NewRenderer(templateSub, version, logger),
		logger:   logger,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", h.HandlePanel)
	mux.HandleFunc("POST /fields/refresh", h.HandleRefresh)
	mux.HandleFunc("POST /select", h.HandleSelect)
	mux.HandleFunc("POST /records/select", h.HandleSelectRecord)
	mux.HandleFunc("POST /analyze", h.HandleAnalyze)
	mux.HandleFunc("GET /api/state", h.HandleState)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux, frameAncestors)
}

// securityHeaders adds security-related HTTP headers to all responses. The
// panel runs inside a host page, so framing is limited with frame-ancestors
// rather than refused.
func securityHeaders(next http.Handler, frameAncestors []string) http.Handler {
	csp := "default-src 'self'; script-src 'self'; style-src 'self'; frame-ancestors " +
		strings.Join(append([]string{"'self'"}, frameAncestors...), " ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", csp)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("cohesion panel running", "url", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
