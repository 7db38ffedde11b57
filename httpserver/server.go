package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/ruteri/travel-identity-client/common"
	"github.com/ruteri/travel-identity-client/metrics"
)

type HTTPServerConfig struct {
	ListenAddr  string
	MetricsAddr string
	EnablePprof bool
	Log         *slog.Logger

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv        *http.Server
	metricsSrv *metrics.MetricsServer
	handler    *Handler
}

func New(cfg *HTTPServerConfig, handler *Handler) (srv *Server, err error) {
	metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
	if err != nil {
		return nil, err
	}

	srv = &Server{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metricsSrv,
		handler:    handler,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()
	mux.Use(srv.httpLogger, recordRequests)

	// Form
	mux.Get("/", srv.handler.HandleIndex)
	mux.Post("/register", srv.handler.HandleRegisterForm)
	mux.Post("/user", srv.handler.HandleUserForm)

	// JSON API
	mux.Route("/api", func(r chi.Router) {
		r.Post("/connect", srv.handler.HandleConnect)
		r.Get("/session", srv.handler.HandleSession)
		r.Post("/register", srv.handler.HandleRegister)
		r.Get("/user", srv.handler.HandleOwnUser)
		r.Get("/user/{address}", srv.handler.HandleUser)
		r.Post("/documents", srv.handler.HandleDocument)
	})

	// Health and diagnostic endpoints
	mux.Get("/livez", srv.handleLivenessCheck)
	mux.Get("/readyz", srv.handleReadinessCheck)
	mux.Get("/drain", srv.handleDrain)
	mux.Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

// recordRequests counts requests by route pattern rather than raw path, so
// user addresses do not become label values.
func recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, pattern, status, time.Since(start))
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Wallet string `json:"wallet,omitempty"`
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "alive"})
}

// handleReadinessCheck reports the drain flag. The wallet state is
// informational: a disconnected wallet is reconnected on the next request.
func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	wallet := srv.handler.session.State().String()
	if !srv.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready", Wallet: wallet})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready", Wallet: wallet})
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "already draining"})
		return
	}

	srv.log.Info("Server marked as not ready", "drainDuration", srv.cfg.DrainDuration)
	time.AfterFunc(srv.cfg.DrainDuration, func() {
		srv.log.Info("Drain period completed")
	})

	writeJSON(w, http.StatusOK, healthResponse{Status: "draining"})
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "already ready"})
		return
	}

	srv.log.Info("Server marked as ready")
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
}

type listener interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// listeners returns the form/API server and, when configured, the metrics server.
func (srv *Server) listeners() map[string]listener {
	ls := map[string]listener{"HTTP": srv.srv}
	if srv.cfg.MetricsAddr != "" {
		ls["Metrics"] = srv.metricsSrv
	}
	return ls
}

func (srv *Server) RunInBackground() {
	srv.log.Info("Starting servers", "listenAddress", srv.cfg.ListenAddr, "metricsAddress", srv.cfg.MetricsAddr)
	for name, l := range srv.listeners() {
		go func() {
			if err := l.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error(name+" server failed", "err", err)
			}
		}()
	}
}

func (srv *Server) Shutdown() {
	for name, l := range srv.listeners() {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		if err := l.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful "+name+" server shutdown failed", "err", err)
		} else {
			srv.log.Info(name + " server gracefully stopped")
		}
		cancel()
	}
}
