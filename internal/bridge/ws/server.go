// Package ws is the websocket bridge front-ends attach through. A connection is
// the attached context of its device for as long as it stays open.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/session"
	"github.com/acme/direct-calling/pkg/logger"
)

// Server accepts bridge connections.
type Server struct {
	cfg      config.BridgeConfig
	registry *session.Registry
	logger   *logger.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
	http     *http.Server
}

// NewServer builds the bridge server.
func NewServer(cfg config.BridgeConfig, registry *session.Registry, lg *logger.Logger) *Server {
	if lg == nil {
		lg = logger.Nop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	s := &Server{cfg: cfg, registry: registry, logger: lg.Named("bridge")}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	r := mux.NewRouter()
	r.HandleFunc("/bridge/{device}", s.handleConnect).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	s.router = r

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("bridge listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device"]
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("bridge: upgrade", zap.String("device_id", deviceID), zap.Error(err))
		return
	}
	defer ws.Close()

	c := newConn(context.WithoutCancel(r.Context()), deviceID, ws, s.registry, s.cfg.WriteTimeout, s.cfg.PingInterval, s.logger)
	s.registry.Attach(c)
	defer s.registry.Detach(c)
	c.serve()
}

// checkOrigin accepts any origin when none are configured.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}
