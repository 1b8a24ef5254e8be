package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmterm/pkg/config"
	"cosmterm/pkg/logging"
	"cosmterm/pkg/watcher"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the static front end, relays /api/lcd and /api/rpc to the
// configured upstreams and, when a watcher is attached, streams its state.
type Server struct {
	cfg     config.ProxyConfig
	watcher *watcher.Watcher
	logger  zerolog.Logger
	client  *http.Client
	started time.Time

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	router  *mux.Router
	handler http.Handler
}

// NewServer builds the server. cfg must have both upstream hosts resolved;
// w may be nil.
func NewServer(cfg config.ProxyConfig, w *watcher.Watcher, logger zerolog.Logger) (*Server, error) {
	lcd, err := parseUpstream(targetLCD, cfg.LCDHost)
	if err != nil {
		return nil, err
	}
	rpc, err := parseUpstream(targetRPC, cfg.RPCHost)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		watcher: w,
		logger:  logging.ForComponent(logger, logging.ComponentProxyServer),
		client:  &http.Client{Timeout: probeTimeout},
		started: time.Now(),
		clients: make(map[*websocket.Conn]bool),
		router:  mux.NewRouter(),
	}
	s.routes(newUpstreamProxy(targetLCD, lcdPrefix, lcd, cfg.UpstreamTimeout(), s.logger),
		newUpstreamProxy(targetRPC, rpcPrefix, rpc, cfg.UpstreamTimeout(), s.logger))
	s.handler = s.router
	return s, nil
}

func (s *Server) routes(lcdProxy, rpcProxy http.Handler) {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(c.Handler)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/proxy-status", s.handleProxyStatus).Methods(http.MethodGet, http.MethodOptions)
	if s.watcher != nil {
		api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	}
	api.Handle("/lcd", lcdProxy)
	api.PathPrefix("/lcd/").Handler(lcdProxy)
	api.Handle("/rpc", rpcProxy)
	api.PathPrefix("/rpc/").Handler(rpcProxy)

	s.router.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	if s.watcher != nil {
		s.router.HandleFunc("/ws", s.handleWS)
	}
	s.router.PathPrefix("/").Handler(staticHandler(s.cfg.StaticDir))
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.startupProbe(ctx)
	if s.watcher != nil {
		go s.listenToWatcher(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str(logging.FieldListen, srv.Addr).
			Str("lcd_host", s.cfg.LCDHost).
			Str("rpc_host", s.cfg.RPCHost).
			Str("static_dir", s.cfg.StaticDir).
			Msg("Proxy server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down proxy server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.watcher.Snapshot())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.clients[conn] = true
	wsClients.Set(float64(len(s.clients)))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		wsClients.Set(float64(len(s.clients)))
		s.mu.Unlock()
	}()

	// Send initial state
	s.mu.Lock()
	err = conn.WriteJSON(watcher.Event{Type: "initial", Data: s.watcher.Snapshot()})
	s.mu.Unlock()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToWatcher(ctx context.Context) {
	sub := s.watcher.Subscribe()
	defer s.watcher.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(event watcher.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
	wsClients.Set(float64(len(s.clients)))
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		_ = client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		_ = client.Close()
		delete(s.clients, client)
	}
	wsClients.Set(0)
}
