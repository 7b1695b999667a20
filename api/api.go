package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mezonai/walletd/events"
	"github.com/mezonai/walletd/exception"
	"github.com/mezonai/walletd/jsonrpc"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/viewmodel"
	"github.com/mezonai/walletd/worker"
)

const (
	maxCommandBody    = 64 << 10
	defaultKeepAlive  = 15 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// APIServer exposes the controller side of the worker over HTTP.
type APIServer struct {
	Dispatcher worker.Submitter
	Bus        *events.EventBus
	ViewModel  *viewmodel.ViewModel
	ListenAddr string
	// KeepAlive is the SSE comment interval
	KeepAlive time.Duration

	router    *chi.Mux
	rpc       *jsonrpc.Server
	server    *http.Server
	listener  net.Listener
	closing   chan struct{}
	closeOnce sync.Once
}

func NewAPIServer(d worker.Submitter, bus *events.EventBus, vm *viewmodel.ViewModel, addr string) *APIServer {
	s := &APIServer{
		Dispatcher: d,
		Bus:        bus,
		ViewModel:  vm,
		ListenAddr: addr,
		KeepAlive:  defaultKeepAlive,
		closing:    make(chan struct{}),
		rpc:        jsonrpc.NewServer(d, vm, Greet),
	}
	if cors, ok := jsonrpc.CORSFromEnv(); ok {
		s.rpc.SetCORSConfig(cors)
	}
	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/commands", s.handleSubmitCommand)
	s.router.Get("/state", s.handleState)
	s.router.Get("/events", s.handleEvents)
	s.router.Get("/greet", s.handleGreet)
	s.router.Handle("/rpc", s.rpc.Handler())
}

func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background.
func (s *APIServer) Start() error {
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", s.ListenAddr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	logx.Info("API", "API listen on ", ln.Addr().String())
	exception.SafeGoWithPanic("api-server", func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logx.Error("API", "API server stopped: ", err)
		}
	})
	return nil
}

// Addr is the bound address once Start returned.
func (s *APIServer) Addr() string {
	if s.listener == nil {
		return s.ListenAddr
	}
	return s.listener.Addr().String()
}

// Stop ends open event streams, then gracefully stops the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	if s.server == nil {
		return s.rpc.Close()
	}
	err := s.server.Shutdown(ctx)
	if cerr := s.rpc.Close(); err == nil {
		err = cerr
	}
	return err
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logx.Debug("API", fmt.Sprintf("%s %s | status=%d | took=%s | request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context())))
	})
}
