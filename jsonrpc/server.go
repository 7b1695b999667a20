package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/mezonai/walletd/amount"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/viewmodel"
	"github.com/mezonai/walletd/worker"
)

// JSON-RPC Method name constants
const (
	MethodWalletSubmit = "wallet.submit"
	MethodWalletState  = "wallet.state"
	MethodWalletGreet  = "wallet.greet"
)

// Application error codes, outside the reserved -32768..-32000 range
const (
	CodeWorkerUnavailable jrpc2.Code = -31001
	CodeSubmitFailed      jrpc2.Code = -31002
)

type submitParams struct {
	Command json.RawMessage `json:"command"`
}

type submitResult struct {
	Accepted messages.CommandKind `json:"accepted"`
}

type stateResult struct {
	viewmodel.Snapshot
	WalletBalanceBTC *string `json:"walletBalanceBtc"`
}

type greetParams struct {
	Name string `json:"name"`
}

type greetResult struct {
	Greeting string `json:"greeting"`
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// Server answers JSON-RPC 2.0 over HTTP POST for controllers that prefer
// it to the REST routes. Outcomes still arrive as bus events.
type Server struct {
	dispatcher worker.Submitter
	viewModel  *viewmodel.ViewModel
	greet      func(string) string
	corsConfig CORSConfig
	closeFn    func() error
}

func NewServer(d worker.Submitter, vm *viewmodel.ViewModel, greet func(string) string) *Server {
	return &Server{dispatcher: d, viewModel: vm, greet: greet}
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// Handler builds the HTTP bridge. Call it once; Close releases the bridge.
func (s *Server) Handler() http.Handler {
	jh := jhttp.NewBridge(s.buildMethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	s.closeFn = jh.Close

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		jh.ServeHTTP(w, r)
	})
}

func (s *Server) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodWalletSubmit: handler.New(s.submit),
		MethodWalletState:  handler.New(s.state),
		MethodWalletGreet:  handler.New(s.greetName),
	}
}

func (s *Server) submit(ctx context.Context, p submitParams) (*submitResult, error) {
	if len(p.Command) == 0 {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing command")
	}
	cmd, err := messages.DecodeCommand(p.Command)
	if err != nil {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "%v", err)
	}
	if err := s.dispatcher.Submit(cmd); err != nil {
		if errors.Is(err, worker.ErrWorkerUnavailable) {
			return nil, jrpc2.Errorf(CodeWorkerUnavailable, "%v", err)
		}
		return nil, jrpc2.Errorf(CodeSubmitFailed, "%v", err)
	}
	logx.Debug("JSONRPC", fmt.Sprintf("Command submitted | command=%s", cmd.Kind()))
	return &submitResult{Accepted: cmd.Kind()}, nil
}

func (s *Server) state(ctx context.Context) (*stateResult, error) {
	res := &stateResult{Snapshot: s.viewModel.Snapshot()}
	if res.WalletBalance != nil {
		btc := amount.FormatBTC(*res.WalletBalance)
		res.WalletBalanceBTC = &btc
	}
	return res, nil
}

func (s *Server) greetName(ctx context.Context, p greetParams) (*greetResult, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing name")
	}
	return &greetResult{Greeting: s.greet(name)}, nil
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}
	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(s.corsConfig.MaxAge))
	}
}

// CORSFromEnv reads CORS_ALLOWED_ORIGINS, CORS_ALLOWED_METHODS,
// CORS_ALLOWED_HEADERS (comma-separated) and CORS_MAX_AGE (seconds).
// The bool is false when none of them is set.
func CORSFromEnv() (CORSConfig, bool) {
	var maxAge int
	if v, err := strconv.Atoi(os.Getenv("CORS_MAX_AGE")); err == nil {
		maxAge = v
	}
	cfg := CORSConfig{
		AllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods: splitAndTrim(os.Getenv("CORS_ALLOWED_METHODS")),
		AllowedHeaders: splitAndTrim(os.Getenv("CORS_ALLOWED_HEADERS")),
		MaxAge:         maxAge,
	}
	provided := len(cfg.AllowedOrigins) > 0 || len(cfg.AllowedMethods) > 0 || len(cfg.AllowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}
	return cfg, true
}

func splitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
