package jsonrpc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mezonai/walletd/jsonx"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/viewmodel"
	"github.com/mezonai/walletd/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitter struct {
	mu   sync.Mutex
	cmds []messages.Command
	err  error
}

func (s *submitter) Submit(cmd messages.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cmds = append(s.cmds, cmd)
	return nil
}

type rpcResponse struct {
	Result jsonx.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, url, method, params string) rpcResponse {
	t.Helper()
	body := `{"jsonrpc":"2.0","id":1,"method":"` + method + `"`
	if params != "" {
		body += `,"params":` + params
	}
	body += "}"

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out rpcResponse
	require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(&out))
	return out
}

func newTestServer(t *testing.T) (*Server, *submitter, *viewmodel.ViewModel, string) {
	t.Helper()
	sub := &submitter{}
	vm := viewmodel.New(viewmodel.Options{})
	s := NewServer(sub, vm, func(name string) string { return "hi " + name })
	server := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		server.Close()
		_ = s.Close()
	})
	return s, sub, vm, server.URL
}

func TestSubmit(t *testing.T) {
	_, sub, _, url := newTestServer(t)

	resp := call(t, url, MethodWalletSubmit, `{"command":{"SendTransaction":5000}}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"accepted":"SendTransaction"}`, string(resp.Result))

	resp = call(t, url, MethodWalletSubmit, `{"command":"SyncWallet"}`)
	require.Nil(t, resp.Error)

	assert.Equal(t, []messages.Command{messages.NewSendTransaction(5000), messages.SyncWallet{}}, sub.cmds)
}

func TestSubmitErrors(t *testing.T) {
	_, sub, _, url := newTestServer(t)

	resp := call(t, url, MethodWalletSubmit, `{"command":{"Nope":null}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)

	resp = call(t, url, MethodWalletSubmit, `{}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)

	sub.err = worker.ErrWorkerUnavailable
	resp = call(t, url, MethodWalletSubmit, `{"command":{"Ping":null}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(CodeWorkerUnavailable), resp.Error.Code)
	assert.Empty(t, sub.cmds)
}

func TestState(t *testing.T) {
	_, _, vm, url := newTestServer(t)
	vm.Apply(messages.NewWalletBalance(2500))
	vm.Apply(messages.NewWalletError("Sync failed"))

	resp := call(t, url, MethodWalletState, "")
	require.Nil(t, resp.Error)

	var state map[string]interface{}
	require.NoError(t, jsonx.Unmarshal(resp.Result, &state))
	assert.Equal(t, float64(2500), state["walletBalance"])
	assert.Equal(t, "0.00002500", state["walletBalanceBtc"])
	assert.Equal(t, "Sync failed", state["walletError"])
}

func TestGreet(t *testing.T) {
	_, _, _, url := newTestServer(t)

	resp := call(t, url, MethodWalletGreet, `{"name":"Ada"}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"greeting":"hi Ada"}`, string(resp.Result))

	resp = call(t, url, MethodWalletGreet, `{"name":"  "}`)
	require.NotNil(t, resp.Error)
}

func TestCORS(t *testing.T) {
	s, _, _, url := newTestServer(t)
	s.SetCORSConfig(CORSConfig{AllowedOrigins: []string{"http://localhost:1420"}, AllowedMethods: []string{"POST"}})

	req, err := http.NewRequest(http.MethodOptions, url, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:1420")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:1420", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestCORSFromEnv(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("CORS_ALLOWED_METHODS", "")
	t.Setenv("CORS_ALLOWED_HEADERS", "")
	t.Setenv("CORS_MAX_AGE", "")
	_, ok := CORSFromEnv()
	assert.False(t, ok)

	t.Setenv("CORS_ALLOWED_ORIGINS", "a.example, b.example")
	t.Setenv("CORS_MAX_AGE", "600")
	cfg, ok := CORSFromEnv()
	require.True(t, ok)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 600, cfg.MaxAge)
}
