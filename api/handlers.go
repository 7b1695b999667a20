package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mezonai/walletd/amount"
	"github.com/mezonai/walletd/jsonx"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/viewmodel"
	"github.com/mezonai/walletd/worker"
)

type errorResponse struct {
	Error string `json:"error"`
}

type acceptedResponse struct {
	Accepted messages.CommandKind `json:"accepted"`
}

type stateResponse struct {
	viewmodel.Snapshot
	WalletBalanceBTC *string `json:"walletBalanceBtc"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonx.NewEncoder(w).Encode(v); err != nil {
		logx.Warn("API", "failed to write response: ", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmitCommand accepts one tagged command. 202 means queued; the
// outcome arrives on /events.
func (s *APIServer) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxCommandBody {
		writeError(w, http.StatusRequestEntityTooLarge, "command too large")
		return
	}

	cmd, err := messages.DecodeCommand(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Dispatcher.Submit(cmd); err != nil {
		if errors.Is(err, worker.ErrWorkerUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: cmd.Kind()})
}

func (s *APIServer) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{Snapshot: s.ViewModel.Snapshot()}
	if resp.WalletBalance != nil {
		btc := amount.FormatBTC(*resp.WalletBalance)
		resp.WalletBalanceBTC = &btc
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams bus events as Server-Sent Events. ?names=a,b limits
// the stream to those event names.
func (s *APIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	names, err := parseNames(r.URL.Query().Get("names"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc := http.NewResponseController(w)
	sub := s.Bus.Subscribe(names...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logx.Warn("API", "event stream not supported: ", err)
		return
	}

	keepAlive := s.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := messages.EncodeEvent(ev)
			if err != nil {
				logx.Error("API", "failed to encode event: ", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name(), data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (s *APIServer) handleGreet(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name param")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"greeting": Greet(name)})
}

// Greet is the daemon's hello-world response.
func Greet(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from walletd!", name)
}

func parseNames(raw string) ([]messages.EventName, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var names []messages.EventName
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !messages.ValidEventName(part) {
			return nil, fmt.Errorf("unknown event name %q", part)
		}
		names = append(names, messages.EventName(part))
	}
	return names, nil
}
