package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mezonai/walletd/jsonx"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/viewmodel"
	"github.com/pkg/errors"
)

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// WalletClient talks to a running walletd over its HTTP surface.
type WalletClient struct {
	cfg    Config
	base   string
	http   *http.Client
	stream *http.Client
}

// State is the /state document.
type State struct {
	viewmodel.Snapshot
	WalletBalanceBTC *string `json:"walletBalanceBtc"`
}

type apiError struct {
	Error string `json:"error"`
}

// RequestError carries a non-2xx answer from the daemon.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("walletd returned %d: %s", e.Status, e.Message)
}

func NewClient(cfg Config) (*WalletClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, errors.Wrap(err, "invalid endpoint")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WalletClient{
		cfg:    cfg,
		base:   endpoint,
		http:   &http.Client{Timeout: timeout},
		stream: &http.Client{},
	}, nil
}

// SubmitCommand queues cmd on the daemon's worker and returns once it is
// accepted. Results arrive as events.
func (c *WalletClient) SubmitCommand(ctx context.Context, cmd messages.Command) error {
	body, err := messages.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/commands", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "submit command")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return readError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *WalletClient) GetState(ctx context.Context) (*State, error) {
	var state State
	if err := c.getJSON(ctx, "/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *WalletClient) Greet(ctx context.Context, name string) (string, error) {
	var out struct {
		Greeting string `json:"greeting"`
	}
	if err := c.getJSON(ctx, "/greet?name="+url.QueryEscape(name), &out); err != nil {
		return "", err
	}
	return out.Greeting, nil
}

// StreamEvents calls fn for every event the daemon publishes until ctx
// ends, the stream closes, or fn returns an error. Empty names means all.
func (c *WalletClient) StreamEvents(ctx context.Context, names []messages.EventName, fn func(messages.Event) error) error {
	path := "/events"
	if len(names) > 0 {
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = string(n)
		}
		path += "?names=" + url.QueryEscape(strings.Join(parts, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		return errors.Wrap(err, "open event stream")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
		case line == "":
			if len(data) == 0 {
				continue
			}
			ev, err := messages.DecodeEvent(data)
			data = data[:0]
			if err != nil {
				return errors.Wrap(err, "bad event on stream")
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read event stream")
	}
	return io.EOF
}

func (c *WalletClient) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	if err := jsonx.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

func readError(resp *http.Response) error {
	var body apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := jsonx.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	return &RequestError{Status: resp.StatusCode, Message: body.Error}
}
