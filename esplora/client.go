package esplora

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mezonai/walletd/jsonx"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/monitoring"
	"github.com/pkg/errors"
)

const maxErrorBody = 512

// StatusError is returned when Esplora answers with a non-2xx status.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("esplora %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Client talks to an Esplora REST endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) GetAddressStats(ctx context.Context, address string) (*AddressStats, error) {
	var stats AddressStats
	if err := c.getJSON(ctx, "address", "/address/"+address, &stats); err != nil {
		return nil, errors.Wrapf(err, "get stats for %s", address)
	}
	return &stats, nil
}

func (c *Client) GetAddressUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var utxos []UTXO
	if err := c.getJSON(ctx, "address_utxo", "/address/"+address+"/utxo", &utxos); err != nil {
		return nil, errors.Wrapf(err, "get utxos for %s", address)
	}
	return utxos, nil
}

func (c *Client) GetTipHeight(ctx context.Context) (int64, error) {
	body, err := c.do(ctx, "tip_height", http.MethodGet, "/blocks/tip/height", nil)
	if err != nil {
		return 0, errors.Wrap(err, "get tip height")
	}
	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse tip height %q", body)
	}
	return height, nil
}

// Broadcast posts a hex encoded transaction and returns the txid Esplora
// reports.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	body, err := c.do(ctx, "tx", http.MethodPost, "/tx", strings.NewReader(rawHex))
	if err != nil {
		return "", errors.Wrap(err, "broadcast transaction")
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out interface{}) error {
	body, err := c.do(ctx, endpoint, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := jsonx.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s response", endpoint)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body io.Reader) ([]byte, error) {
	start := time.Now()
	defer func() {
		monitoring.RecordEsploraRequest(endpoint, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s response", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		logx.Warn("ESPLORA", fmt.Sprintf("Request failed | method=%s | path=%s | status=%d", method, path, resp.StatusCode))
		return nil, &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	logx.Debug("ESPLORA", fmt.Sprintf("Request ok | method=%s | path=%s | took=%s", method, path, time.Since(start)))
	return data, nil
}
