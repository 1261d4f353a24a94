package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
	"golang.org/x/time/rate"
)

const (
	DefaultRelayerBase = "https://relayer-v2.polymarket.com"

	defaultSubmitTimeout = 10 * time.Second

	// El relayer no publica límites; 2/s sobra para un ciclo cada pocos segundos.
	relayRatePerSec = 2

	maxResponseBytes = 1 << 20
)

// RelayInfo is the /relay-payload answer: the relay sender address and the
// next nonce for the requested account.
type RelayInfo struct {
	Address string // tal cual lo devuelve el relayer
	Nonce   uint64
}

// Client talks to relayer-v2 with the browser-session headers.
type Client struct {
	http          *http.Client
	base          string
	creds         *Credentials
	limiter       *rate.Limiter
	submitTimeout time.Duration
}

// NewClient creates a relayer client. Empty base means production.
func NewClient(base string, creds *Credentials, submitTimeout time.Duration) *Client {
	if base == "" {
		base = DefaultRelayerBase
	}
	if submitTimeout <= 0 {
		submitTimeout = defaultSubmitTimeout
	}
	return &Client{
		http:          &http.Client{Timeout: 15 * time.Second},
		base:          strings.TrimRight(base, "/"),
		creds:         creds,
		limiter:       rate.NewLimiter(relayRatePerSec, 2),
		submitTimeout: submitTimeout,
	}
}

// RelayPayload fetches the relay address and nonce for account.
func (c *Client) RelayPayload(ctx context.Context, account string, nonceType Scheme) (RelayInfo, error) {
	q := url.Values{}
	q.Set("address", account)
	q.Set("type", string(nonceType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/relay-payload?"+q.Encode(), nil)
	if err != nil {
		return RelayInfo{}, fmt.Errorf("relay.RelayPayload: build request: %w", err)
	}

	status, body, err := c.do(req)
	if err != nil {
		return RelayInfo{}, fmt.Errorf("relay.RelayPayload: %w", err)
	}
	if status != http.StatusOK {
		return RelayInfo{}, fmt.Errorf("relay.RelayPayload: %w: status %d: %s", domain.ErrRelayUnavailable, status, truncate(string(body), 200))
	}

	var raw struct {
		Address string      `json:"address"`
		Nonce   json.Number `json:"nonce"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return RelayInfo{}, fmt.Errorf("relay.RelayPayload: %w: decode: %v", domain.ErrRelayUnavailable, err)
	}
	nonce, err := parseNonce(raw.Nonce)
	if err != nil {
		return RelayInfo{}, fmt.Errorf("relay.RelayPayload: %w: %v", domain.ErrRelayUnavailable, err)
	}
	return RelayInfo{Address: raw.Address, Nonce: nonce}, nil
}

// Submit POSTs a signed meta-transaction. The response body is returned
// as-is; a non-2xx answer is ErrRelayRejected.
func (c *Client) Submit(ctx context.Context, tx MetaTransaction) (json.RawMessage, error) {
	b, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("relay.Submit: %w: marshal: %v", domain.ErrEncoding, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/submit", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("relay.Submit: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("relay.Submit: %w", err)
	}
	if status < 200 || status > 299 {
		if strings.Contains(strings.ToLower(string(body)), "signature") {
			return body, fmt.Errorf("relay.Submit: %w: %w: status %d: %s", domain.ErrRelayRejected, domain.ErrDigestMismatch, status, truncate(string(body), 200))
		}
		return body, fmt.Errorf("relay.Submit: %w: status %d: %s", domain.ErrRelayRejected, status, truncate(string(body), 200))
	}

	slog.Debug("relay: submit accepted", "status", status, "body", truncate(string(body), 200))
	return json.RawMessage(body), nil
}

// do applies rate limiting and session headers, then executes req. Network
// failures are ErrTransport; credentials are checked before any I/O.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	if err := c.creds.Apply(req); err != nil {
		return 0, nil, err
	}
	if err := c.limiter.Wait(req.Context()); err != nil {
		return 0, nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", domain.ErrTransport, err)
	}
	return resp.StatusCode, body, nil
}

func parseNonce(n json.Number) (uint64, error) {
	if n == "" {
		return 0, errors.New("missing nonce")
	}
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad nonce %q", n)
	}
	return v, nil
}
