package relay

// credentials.go: browser-session headers for relayer-v2.
//
// The relayer authenticates requests with the polymarket.com session cookie.
// A Refresher obtains a fresh cookie from gamma /login every few minutes and
// publishes a new immutable Session; submitters read the latest one without
// locking. Before the first refresh completes, reads fail with
// ErrCredentialsNotReady.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
)

const (
	sessionCookieName  = "polymarketsession"
	browserOrigin      = "https://polymarket.com"
	browserUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:138.0) Gecko/20100101 Firefox/138.0"
	defaultRefreshEach = 20 * time.Minute
)

// Session is one published version of the relayer headers.
type Session struct {
	Version     uint64
	Header      http.Header
	RefreshedAt time.Time
}

// Credentials is a versioned, swap-on-write cell holding the current Session.
type Credentials struct {
	current atomic.Pointer[Session]
	version atomic.Uint64
}

// NewCredentials returns an empty cell.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// StoreCookie publishes the relayer headers for a session cookie.
func (c *Credentials) StoreCookie(cookie string) Session {
	return c.Store(sessionHeaders(cookie))
}

// Store publishes a new header set and returns the stored Session.
func (c *Credentials) Store(h http.Header) Session {
	s := &Session{
		Version:     c.version.Add(1),
		Header:      h.Clone(),
		RefreshedAt: time.Now().UTC(),
	}
	c.current.Store(s)
	return *s
}

// Load returns a copy of the current Session, or ErrCredentialsNotReady.
func (c *Credentials) Load() (Session, error) {
	s := c.current.Load()
	if s == nil {
		return Session{}, domain.ErrCredentialsNotReady
	}
	out := *s
	out.Header = s.Header.Clone()
	return out, nil
}

// Apply copies the current headers onto req.
func (c *Credentials) Apply(req *http.Request) error {
	s := c.current.Load()
	if s == nil {
		return domain.ErrCredentialsNotReady
	}
	for k, vs := range s.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return nil
}

// sessionHeaders reproduces what the polymarket.com frontend sends to the relayer.
func sessionHeaders(cookie string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Cookie", fmt.Sprintf("%s=%s; polymarketauthtype=magic", sessionCookieName, cookie))
	h.Set("Origin", browserOrigin)
	h.Set("Referer", browserOrigin+"/")
	h.Set("Priority", "u=0")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-site")
	h.Set("User-Agent", browserUserAgent)
	return h
}

// RefresherConfig configures the session refresher.
type RefresherConfig struct {
	LoginURL    string // gamma /login
	BearerToken string // magic-link DID token
	Interval    time.Duration
}

// Refresher periodically exchanges the bearer token for a session cookie.
type Refresher struct {
	http  *http.Client
	cfg   RefresherConfig
	creds *Credentials
}

// NewRefresher creates a Refresher publishing into creds.
func NewRefresher(cfg RefresherConfig, creds *Credentials) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultRefreshEach
	}
	return &Refresher{
		http:  &http.Client{Timeout: 10 * time.Second},
		cfg:   cfg,
		creds: creds,
	}
}

// Run refreshes immediately and then on every interval until ctx is done.
// Failures keep the previous session.
func (r *Refresher) Run(ctx context.Context) error {
	slog.Info("relay: session refresher starting", "interval", r.cfg.Interval)

	r.refreshAndLog(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("relay: session refresher stopped")
			return nil
		case <-ticker.C:
			r.refreshAndLog(ctx)
		}
	}
}

func (r *Refresher) refreshAndLog(ctx context.Context) {
	s, err := r.Refresh(ctx)
	if err != nil {
		slog.Warn("relay: session refresh failed, keeping previous headers", "err", err)
		return
	}
	slog.Info("relay: session refreshed", "version", s.Version)
}

// Refresh performs one login round-trip and publishes the new session.
func (r *Refresher) Refresh(ctx context.Context) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.LoginURL, nil)
	if err != nil {
		return Session{}, fmt.Errorf("relay.Refresh: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.BearerToken)
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("relay.Refresh: %w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("relay.Refresh: %w: login status %d", domain.ErrTransport, resp.StatusCode)
	}

	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			s := r.creds.StoreCookie(c.Value)
			slog.Debug("relay: new session cookie", "cookie", truncate(c.Value, 10))
			return s, nil
		}
	}
	return Session{}, fmt.Errorf("relay.Refresh: %w: no %s cookie in login response", domain.ErrCredentialsNotReady, sessionCookieName)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
