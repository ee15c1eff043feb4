package eurocore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	logx "eurobot/pkg/logx"
)

// wireTimeLayout is the fixed UTC timestamp format eurocore uses on the wire.
const wireTimeLayout = "2006-01-02T15:04:05.000000Z"

// WireTime parses and renders eurocore timestamps. Values are always UTC.
type WireTime struct {
	time.Time
}

func (t WireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(wireTimeLayout))
}

func (t *WireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(wireTimeLayout, s)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// JobDescriptor is the wire-level job snapshot returned by every dispatch
// endpoint and by the status queue.
type JobDescriptor struct {
	ID         int64    `json:"id"`
	Action     Action   `json:"action"`
	CreatedAt  WireTime `json:"created_at"`
	ModifiedAt WireTime `json:"modified_at"`
	Status     Status   `json:"status"`
	DispatchID *int64   `json:"dispatch_id"`
	Error      *string  `json:"error"`
}

// DispatchPayload is the submission body. Nation is required for add only.
type DispatchPayload struct {
	Title       string `json:"title"`
	Nation      string `json:"nation,omitempty"`
	Category    int    `json:"category"`
	Subcategory int    `json:"subcategory"`
	Text        string `json:"text"`
}

// Account is the auth endpoints' response.
type Account struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// ClientConfig configures the API client.
type ClientConfig struct {
	BaseURL         string
	RequestTimeout  time.Duration // per call; 0 means 15s
	NationsCacheTTL time.Duration // 0 means 5m
}

// Client is a stateless wrapper around the eurocore HTTP contract. The only
// state it keeps is the TTL cache for the permitted-nations list.
type Client struct {
	log  logx.Logger
	http *http.Client

	mu  sync.RWMutex
	cfg ClientConfig

	nmu        sync.Mutex
	nations    []string
	nationsExp time.Time
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{log: log, http: &http.Client{}}
	c.Apply(cfg)
	return c
}

// Apply updates client settings on config reload.
func (c *Client) Apply(cfg ClientConfig) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.NationsCacheTTL <= 0 {
		cfg.NationsCacheTTL = 5 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	c.mu.Lock()
	changed := cfg.BaseURL != c.cfg.BaseURL
	c.cfg = cfg
	c.mu.Unlock()

	if changed {
		c.nmu.Lock()
		c.nations = nil
		c.nationsExp = time.Time{}
		c.nmu.Unlock()
	}
}

func (c *Client) snapshot() ClientConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (Account, error) {
	return c.authenticate(ctx, "/login", username, password)
}

// Register creates a new eurocore account and returns its bearer token.
func (c *Client) Register(ctx context.Context, username, password string) (Account, error) {
	return c.authenticate(ctx, "/register", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (Account, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return Account{}, err
	}

	resp, raw, err := c.do(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return Account{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Account{}, errors.Mark(errors.Newf("%s: status %d", path, resp.StatusCode), ErrAuthentication)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Account{}, &RemoteError{Status: resp.StatusCode, Body: string(raw), Op: path}
	}

	var acc Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return Account{}, &RemoteError{Status: resp.StatusCode, Body: string(raw), Op: path + ": decode"}
	}
	if acc.Token == "" {
		return Account{}, &RemoteError{Status: resp.StatusCode, Body: string(raw), Op: path + ": empty token"}
	}
	c.log.Info("authenticated", logx.String("endpoint", path), logx.String("username", acc.Username))
	return acc, nil
}

// Create submits a new dispatch.
func (c *Client) Create(ctx context.Context, token string, p DispatchPayload) (JobDescriptor, error) {
	return c.submit(ctx, http.MethodPost, "/dispatch", token, &p)
}

// Edit submits an edit of an existing dispatch.
func (c *Client) Edit(ctx context.Context, token string, dispatchID int64, p DispatchPayload) (JobDescriptor, error) {
	p.Nation = ""
	return c.submit(ctx, http.MethodPut, fmt.Sprintf("/dispatch/%d", dispatchID), token, &p)
}

// Delete submits removal of an existing dispatch.
func (c *Client) Delete(ctx context.Context, token string, dispatchID int64) (JobDescriptor, error) {
	return c.submit(ctx, http.MethodDelete, fmt.Sprintf("/dispatch/%d", dispatchID), token, nil)
}

// FetchStatus reads a job's current wire snapshot from the status queue.
func (c *Client) FetchStatus(ctx context.Context, jobID int64) (JobDescriptor, error) {
	return c.submit(ctx, http.MethodGet, fmt.Sprintf("/queue/dispatch/%d", jobID), "", nil)
}

func (c *Client) submit(ctx context.Context, method, path, token string, p *DispatchPayload) (JobDescriptor, error) {
	var body []byte
	if p != nil {
		b, err := json.Marshal(p)
		if err != nil {
			return JobDescriptor{}, err
		}
		body = b
	}

	resp, raw, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return JobDescriptor{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return JobDescriptor{}, errors.Mark(errors.Newf("%s %s: status %d", method, path, resp.StatusCode), ErrAuthentication)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return JobDescriptor{}, &RemoteError{Status: resp.StatusCode, Body: string(raw), Op: method + " " + path}
	}

	var d JobDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return JobDescriptor{}, &RemoteError{Status: resp.StatusCode, Body: string(raw), Op: method + " " + path + ": decode"}
	}
	return d, nil
}

// Nations returns the nations the API permits dispatches for, from the
// X-Nations header of OPTIONS /dispatch. Cached with a TTL.
func (c *Client) Nations(ctx context.Context) ([]string, error) {
	c.nmu.Lock()
	if len(c.nations) > 0 && time.Now().Before(c.nationsExp) {
		out := append([]string(nil), c.nations...)
		c.nmu.Unlock()
		return out, nil
	}
	c.nmu.Unlock()

	resp, raw, err := c.do(ctx, http.MethodOptions, "/dispatch", "", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Status: resp.StatusCode, Body: string(raw), Op: "OPTIONS /dispatch"}
	}

	header := resp.Header.Get("X-Nations")
	if strings.TrimSpace(header) == "" {
		return nil, &RemoteError{Status: resp.StatusCode, Body: "missing X-Nations header", Op: "OPTIONS /dispatch"}
	}

	parts := strings.Split(header, ",")
	nations := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			nations = append(nations, v)
		}
	}

	cfg := c.snapshot()
	c.nmu.Lock()
	c.nations = nations
	c.nationsExp = time.Now().Add(cfg.NationsCacheTTL)
	c.nmu.Unlock()

	return append([]string(nil), nations...), nil
}

// do performs one HTTP call with the per-request timeout. Transport errors
// come back as RemoteError so callers treat them as retryable.
func (c *Client) do(ctx context.Context, method, path, token string, body []byte) (*http.Response, []byte, error) {
	cfg := c.snapshot()
	if cfg.BaseURL == "" {
		return nil, nil, &RemoteError{Body: "base URL not configured", Op: method + " " + path}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.BaseURL+path, rd)
	if err != nil {
		return nil, nil, err
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &RemoteError{Body: err.Error(), Op: method + " " + path}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, &RemoteError{Status: resp.StatusCode, Body: err.Error(), Op: method + " " + path + ": read body"}
	}
	return resp, raw, nil
}
