// Package httpc provides a shared HTTP client with sensible defaults and a
// small client for the focusd session API.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-focus/pkg/session"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// UserHeader carries the user ID on session requests.
const UserHeader = "X-User-ID"

// Client is a shared HTTP client with production-ready defaults.
var Client = NewClient(DefaultTimeout)

// NewClient creates a new HTTP client with the specified timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// APIError is a non-2xx response from focusd.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("focusd: %d %s", e.Status, e.Message)
}

// API talks to a focusd server on behalf of one user.
type API struct {
	base   string
	user   string
	client *http.Client
}

// NewAPI creates an API client. base is the server URL, e.g.
// "http://localhost:8080".
func NewAPI(base, user string) *API {
	return &API{
		base:   strings.TrimRight(base, "/"),
		user:   user,
		client: Client,
	}
}

// WithClient replaces the underlying HTTP client.
func (a *API) WithClient(c *http.Client) *API {
	a.client = c
	return a
}

// IngestURL returns the websocket URL that feeds frames to a session.
func (a *API) IngestURL(sessionID string) string {
	u := a.base
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws/ingest/" + sessionID
}

// Header returns the headers identifying the user, for websocket dials.
func (a *API) Header() http.Header {
	return http.Header{UserHeader: {a.user}}
}

// StartSession starts a session for the user.
func (a *API) StartSession(ctx context.Context) (*session.Session, error) {
	var s session.Session
	if err := a.do(ctx, http.MethodPost, "/api/sessions", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// EndSession ends a session and returns it with its rewards.
func (a *API) EndSession(ctx context.Context, id string) (*session.Session, error) {
	var s session.Session
	if err := a.do(ctx, http.MethodPut, "/api/sessions/"+id+"/end", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logs returns a session's focus log.
func (a *API) Logs(ctx context.Context, id string) ([]session.FocusLog, error) {
	var resp struct {
		Logs []session.FocusLog `json:"logs"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/sessions/"+id+"/logs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(UserHeader, a.user)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
