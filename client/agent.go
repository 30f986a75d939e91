package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// APIError is the decoded {msg, status} body of a non-2xx response.
type APIError struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Msg)
}

type User struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name,omitempty"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SignupRequest struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Msg         string `json:"msg"`
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

type Option func(*Agent)

// WithTokenCache restores and persists the access token between runs.
func WithTokenCache(cache TokenCache) Option {
	return func(a *Agent) { a.tokens = NewTokenHolder(cache) }
}

// WithSessionExpired registers a hook run after a failed refresh.
func WithSessionExpired(fn func()) Option {
	return func(a *Agent) { a.transport.OnSessionExpired = fn }
}

func WithBaseTransport(rt http.RoundTripper) Option {
	return func(a *Agent) { a.transport.Base = rt }
}

func WithTimeout(d time.Duration) Option {
	return func(a *Agent) { a.timeout = d }
}

// Agent is the session-aware API client. Cookies, including the refresh
// cookie, live only in its jar.
type Agent struct {
	baseURL   string
	tokens    *TokenHolder
	transport *Transport
	http      *http.Client
	timeout   time.Duration
}

// NewAgent builds an agent for an API mounted at baseURL, e.g.
// "http://localhost:5000/api".
func NewAgent(baseURL string, opts ...Option) (*Agent, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	a := &Agent{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokens:    NewTokenHolder(nil),
		transport: &Transport{},
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.transport.Tokens = a.tokens
	a.transport.RefreshURL = a.baseURL + "/auth/refresh"
	a.transport.RefreshClient = &http.Client{
		Transport: a.transport.Base,
		Jar:       jar,
		Timeout:   a.timeout,
	}
	a.http = &http.Client{
		Transport: a.transport,
		Jar:       jar,
		Timeout:   a.timeout,
	}
	return a, nil
}

func (a *Agent) Tokens() *TokenHolder {
	return a.tokens
}

func (a *Agent) Signup(ctx context.Context, in SignupRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.call(ctx, http.MethodPost, "/auth/signup", in, &out); err != nil {
		return nil, err
	}
	if err := a.tokens.Set(out.AccessToken); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Agent) Login(ctx context.Context, identifier, password string) (*AuthResponse, error) {
	in := map[string]string{"identifier": identifier, "password": password}

	var out AuthResponse
	if err := a.call(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return nil, err
	}
	if err := a.tokens.Set(out.AccessToken); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout asks the server to end the session and always forgets the local
// token, whatever the outcome of the call.
func (a *Agent) Logout(ctx context.Context) error {
	err := a.call(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := a.tokens.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

func (a *Agent) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := a.call(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Do sends req through the session transport.
func (a *Agent) Do(req *http.Request) (*http.Response, error) {
	return a.http.Do(req)
}

func (a *Agent) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (a *Agent) call(ctx context.Context, method, path string, in, out any) error {
	req, err := a.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	resp, err := a.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Msg == "" {
		apiErr.Msg = http.StatusText(resp.StatusCode)
	}
	if apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode
	}
	return apiErr
}
