package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type retriedKey struct{}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// Transport attaches the held access token to every request and, on a 401,
// refreshes once through the cookie-carrying refresh client and replays the
// request. The replay is marked so it is never retried again.
type Transport struct {
	Base             http.RoundTripper
	Tokens           *TokenHolder
	RefreshURL       string
	RefreshClient    *http.Client
	OnSessionExpired func()
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(t.authorize(req, t.Tokens.Get(), body))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || isRetried(req.Context()) {
		return resp, nil
	}

	token, refreshErr := t.refresh(req.Context())
	if refreshErr != nil || token == "" {
		t.expire()
		if refreshErr != nil {
			resp.Body.Close()
			return nil, refreshErr
		}
		return resp, nil
	}

	drain(resp)
	if err := t.Tokens.Set(token); err != nil {
		return nil, fmt.Errorf("failed to store refreshed token: %w", err)
	}

	retry := req.WithContext(markRetried(req.Context()))
	return t.base().RoundTrip(t.withJarCookies(t.authorize(retry, token, body)))
}

// refresh returns the new access token, or "" when the server rejected the
// refresh cookie.
func (t *Transport) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.RefreshURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}

	client := t.RefreshClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil
	}
	return out.AccessToken, nil
}

func (t *Transport) expire() {
	_ = t.Tokens.Clear()
	if t.OnSessionExpired != nil {
		t.OnSessionExpired()
	}
}

// authorize clones req so the caller's request is never mutated.
func (t *Transport) authorize(req *http.Request, token string, body []byte) *http.Request {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out
}

// withJarCookies replaces the Cookie header with the jar's current view, so
// a replay after refresh carries the rotated cookie.
func (t *Transport) withJarCookies(req *http.Request) *http.Request {
	if t.RefreshClient == nil || t.RefreshClient.Jar == nil {
		return req
	}
	req.Header.Del("Cookie")
	for _, c := range t.RefreshClient.Jar.Cookies(req.URL) {
		req.AddCookie(c)
	}
	return req
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
