// Package openai implements the SessionProbe port against the ChatGPT
// session endpoint.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
	"github.com/ericfisherdev/sessionwatch/internal/domain/port/driven"
)

const (
	defaultBaseURL = "https://chat.openai.com"

	sessionPath = "/api/auth/session"
	accountPath = "/backend-api/accounts/check"

	// sessionCookieName is the cookie the remote expects the session token in.
	sessionCookieName = "__Secure-next-auth.session-token"

	// userAgent must look like a real browser or the remote rejects the
	// request outright regardless of token validity.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// maxResponseBytes bounds how much of the remote response is read.
	maxResponseBytes = 1 << 20
)

// Compile-time interface satisfaction check.
var _ driven.SessionProbe = (*Probe)(nil)

// Probe implements the driven.SessionProbe port over plain HTTP. It issues
// one read-only request per call, authenticated by the session-token cookie,
// and performs no retries; retry policy belongs to callers.
type Probe struct {
	httpClient *http.Client
	baseURL    string
}

// NewProbe creates a Probe against the production endpoint with the given
// per-call timeout.
func NewProbe(timeout time.Duration) *Probe {
	return &Probe{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
	}
}

// NewProbeWithBaseURL creates a Probe with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewProbeWithBaseURL(httpClient *http.Client, baseURL string) (*Probe, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	return &Probe{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(u.String(), "/"),
	}, nil
}

// sessionResponse mirrors the subset of the remote session payload the
// engine consumes. Everything else is ignored.
type sessionResponse struct {
	User struct {
		Email  string   `json:"email"`
		Name   string   `json:"name"`
		Groups []string `json:"groups"`
		Banned bool     `json:"banned"`
	} `json:"user"`
	Expires string `json:"expires"`
}

// Probe resolves the secret into a session descriptor. A non-success remote
// status means the credential was rejected; a network-level failure means
// verification could not be completed, and the two are reported as distinct
// ProbeError kinds.
func (p *Probe) Probe(ctx context.Context, secret string) (*model.SessionDescriptor, error) {
	body, probeErr := p.get(ctx, sessionPath, secret)
	if probeErr != nil {
		return nil, probeErr
	}

	var sess sessionResponse
	if err := json.Unmarshal(body, &sess); err != nil {
		// The endpoint answered 200 with a body that is not a session
		// descriptor; treat it the same as a rejection.
		return nil, &driven.ProbeError{Kind: driven.ProbeKindRejected, Err: fmt.Errorf("decode session response: %w", err)}
	}

	desc := &model.SessionDescriptor{
		Email:  sess.User.Email,
		Name:   sess.User.Name,
		Groups: sess.User.Groups,
		Banned: sess.User.Banned,
	}

	if sess.Expires != "" {
		if t, err := time.Parse(time.RFC3339, sess.Expires); err == nil {
			desc.ExpiresAt = &t
		}
	}

	return desc, nil
}

// FetchAccountDetail retrieves the raw account/plan metadata payload for
// display purposes.
func (p *Probe) FetchAccountDetail(ctx context.Context, secret string) (json.RawMessage, error) {
	body, probeErr := p.get(ctx, accountPath, secret)
	if probeErr != nil {
		return nil, probeErr
	}

	if !json.Valid(body) {
		return nil, &driven.ProbeError{Kind: driven.ProbeKindRejected, Err: fmt.Errorf("account detail response is not valid JSON")}
	}

	return json.RawMessage(body), nil
}

// get performs one authenticated GET and returns the response body, mapping
// failures into the probe error taxonomy.
func (p *Probe) get(ctx context.Context, path, secret string) ([]byte, *driven.ProbeError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, &driven.ProbeError{Kind: driven.ProbeKindTransport, Err: err}
	}

	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: secret})
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Timeouts, DNS failures, resets, and context cancellation all land
		// here. None of them say anything about the credential itself.
		return nil, &driven.ProbeError{Kind: driven.ProbeKindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &driven.ProbeError{Kind: driven.ProbeKindRejected, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &driven.ProbeError{Kind: driven.ProbeKindTransport, Err: fmt.Errorf("read response body: %w", err)}
	}

	return body, nil
}
