// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package kijiji implements the client for the classifieds platform's
// private mobile API. The client is stateless: every authenticated
// operation takes the user ID and session token explicitly, and failures
// surface as one of three typed errors (TransportError, ProtocolError,
// UpstreamError). No operation retries automatically.
package kijiji

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"admanager/internal/wire"
)

const (
	// defaultBaseURL is the primary mobile API endpoint.
	defaultBaseURL = "https://mingle.kijiji.ca/api"

	// defaultUploadURL is the separate image-upload API endpoint.
	defaultUploadURL = "https://mobile-api.kijiji.ca/v1/images/upload"

	// appVersion is the mobile app version the client impersonates.
	appVersion = "17.7.0"

	// defaultTimeout bounds most API calls.
	defaultTimeout = 30 * time.Second

	// slowTimeout bounds conversation listing, which the upstream is
	// known to serve slowly.
	slowTimeout = 90 * time.Second
)

// Config holds client settings. Zero values fall back to the production
// endpoints and default timeouts; tests point BaseURL and UploadURL at
// an httptest server.
type Config struct {
	BaseURL   string
	UploadURL string
}

// Client talks to the upstream API. Safe for concurrent use.
type Client struct {
	baseURL    string
	uploadURL  string
	httpClient *http.Client
	slowClient *http.Client
}

// NewClient creates a client for the upstream API.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = defaultUploadURL
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		uploadURL:  cfg.UploadURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		slowClient: &http.Client{Timeout: slowTimeout},
	}
}

// fixedHeaders returns the headers applied to every request. The user
// agent and protocol version must match what the mobile app sends or the
// upstream rejects the call.
func fixedHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/xml")
	h.Set("Accept-Language", "en-CA")
	h.Set("User-Agent", fmt.Sprintf("com.ebay.kijiji.ca %s (LGE Nexus 5; Android 6.0.1; en_US)", appVersion))
	h.Set("X-ECG-VER", "3.6")
	return h
}

// authHeader formats the per-user authorization header from explicit
// credentials. There is no ambient session state.
func authHeader(userID, token string) string {
	return fmt.Sprintf("id=%q, token=%q", userID, token)
}

// send issues a request with the fixed headers merged with extra, reads
// the body, and parses it as a wire document. A 204 response has no body
// and yields a nil document. Network failures return TransportError;
// unparseable bodies return ProtocolError.
func (c *Client) send(ctx context.Context, client *http.Client, op, method, url string, extra http.Header, body io.Reader) (int, wire.Document, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("kijiji %s: build request: %w", op, err)
	}

	req.Header = fixedHeaders()
	for key, values := range extra {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}

	if len(raw) == 0 {
		return resp.StatusCode, nil, nil
	}

	doc, err := wire.Parse(raw)
	if err != nil {
		return resp.StatusCode, nil, &ProtocolError{Op: op, Err: err}
	}
	return resp.StatusCode, doc, nil
}
