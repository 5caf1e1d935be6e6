// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// httpTransport posts envelopes to an HTTP endpoint.
type httpTransport struct {
	client  *http.Client
	headers http.Header
	query   url.Values
}

func dialHTTP(_ context.Context, cfg TransportConfig) (Transport, error) {
	return NewHTTPTransport(cfg), nil
}

// NewHTTPTransport returns the http transport.
func NewHTTPTransport(cfg TransportConfig) Transport {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &httpTransport{
		client:  client,
		headers: cfg.Headers.Clone(),
		query:   cfg.Query,
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	// Drain any remaining data to allow connection reuse
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

func (t *httpTransport) Send(ctx context.Context, ex *Exchange) (*Reply, error) {
	uri, err := url.Parse(ex.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	if len(t.query) > 0 {
		q := uri.Query()
		for k, vs := range t.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		uri.RawQuery = q.Encode()
	}

	method := ex.Method
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, uri.String(), bytes.NewReader(ex.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range t.headers {
		for _, v := range vs {
			request.Header.Add(k, v)
		}
	}
	request.Header.Set("Content-Type", ex.ContentType)

	resp, err := t.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	// Non-200 bodies are never decoded.
	if resp.StatusCode != http.StatusOK {
		return &Reply{Status: resp.StatusCode}, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Reply{Status: resp.StatusCode, Body: body}, nil
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
