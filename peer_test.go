// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/luxfi/freefall-rpc/internal/testutil/testlog"
)

// peerFunc answers one decoded request. A status other than 200 is sent
// without a body.
type peerFunc func(req Request) (status int, result any, errObj *ErrorObject)

func codecFor(contentType string) (Codec, error) {
	reg := DefaultCodecs()
	for _, name := range reg.Names() {
		c, _ := reg.Lookup(name)
		if c.ContentType() == contentType {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no codec for %q", contentType)
}

func (fn peerFunc) handler() PeerHandler {
	return func(_ context.Context, contentType string, body []byte) (int, []byte, error) {
		c, err := codecFor(contentType)
		if err != nil {
			return http.StatusUnsupportedMediaType, nil, nil
		}
		req, err := c.DecodeRequest(body)
		if err != nil {
			return http.StatusBadRequest, nil, nil
		}
		status, result, errObj := fn(req)
		if status != http.StatusOK {
			return status, nil, nil
		}
		if errObj != nil {
			data, err := c.EncodeError(*errObj, req.Version)
			return http.StatusOK, data, err
		}
		data, err := c.EncodeResult(result, req.ID, req.Version)
		return http.StatusOK, data, err
	}
}

// serveHTTP exposes h as an HTTP endpoint for the test's lifetime.
func serveHTTP(t *testing.T, h PeerHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		status, reply, err := h(r.Context(), r.Header.Get("Content-Type"), body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// recorder collects requests seen by a peer.
type recorder struct {
	mu   sync.Mutex
	reqs []Request
}

func (r *recorder) add(req Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
}

func (r *recorder) byMethod(method string) []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Request
	for _, req := range r.reqs {
		if req.Method == method {
			out = append(out, req)
		}
	}
	return out
}

// queueScheduler runs nothing until Drain is called.
type queueScheduler struct {
	mu sync.Mutex
	q  []func()
}

func (s *queueScheduler) Go(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q = append(s.q, fn)
}

func (s *queueScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.q)
}

// Drain runs queued work, including work queued while draining.
func (s *queueScheduler) Drain() int {
	n := 0
	for {
		s.mu.Lock()
		if len(s.q) == 0 {
			s.mu.Unlock()
			return n
		}
		fn := s.q[0]
		s.q = s.q[1:]
		s.mu.Unlock()
		fn()
		n++
	}
}

func newTestSession(t *testing.T, endpoint string, opts ...Option) *Session {
	t.Helper()
	base := []Option{WithLogger(testlog.Start(t)), WithReporter(nil)}
	s := NewSession(endpoint, append(base, opts...)...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type airportsParams struct {
	V string `json:"v,omitempty"`
}

type airport struct {
	ID       string `json:"id"`
	IATACode string `json:"iata_code"`
	Name     string `json:"name"`
}

type airportsResult struct {
	Airports []airport `json:"airports"`
}

var listAirports = &Method[airportsParams, airportsResult]{Name: "list_airports"}

func airportsPeer(rec *recorder) peerFunc {
	return func(req Request) (int, any, *ErrorObject) {
		if rec != nil {
			rec.add(req)
		}
		return http.StatusOK, map[string]any{
			"airports": []any{
				map[string]any{"id": "1", "iata_code": "SOF", "name": "Sofia"},
			},
		}, nil
	}
}
