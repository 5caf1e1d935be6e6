// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package freefall

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	rpc "github.com/luxfi/freefall-rpc"
	"github.com/luxfi/freefall-rpc/internal/testutil/testlog"
)

// methodFunc answers one method. A nil result with a nil error object
// replies 204.
type methodFunc func(params map[string]any) (result any, errObj *rpc.ErrorObject)

// fakePeer serves FreeFall methods over HTTP in every registered encoding
// and remembers the params it received.
type fakePeer struct {
	t       *testing.T
	methods map[string]methodFunc

	mu   sync.Mutex
	seen map[string][]map[string]any
}

func newFakePeer(t *testing.T, methods map[string]methodFunc) (*fakePeer, *httptest.Server) {
	t.Helper()
	p := &fakePeer{t: t, methods: methods, seen: map[string][]map[string]any{}}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *fakePeer) codec(contentType string) rpc.Codec {
	reg := rpc.DefaultCodecs()
	for _, name := range reg.Names() {
		c, _ := reg.Lookup(name)
		if c.ContentType() == contentType {
			return c
		}
	}
	return nil
}

func (p *fakePeer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := p.codec(r.Header.Get("Content-Type"))
	if c == nil {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}
	body, _ := io.ReadAll(r.Body)
	req, err := c.DecodeRequest(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	params, _ := req.Params.(map[string]any)

	p.mu.Lock()
	p.seen[req.Method] = append(p.seen[req.Method], params)
	fn := p.methods[req.Method]
	p.mu.Unlock()

	if fn == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	result, errObj := fn(params)
	var data []byte
	switch {
	case errObj != nil:
		data, err = c.EncodeError(*errObj, req.Version)
	case result == nil:
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		data, err = c.EncodeResult(result, req.ID, req.Version)
	}
	if err != nil {
		p.t.Errorf("encode reply: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}

func (p *fakePeer) params(method string) []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[method]
}

func reply(v any) methodFunc {
	return func(map[string]any) (any, *rpc.ErrorObject) { return v, nil }
}

func newTestClient(t *testing.T, endpoint, protocol string) *Client {
	t.Helper()
	s := rpc.NewSession(endpoint,
		rpc.WithLogger(testlog.Start(t)),
		rpc.WithReporter(nil),
	)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, protocol)
}
