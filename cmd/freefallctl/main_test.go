// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	rpc "github.com/luxfi/freefall-rpc"
	"github.com/luxfi/freefall-rpc/internal/testutil/testlog"
)

// apiPeer answers FreeFall methods with canned JSON-RPC results.
func apiPeer(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req, err := rpc.JSON.DecodeRequest(body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			data, _ := rpc.JSON.EncodeError(rpc.ErrorObject{Code: rpc.CodeMethodNotFound, Message: "no such method"}, req.Version)
			_, _ = w.Write(data)
			return
		}
		data, err := rpc.JSON.EncodeResult(result, req.ID, req.Version)
		if err != nil {
			t.Errorf("encode %s: %v", req.Method, err)
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testlog.Start(t)
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var airports = map[string]any{"airports": []any{
	map[string]any{"id": "1", "iata_code": "SOF", "name": "Sofia"},
	map[string]any{"id": "2", "iata_code": "VAR", "name": "Varna"},
}}

func TestAirportsCommand(t *testing.T) {
	srv := apiPeer(t, map[string]any{"list_airports": airports})

	out, err := execute(t, "airports", "--endpoint", srv.URL)
	if err != nil {
		t.Fatalf("airports: %v", err)
	}
	if !strings.Contains(out, "SOF") || !strings.Contains(out, "Varna") {
		t.Fatalf("output = %q", out)
	}
}

func TestSearchCommand(t *testing.T) {
	leg := func(from, to, dtime, atime string) map[string]any {
		return map[string]any{
			"airport_from": from, "airport_to": to, "return": false,
			"dtime": dtime, "atime": atime,
			"airline_logo": "", "airline_name": "Example Air", "flight_number": "EA1",
		}
	}
	srv := apiPeer(t, map[string]any{
		"list_airports": airports,
		"search": map[string]any{
			"status_code": "1000",
			"currency":    "EUR",
			"routes": []any{
				map[string]any{"booking_token": "b", "price": 80, "route": []any{
					leg("SOF", "VAR", "2018-05-02T08:00:00Z", "2018-05-02T09:00:00Z"),
				}},
				map[string]any{"booking_token": "a", "price": 60, "route": []any{
					leg("SOF", "VAR", "2018-05-01T08:00:00Z", "2018-05-01T09:00:00Z"),
				}},
			},
		},
	})

	out, err := execute(t, "search", "--endpoint", srv.URL, "--from", "sofia", "--to", "Varna")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	first, second := strings.Index(out, "60 EUR"), strings.Index(out, "80 EUR")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, "SOF > VAR") {
		t.Errorf("output = %q", out)
	}
}

func TestSearchUnknownAirport(t *testing.T) {
	srv := apiPeer(t, map[string]any{"list_airports": airports, "senderror": map[string]any{"status_code": "1000"}})

	_, err := execute(t, "search", "--endpoint", srv.URL, "--from", "Sofia", "--to", "Atlantis")
	if !rpc.IsPeer(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestCallCommand(t *testing.T) {
	srv := apiPeer(t, map[string]any{"list_airports": airports})

	out, err := execute(t, "call", "list_airports", `{"v":"2.0"}`, "--endpoint", srv.URL)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, `"iata_code": "SOF"`) {
		t.Fatalf("output = %q", out)
	}

	if _, err := execute(t, "call", "list_airports", `[1]`, "--endpoint", srv.URL); err == nil {
		t.Fatal("array params accepted")
	}
}

func TestKeyCommand(t *testing.T) {
	srv := apiPeer(t, map[string]any{"get_api_key": map[string]any{"api_key": nil, "status_code": "1000"}})

	out, err := execute(t, "key", "--endpoint", srv.URL)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if strings.TrimSpace(out) != "not logged in" {
		t.Fatalf("output = %q", out)
	}
}

func TestSubscriptionsNeedKey(t *testing.T) {
	srv := apiPeer(t, map[string]any{
		"list_subscriptions": map[string]any{"subscriptions": []any{}},
		"senderror":          map[string]any{"status_code": "1000"},
	})

	if _, err := execute(t, "subscriptions", "--endpoint", srv.URL); !rpc.IsApplication(err) {
		t.Fatalf("without key: err = %v", err)
	}
	out, err := execute(t, "subscriptions", "--endpoint", srv.URL, "--api-key", "k")
	if err != nil {
		t.Fatalf("with key: %v", err)
	}
	if !strings.HasPrefix(out, "ID") {
		t.Fatalf("output = %q", out)
	}
}

func TestBadProtocolFlag(t *testing.T) {
	_, err := execute(t, "airports", "--protocol", "xmlrpc")
	if !errors.Is(err, rpc.ErrUnknownCodec) {
		t.Fatalf("err = %v", err)
	}
	if got := describe(err); !strings.Contains(got, "xmlrpc") {
		t.Errorf("describe = %q", got)
	}
}

func TestDescribeCallError(t *testing.T) {
	err := rpc.User("Search input was not correct.", "status 2000")
	if got := describe(err); got != "Search input was not correct." {
		t.Fatalf("describe = %q", got)
	}
}
