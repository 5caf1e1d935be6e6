// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func TestAvailableTransports(t *testing.T) {
	got := strings.Join(AvailableTransports(), ",")
	if got != "grpc,http,stream" {
		t.Fatalf("transports = %s", got)
	}
	if !HasTransport(DefaultTransport) || HasTransport("zap") {
		t.Fatal("HasTransport mismatch")
	}
}

func TestDialUnknownTransport(t *testing.T) {
	_, err := Dial(context.Background(), "carrier-pigeon", TransportConfig{})
	if !IsApplication(err) || !errors.Is(err, ErrUnknownTransport) {
		t.Fatalf("err = %v", err)
	}
}

func TestDialFailureIsPeer(t *testing.T) {
	_, err := Dial(context.Background(), TransportStream, TransportConfig{})
	if !IsPeer(err) {
		t.Fatalf("missing addr: err = %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	if _, err := Dial(context.Background(), TransportStream, TransportConfig{Addr: addr}); !IsPeer(err) {
		t.Fatalf("closed port: err = %v", err)
	}
}

func TestHTTPTransportRequest(t *testing.T) {
	var seen *http.Request
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr, err := Dial(context.Background(), "", TransportConfig{
		Headers: http.Header{"X-Client": []string{"freefall"}},
		Query:   url.Values{"lang": []string{"en"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	reply, err := tr.Send(context.Background(), &Exchange{
		URL:         srv.URL + "/api",
		ContentType: "text/yaml",
		Body:        []byte("yamlrpc: \"2.0\"\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Status != http.StatusOK || string(reply.Body) != "ok" {
		t.Fatalf("reply = %d %q", reply.Status, reply.Body)
	}
	if seen.Method != http.MethodPost || seen.URL.Path != "/api" || seen.URL.Query().Get("lang") != "en" {
		t.Errorf("request = %s %s", seen.Method, seen.URL)
	}
	if seen.Header.Get("Content-Type") != "text/yaml" || seen.Header.Get("X-Client") != "freefall" {
		t.Errorf("headers = %v", seen.Header)
	}
	if body != "yamlrpc: \"2.0\"\n" {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPTransportSkipsErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusBadGateway)
	}))
	defer srv.Close()

	reply, err := NewHTTPTransport(TransportConfig{}).Send(context.Background(), &Exchange{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Status != http.StatusBadGateway || reply.Body != nil {
		t.Fatalf("reply = %d %q", reply.Status, reply.Body)
	}
}

func startStreamPeer(t *testing.T, h PeerHandler) *StreamServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewStreamServer(l, h)
	go srv.Serve(context.Background())
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestStreamTransport(t *testing.T) {
	srv := startStreamPeer(t, airportsPeer(nil).handler())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := Dial(ctx, TransportStream, TransportConfig{Addr: srv.Addr().String()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	s := newTestSession(t, "", WithTransport(tr))

	for _, protocol := range []string{"jsonrpc", "yamlrpc", "cborrpc"} {
		res, err := listAirports.Invoke(ctx, s, protocol, airportsParams{}).Wait(ctx)
		if err != nil {
			t.Fatalf("%s: %v", protocol, err)
		}
		if len(res.Airports) != 1 || res.Airports[0].Name != "Sofia" {
			t.Fatalf("%s: airports = %+v", protocol, res.Airports)
		}
	}
}

func TestStreamConcurrentCalls(t *testing.T) {
	srv := startStreamPeer(t, func(_ context.Context, ct string, body []byte) (int, []byte, error) {
		time.Sleep(time.Millisecond)
		return http.StatusOK, append([]byte(ct+":"), body...), nil
	})
	conn, err := StreamDial(context.Background(), srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		payload := strings.Repeat("x", i)
		go func() {
			reply, err := conn.Call(context.Background(), "text/plain", []byte(payload))
			if err == nil && string(reply.Body) != "text/plain:"+payload {
				err = errors.New("mismatched reply " + string(reply.Body))
			}
			errs <- err
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
}

func TestStreamStatusAndErrors(t *testing.T) {
	srv := startStreamPeer(t, func(_ context.Context, ct string, _ []byte) (int, []byte, error) {
		switch ct {
		case "empty":
			return http.StatusNoContent, nil, nil
		case "down":
			return http.StatusServiceUnavailable, nil, nil
		default:
			return 0, nil, errors.New("handler exploded")
		}
	})
	conn, err := StreamDial(context.Background(), srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	reply, err := conn.Call(context.Background(), "empty", nil)
	if err != nil || reply.Status != http.StatusNoContent {
		t.Fatalf("empty: %v %v", reply, err)
	}
	reply, err = conn.Call(context.Background(), "down", nil)
	if err != nil || reply.Status != http.StatusServiceUnavailable {
		t.Fatalf("down: %v %v", reply, err)
	}
	if _, err := conn.Call(context.Background(), "boom", nil); err == nil || !strings.Contains(err.Error(), "handler exploded") {
		t.Fatalf("boom: %v", err)
	}

	conn.Close()
	if _, err := conn.Call(context.Background(), "empty", nil); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("closed: %v", err)
	}
}

func startGRPCPeer(t *testing.T, h PeerHandler) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCPeer(h)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis
}

func bufDialer(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func TestGRPCTransport(t *testing.T) {
	lis := startGRPCPeer(t, airportsPeer(nil).handler())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := Dial(ctx, TransportGRPC, TransportConfig{
		Addr:        "passthrough:///bufnet",
		GRPCOptions: []grpc.DialOption{bufDialer(lis)},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	s := newTestSession(t, "", WithTransport(tr))

	res, err := listAirports.Invoke(ctx, s, "yamlrpc", airportsParams{}).Wait(ctx)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.Airports) != 1 || res.Airports[0].ID != "1" {
		t.Fatalf("airports = %+v", res.Airports)
	}
}

func TestGRPCStatusPassthrough(t *testing.T) {
	lis := startGRPCPeer(t, func(context.Context, string, []byte) (int, []byte, error) {
		return http.StatusServiceUnavailable, nil, nil
	})
	tr, err := Dial(context.Background(), TransportGRPC, TransportConfig{
		Addr:        "passthrough:///bufnet",
		GRPCOptions: []grpc.DialOption{bufDialer(lis)},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := newTestSession(t, "", WithTransport(tr))

	_, err = listAirports.Invoke(context.Background(), s, "jsonrpc", airportsParams{}).Wait(context.Background())
	if !IsPeer(err) || UserMessage(err) != NetworkUserMessage {
		t.Fatalf("err = %v", err)
	}
}

func TestGRPCHandlerError(t *testing.T) {
	lis := startGRPCPeer(t, func(context.Context, string, []byte) (int, []byte, error) {
		return 0, nil, errors.New("handler exploded")
	})
	tr, err := Dial(context.Background(), TransportGRPC, TransportConfig{
		Addr:        "passthrough:///bufnet",
		GRPCOptions: []grpc.DialOption{bufDialer(lis)},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	_, err = tr.Send(context.Background(), &Exchange{ContentType: "application/json", Body: []byte("{}")})
	if err == nil || !strings.Contains(err.Error(), "handler exploded") {
		t.Fatalf("err = %v", err)
	}
}
