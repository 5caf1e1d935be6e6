// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"google.golang.org/grpc"
)

// Transport types
const (
	TransportHTTP   = "http"   // POST to a single endpoint, default
	TransportGRPC   = "grpc"   // unary envelope exchange over gRPC
	TransportStream = "stream" // length-prefixed frames over TCP
)

// DefaultTransport is the default transport type (HTTP)
const DefaultTransport = TransportHTTP

// Exchange is one outbound request as seen by a Transport.
type Exchange struct {
	URL         string
	Method      string
	ContentType string
	Body        []byte
}

// Reply is the raw outcome of an Exchange.
type Reply struct {
	Status int
	Body   []byte
}

// Transport performs the network exchange. It does not retry and does not
// interpret the body.
type Transport interface {
	Send(ctx context.Context, ex *Exchange) (*Reply, error)
	Close() error
}

// TransportConfig carries settings for every registered transport; each
// transport reads the fields it needs.
type TransportConfig struct {
	// Addr is the dial address for grpc and stream transports.
	Addr string

	// HTTPClient is used by the http transport. A nil client selects
	// http.DefaultClient, which enforces no timeout.
	HTTPClient *http.Client
	Headers    http.Header
	Query      url.Values

	// GRPCOptions are appended to the grpc transport's dial options.
	GRPCOptions []grpc.DialOption
}

type dialFunc func(ctx context.Context, cfg TransportConfig) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]dialFunc{
		TransportHTTP: dialHTTP,
	}
)

// registerTransport registers a new transport (used by init in transport files)
func registerTransport(name string, dial dialFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = dial
}

// AvailableTransports returns the sorted list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	_, ok := transports[name]
	return ok
}
