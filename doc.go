// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpc is a schema-validated RPC client for the FreeFall API.
//
// # Encodings
//
// Envelopes are written in one of three interchangeable syntaxes, chosen per
// call by name:
//
//	jsonrpc  application/json  jsonrpc/method/params/id/result/error
//	yamlrpc  text/yaml         yamlrpc/action/parameters/id/result/error
//	cborrpc  application/cbor  cborrpc/method/params/id/result/error
//
// All three decode into the same Request and Response values.
//
// # Transport Selection
//
// HTTP POST to a single endpoint is the default transport. The grpc and
// stream transports carry the same encoded envelopes to a peer at a fixed
// address:
//
//	t, err := rpc.Dial(ctx, rpc.TransportGRPC, rpc.TransportConfig{Addr: "localhost:9000"})
//	s := rpc.NewSession("", rpc.WithTransport(t))
//
// Transports never retry. A 200 reply is decoded, 204 completes the call
// empty, and any other status is a peer error.
//
// # Usage
//
//	s := rpc.NewSession("https://freefall.example/api", rpc.WithLogger(logger))
//	defer s.Close()
//
//	listAirports := &rpc.Method[ListAirportsParams, ListAirportsResult]{Name: "list_airports"}
//	res, err := listAirports.Invoke(ctx, s, "jsonrpc", ListAirportsParams{}).Wait(ctx)
//	if err != nil {
//	    fmt.Println(rpc.UserMessage(err))
//	}
//
// Params are validated before sending (a failure is an Application error),
// results after receiving (a failure is a Peer error). Business status codes
// in the failure family become User errors.
//
// # Errors
//
// Every failure delivered by a Future is an *Error of kind Application, Peer
// or User. Application and Peer errors are always reported to the peer via
// the senderror method; User errors are sampled at one in UserReportRate.
// Reports carry a snapshot of the session trace buffer and never fail the
// original call.
//
// # Architecture
//
//   - codec.go, json.go, yaml.go, cbor.go: envelope codecs and registry
//   - transport.go, dial.go: transport registry and Dial
//   - http.go, dial_grpc.go, stream.go: http, grpc and stream transports
//   - client.go, options.go: Session, API key cell, Raise and Assert*
//   - method.go, status.go: the call pipeline and business status codes
//   - future.go: deferred delivery through a Scheduler
//   - errors.go, stack.go, trace.go, report.go: taxonomy and reporting
package rpc
