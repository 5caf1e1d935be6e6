// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// GRPCExchangeMethod is the single unary method carrying envelopes.
const GRPCExchangeMethod = "/freefall.rpc.Envelope/Exchange"

func init() {
	registerTransport(TransportGRPC, dialGRPC)
}

// envelopeFrame wraps one encoded envelope. Status is only set on replies.
type envelopeFrame struct {
	ContentType string `cbor:"content_type"`
	Body        []byte `cbor:"body"`
	Status      int    `cbor:"status,omitempty"`
}

// frameCodec is the gRPC wire codec for envelopeFrame.
type frameCodec struct{}

func (frameCodec) Marshal(v any) ([]byte, error)      { return cborEnc.Marshal(v) }
func (frameCodec) Unmarshal(data []byte, v any) error { return cborDec.Unmarshal(data, v) }
func (frameCodec) Name() string                       { return "freefall-frame" }

func dialGRPC(_ context.Context, cfg TransportConfig) (Transport, error) {
	if cfg.Addr == "" {
		return nil, errors.New("grpc transport requires an address")
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, cfg.GRPCOptions...)
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &grpcTransport{conn: conn}, nil
}

// NewGRPCTransport sends envelopes over an existing connection. Closing the
// transport closes conn.
func NewGRPCTransport(conn *grpc.ClientConn) Transport {
	return &grpcTransport{conn: conn}
}

type grpcTransport struct {
	conn *grpc.ClientConn
}

func (t *grpcTransport) Send(ctx context.Context, ex *Exchange) (*Reply, error) {
	req := &envelopeFrame{ContentType: ex.ContentType, Body: ex.Body}
	var resp envelopeFrame
	if err := t.conn.Invoke(ctx, GRPCExchangeMethod, req, &resp, grpc.ForceCodec(frameCodec{})); err != nil {
		return nil, fmt.Errorf("grpc exchange: %w", err)
	}
	return &Reply{Status: resp.Status, Body: resp.Body}, nil
}

func (t *grpcTransport) Close() error {
	return t.conn.Close()
}

// NewGRPCPeer returns a gRPC server answering GRPCExchangeMethod with
// handler. Register it on a listener with Serve.
func NewGRPCPeer(handler PeerHandler, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ForceServerCodec(frameCodec{}),
		grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
			method, _ := grpc.MethodFromServerStream(stream)
			if method != GRPCExchangeMethod {
				return status.Errorf(codes.Unimplemented, "unknown method %s", method)
			}
			var req envelopeFrame
			if err := stream.RecvMsg(&req); err != nil {
				return err
			}
			code, body, err := handler(stream.Context(), req.ContentType, req.Body)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			return stream.SendMsg(&envelopeFrame{Status: code, Body: body})
		}),
	)
	return grpc.NewServer(opts...)
}
