// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
)

// Dial creates the named transport. An empty name selects DefaultTransport.
// Unknown names are a configuration bug and yield an application error.
func Dial(ctx context.Context, name string, cfg TransportConfig) (Transport, error) {
	if name == "" {
		name = DefaultTransport
	}

	transportsMu.RLock()
	dial, ok := transports[name]
	transportsMu.RUnlock()
	if !ok {
		return nil, Application("unknown transport %q", name).WithCause(ErrUnknownTransport)
	}

	t, err := dial(ctx, cfg)
	if err != nil {
		return nil, Peer("cannot dial %s transport", name).WithCause(err)
	}
	return t, nil
}
