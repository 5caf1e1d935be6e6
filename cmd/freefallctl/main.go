// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command freefallctl calls the FreeFall API from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	rpc "github.com/luxfi/freefall-rpc"
	"github.com/luxfi/freefall-rpc/internal/logging"
)

func main() {
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("freefallctl failed")
		fmt.Fprintf(os.Stderr, "freefallctl: %s\n", describe(err))
		os.Exit(1)
	}
}

// describe returns the user message of call failures and the full text of
// everything else, such as configuration errors wrapping a call error.
func describe(err error) string {
	if e, ok := err.(*rpc.Error); ok {
		return e.UserMessage
	}
	return err.Error()
}
