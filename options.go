// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/luxfi/freefall-rpc/schema"
)

// Option configures a Session
type Option func(*Session)

// WithTransport sets the transport used for every call
func WithTransport(t Transport) Option {
	return func(s *Session) { s.transport = t }
}

// WithHTTPClient uses the http transport with a custom client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.transport = NewHTTPTransport(TransportConfig{HTTPClient: c}) }
}

// WithCodecs replaces the codec registry
func WithCodecs(r *CodecRegistry) Option {
	return func(s *Session) { s.codecs = r }
}

// WithSchemas replaces the validator registry
func WithSchemas(r *schema.Registry) Option {
	return func(s *Session) { s.schemas = r }
}

// WithLogger sets the session logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithScheduler sets where completions and reports run
func WithScheduler(sched Scheduler) Option {
	return func(s *Session) { s.sched = sched }
}

// WithSampler sets the user-error sampling policy
func WithSampler(sampler Sampler) Option {
	return func(s *Session) { s.sampler = sampler }
}

// WithReporter sets the error reporter. A nil reporter disables reporting.
func WithReporter(r Reporter) Option {
	return func(s *Session) {
		s.reporter = r
		s.reporterSet = true
	}
}

// WithTraceCapacity sets the trace buffer capacity
func WithTraceCapacity(n int) Option {
	return func(s *Session) { s.traceCapacity = n }
}

// WithReportProtocol sets the codec used for diagnostic reports
func WithReportProtocol(name string) Option {
	return func(s *Session) { s.reportProtocol = name }
}
