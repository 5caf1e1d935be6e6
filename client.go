// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luxfi/freefall-rpc/internal/observability"
	"github.com/luxfi/freefall-rpc/schema"
)

// APIKeyRef holds the credential used by authenticated calls. It has a
// single writer (the key fetch) and many readers.
type APIKeyRef struct {
	mu  sync.RWMutex
	key string
	set bool
}

// Set stores key.
func (r *APIKeyRef) Set(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key, r.set = key, true
}

// Get returns the stored key and whether one was set.
func (r *APIKeyRef) Get() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.key, r.set
}

// Clear forgets the stored key.
func (r *APIKeyRef) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key, r.set = "", false
}

// Session is the client-side state shared by every call to one endpoint:
// the trace buffer, the API key cell, the request id counter and the
// collaborators that encode, send, validate and report.
type Session struct {
	endpoint  string
	transport Transport
	codecs    *CodecRegistry
	schemas   *schema.Registry
	sched     Scheduler
	sampler   Sampler
	reporter  Reporter
	trace     *TraceBuffer
	apiKey    APIKeyRef
	nextID    atomic.Int64
	log       zerolog.Logger

	reporterSet    bool
	traceCapacity  int
	reportProtocol string
}

// NewSession returns a session posting to endpoint. Without options it uses
// the http transport, the default codecs and the embedded schemas, and
// reports Application and Peer errors through the senderror method.
func NewSession(endpoint string, opts ...Option) *Session {
	s := &Session{
		endpoint:       endpoint,
		log:            zerolog.Nop(),
		reportProtocol: JSON.Name(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.transport == nil {
		s.transport = NewHTTPTransport(TransportConfig{})
	}
	if s.codecs == nil {
		s.codecs = DefaultCodecs()
	}
	if s.schemas == nil {
		s.schemas = schema.Default()
	}
	if s.sched == nil {
		s.sched = GoroutineScheduler
	}
	if s.sampler == nil {
		s.sampler = NewRateSampler(UserReportRate, 0)
	}
	if !s.reporterSet {
		s.reporter = &diagnosticReporter{session: s}
	}
	s.trace = NewTraceBuffer(s.traceCapacity)
	return s
}

// Endpoint returns the URL calls are posted to.
func (s *Session) Endpoint() string { return s.endpoint }

// APIKey returns the session's API key cell.
func (s *Session) APIKey() *APIKeyRef { return &s.apiKey }

// Trace returns the session's trace buffer.
func (s *Session) Trace() *TraceBuffer { return s.trace }

// Logger returns the session logger.
func (s *Session) Logger() zerolog.Logger { return s.log }

// NextID returns the next request id, starting at 1.
func (s *Session) NextID() int64 { return s.nextID.Add(1) }

// Close releases the transport.
func (s *Session) Close() error {
	return s.transport.Close()
}

// Raise completes err for delivery: it snapshots the trace, captures the
// stack, assigns a report id, decides whether to report and dispatches the
// report without waiting for it. Raising an already raised error is a no-op.
func (s *Session) Raise(err error) *Error {
	e := classify(err)
	if e == nil || e.raised {
		return e
	}
	e.raised = true
	e.Trace = s.trace.Snapshot()
	if e.Stack == "" {
		e.Stack = captureStack(1)
	}
	e.ReportID = uuid.NewString()

	switch e.Kind {
	case KindUser:
		e.ShouldReport = s.sampler.Sample()
	default:
		e.ShouldReport = true
	}

	level := zerolog.ErrorLevel
	if e.Kind == KindUser {
		level = zerolog.InfoLevel
	}
	s.log.WithLevel(level).
		Str("kind", e.Kind.String()).
		Str("report_id", e.ReportID).
		Bool("report", e.ShouldReport).
		Err(e).
		Msg("rpc error raised")
	observability.RecordReport(e.Kind.String(), e.ShouldReport)

	if e.ShouldReport {
		s.dispatch(e)
	}
	return e
}

func (s *Session) dispatch(e *Error) {
	if s.reporter == nil {
		return
	}
	r := Report{
		ID:      e.ReportID,
		Kind:    e.Kind,
		Message: e.Error(),
		Trace:   e.Trace,
		Stack:   e.Stack,
	}
	s.sched.Go(func() {
		defer func() {
			if p := recover(); p != nil {
				s.log.Warn().Interface("panic", p).Str("report_id", r.ID).Msg("error reporter panicked")
			}
		}()
		s.reporter.Report(context.Background(), r)
	})
}

// AssertApplication raises an application error unless cond holds.
func (s *Session) AssertApplication(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return s.Raise(Application(format, args...))
}

// AssertPeer raises a peer error unless cond holds.
func (s *Session) AssertPeer(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return s.Raise(Peer(format, args...))
}

// AssertUser raises a user error carrying userMessage unless cond holds.
func (s *Session) AssertUser(cond bool, userMessage, format string, args ...any) error {
	if cond {
		return nil
	}
	return s.Raise(User(userMessage, format, args...))
}

// Call invokes method with untyped params and result. The stored API key,
// if any, is added to params. The method still needs request and response
// validators in the session schema registry.
func (s *Session) Call(ctx context.Context, protocol, method string, params map[string]any) *Future[map[string]any] {
	m := &Method[map[string]any, map[string]any]{Name: method, Authenticated: true}
	return m.Invoke(ctx, s, protocol, params)
}

// Reject returns a future that fails with err. err is raised on the session
// and delivered on its scheduler, like any other call failure.
func Reject[T any](s *Session, err error) *Future[T] {
	f := newFuture[T](s.sched)
	s.sched.Go(func() {
		var zero T
		f.complete(zero, s.Raise(err), false)
	})
	return f
}
