// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"math/rand/v2"
	"sync"
)

// UserReportRate is the default sampling rate for user errors: one report
// per UserReportRate occurrences on average.
const UserReportRate = 10

// ReportMethod is the remote method that receives diagnostic reports.
const ReportMethod = "senderror"

// Report is the diagnostic payload for one raised error.
type Report struct {
	ID      string
	Kind    Kind
	Message string
	Trace   []string
	Stack   string
}

// Reporter delivers reports. Implementations must not block for long and
// must not return failures to the raising path.
type Reporter interface {
	Report(ctx context.Context, r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Report)

func (f ReporterFunc) Report(ctx context.Context, r Report) { f(ctx, r) }

// Sampler decides, per occurrence, whether a user error is reported.
type Sampler interface {
	Sample() bool
}

// RateSampler reports each occurrence independently with probability 1/n.
type RateSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
	n   int
}

// NewRateSampler returns a 1-in-n sampler. A zero seed draws a random one;
// n below 1 selects UserReportRate.
func NewRateSampler(n int, seed uint64) *RateSampler {
	if n < 1 {
		n = UserReportRate
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RateSampler{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		n:   n,
	}
}

func (s *RateSampler) Sample() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(s.n) == 0
}

// Always reports every occurrence.
var Always Sampler = constSampler(true)

// Never reports no occurrence.
var Never Sampler = constSampler(false)

type constSampler bool

func (c constSampler) Sample() bool { return bool(c) }

type errorReportParams struct {
	V          string   `json:"v"`
	Msg        string   `json:"msg"`
	Trace      []string `json:"trace"`
	StackTrace string   `json:"stack_trace"`
	ReportID   string   `json:"report_id,omitempty"`
}

type errorReportResult struct {
	StatusCode string `json:"status_code"`
}

// sendError never raises: its failures are logged and dropped so a broken
// report path cannot report about itself.
var sendError = &Method[errorReportParams, errorReportResult]{
	Name:  ReportMethod,
	quiet: true,
}

// diagnosticReporter sends reports to the peer through the session's own
// facade.
type diagnosticReporter struct {
	session *Session
}

func (d *diagnosticReporter) Report(ctx context.Context, r Report) {
	s := d.session
	trace := r.Trace
	if trace == nil {
		trace = []string{}
	}
	params := errorReportParams{
		V:          ProtocolVersion,
		Msg:        r.Message,
		Trace:      trace,
		StackTrace: r.Stack,
		ReportID:   r.ID,
	}
	sendError.Invoke(ctx, s, s.reportProtocol, params).Then(func(_ errorReportResult, err error) {
		if err != nil {
			s.log.Debug().Err(err).Str("report_id", r.ID).Msg("error report dropped")
		}
	})
}
