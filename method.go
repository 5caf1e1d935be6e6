// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/luxfi/freefall-rpc/internal/observability"
	"github.com/luxfi/freefall-rpc/schema"
)

// Method describes one remote method: its name, whether it carries the
// session API key and how its result is checked and post-processed.
type Method[P, R any] struct {
	Name string

	// Authenticated methods get the session API key as params.api_key
	// unless the caller supplied one.
	Authenticated bool

	// Status extracts the business status code from a result. Nil skips
	// status classification.
	Status func(r *R) string
	// Messages holds user messages for failure codes.
	Messages StatusMessages

	// Post runs after the status check on successful results.
	Post func(s *Session, r *R) error

	quiet bool
}

// Invoke runs the call on the session scheduler and returns immediately.
// The future completes with the post-processed result, with a raised
// *Error, or empty when the peer answered 204 No Content.
func (m *Method[P, R]) Invoke(ctx context.Context, s *Session, protocol string, params P) *Future[R] {
	f := newFuture[R](s.sched)
	s.trace.Record(m.Name)

	s.sched.Go(func() {
		start := time.Now()
		out, empty, err := m.run(ctx, s, protocol, params)

		outcome := "ok"
		switch {
		case err != nil:
			if m.quiet {
				err = classify(err)
			} else {
				err = s.Raise(err)
			}
			outcome = KindOf(err).String()
		case empty:
			outcome = "empty"
		}
		observability.RecordCall(m.Name, protocol, outcome, time.Since(start))
		f.complete(out, err, empty)
	})
	return f
}

func (m *Method[P, R]) run(ctx context.Context, s *Session, protocol string, params P) (out R, empty bool, err error) {
	payload, err := m.prepare(s, params)
	if err != nil {
		return out, false, err
	}

	requestValidator, ok := s.schemas.Request(m.Name)
	if !ok {
		return out, false, Application("no request validator for method %q", m.Name)
	}
	if issues := requestValidator.Validate(payload); len(issues) > 0 {
		return out, false, Application("invalid %s params: %s", m.Name, schema.Message(issues))
	}

	codec, err := s.codecs.Lookup(protocol)
	if err != nil {
		return out, false, err
	}

	id := s.NextID()
	body, err := codec.EncodeRequest(Request{
		Version: ProtocolVersion,
		Method:  m.Name,
		Params:  payload,
		ID:      id,
	})
	if err != nil {
		return out, false, err
	}

	s.log.Debug().
		Str("method", m.Name).
		Str("protocol", protocol).
		Int64("id", id).
		Msg("rpc call")

	reply, err := s.transport.Send(ctx, &Exchange{
		URL:         s.endpoint,
		Method:      http.MethodPost,
		ContentType: codec.ContentType(),
		Body:        body,
	})
	if err != nil {
		return out, false, unavailable(m.Name, 0).WithCause(err)
	}

	switch reply.Status {
	case http.StatusOK:
	case http.StatusNoContent:
		return out, true, nil
	default:
		return out, false, unavailable(m.Name, reply.Status)
	}

	resp, err := codec.DecodeResponse(reply.Body)
	if err != nil {
		return out, false, err
	}

	if resp.Error != nil {
		return out, false, remoteError(s, m.Name, resp.Error)
	}

	responseValidator, ok := s.schemas.Response(m.Name)
	if !ok {
		return out, false, Application("no response validator for method %q", m.Name)
	}
	if issues := responseValidator.Validate(resp.Result); len(issues) > 0 {
		return out, false, Peer("invalid %s result: %s", m.Name, schema.Message(issues))
	}

	if err := decodeInto(resp.Result, &out); err != nil {
		return out, false, Peer("cannot decode %s result", m.Name).WithCause(err)
	}

	if m.Status != nil {
		if err := CheckStatus(m.Status(&out), m.Messages); err != nil {
			return out, false, err
		}
	}
	if m.Post != nil {
		if err := m.Post(s, &out); err != nil {
			return out, false, err
		}
	}
	return out, false, nil
}

// prepare canonicalises params into an object and fills in the protocol
// version and, for authenticated methods, the API key.
func (m *Method[P, R]) prepare(s *Session, params P) (map[string]any, error) {
	raw, err := canonical(params)
	if err != nil {
		return nil, Application("cannot serialize %s params", m.Name).WithCause(err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, Application("%s params must be an object, got %T", m.Name, raw)
	}
	if v, ok := obj["v"]; !ok || v == "" {
		obj["v"] = ProtocolVersion
	}
	if m.Authenticated {
		if k, ok := obj["api_key"]; !ok || k == "" {
			if key, set := s.apiKey.Get(); set {
				obj["api_key"] = key
			}
		}
	}
	return obj, nil
}

// unavailable is the peer error for a failed exchange. status is 0 when no
// reply was received at all.
func unavailable(method string, status int) *Error {
	e := Peer("%s: remote service unavailable", method)
	if status != 0 {
		e = Peer("%s: remote service unavailable (status %d)", method, status)
	}
	e.UserMessage = NetworkUserMessage
	return e
}

// remoteError turns a wire error object into a peer error. An object that
// fails the shared error schema is itself a peer failure.
func remoteError(s *Session, method string, obj map[string]any) *Error {
	if issues := s.schemas.Error().Validate(obj); len(issues) > 0 {
		return Peer("%s: malformed error envelope: %s", method, schema.Message(issues))
	}
	var e ErrorObject
	if err := decodeInto(obj, &e); err != nil {
		return Peer("%s: malformed error envelope", method).WithCause(err)
	}
	msg := e.Message
	if label := DescribeCode(e.Code); label != "" {
		msg = fmt.Sprintf("%s (%s)", msg, label)
	}
	if e.Code != nil {
		return Peer("%s: remote error %v: %s", method, e.Code, msg)
	}
	return Peer("%s: remote error: %s", method, msg)
}
