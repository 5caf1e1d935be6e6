// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err      error
		kind     Kind
		userMsg  string
		isHelper func(error) bool
	}{
		{Application("bad %s", "arg"), KindApplication, ApplicationUserMessage, IsApplication},
		{Peer("bad envelope"), KindPeer, PeerUserMessage, IsPeer},
		{User("Search input was not correct.", "status 2000"), KindUser, "Search input was not correct.", IsUser},
	}
	for _, tc := range cases {
		if KindOf(tc.err) != tc.kind || !tc.isHelper(tc.err) {
			t.Errorf("%v: kind = %v, want %v", tc.err, KindOf(tc.err), tc.kind)
		}
		if got := UserMessage(tc.err); got != tc.userMsg {
			t.Errorf("%v: user message = %q", tc.err, got)
		}
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	e := Peer("list_airports: remote service unavailable").WithCause(cause)
	if !errors.Is(e, cause) {
		t.Fatal("cause not reachable with errors.Is")
	}
	if !strings.Contains(e.Error(), "peer error") || !strings.Contains(e.Error(), "connection refused") {
		t.Errorf("Error() = %q", e.Error())
	}

	wrapped := fmt.Errorf("page handler: %w", e)
	if !IsPeer(wrapped) {
		t.Fatal("kind lost through fmt.Errorf")
	}
}

func TestClassifyForeignError(t *testing.T) {
	plain := errors.New("nil map write")
	e := classify(plain)
	if e.Kind != KindApplication || !errors.Is(e, plain) {
		t.Fatalf("classify = %+v", e)
	}
	if KindOf(plain) != KindUnknown {
		t.Fatal("plain error should be KindUnknown")
	}
	if UserMessage(plain) != ApplicationUserMessage {
		t.Fatal("plain error should fall back to the application message")
	}
	if UserMessage(nil) != "" {
		t.Fatal("nil error has no user message")
	}
}

func TestAssertions(t *testing.T) {
	s := newTestSession(t, "http://unused.invalid", WithSampler(Always))
	s.Trace().Record("subscribe")

	if err := s.AssertApplication(true, "unreachable"); err != nil {
		t.Fatalf("true condition raised %v", err)
	}
	if err := s.AssertPeer(true, "unreachable"); err != nil {
		t.Fatalf("true condition raised %v", err)
	}
	if err := s.AssertUser(true, "msg", "unreachable"); err != nil {
		t.Fatalf("true condition raised %v", err)
	}

	err := s.AssertUser(false, "Please pick a departure airport.", "fly_from %q is empty", "")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %T", err)
	}
	if e.Kind != KindUser || e.UserMessage != "Please pick a departure airport." {
		t.Errorf("error = %+v", e)
	}
	if !e.ShouldReport || e.ReportID == "" || e.Stack == "" {
		t.Errorf("raise did not complete the error: %+v", e)
	}
	if len(e.Trace) != 1 || e.Trace[0] != "subscribe" {
		t.Errorf("trace = %v", e.Trace)
	}

	if err := s.AssertApplication(false, "x"); !IsApplication(err) {
		t.Errorf("AssertApplication: %v", err)
	}
	if err := s.AssertPeer(false, "x"); !IsPeer(err) {
		t.Errorf("AssertPeer: %v", err)
	}
}

func TestRaiseIsIdempotent(t *testing.T) {
	s := newTestSession(t, "http://unused.invalid")
	first := s.Raise(Peer("x"))
	id := first.ReportID
	second := s.Raise(first)
	if second != first || second.ReportID != id {
		t.Fatal("raising twice changed the error")
	}
	if s.Raise(nil) != nil {
		t.Fatal("Raise(nil) should be nil")
	}
}
