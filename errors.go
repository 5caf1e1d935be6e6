// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by who produced it.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindApplication marks a violated local invariant (a bug in this process).
	KindApplication
	// KindPeer marks a remote service that misbehaved or was unreachable.
	KindPeer
	// KindUser marks a well-formed but unfavourable outcome caused by user input.
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindPeer:
		return "peer"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// Default user-facing messages.
const (
	ApplicationUserMessage = "Application encountered an unexpected condition. Please refresh the page."
	PeerUserMessage        = "Service is not available at the moment. Please refresh the page and try again later."
	NetworkUserMessage     = "Service is not available at the moment due to network issues"
	BusinessUserMessage    = "An error has occurred. Please refresh the page and try again later."
)

var (
	ErrUnknownCodec     = errors.New("rpc: unknown codec")
	ErrUnknownTransport = errors.New("rpc: unknown transport")
)

// Error is a classified failure. It is created by Application, Peer and User
// and completed by Session.Raise, which fills the trace snapshot, stack,
// report id and reporting decision.
type Error struct {
	Kind        Kind
	Message     string
	UserMessage string

	// ShouldReport records whether a diagnostic report was dispatched.
	ShouldReport bool

	Trace    []string
	Stack    string
	ReportID string
	Cause    error

	raised bool
}

func (e *Error) Error() string {
	if e == nil {
		return "rpc: error: <nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = e.UserMessage
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// WithCause returns e with cause attached.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// Application returns an application-tier error with the generic user message.
func Application(format string, args ...any) *Error {
	return &Error{
		Kind:        KindApplication,
		Message:     sprintf(format, args...),
		UserMessage: ApplicationUserMessage,
	}
}

// Peer returns a peer-tier error with the generic "service unavailable" message.
func Peer(format string, args ...any) *Error {
	return &Error{
		Kind:        KindPeer,
		Message:     sprintf(format, args...),
		UserMessage: PeerUserMessage,
	}
}

// User returns a user-tier error. userMessage is shown to the end user as is.
func User(userMessage, format string, args ...any) *Error {
	return &Error{
		Kind:        KindUser,
		Message:     sprintf(format, args...),
		UserMessage: userMessage,
	}
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// classify converts any error into a classified *Error. Errors outside the
// taxonomy are treated as application bugs.
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Application("%v", err).WithCause(err)
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsApplication(err error) bool { return KindOf(err) == KindApplication }
func IsPeer(err error) bool        { return KindOf(err) == KindPeer }
func IsUser(err error) bool        { return KindOf(err) == KindUser }

// UserMessage extracts the message a page-level handler should display.
// Errors without one fall back to the application message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.UserMessage != "" {
		return e.UserMessage
	}
	return ApplicationUserMessage
}
