// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StatusFamily partitions business status codes.
type StatusFamily int

const (
	StatusSuccess StatusFamily = iota + 1
	StatusFailure
)

// Business status code ranges.
const (
	successMin = 1000
	successMax = 1999
	failureMin = 2000
)

// StatusCode is a business status code. On the wire it is a numeric string,
// but a bare number is accepted too.
type StatusCode string

func (c *StatusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = StatusCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status code: %w", err)
	}
	*c = StatusCode(n.String())
	return nil
}

// ClassifyStatus places code in its family. Codes are compared as numbers;
// a non-numeric code or one outside every family means the local code table
// and the peer disagree, which is an application error.
func ClassifyStatus(code string) (StatusFamily, error) {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return 0, Application("status code %q is not numeric", code)
	}
	switch {
	case n >= successMin && n <= successMax:
		return StatusSuccess, nil
	case n >= failureMin:
		return StatusFailure, nil
	default:
		return 0, Application("status code %d is outside the known families", n)
	}
}

// StatusMessages maps status codes to the text shown to the user.
type StatusMessages map[string]string

// Message returns the text registered for code, or the generic business
// failure message.
func (m StatusMessages) Message(code string) string {
	if msg, ok := m[code]; ok {
		return msg
	}
	return BusinessUserMessage
}

// CheckStatus returns nil for success codes and a user error carrying the
// bespoke or generic message for failure codes.
func CheckStatus(code string, messages StatusMessages) error {
	family, err := ClassifyStatus(code)
	if err != nil {
		return err
	}
	if family == StatusFailure {
		return User(messages.Message(code), "request failed with status code %s", code)
	}
	return nil
}
