// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"encoding/json"

	"github.com/gorilla/rpc/v2/json2"
)

// Reserved JSON-RPC 2.0 error codes.
const (
	CodeParseError     = int(json2.E_PARSE)
	CodeInvalidRequest = int(json2.E_INVALID_REQ)
	CodeMethodNotFound = int(json2.E_NO_METHOD)
	CodeInvalidParams  = int(json2.E_BAD_PARAMS)
	CodeInternalError  = int(json2.E_INTERNAL)
	CodeServerError    = int(json2.E_SERVER)
)

// JSON is the jsonrpc codec: the standard JSON-RPC 2.0 field names.
var JSON Codec = &envelopeCodec{
	name:        "jsonrpc",
	contentType: "application/json",
	keys: envelopeKeys{
		version: "jsonrpc",
		method:  "method",
		params:  "params",
	},
	marshal: json.Marshal,
	unmarshal: func(data []byte) (any, error) {
		var v any
		err := json.Unmarshal(data, &v)
		return v, err
	},
	errorShape: jsonErrorShape,
}

// jsonErrorShape emits numeric codes as a json2.Error so the wire object
// matches what gorilla/rpc servers produce.
func jsonErrorShape(e ErrorObject) any {
	code, ok := numericCode(e.Code)
	if !ok {
		return e
	}
	return &json2.Error{
		Code:    json2.ErrorCode(code),
		Message: e.Message,
		Data:    e.Data,
	}
}

func numericCode(v any) (int, bool) {
	switch c := v.(type) {
	case int:
		return c, true
	case int32:
		return int(c), true
	case int64:
		return int(c), true
	case float64:
		if c == float64(int(c)) {
			return int(c), true
		}
	}
	return 0, false
}

// DescribeCode returns a label for reserved JSON-RPC codes, or "" when code
// is not one of them.
func DescribeCode(code any) string {
	c, ok := numericCode(code)
	if !ok {
		return ""
	}
	switch json2.ErrorCode(c) {
	case json2.E_PARSE:
		return "parse error"
	case json2.E_INVALID_REQ:
		return "invalid request"
	case json2.E_NO_METHOD:
		return "method not found"
	case json2.E_BAD_PARAMS:
		return "invalid params"
	case json2.E_INTERNAL:
		return "internal error"
	case json2.E_SERVER:
		return "server error"
	}
	return ""
}
