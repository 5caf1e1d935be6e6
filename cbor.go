// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("rpc: cbor encoder: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("rpc: cbor decoder: " + err.Error())
	}
}

// CBOR is the cborrpc codec: JSON-RPC field names in a binary encoding.
var CBOR Codec = &envelopeCodec{
	name:        "cborrpc",
	contentType: "application/cbor",
	keys: envelopeKeys{
		version: "cborrpc",
		method:  "method",
		params:  "params",
	},
	marshal: func(v any) ([]byte, error) { return cborEnc.Marshal(v) },
	unmarshal: func(data []byte) (any, error) {
		var v any
		err := cborDec.Unmarshal(data, &v)
		return v, err
	},
}
