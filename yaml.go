// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"gopkg.in/yaml.v3"
)

// YAML is the yamlrpc codec. It renames the JSON-RPC top-level fields to
// yamlrpc/action/parameters.
var YAML Codec = &envelopeCodec{
	name:        "yamlrpc",
	contentType: "text/yaml",
	keys: envelopeKeys{
		version: "yamlrpc",
		method:  "action",
		params:  "parameters",
	},
	marshal: yaml.Marshal,
	unmarshal: func(data []byte) (any, error) {
		var v any
		err := yaml.Unmarshal(data, &v)
		return v, err
	},
}
