// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the envelope version written when none is given.
const ProtocolVersion = "2.0"

// Request is the canonical request envelope, independent of wire syntax.
type Request struct {
	Version string
	Method  string
	Params  any
	ID      any
}

// Response is the canonical response envelope. Exactly one of Result and
// Error is non-nil after a successful DecodeResponse.
type Response struct {
	Version string
	ID      any
	Result  map[string]any
	Error   map[string]any
}

// ErrorObject is the wire-level error carried by a response.
type ErrorObject struct {
	Code    any    `json:"code,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Codec encodes and decodes RPC envelopes in one wire syntax.
type Codec interface {
	// Name is the registry key, e.g. "jsonrpc".
	Name() string
	// ContentType is sent as the transport Content-Type header.
	ContentType() string

	EncodeRequest(req Request) ([]byte, error)
	DecodeRequest(data []byte) (Request, error)
	EncodeResult(result any, id any, version string) ([]byte, error)
	EncodeError(e ErrorObject, version string) ([]byte, error)
	DecodeResponse(data []byte) (Response, error)
}

// CodecRegistry looks codecs up by name. It has no side effects and is
// safe to call repeatedly.
type CodecRegistry struct {
	codecs []Codec
}

// NewCodecRegistry returns a registry over codecs. Earlier entries win on
// duplicate names.
func NewCodecRegistry(codecs ...Codec) *CodecRegistry {
	return &CodecRegistry{codecs: append([]Codec(nil), codecs...)}
}

// DefaultCodecs returns a registry with the jsonrpc, yamlrpc and cborrpc codecs.
func DefaultCodecs() *CodecRegistry {
	return NewCodecRegistry(JSON, YAML, CBOR)
}

// Lookup returns the codec registered under name. An unknown name is a
// configuration bug and yields an application error wrapping ErrUnknownCodec.
func (r *CodecRegistry) Lookup(name string) (Codec, error) {
	if name == "" {
		return nil, Application("can't get codec with empty name").WithCause(ErrUnknownCodec)
	}
	for _, c := range r.codecs {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, Application("no codec with name %q", name).WithCause(ErrUnknownCodec)
}

// Names lists the registered codec names in registration order.
func (r *CodecRegistry) Names() []string {
	out := make([]string, 0, len(r.codecs))
	for _, c := range r.codecs {
		out = append(out, c.Name())
	}
	return out
}

// envelopeKeys names the top-level fields a wire syntax uses. The id,
// result and error keys are shared by every syntax.
type envelopeKeys struct {
	version string
	method  string
	params  string
}

const (
	keyID     = "id"
	keyResult = "result"
	keyError  = "error"
)

// envelopeCodec implements Codec on top of a generic marshal/unmarshal pair.
// Values are normalised to the encoding/json generic shape before encoding
// and after decoding so that every syntax yields identical envelopes.
type envelopeCodec struct {
	name        string
	contentType string
	keys        envelopeKeys
	marshal     func(v any) ([]byte, error)
	unmarshal   func(data []byte) (any, error)
	errorShape  func(e ErrorObject) any
}

func (c *envelopeCodec) Name() string        { return c.name }
func (c *envelopeCodec) ContentType() string { return c.contentType }

func (c *envelopeCodec) EncodeRequest(req Request) ([]byte, error) {
	return c.encode(map[string]any{
		c.keys.version: versionOr(req.Version),
		c.keys.method:  req.Method,
		c.keys.params:  req.Params,
		keyID:          req.ID,
	})
}

func (c *envelopeCodec) EncodeResult(result any, id any, version string) ([]byte, error) {
	return c.encode(map[string]any{
		c.keys.version: versionOr(version),
		keyResult:      result,
		keyID:          id,
	})
}

func (c *envelopeCodec) EncodeError(e ErrorObject, version string) ([]byte, error) {
	var shaped any = e
	if c.errorShape != nil {
		shaped = c.errorShape(e)
	}
	return c.encode(map[string]any{
		c.keys.version: versionOr(version),
		keyError:       shaped,
		keyID:          nil,
	})
}

func (c *envelopeCodec) DecodeRequest(data []byte) (Request, error) {
	obj, err := c.decode(data)
	if err != nil {
		return Request{}, err
	}
	version, okVersion := obj[c.keys.version].(string)
	method, okMethod := obj[c.keys.method].(string)
	params, okParams := obj[c.keys.params].(map[string]any)
	if !okVersion || !okMethod || !okParams {
		return Request{}, Peer("invalid %s request format", c.name)
	}
	return Request{
		Version: version,
		Method:  method,
		Params:  params,
		ID:      obj[keyID],
	}, nil
}

func (c *envelopeCodec) DecodeResponse(data []byte) (Response, error) {
	obj, err := c.decode(data)
	if err != nil {
		return Response{}, err
	}
	version, ok := obj[c.keys.version].(string)
	if !ok {
		return Response{}, Peer("invalid %s response format: missing %q", c.name, c.keys.version)
	}

	result, hasResult, okResult := objectField(obj, keyResult)
	errObj, hasError, okError := objectField(obj, keyError)
	if !okResult || !okError || hasResult == hasError {
		return Response{}, Peer("invalid %s response format: exactly one of result and error must be an object", c.name)
	}

	return Response{
		Version: version,
		ID:      obj[keyID],
		Result:  result,
		Error:   errObj,
	}, nil
}

func (c *envelopeCodec) encode(envelope map[string]any) ([]byte, error) {
	normalized, err := canonical(envelope)
	if err != nil {
		return nil, Application("cannot serialize %s envelope", c.name).WithCause(err)
	}
	data, err := c.marshal(normalized)
	if err != nil {
		return nil, Application("cannot serialize %s envelope", c.name).WithCause(err)
	}
	return data, nil
}

func (c *envelopeCodec) decode(data []byte) (map[string]any, error) {
	raw, err := c.unmarshal(data)
	if err != nil {
		return nil, Peer("invalid %s format: cannot parse body", c.name).WithCause(err)
	}
	normalized, err := canonical(raw)
	if err != nil {
		return nil, Peer("invalid %s format: unsupported values", c.name).WithCause(err)
	}
	obj, ok := normalized.(map[string]any)
	if !ok {
		return nil, Peer("invalid %s format: envelope is %T, not an object", c.name, normalized)
	}
	return obj, nil
}

// objectField reports whether key is present (non-null) in obj and whether
// a present value is an object.
func objectField(obj map[string]any, key string) (value map[string]any, present, ok bool) {
	v, exists := obj[key]
	if !exists || v == nil {
		return nil, false, true
	}
	m, isObject := v.(map[string]any)
	return m, true, isObject
}

func versionOr(v string) string {
	if v == "" {
		return ProtocolVersion
	}
	return v
}

// canonical converts v to the encoding/json generic representation.
func canonical(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("canonical decode: %w", err)
	}
	return out, nil
}

// Canonical converts a value to the generic map/slice/float64 form used for
// schema validation and envelope encoding.
func Canonical(v any) (any, error) {
	return canonical(v)
}

// decodeInto converts a canonical value into a typed destination.
func decodeInto(v any, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
