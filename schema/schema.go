// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package schema compiles the request, response and error JSON-Schema
// documents once and exposes them as reusable validators keyed by method.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas
var embedded embed.FS

// baseURL anchors embedded documents so the compiler never goes to the network.
const baseURL = "https://schemas.freefall.invalid/"

var ErrUnknownSchema = errors.New("schema: unknown schema id")

// Issue is one validation failure.
type Issue struct {
	// Path is a JSON pointer into the candidate; empty for the root.
	Path    string
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Message joins issues the way they are shown in error reports.
func Message(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, ";")
}

// Validator checks a candidate value. An empty result means valid.
type Validator interface {
	Validate(candidate any) []Issue
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(candidate any) []Issue

func (f ValidatorFunc) Validate(candidate any) []Issue { return f(candidate) }

type compiled struct {
	schema *jsonschema.Schema
}

func (c compiled) Validate(candidate any) []Issue {
	v, err := canonical(candidate)
	if err != nil {
		return []Issue{{Message: fmt.Sprintf("value is not JSON representable: %v", err)}}
	}
	err = c.schema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Issue{{Message: err.Error()}}
	}
	return leaves(ve, nil)
}

// leaves flattens the cause tree into its leaf failures, preserving order.
func leaves(ve *jsonschema.ValidationError, out []Issue) []Issue {
	if len(ve.Causes) == 0 {
		return append(out, Issue{Path: ve.InstanceLocation, Message: ve.Message})
	}
	for _, c := range ve.Causes {
		out = leaves(c, out)
	}
	return out
}

func canonical(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile compiles a single draft-07 document.
func Compile(name string, doc []byte) (Validator, error) {
	c := newCompiler()
	url := baseURL + name
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return compiled{schema: s}, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	c.AssertFormat = true
	return c
}

// Registry maps method names to their compiled request and response
// validators, plus the shared error validator.
type Registry struct {
	requests  map[string]Validator
	responses map[string]Validator
	errs      Validator
}

// Load compiles every document in fsys. It expects request/<method>.json,
// response/<method>.json and error.json at the root of fsys.
func Load(fsys fs.FS) (*Registry, error) {
	r := &Registry{
		requests:  make(map[string]Validator),
		responses: make(map[string]Validator),
	}
	for dir, dst := range map[string]map[string]Validator{
		"request":  r.requests,
		"response": r.responses,
	} {
		matches, err := fs.Glob(fsys, dir+"/*.json")
		if err != nil {
			return nil, err
		}
		for _, name := range matches {
			v, err := compileFile(fsys, name)
			if err != nil {
				return nil, err
			}
			dst[strings.TrimSuffix(path.Base(name), ".json")] = v
		}
	}

	errs, err := compileFile(fsys, "error.json")
	if err != nil {
		return nil, err
	}
	r.errs = errs
	return r, nil
}

func compileFile(fsys fs.FS, name string) (Validator, error) {
	doc, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	return Compile(name, doc)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry built from the embedded documents. The
// documents ship with the binary, so a compile failure panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "schemas")
		if err != nil {
			panic(err)
		}
		defaultReg, err = Load(sub)
		if err != nil {
			panic(err)
		}
	})
	return defaultReg
}

// Request returns the request validator for method.
func (r *Registry) Request(method string) (Validator, bool) {
	v, ok := r.requests[method]
	return v, ok
}

// Response returns the response validator for method.
func (r *Registry) Response(method string) (Validator, bool) {
	v, ok := r.responses[method]
	return v, ok
}

// Error returns the validator for wire error objects.
func (r *Registry) Error() Validator { return r.errs }

// With returns a copy of r with extra validators for method. Nil validators
// leave the existing entry in place.
func (r *Registry) With(method string, request, response Validator) *Registry {
	out := &Registry{
		requests:  make(map[string]Validator, len(r.requests)+1),
		responses: make(map[string]Validator, len(r.responses)+1),
		errs:      r.errs,
	}
	for k, v := range r.requests {
		out.requests[k] = v
	}
	for k, v := range r.responses {
		out.responses[k] = v
	}
	if request != nil {
		out.requests[method] = request
	}
	if response != nil {
		out.responses[method] = response
	}
	return out
}

// Methods lists the methods that have a request validator, sorted.
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.requests))
	for m := range r.requests {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Validate runs the validator named by id, one of "request/<method>",
// "response/<method>" or "error".
func (r *Registry) Validate(id string, candidate any) ([]Issue, error) {
	var (
		v  Validator
		ok bool
	)
	switch {
	case id == "error":
		v, ok = r.errs, r.errs != nil
	case strings.HasPrefix(id, "request/"):
		v, ok = r.Request(strings.TrimPrefix(id, "request/"))
	case strings.HasPrefix(id, "response/"):
		v, ok = r.Response(strings.TrimPrefix(id, "response/"))
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, id)
	}
	return v.Validate(candidate), nil
}
