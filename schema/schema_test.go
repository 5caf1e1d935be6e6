// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestDefaultCoversMethods(t *testing.T) {
	reg := Default()
	want := []string{
		"credit_history", "deposit_history", "edit_subscription", "get_api_key",
		"list_airports", "list_subscriptions", "modify_credentials", "search",
		"senderror", "subscribe", "unsubscribe",
	}
	got := reg.Methods()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("methods = %v, want %v", got, want)
	}
	for _, m := range want {
		if _, ok := reg.Response(m); !ok {
			t.Errorf("no response validator for %s", m)
		}
	}
	if reg.Error() == nil {
		t.Fatal("no error validator")
	}
}

func TestSearchRequest(t *testing.T) {
	v, _ := Default().Request("search")

	valid := map[string]any{
		"v": "2.0", "fly_from": "1", "fly_to": "2",
		"currency": "EUR", "sort": "price", "limit": 5,
	}
	if issues := v.Validate(valid); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}

	invalid := map[string]any{
		"v": "2.0", "fly_from": "1", "fly_to": "2",
		"currency": "GBP", "sort": "price", "limit": 50,
	}
	issues := v.Validate(invalid)
	if len(issues) != 2 {
		t.Fatalf("issues = %v, want 2", issues)
	}
	msg := Message(issues)
	if !strings.Contains(msg, ";") || !strings.Contains(msg, "/currency") || !strings.Contains(msg, "/limit") {
		t.Errorf("message = %q", msg)
	}
}

func TestDateFormatAsserted(t *testing.T) {
	v, _ := Default().Request("subscribe")
	issues := v.Validate(map[string]any{
		"v": "2.0", "fly_from": "1", "fly_to": "2",
		"date_from": "tomorrow", "date_to": "2018-04-10", "api_key": "k",
	})
	if len(issues) != 1 || issues[0].Path != "/date_from" {
		t.Fatalf("issues = %v", issues)
	}
}

func TestErrorObject(t *testing.T) {
	v := Default().Error()
	if issues := v.Validate(map[string]any{"code": -32601, "message": "method not found"}); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if issues := v.Validate(map[string]any{"code": 1}); len(issues) == 0 {
		t.Fatal("error without message accepted")
	}
}

func TestTypedCandidate(t *testing.T) {
	type params struct {
		V string `json:"v"`
	}
	v, _ := Default().Request("list_airports")
	if issues := v.Validate(params{V: "2.0"}); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if issues := v.Validate(params{}); len(issues) != 0 {
		t.Fatalf("empty string is still a string: %v", issues)
	}
	if issues := v.Validate(map[string]any{}); len(issues) != 1 {
		t.Fatalf("issues = %v, want missing v", issues)
	}
}

func TestValidateByID(t *testing.T) {
	reg := Default()
	issues, err := reg.Validate("response/list_airports", map[string]any{"airports": []any{}})
	if err != nil || len(issues) != 0 {
		t.Fatalf("issues=%v err=%v", issues, err)
	}
	if _, err := reg.Validate("response/nope", nil); !errors.Is(err, ErrUnknownSchema) {
		t.Fatalf("err = %v, want ErrUnknownSchema", err)
	}
}

func TestLoadAndWith(t *testing.T) {
	fsys := fstest.MapFS{
		"request/ping.json":  {Data: []byte(`{"type":"object","required":["v"]}`)},
		"response/ping.json": {Data: []byte(`{"type":"object"}`)},
		"error.json":         {Data: []byte(`{"type":"object","required":["message"]}`)},
	}
	reg, err := Load(fsys)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := reg.Request("ping"); !ok {
		t.Fatal("ping request validator missing")
	}

	reject := ValidatorFunc(func(any) []Issue { return []Issue{{Message: "no"}} })
	ext := reg.With("pong", reject, nil)
	if _, ok := reg.Request("pong"); ok {
		t.Fatal("With mutated the receiver")
	}
	v, ok := ext.Request("pong")
	if !ok || len(v.Validate(nil)) != 1 {
		t.Fatal("pong validator not installed")
	}
}

func TestLoadBrokenDocument(t *testing.T) {
	fsys := fstest.MapFS{
		"request/bad.json": {Data: []byte(`{"type": 12}`)},
		"error.json":       {Data: []byte(`{}`)},
	}
	if _, err := Load(fsys); err == nil {
		t.Fatal("expected compile error")
	}
}
