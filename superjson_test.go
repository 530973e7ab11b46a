// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"math"
	"math/big"
	"strings"
	"testing"
	"time"
)

func TestSuperJSONPlainValueHasNoMeta(t *testing.T) {
	raw, err := SuperJSON{}.Encode(greeting{Message: "Hello from tRPC!"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := string(raw), `{"json":{"message":"Hello from tRPC!"}}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestSuperJSONKeepsFieldOrder(t *testing.T) {
	type ordered struct {
		Zeta  int    `json:"zeta"`
		Alpha string `json:"alpha"`
		Skip  string `json:"-"`
		Empty string `json:"empty,omitempty"`
	}
	raw, err := SuperJSON{}.Encode(ordered{Zeta: 1, Alpha: "a", Skip: "x"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := string(raw), `{"json":{"zeta":1,"alpha":"a"}}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestSuperJSONDateRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw, err := SuperJSON{}.Encode(whenInput{At: at})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(raw), `"2024-01-02T03:04:05.000Z"`) {
		t.Fatalf("date not in JavaScript ISO form: %s", raw)
	}
	if !strings.Contains(string(raw), `"meta":{"values":{"at":["Date"]}}`) {
		t.Fatalf("missing Date annotation: %s", raw)
	}

	var typed whenInput
	if err := (SuperJSON{}).Decode(raw, &typed); err != nil {
		t.Fatalf("Decode typed: %v", err)
	}
	if !typed.At.Equal(at) {
		t.Fatalf("typed at = %v, want %v", typed.At, at)
	}

	var loose any
	if err := (SuperJSON{}).Decode(raw, &loose); err != nil {
		t.Fatalf("Decode any: %v", err)
	}
	obj, ok := loose.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want object", loose)
	}
	got, ok := obj["at"].(time.Time)
	if !ok {
		t.Fatalf("at decoded as %T, want time.Time", obj["at"])
	}
	if !got.Equal(at) {
		t.Fatalf("at = %v, want %v", got, at)
	}
}

func TestSuperJSONRootDate(t *testing.T) {
	at := time.Date(2030, 6, 7, 8, 9, 10, int(250*time.Millisecond), time.UTC)
	raw, err := SuperJSON{}.Encode(at)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := string(raw), `{"json":"2030-06-07T08:09:10.250Z","meta":{"values":["Date"]}}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	var out time.Time
	if err := (SuperJSON{}).Decode(raw, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.Equal(at) {
		t.Fatalf("got %v, want %v", out, at)
	}
}

func TestSuperJSONBigIntAndSpecialNumbers(t *testing.T) {
	type payload struct {
		N   *big.Int `json:"n"`
		NaN float64  `json:"nan"`
		Inf float64  `json:"inf"`
		Neg float64  `json:"neg"`
		Num float64  `json:"num"`
	}
	n, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	in := payload{N: n, NaN: math.NaN(), Inf: math.Inf(1), Neg: math.Inf(-1), Num: 1.5}

	raw, err := SuperJSON{}.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, want := range []string{`"n":"123456789012345678901234567890"`, `"nan":"NaN"`, `"inf":"Infinity"`, `"neg":"-Infinity"`, `"num":1.5`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("encoded %s missing %s", raw, want)
		}
	}

	var out payload
	if err := (SuperJSON{}).Decode(raw, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.N == nil || out.N.Cmp(n) != 0 {
		t.Errorf("n = %v, want %v", out.N, n)
	}
	if !math.IsNaN(out.NaN) {
		t.Errorf("nan = %v", out.NaN)
	}
	if !math.IsInf(out.Inf, 1) || !math.IsInf(out.Neg, -1) {
		t.Errorf("inf = %v, neg = %v", out.Inf, out.Neg)
	}
	if out.Num != 1.5 {
		t.Errorf("num = %v", out.Num)
	}
}

func TestSuperJSONUndefinedDropsMember(t *testing.T) {
	raw := []byte(`{"json":{"a":1,"b":null},"meta":{"values":{"b":["undefined"]}}}`)
	var out map[string]any
	if err := (SuperJSON{}).Decode(raw, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := out["b"]; ok {
		t.Fatalf("undefined member kept: %v", out)
	}
	if out["a"] != float64(1) {
		t.Fatalf("a = %#v, want 1", out["a"])
	}
}

func TestSuperJSONMapAnnotation(t *testing.T) {
	raw := []byte(`{"json":[["a",1],["b",2]],"meta":{"values":["map"]}}`)
	var out map[string]int
	if err := (SuperJSON{}).Decode(raw, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 2 || out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("got %v", out)
	}
}

func TestSuperJSONEscapedPaths(t *testing.T) {
	at := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	in := map[string]time.Time{"release.date": at}
	raw, err := SuperJSON{}.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(raw), `"release\\.date":["Date"]`) {
		t.Fatalf("dot in key not escaped: %s", raw)
	}
	var out map[string]time.Time
	if err := (SuperJSON{}).Decode(raw, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out["release.date"].Equal(at) {
		t.Fatalf("got %v", out)
	}

	for _, path := range [][]string{{"a"}, {"a.b", "c"}, {`x\y`, "1"}} {
		if got := splitPath(joinPath(path)); strings.Join(got, "|") != strings.Join(path, "|") {
			t.Errorf("splitPath(joinPath(%q)) = %q", path, got)
		}
	}
}

func TestSuperJSONDecodeErrors(t *testing.T) {
	var out addInput
	cases := map[string]string{
		"not json":      `nope`,
		"wrong type":    `{"json":{"a":"one"}}`,
		"fraction":      `{"json":{"a":1.5}}`,
		"bad date":      `{"json":{"at":"yesterday"},"meta":{"values":{"at":["Date"]}}}`,
		"bad meta":      `{"json":{},"meta":{"values":7}}`,
		"bigint string": `{"json":"12x","meta":{"values":["bigint"]}}`,
	}
	for name, raw := range cases {
		if err := (SuperJSON{}).Decode([]byte(raw), &out); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if err := (SuperJSON{}).Decode([]byte(`{"json":{}}`), out); err == nil {
		t.Errorf("non-pointer target: expected error")
	}
}

func TestSuperJSONIntegerRange(t *testing.T) {
	var signed struct{ N int64 }
	for _, raw := range []string{
		`{"json":{"N":1e20}}`,
		`{"json":{"N":-1e20}}`,
		`{"json":{"N":9223372036854775808}}`,
	} {
		if err := (SuperJSON{}).Decode([]byte(raw), &signed); err == nil {
			t.Errorf("%s: expected overflow error, got N=%d", raw, signed.N)
		}
	}
	if err := (SuperJSON{}).Decode([]byte(`{"json":{"N":-9223372036854775808}}`), &signed); err != nil || signed.N != math.MinInt64 {
		t.Errorf("MinInt64: n=%d err=%v", signed.N, err)
	}

	type wide struct{ N uint64 }
	raw, err := (SuperJSON{}).Encode(wide{N: math.MaxUint64})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var back wide
	if err := (SuperJSON{}).Decode(raw, &back); err != nil {
		t.Fatalf("Decode %s: %v", raw, err)
	}
	if back.N != math.MaxUint64 {
		t.Fatalf("N = %d, want MaxUint64", back.N)
	}

	var small struct{ N uint8 }
	for _, raw := range []string{`{"json":{"N":-1}}`, `{"json":{"N":256}}`, `{"json":{"N":1e20}}`} {
		if err := (SuperJSON{}).Decode([]byte(raw), &small); err == nil {
			t.Errorf("%s: expected error, got N=%d", raw, small.N)
		}
	}
}

func TestSuperJSONRejectsForeignObjects(t *testing.T) {
	var out addInput
	for _, raw := range []string{`{"a":7}`, `{"jsn":{"a":7}}`, `{"json":{"a":7},"extra":true}`} {
		if err := (SuperJSON{}).Decode([]byte(raw), &out); err == nil {
			t.Errorf("%s: expected error", raw)
		}
	}
	out = addInput{A: 3}
	if err := (SuperJSON{}).Decode([]byte(`{}`), &out); err != nil {
		t.Fatalf("empty envelope: %v", err)
	}
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]string{"": "superjson", "superjson": "superjson", "json": "json"} {
		c, err := CodecByName(name)
		if err != nil {
			t.Fatalf("CodecByName(%q): %v", name, err)
		}
		if c.Name() != want {
			t.Errorf("CodecByName(%q) = %s, want %s", name, c.Name(), want)
		}
	}
	if _, err := CodecByName("msgpack"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}
