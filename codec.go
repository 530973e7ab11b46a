// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec encodes one procedure input, output or error value. Both ends of a
// connection must use the same codec.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// JSONCodec is plain encoding/json. It cannot carry dates, big integers or
// non-finite floats with their types intact.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string { return "json" }

// defaultCodec is used when no codec is specified
var defaultCodec Codec = SuperJSON{}

// CodecByName returns the codec registered under name ("superjson" or "json").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", SuperJSON{}.Name():
		return SuperJSON{}, nil
	case JSONCodec{}.Name():
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}

// isEmptyInput reports whether raw carries no value at all.
func isEmptyInput(raw []byte) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "{}":
		return true
	}
	return false
}
