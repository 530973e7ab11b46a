// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SuperJSON is the structured-value codec spoken by superjson clients. Values
// plain JSON cannot carry are written as JSON-compatible stand-ins and typed
// by annotations in a side table:
//
//	{"json": {"at": "2024-01-02T03:04:05.000Z"}, "meta": {"values": {"at": ["Date"]}}}
//
// Supported annotations are Date (time.Time), bigint (*big.Int), number
// (NaN and infinities), undefined and map (pairs). Decoding into *any
// restores the Go values; decoding into typed targets honours json tags.
type SuperJSON struct{}

func (SuperJSON) Name() string { return "superjson" }

const (
	annotDate      = "Date"
	annotBigInt    = "bigint"
	annotNumber    = "number"
	annotUndefined = "undefined"
	annotMap       = "map"
	annotSet       = "set"

	jsDateLayout = "2006-01-02T15:04:05.000Z07:00"
)

type superEnvelope struct {
	JSON json.RawMessage `json:"json"`
	Meta *superMeta      `json:"meta,omitempty"`
}

type superMeta struct {
	// Values is either a list (annotation of the root value) or an object
	// from escaped dotted paths to annotation lists.
	Values json.RawMessage `json:"values,omitempty"`
}

func (SuperJSON) Encode(v any) ([]byte, error) {
	enc := superEncoder{values: make(map[string][]string)}
	tree, err := enc.walk(reflect.ValueOf(v), nil)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	env := superEnvelope{JSON: raw}
	if len(enc.values) > 0 {
		var values any = enc.values
		if root, ok := enc.values[""]; ok {
			values = root
		}
		meta, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		env.Meta = &superMeta{Values: meta}
	}
	return json.Marshal(env)
}

func (SuperJSON) Decode(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("superjson: decode target must be a non-nil pointer, got %T", v)
	}
	env, err := parseEnvelope(data)
	if err != nil {
		return fmt.Errorf("superjson: %w", err)
	}
	tree, err := parseTree(env.JSON)
	if err != nil {
		return fmt.Errorf("superjson: %w", err)
	}
	if env.Meta != nil && len(env.Meta.Values) > 0 {
		annotations, err := parseAnnotations(env.Meta.Values)
		if err != nil {
			return fmt.Errorf("superjson: meta: %w", err)
		}
		if tree, err = applyAnnotations(tree, annotations); err != nil {
			return fmt.Errorf("superjson: %w", err)
		}
	}
	if _, undef := tree.(undefinedValue); undef {
		tree = nil
	}
	if err := assign(rv.Elem(), tree); err != nil {
		return fmt.Errorf("superjson: %w", err)
	}
	return nil
}

// parseEnvelope rejects objects carrying members other than json and meta.
// An empty object or null is the envelope of undefined.
func parseEnvelope(data []byte) (superEnvelope, error) {
	var (
		env     superEnvelope
		members map[string]json.RawMessage
	)
	if err := json.Unmarshal(data, &members); err != nil {
		return env, err
	}
	for key := range members {
		if key != "json" && key != "meta" {
			return env, fmt.Errorf("not a superjson envelope: unexpected member %q", key)
		}
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	return env, nil
}

var (
	timeType          = reflect.TypeFor[time.Time]()
	bigIntType        = reflect.TypeFor[big.Int]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// member and object keep struct field order on the wire.
type member struct {
	key   string
	value any
}

type object []member

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type superEncoder struct {
	values map[string][]string
}

func (e *superEncoder) annotate(path []string, kind string) {
	e.values[joinPath(path)] = []string{kind}
}

func (e *superEncoder) walk(v reflect.Value, path []string) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	switch v.Type() {
	case timeType:
		e.annotate(path, annotDate)
		return formatDate(v.Interface().(time.Time)), nil
	case bigIntType:
		b := v.Interface().(big.Int)
		e.annotate(path, annotBigInt)
		return b.String(), nil
	}
	if v.Kind() == reflect.Pointer && v.Type().Elem() == bigIntType {
		if v.IsNil() {
			return nil, nil
		}
		e.annotate(path, annotBigInt)
		return v.Interface().(*big.Int).String(), nil
	}
	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface {
		var m any
		switch {
		case v.Type().Implements(jsonMarshalerType), v.Type().Implements(textMarshalerType):
			m = v.Interface()
		case v.CanAddr() && (reflect.PointerTo(v.Type()).Implements(jsonMarshalerType) ||
			reflect.PointerTo(v.Type()).Implements(textMarshalerType)):
			m = v.Addr().Interface()
		}
		if m != nil {
			raw, err := json.Marshal(m)
			if err != nil {
				return nil, err
			}
			return json.RawMessage(raw), nil
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return e.walk(v.Elem(), path)
	case reflect.Struct:
		fields := cachedFields(v.Type())
		out := make(object, 0, len(fields))
		for _, f := range fields {
			fv, err := v.FieldByIndexErr(f.index)
			if err != nil {
				continue
			}
			if f.omitEmpty && isEmptyValue(fv) {
				continue
			}
			val, err := e.walk(fv, append(path, f.name))
			if err != nil {
				return nil, err
			}
			out = append(out, member{key: f.name, value: val})
		}
		return out, nil
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		keys := make([]string, 0, v.Len())
		byKey := make(map[string]reflect.Value, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := mapKeyString(iter.Key())
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			byKey[k] = iter.Value()
		}
		sort.Strings(keys)
		out := make(object, 0, len(keys))
		for _, k := range keys {
			val, err := e.walk(byKey[k], append(path, k))
			if err != nil {
				return nil, err
			}
			out = append(out, member{key: k, value: val})
		}
		return out, nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(v.Bytes()), nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			val, err := e.walk(v.Index(i), append(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		switch {
		case math.IsNaN(f):
			e.annotate(path, annotNumber)
			return "NaN", nil
		case math.IsInf(f, 1):
			e.annotate(path, annotNumber)
			return "Infinity", nil
		case math.IsInf(f, -1):
			e.annotate(path, annotNumber)
			return "-Infinity", nil
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", v.Type())
	}
}

func formatDate(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()%int(time.Millisecond) == 0 {
		return t.Format(jsDateLayout)
	}
	return t.Format(time.RFC3339Nano)
}

func mapKeyString(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.Type().Implements(textMarshalerType) {
		b, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("unsupported map key type %s", k.Type())
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return v.IsZero()
	}
	return false
}

// Paths are dotted; literal dots and backslashes inside keys are escaped.
func joinPath(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		p = strings.ReplaceAll(p, `\`, `\\`)
		parts[i] = strings.ReplaceAll(p, ".", `\.`)
	}
	return strings.Join(parts, ".")
}

func splitPath(s string) []string {
	if s == "" {
		return nil
	}
	var (
		parts []string
		cur   strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case c == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(parts, cur.String())
}

type fieldInfo struct {
	name      string
	index     []int
	omitEmpty bool
}

var fieldCache sync.Map // reflect.Type -> []fieldInfo

func cachedFields(t reflect.Type) []fieldInfo {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]fieldInfo)
	}
	fields := collectFields(t, nil)
	seen := make(map[string]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if i, dup := seen[f.name]; dup {
			if len(f.index) < len(out[i].index) {
				out[i] = f
			}
			continue
		}
		seen[f.name] = len(out)
		out = append(out, f)
	}
	f, _ := fieldCache.LoadOrStore(t, out)
	return f.([]fieldInfo)
}

func collectFields(t reflect.Type, index []int) []fieldInfo {
	var out, embedded []fieldInfo
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		idx := append(append([]int(nil), index...), i)
		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && ft != timeType && ft != bigIntType {
				embedded = append(embedded, collectFields(ft, idx)...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out = append(out, fieldInfo{
			name:      name,
			index:     idx,
			omitEmpty: strings.Contains(","+opts+",", ",omitempty,"),
		})
	}
	return append(out, embedded...)
}

func parseTree(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func parseAnnotations(raw json.RawMessage) (map[string][]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var root []any
		if err := json.Unmarshal(trimmed, &root); err != nil {
			return nil, err
		}
		return map[string][]string{"": annotationKinds(root)}, nil
	}
	var byPath map[string][]any
	if err := json.Unmarshal(trimmed, &byPath); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(byPath))
	for path, kinds := range byPath {
		out[path] = annotationKinds(kinds)
	}
	return out, nil
}

// annotationKinds keeps the leading type name; nested annotations such as
// those of map entries are not produced by this codec and are ignored.
func annotationKinds(in []any) []string {
	out := make([]string, 0, 1)
	for _, v := range in {
		if s, ok := v.(string); ok {
			out = append(out, s)
			break
		}
	}
	return out
}

func applyAnnotations(tree any, annotations map[string][]string) (any, error) {
	paths := make([]string, 0, len(annotations))
	for p := range annotations {
		paths = append(paths, p)
	}
	// Deeper paths first so a parent rewrite (map, set) sees converted children.
	sort.Slice(paths, func(i, j int) bool {
		return len(splitPath(paths[i])) > len(splitPath(paths[j]))
	})
	for _, p := range paths {
		kinds := annotations[p]
		if len(kinds) == 0 {
			continue
		}
		var err error
		tree, err = rewriteAt(tree, splitPath(p), kinds[0])
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", p, err)
		}
	}
	return tree, nil
}

// undefinedValue marks object members to drop.
type undefinedValue struct{}

func rewriteAt(node any, path []string, kind string) (any, error) {
	if len(path) == 0 {
		return convertAnnotated(node, kind)
	}
	switch n := node.(type) {
	case map[string]any:
		child, ok := n[path[0]]
		if !ok && kind != annotUndefined {
			return node, nil
		}
		val, err := rewriteAt(child, path[1:], kind)
		if err != nil {
			return nil, err
		}
		if _, undef := val.(undefinedValue); undef {
			delete(n, path[0])
		} else {
			n[path[0]] = val
		}
		return n, nil
	case []any:
		i, err := strconv.Atoi(path[0])
		if err != nil || i < 0 || i >= len(n) {
			return node, nil
		}
		val, err := rewriteAt(n[i], path[1:], kind)
		if err != nil {
			return nil, err
		}
		if _, undef := val.(undefinedValue); undef {
			val = nil
		}
		n[i] = val
		return n, nil
	}
	return node, nil
}

func convertAnnotated(v any, kind string) (any, error) {
	switch kind {
	case annotUndefined:
		return undefinedValue{}, nil
	case annotDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("date is %T, want string", v)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return t, nil
	case annotBigInt:
		s := fmt.Sprint(v)
		b, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid bigint %q", s)
		}
		return b, nil
	case annotNumber:
		switch fmt.Sprint(v) {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return v, nil
	case annotMap:
		pairs, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("map is %T, want pairs", v)
		}
		out := make(map[any]any, len(pairs))
		for _, p := range pairs {
			kv, ok := p.([]any)
			if !ok || len(kv) != 2 {
				return nil, errors.New("malformed map entry")
			}
			out[plainValue(kv[0])] = kv[1]
		}
		return out, nil
	case annotSet:
		return v, nil
	}
	// Other annotations (regexp, symbol, ...) have no Go equivalent.
	return v, nil
}

// plainValue converts json.Number leaves to float64, the shape JavaScript
// callers see.
func plainValue(v any) any {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}
		return f
	case map[string]any:
		for k, val := range n {
			n[k] = plainValue(val)
		}
		return n
	case map[any]any:
		for k, val := range n {
			n[k] = plainValue(val)
		}
		return n
	case []any:
		for i, val := range n {
			n[i] = plainValue(val)
		}
		return n
	}
	return v
}

func assign(dst reflect.Value, src any) error {
	if src == nil {
		switch dst.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
			dst.SetZero()
		}
		return nil
	}

	switch dst.Type() {
	case timeType:
		switch s := src.(type) {
		case time.Time:
			dst.Set(reflect.ValueOf(s))
			return nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		}
		return typeError(src, dst.Type())
	case bigIntType:
		b, err := toBigInt(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(b).Elem())
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return assign(dst.Elem(), src)
	}

	if dst.Kind() != reflect.Interface && dst.CanAddr() {
		if u, ok := dst.Addr().Interface().(json.Unmarshaler); ok {
			raw, err := json.Marshal(src)
			if err != nil {
				return err
			}
			return u.UnmarshalJSON(raw)
		}
		if u, ok := dst.Addr().Interface().(encoding.TextUnmarshaler); ok {
			if s, isStr := src.(string); isStr {
				return u.UnmarshalText([]byte(s))
			}
		}
	}

	switch dst.Kind() {
	case reflect.Interface:
		val := reflect.ValueOf(plainValue(src))
		if !val.Type().AssignableTo(dst.Type()) {
			return typeError(src, dst.Type())
		}
		dst.Set(val)
		return nil
	case reflect.Struct:
		obj, ok := src.(map[string]any)
		if !ok {
			return typeError(src, dst.Type())
		}
		for _, f := range cachedFields(dst.Type()) {
			val, ok := obj[f.name]
			if !ok {
				val, ok = lookupFold(obj, f.name)
			}
			if !ok {
				continue
			}
			fv := fieldForSet(dst, f.index)
			if err := assign(fv, val); err != nil {
				return fmt.Errorf("%s: %w", f.name, err)
			}
		}
		return nil
	case reflect.Map:
		return assignMap(dst, src)
	case reflect.Slice:
		if s, ok := src.(string); ok && dst.Type().Elem().Kind() == reflect.Uint8 {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return err
			}
			dst.SetBytes(b)
			return nil
		}
		list, ok := src.([]any)
		if !ok {
			return typeError(src, dst.Type())
		}
		out := reflect.MakeSlice(dst.Type(), len(list), len(list))
		for i, item := range list {
			if err := assign(out.Index(i), item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		list, ok := src.([]any)
		if !ok {
			return typeError(src, dst.Type())
		}
		for i := 0; i < dst.Len() && i < len(list); i++ {
			if err := assign(dst.Index(i), list[i]); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case reflect.String:
		s, ok := src.(string)
		if !ok {
			return typeError(src, dst.Type())
		}
		dst.SetString(s)
		return nil
	case reflect.Bool:
		b, ok := src.(bool)
		if !ok {
			return typeError(src, dst.Type())
		}
		dst.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := toUint64(src)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("%d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		switch n := src.(type) {
		case float64:
			dst.SetFloat(n)
			return nil
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return err
			}
			dst.SetFloat(f)
			return nil
		}
		return typeError(src, dst.Type())
	}
	return typeError(src, dst.Type())
}

func assignMap(dst reflect.Value, src any) error {
	out := reflect.MakeMap(dst.Type())
	put := func(k any, v any) error {
		key := reflect.New(dst.Type().Key()).Elem()
		if err := assignMapKey(key, k); err != nil {
			return err
		}
		val := reflect.New(dst.Type().Elem()).Elem()
		if err := assign(val, v); err != nil {
			return fmt.Errorf("%v: %w", k, err)
		}
		out.SetMapIndex(key, val)
		return nil
	}
	switch m := src.(type) {
	case map[string]any:
		for k, v := range m {
			if err := put(k, v); err != nil {
				return err
			}
		}
	case map[any]any:
		for k, v := range m {
			if err := put(k, v); err != nil {
				return err
			}
		}
	default:
		return typeError(src, dst.Type())
	}
	dst.Set(out)
	return nil
}

func assignMapKey(key reflect.Value, k any) error {
	if s, ok := k.(string); ok {
		if u, ok := key.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(s))
		}
		switch key.Kind() {
		case reflect.String:
			key.SetString(s)
			return nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return assign(key, json.Number(s))
		}
	}
	return assign(key, k)
}

func fieldForSet(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

func lookupFold(obj map[string]any, name string) (any, bool) {
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func toInt64(src any) (int64, error) {
	switch n := src.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("%s is not an integer", n)
		}
		return floatToInt64(f)
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return floatToInt64(n)
	case *big.Int:
		if !n.IsInt64() {
			return 0, fmt.Errorf("%s overflows int64", n)
		}
		return n.Int64(), nil
	}
	return 0, fmt.Errorf("cannot decode %T into an integer", src)
}

// 2^63 and 2^64 are exact in float64; MaxInt64 and MaxUint64 are not.
const (
	twoTo63 = float64(1 << 63)
	twoTo64 = twoTo63 * 2
)

func floatToInt64(f float64) (int64, error) {
	if f < -twoTo63 || f >= twoTo63 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

func toUint64(src any) (uint64, error) {
	switch n := src.(type) {
	case json.Number:
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return u, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("%s is not an integer", n)
		}
		return floatToUint64(f)
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return floatToUint64(n)
	case *big.Int:
		if !n.IsUint64() {
			return 0, fmt.Errorf("%s overflows uint64", n)
		}
		return n.Uint64(), nil
	}
	return 0, fmt.Errorf("cannot decode %T into an unsigned integer", src)
}

func floatToUint64(f float64) (uint64, error) {
	if f < 0 || f >= twoTo64 {
		return 0, fmt.Errorf("%v overflows uint64", f)
	}
	return uint64(f), nil
}

func toBigInt(src any) (*big.Int, error) {
	switch n := src.(type) {
	case *big.Int:
		return n, nil
	case json.Number, string:
		s := fmt.Sprint(n)
		b, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid bigint %q", s)
		}
		return b, nil
	}
	return nil, fmt.Errorf("cannot decode %T into big.Int", src)
}

func typeError(src any, t reflect.Type) error {
	return fmt.Errorf("cannot decode %T into %s", src, t)
}
