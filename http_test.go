// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

func serveRPC(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func encodeInput(t *testing.T, v any) string {
	t.Helper()
	raw, err := SuperJSON{}.Encode(v)
	if err != nil {
		t.Fatalf("encode input: %v", err)
	}
	return string(raw)
}

func decodeItem(t *testing.T, raw []byte) responseItem {
	t.Helper()
	var item responseItem
	if err := json.Unmarshal(raw, &item); err != nil {
		t.Fatalf("decode item %s: %v", raw, err)
	}
	return item
}

func decodeItems(t *testing.T, raw []byte) []responseItem {
	t.Helper()
	var items []responseItem
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("decode items %s: %v", raw, err)
	}
	return items
}

func itemError(t *testing.T, item responseItem) errorShape {
	t.Helper()
	if len(item.Error) == 0 {
		t.Fatalf("item has no error")
	}
	var shape errorShape
	if err := (SuperJSON{}).Decode(item.Error, &shape); err != nil {
		t.Fatalf("decode error %s: %v", item.Error, err)
	}
	return shape
}

func itemData(t *testing.T, item responseItem, out any) {
	t.Helper()
	if item.Result == nil {
		t.Fatalf("item has no result (error %s)", item.Error)
	}
	if err := (SuperJSON{}).Decode(item.Result.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", item.Result.Data, err)
	}
}

func TestHTTPSingleQuery(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	rec := serveRPC(t, h, http.MethodGet, "/trpc/hello.greet", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if got, want := rec.Body.String(), `{"result":{"data":{"json":{"message":"Hello from tRPC!"}}}}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestHTTPQueryWithInput(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	at := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	target := "/trpc/echo.when?input=" + url.QueryEscape(encodeInput(t, whenInput{At: at}))

	rec := serveRPC(t, h, http.MethodGet, target, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var out whenOutput
	itemData(t, decodeItem(t, rec.Body.Bytes()), &out)
	if !out.At.Equal(at) || !out.Next.Equal(at.Add(24*time.Hour)) {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestHTTPBatchQueries(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	inputs := `{"1":` + encodeInput(t, addInput{A: 40, B: 2}) + `}`
	target := "/trpc/hello.greet,echo.add?batch=1&input=" + url.QueryEscape(inputs)

	rec := serveRPC(t, h, http.MethodGet, target, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	items := decodeItems(t, rec.Body.Bytes())
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	var g greeting
	itemData(t, items[0], &g)
	if g.Message != "Hello from tRPC!" {
		t.Fatalf("greeting = %q", g.Message)
	}
	var sum addOutput
	itemData(t, items[1], &sum)
	if sum.Sum != 42 {
		t.Fatalf("sum = %d, want 42", sum.Sum)
	}
}

func TestHTTPBatchPartialFailure(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	rec := serveRPC(t, h, http.MethodGet, "/trpc/hello.greet,nope.missing?batch=1", "")
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", rec.Code)
	}
	items := decodeItems(t, rec.Body.Bytes())
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	var g greeting
	itemData(t, items[0], &g)

	shape := itemError(t, items[1])
	if shape.Data.Code != CodeNotFound || shape.Data.HTTPStatus != http.StatusNotFound || shape.Code != -32004 {
		t.Fatalf("unexpected error %+v", shape)
	}
	if shape.Data.Path != "nope.missing" {
		t.Fatalf("path = %q", shape.Data.Path)
	}
}

func TestHTTPBatchSameStatus(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	rec := serveRPC(t, h, http.MethodGet, "/trpc/a.missing,b.missing?batch=1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHTTPMutation(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))

	rec := serveRPC(t, h, http.MethodPost, "/trpc/post.create", encodeInput(t, createInput{Title: "first"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var out createOutput
	itemData(t, decodeItem(t, rec.Body.Bytes()), &out)
	if out.ID != 1 || out.Title != "first" {
		t.Fatalf("unexpected output %+v", out)
	}

	body := `{"0":` + encodeInput(t, createInput{Title: "a"}) + `,"1":` + encodeInput(t, createInput{Title: " "}) + `}`
	rec = serveRPC(t, h, http.MethodPost, "/trpc/post.create,post.create?batch=1", body)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", rec.Code)
	}
	items := decodeItems(t, rec.Body.Bytes())
	itemData(t, items[0], &out)
	if got := itemError(t, items[1]).Data.Code; got != CodeBadRequest {
		t.Fatalf("code = %q, want BAD_REQUEST", got)
	}
}

func TestHTTPKindMismatch(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))

	rec := serveRPC(t, h, http.MethodPost, "/trpc/hello.greet", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if got := itemError(t, decodeItem(t, rec.Body.Bytes())).Data.Code; got != CodeMethodNotSupported {
		t.Fatalf("code = %q", got)
	}

	rec = serveRPC(t, h, http.MethodGet, "/trpc/post.create", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHTTPUnsupportedMethod(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	rec := serveRPC(t, h, http.MethodPut, "/trpc/hello.greet", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, POST" {
		t.Fatalf("allow = %q", allow)
	}
	if got := itemError(t, decodeItem(t, rec.Body.Bytes())).Data.Code; got != CodeMethodNotSupported {
		t.Fatalf("code = %q", got)
	}
}

func TestHTTPBadInput(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	cases := map[string]string{
		"wrong type":  `{"json":{"a":"one","b":2}}`,
		"validator":   encodeInput(t, addInput{A: -1, B: 2}),
		"not json":    `{{{`,
		"no envelope": `{"a":7}`,
		"overflow":    `{"json":{"a":1e20,"b":2}}`,
	}
	for name, input := range cases {
		rec := serveRPC(t, h, http.MethodGet, "/trpc/echo.add?input="+url.QueryEscape(input), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
			continue
		}
		if got := itemError(t, decodeItem(t, rec.Body.Bytes())).Data.Code; got != CodeBadRequest {
			t.Errorf("%s: code = %q", name, got)
		}
	}
}

func TestHTTPBatchParseError(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	rec := serveRPC(t, h, http.MethodPost, "/trpc/post.create,post.create?batch=1", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	items := decodeItems(t, rec.Body.Bytes())
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for i, item := range items {
		if got := itemError(t, item).Data.Code; got != CodeParseError {
			t.Errorf("items[%d]: code = %q, want PARSE_ERROR", i, got)
		}
	}
}

func TestHTTPHandlerFailuresAreInternal(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t))
	for _, path := range []string{"boom.panic", "boom.fail"} {
		rec := serveRPC(t, h, http.MethodGet, "/trpc/"+path, "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", path, rec.Code)
			continue
		}
		shape := itemError(t, decodeItem(t, rec.Body.Bytes()))
		if shape.Data.Code != CodeInternal || shape.Code != -32603 {
			t.Errorf("%s: unexpected error %+v", path, shape)
		}
	}

	// A panic in one call leaves the rest of the batch intact.
	rec := serveRPC(t, h, http.MethodGet, "/trpc/boom.panic,hello.greet?batch=1", "")
	items := decodeItems(t, rec.Body.Bytes())
	var g greeting
	itemData(t, items[1], &g)
}

func TestHTTPPayloadTooLarge(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t), WithMaxBodySize(32))
	body := encodeInput(t, createInput{Title: strings.Repeat("x", 64)})
	rec := serveRPC(t, h, http.MethodPost, "/trpc/post.create", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if got := itemError(t, decodeItem(t, rec.Body.Bytes())).Data.Code; got != CodePayloadTooLarge {
		t.Fatalf("code = %q", got)
	}
}

func TestHTTPBatchLimit(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t), WithMaxBatchSize(2))
	rec := serveRPC(t, h, http.MethodGet, "/trpc/hello.greet,hello.greet,hello.greet?batch=1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	items := decodeItems(t, rec.Body.Bytes())
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if got := itemError(t, items[0]).Data.Code; got != CodeBadRequest {
		t.Fatalf("code = %q", got)
	}
}

func TestHTTPProtectedProcedure(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t), WithContextFactory(bearerContext))

	rec := serveRPC(t, h, http.MethodGet, "/trpc/secret.whoami", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/trpc/secret.whoami", nil)
	req.Header.Set("Authorization", "Bearer alice")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var out whoami
	itemData(t, decodeItem(t, rec.Body.Bytes()), &out)
	if out.UserID != "alice" {
		t.Fatalf("userId = %q", out.UserID)
	}
}

func TestHTTPContextFactoryFailure(t *testing.T) {
	factory := func(context.Context, RequestInfo) (Context, error) {
		return Context{}, errors.New("session store offline")
	}
	h := NewHTTPHandler(newTestRouter(t), WithContextFactory(factory))
	rec := serveRPC(t, h, http.MethodGet, "/trpc/hello.greet", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	shape := itemError(t, decodeItem(t, rec.Body.Bytes()))
	if shape.Data.Code != CodeInternal || strings.Contains(shape.Message, "offline") {
		t.Fatalf("unexpected error %+v", shape)
	}
}

func TestHTTPPrefix(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t), WithPrefix("/api/trpc"))
	if h.Prefix() != "/api/trpc" {
		t.Fatalf("prefix = %q", h.Prefix())
	}
	if rec := serveRPC(t, h, http.MethodGet, "/api/trpc/hello.greet", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec := serveRPC(t, h, http.MethodGet, "/trpc/hello.greet", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHTTPPlainJSONCodec(t *testing.T) {
	h := NewHTTPHandler(newTestRouter(t), WithServerCodec(JSONCodec{}))
	rec := serveRPC(t, h, http.MethodGet, "/trpc/echo.add?input="+url.QueryEscape(`{"a":1,"b":2}`), "")
	if got, want := rec.Body.String(), `{"result":{"data":{"sum":3}}}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	calls   map[string]Code
	batches []int
}

func (o *recordingObserver) ObserveCall(path string, kind Kind, code Code, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[path] = code
}

func (o *recordingObserver) ObserveBatch(transport string, size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if transport == TransportHTTP {
		o.batches = append(o.batches, size)
	}
}

func TestHTTPObserver(t *testing.T) {
	obs := &recordingObserver{calls: make(map[string]Code)}
	h := NewHTTPHandler(newTestRouter(t), WithObserver(obs))
	serveRPC(t, h, http.MethodGet, "/trpc/hello.greet,nope.missing?batch=1", "")

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if code, ok := obs.calls["hello.greet"]; !ok || code != "" {
		t.Errorf("hello.greet observed as %q (seen %v)", code, ok)
	}
	if code := obs.calls["nope.missing"]; code != CodeNotFound {
		t.Errorf("nope.missing observed as %q", code)
	}
	if len(obs.batches) != 1 || obs.batches[0] != 2 {
		t.Errorf("batches = %v, want [2]", obs.batches)
	}
}
