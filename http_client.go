// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrClientClosed is returned for calls made on, or still waiting in, a
// closed client.
var ErrClientClosed = errors.New("trpc: client closed")

func init() {
	registerTransport(TransportHTTP, dialHTTP)
}

func dialHTTP(ctx context.Context, target string, o *dialOptions) (Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("http dial: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http dial: unsupported scheme %q", u.Scheme)
	}
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	c := &httpClient{
		base:    strings.TrimRight(target, "/"),
		o:       o,
		hc:      hc,
		pending: queue.New(),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// pendingCall moves through pending -> fulfilled | rejected exactly once.
type pendingCall struct {
	call *Call
	raw  []byte
	err  error
	done chan struct{}
}

func newPendingCall(call *Call) *pendingCall {
	return &pendingCall{call: call, done: make(chan struct{})}
}

func (p *pendingCall) complete(raw []byte, err error) {
	p.raw, p.err = raw, err
	close(p.done)
}

// httpClient speaks the tRPC HTTP batch format. Calls made within the batch
// window are coalesced into one request per kind.
type httpClient struct {
	base   string
	o      *dialOptions
	hc     *http.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  *queue.Queue
	timer    *time.Timer
	closed   bool
	inflight sync.WaitGroup
}

func (c *httpClient) Query(ctx context.Context, path string, input, output any) error {
	return c.enqueue(ctx, NewQuery(path, input, output))
}

func (c *httpClient) Mutate(ctx context.Context, path string, input, output any) error {
	return c.enqueue(ctx, NewMutation(path, input, output))
}

func (c *httpClient) enqueue(ctx context.Context, call *Call) error {
	p := newPendingCall(call)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.pending.Add(p)
	var ready []*pendingCall
	switch {
	case c.o.batchLimit > 0 && c.pending.Length() >= c.o.batchLimit:
		ready = c.drainLocked()
		c.inflight.Add(1)
	case c.timer == nil:
		c.timer = time.AfterFunc(c.o.batchWindow, c.flush)
	}
	c.mu.Unlock()
	if len(ready) > 0 {
		c.send(ready)
		c.inflight.Done()
	}

	select {
	case <-p.done:
		return c.finish(p)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *httpClient) Batch(ctx context.Context, calls ...*Call) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	ps := make([]*pendingCall, len(calls))
	for i, call := range calls {
		ps[i] = newPendingCall(call)
	}
	c.send(ps)
	c.inflight.Done()
	for _, p := range ps {
		select {
		case <-p.done:
			p.call.Err = c.finish(p)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// finish decodes the result of a completed call on the caller's goroutine.
func (c *httpClient) finish(p *pendingCall) error {
	if p.err != nil {
		return p.err
	}
	if p.call.Output == nil || p.raw == nil {
		return nil
	}
	if err := c.o.codec.Decode(p.raw, p.call.Output); err != nil {
		return fmt.Errorf("trpc: decode %s output: %w", p.call.Path, err)
	}
	return nil
}

func (c *httpClient) flush() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ready := c.drainLocked()
	c.inflight.Add(1)
	c.mu.Unlock()
	c.send(ready)
	c.inflight.Done()
}

func (c *httpClient) drainLocked() []*pendingCall {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	out := make([]*pendingCall, 0, c.pending.Length())
	for c.pending.Length() > 0 {
		out = append(out, c.pending.Remove().(*pendingCall))
	}
	return out
}

// send groups calls by kind, splits them at the batch limit and dispatches
// each group on its own goroutine. The caller must hold an inflight
// reservation taken under mu while the client was open, so Close waits for
// every chunk started here.
func (c *httpClient) send(calls []*pendingCall) {
	var queries, mutations []*pendingCall
	for _, p := range calls {
		switch p.call.Kind {
		case KindQuery:
			queries = append(queries, p)
		case KindMutation:
			mutations = append(mutations, p)
		default:
			p.complete(nil, fmt.Errorf("trpc: call %q has invalid kind %q", p.call.Path, p.call.Kind))
		}
	}
	for _, group := range [][]*pendingCall{queries, mutations} {
		for len(group) > 0 {
			n := len(group)
			if c.o.batchLimit > 0 && n > c.o.batchLimit {
				n = c.o.batchLimit
			}
			chunk := group[:n]
			group = group[n:]
			c.inflight.Add(1)
			go func() {
				defer c.inflight.Done()
				c.sendBatch(chunk)
			}()
		}
	}
}

func (c *httpClient) sendBatch(chunk []*pendingCall) {
	inputs := make(map[string]json.RawMessage, len(chunk))
	live := chunk[:0:0]
	for _, p := range chunk {
		idx := strconv.Itoa(len(live))
		if p.call.Input != nil {
			raw, err := c.o.codec.Encode(p.call.Input)
			if err != nil {
				p.complete(nil, fmt.Errorf("trpc: encode %s input: %w", p.call.Path, err))
				continue
			}
			inputs[idx] = raw
		}
		live = append(live, p)
	}
	if len(live) == 0 {
		return
	}

	items, err := c.roundTrip(live, inputs)
	if err != nil && c.ctx.Err() != nil {
		err = ErrClientClosed
	}
	if err != nil {
		c.o.logger.Debug().Err(err).Int("calls", len(live)).Msg("batch request failed")
		for _, p := range live {
			p.complete(nil, err)
		}
		return
	}
	for i, p := range live {
		p.complete(c.decodeItem(items[i]))
	}
}

func (c *httpClient) roundTrip(calls []*pendingCall, inputs map[string]json.RawMessage) ([]responseItem, error) {
	paths := make([]string, len(calls))
	for i, p := range calls {
		paths[i] = p.call.Path
	}
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("trpc: encode batch: %w", err)
	}

	endpoint := c.base + "/" + strings.Join(paths, ",") + "?batch=1"
	method := http.MethodPost
	var body io.Reader
	if calls[0].call.Kind == KindQuery {
		method = http.MethodGet
		endpoint += "&input=" + url.QueryEscape(string(payload))
	} else {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(c.ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("trpc: create request: %w", err)
	}
	for k, vs := range c.o.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trpc: send batch: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("trpc: read response: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var items []responseItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("trpc: decode response: %w", err)
		}
		if len(items) != len(calls) {
			return nil, fmt.Errorf("trpc: response has %d items for %d calls", len(items), len(calls))
		}
		return items, nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		// The whole request failed before the calls were split.
		var item responseItem
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return nil, fmt.Errorf("trpc: decode response: %w", err)
		}
		items := make([]responseItem, len(calls))
		for i := range items {
			items[i] = item
		}
		return items, nil
	}
	return nil, fmt.Errorf("trpc: unexpected response (status %d)", resp.StatusCode)
}

func (c *httpClient) decodeItem(item responseItem) ([]byte, error) {
	if len(item.Error) > 0 {
		var shape errorShape
		if err := c.o.codec.Decode(item.Error, &shape); err != nil {
			return nil, fmt.Errorf("trpc: decode error: %w", err)
		}
		return nil, shape.toError()
	}
	if item.Result == nil {
		return nil, errors.New("trpc: response item has neither result nor error")
	}
	return item.Result.Data, nil
}

func (c *httpClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	waiting := c.drainLocked()
	c.mu.Unlock()

	for _, p := range waiting {
		p.complete(nil, ErrClientClosed)
	}
	c.cancel()
	c.inflight.Wait()
	return nil
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	// Drain any remaining data to allow connection reuse
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}
