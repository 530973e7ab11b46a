// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// HTTPHandler serves a router over HTTP using the tRPC wire format:
//
//	GET  {prefix}/hello.greet?input=<enc>                 single query
//	POST {prefix}/post.create                             single mutation, body <enc>
//	GET  {prefix}/a.b,c.d?batch=1&input={"0":..,"1":..}   batched queries
//	POST {prefix}/a.b,c.d?batch=1                         batched mutations, body {"0":..,"1":..}
//
// Each call in a batch is resolved and executed on its own; one failure
// never affects the others.
type HTTPHandler struct {
	d *dispatcher
}

// NewHTTPHandler returns the HTTP binding for router.
func NewHTTPHandler(router *Router, opts ...ServerOption) *HTTPHandler {
	return &HTTPHandler{d: newDispatcher(router, opts)}
}

// Prefix is the path prefix the handler strips from inbound requests.
func (h *HTTPHandler) Prefix() string { return h.d.opts.prefix }

type responseItem struct {
	Result *resultBody     `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

type resultBody struct {
	Data json.RawMessage `json:"data"`
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, h.d.opts.prefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	rest = strings.Trim(rest, "/")

	var kind Kind
	switch r.Method {
	case http.MethodGet:
		kind = KindQuery
	case http.MethodPost:
		kind = KindMutation
	default:
		w.Header().Set("Allow", "GET, POST")
		h.writeItems(w, false, []callResult{{err: NewError(CodeMethodNotSupported, "Unsupported HTTP method "+r.Method)}})
		return
	}

	batch := isBatch(r)
	paths := []string{rest}
	if batch {
		paths = strings.Split(rest, ",")
	}
	h.d.observeBatch(TransportHTTP, len(paths))

	if batch && h.d.opts.maxBatchSize > 0 && len(paths) > h.d.opts.maxBatchSize {
		h.fail(w, batch, paths, Errorf(CodeBadRequest, "Batch of %d calls exceeds the limit of %d", len(paths), h.d.opts.maxBatchSize))
		return
	}

	raw, rpcErr := h.readInput(w, r, kind)
	if rpcErr != nil {
		h.fail(w, batch, paths, rpcErr)
		return
	}

	calls := make([]batchCall, len(paths))
	if batch {
		inputs := map[string]json.RawMessage{}
		if !isEmptyInput(raw) {
			if err := json.Unmarshal(raw, &inputs); err != nil {
				h.fail(w, batch, paths, &Error{Code: CodeParseError, Message: "Unable to parse batch input: " + err.Error(), Cause: err})
				return
			}
		}
		for i, p := range paths {
			calls[i] = batchCall{path: p, kind: kind, input: inputs[strconv.Itoa(i)]}
		}
	} else {
		calls[0] = batchCall{path: rest, kind: kind, input: raw}
	}

	c, rpcErr := h.d.newContext(r.Context(), RequestInfo{
		Transport:  TransportHTTP,
		Method:     r.Method,
		Path:       r.URL.Path,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
	})
	if rpcErr != nil {
		h.fail(w, batch, paths, rpcErr)
		return
	}
	h.writeItems(w, batch, h.d.callAll(r.Context(), c, calls))
}

func isBatch(r *http.Request) bool {
	switch r.URL.Query().Get("batch") {
	case "1", "true":
		return true
	}
	return false
}

func (h *HTTPHandler) readInput(w http.ResponseWriter, r *http.Request, kind Kind) ([]byte, *Error) {
	if kind == KindQuery {
		return []byte(r.URL.Query().Get("input")), nil
	}
	body := io.Reader(r.Body)
	if h.d.opts.maxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.d.opts.maxBodySize)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, Errorf(CodePayloadTooLarge, "Request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, &Error{Code: CodeBadRequest, Message: "Unable to read request body", Cause: err}
	}
	return raw, nil
}

// fail answers every call of the request with err.
func (h *HTTPHandler) fail(w http.ResponseWriter, batch bool, paths []string, err *Error) {
	results := make([]callResult, len(paths))
	for i, p := range paths {
		e := *err
		e.Path = p
		results[i].err = &e
	}
	if !batch {
		results = results[:1]
	}
	h.writeItems(w, batch, results)
}

func (h *HTTPHandler) writeItems(w http.ResponseWriter, batch bool, results []callResult) {
	items := make([]responseItem, len(results))
	status := 0
	for i, res := range results {
		itemStatus := http.StatusOK
		if res.err != nil {
			items[i].Error = h.d.encodeError(res.err)
			itemStatus = res.err.Code.HTTPStatus()
		} else {
			items[i].Result = &resultBody{Data: res.data}
		}
		switch {
		case status == 0:
			status = itemStatus
		case status != itemStatus:
			status = http.StatusMultiStatus
		}
	}
	if status == 0 {
		status = http.StatusOK
	}

	var (
		body []byte
		err  error
	)
	if batch {
		body, err = json.Marshal(items)
	} else {
		body, err = json.Marshal(items[0])
	}
	if err != nil {
		h.d.opts.logger.Error().Err(err).Msg("encode response failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.d.opts.logger.Debug().Err(err).Msg("write response failed")
	}
}
