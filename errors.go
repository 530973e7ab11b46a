// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the error kind reported across the transport boundary.
type Code string

const (
	CodeParseError         Code = "PARSE_ERROR"
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeMethodNotSupported Code = "METHOD_NOT_SUPPORTED"
	CodePayloadTooLarge    Code = "PAYLOAD_TOO_LARGE"
	CodeInternal           Code = "INTERNAL_SERVER_ERROR"
)

var codeTable = map[Code]struct {
	jsonrpc int
	status  int
}{
	CodeParseError:         {-32700, http.StatusBadRequest},
	CodeBadRequest:         {-32600, http.StatusBadRequest},
	CodeInternal:           {-32603, http.StatusInternalServerError},
	CodeUnauthorized:       {-32001, http.StatusUnauthorized},
	CodeNotFound:           {-32004, http.StatusNotFound},
	CodeMethodNotSupported: {-32005, http.StatusMethodNotAllowed},
	CodePayloadTooLarge:    {-32013, http.StatusRequestEntityTooLarge},
}

// HTTPStatus returns the HTTP status a response carrying only this error uses.
func (c Code) HTTPStatus() int {
	if v, ok := codeTable[c]; ok {
		return v.status
	}
	return http.StatusInternalServerError
}

// JSONRPCCode returns the numeric JSON-RPC 2.0 code for c.
func (c Code) JSONRPCCode() int {
	if v, ok := codeTable[c]; ok {
		return v.jsonrpc
	}
	return codeTable[CodeInternal].jsonrpc
}

// CodeFromJSONRPC maps a numeric JSON-RPC code back to a Code.
func CodeFromJSONRPC(n int) Code {
	for code, v := range codeTable {
		if v.jsonrpc == n {
			return code
		}
	}
	return CodeInternal
}

// Valid reports whether c is one of the known codes.
func (c Code) Valid() bool {
	_, ok := codeTable[c]
	return ok
}

// Error is a procedure failure. Server-side it is produced by middleware,
// the dispatcher or handlers; client-side it is rebuilt from the wire with
// the code and message the server reported.
type Error struct {
	Code    Code
	Message string
	// Path is the procedure the error belongs to, when known.
	Path  string
	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Path != "" {
		return fmt.Sprintf("trpc %s [%s]: %s", e.Path, e.Code, msg)
	}
	return fmt.Sprintf("trpc [%s]: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError returns an error with the given code. An empty message defaults
// to the code itself.
func NewError(code Code, message string) *Error {
	if message == "" {
		message = string(code)
	}
	return &Error{Code: code, Message: message}
}

// Errorf formats a message for an error of the given code.
func Errorf(code Code, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// CodeOf extracts the code from err. Errors that are not *Error are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// asError normalises any handler failure into an *Error bound to path.
func asError(err error, path string) *Error {
	var e *Error
	if errors.As(err, &e) {
		out := *e
		if out.Message == "" {
			out.Message = string(out.Code)
		}
		if out.Path == "" {
			out.Path = path
		}
		return &out
	}
	return &Error{Code: CodeInternal, Message: err.Error(), Path: path, Cause: err}
}

// errorShape is the serialized form of an Error.
type errorShape struct {
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Data    errorData `json:"data"`
}

type errorData struct {
	Code       Code   `json:"code"`
	HTTPStatus int    `json:"httpStatus"`
	Path       string `json:"path,omitempty"`
}

func (e *Error) shape() errorShape {
	return errorShape{
		Message: e.Message,
		Code:    e.Code.JSONRPCCode(),
		Data: errorData{
			Code:       e.Code,
			HTTPStatus: e.Code.HTTPStatus(),
			Path:       e.Path,
		},
	}
}

func (s errorShape) toError() *Error {
	code := s.Data.Code
	if !code.Valid() {
		code = CodeFromJSONRPC(s.Code)
	}
	return &Error{Code: code, Message: s.Message, Path: s.Data.Path}
}
