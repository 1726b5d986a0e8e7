// Package response provides unified API response structures.
// All non-streaming endpoints use this format for consistency; the streaming
// question-answering endpoint uses the SSE wire envelope instead.
package response

import (
	"net/http"
	"time"

	"github.com/kart-io/paperqa/pkg/utils/errors"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data interface{} `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`

	httpStatus int
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Code:       0,
		Message:    "success",
		Data:       data,
		Timestamp:  time.Now().UnixMilli(),
		httpStatus: http.StatusOK,
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:       e.Code,
		Message:    e.MessageEN,
		Timestamp:  time.Now().UnixMilli(),
		httpStatus: e.HTTPStatus(),
	}
}

// ErrWithLang creates an error response with a language-specific message.
func ErrWithLang(e *errors.Errno, lang string) *Response {
	resp := Err(e)
	if e != nil {
		resp.Message = e.Message(lang)
	}
	return resp
}

// WithRequestID attaches the request ID for tracing.
func (r *Response) WithRequestID(id string) *Response {
	r.RequestID = id
	return r
}

// HTTPStatus returns the HTTP status code for this response.
func (r *Response) HTTPStatus() int {
	if r.httpStatus != 0 {
		return r.httpStatus
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
