// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrorCode represents a structured error classification.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeUnauthorized indicates authentication or authorization failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeTimeout indicates an operation exceeded its time limit.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an internal system error.
	ErrCodeInternal ErrorCode = "INTERNAL"
	// ErrCodeInvalidRequest indicates malformed or invalid input.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrCodeRateLimitExceeded indicates the client exceeded an enforced request limit.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeMethodNotAllowed indicates the HTTP method is not allowed for the resource.
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	// ErrCodeUnavailable indicates a service or resource is temporarily unavailable.
	ErrCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConflict indicates the resource already exists or was modified concurrently.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeTemplateNotFound indicates a manifest template identifier has no backing source.
	ErrCodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	// ErrCodeTemplateMalformed indicates a template document could not be parsed into a descriptor.
	ErrCodeTemplateMalformed ErrorCode = "TEMPLATE_MALFORMED"
	// ErrCodeApplyFailed indicates the control plane rejected or failed a descriptor.
	ErrCodeApplyFailed ErrorCode = "APPLY_FAILED"
	// ErrCodePollTimeout indicates an asynchronously materialized artifact never appeared.
	ErrCodePollTimeout ErrorCode = "POLL_TIMEOUT"
	// ErrCodeConnectionExhausted indicates the broker stayed unreachable after all retries.
	ErrCodeConnectionExhausted ErrorCode = "CONNECTION_EXHAUSTED"
)

// StructuredError provides structured error information for better observability.
// It includes an error code for programmatic handling, a human-readable message,
// the underlying cause, and optional context for debugging.
type StructuredError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new StructuredError with the given code and message.
func New(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
	}
}

// NewWithContext creates a new StructuredError with context information.
func NewWithContext(code ErrorCode, message string, context map[string]any) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(code ErrorCode, message string, cause error) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithContext wraps an error with additional context information.
func WrapWithContext(code ErrorCode, message string, cause error, context map[string]any) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf returns the code of the first StructuredError in the chain,
// or ErrCodeInternal when err carries no classification.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether any StructuredError in the chain has the given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var se *StructuredError
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Cause
	}
	return false
}

// FromAPIStatus classifies a control-plane error and wraps it, keeping the
// provider-reported status message under Context["detail"].
func FromAPIStatus(message string, err error) *StructuredError {
	if err == nil {
		return nil
	}

	code := ErrCodeApplyFailed
	switch {
	case apierrors.IsNotFound(err):
		code = ErrCodeNotFound
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		code = ErrCodeUnauthorized
	case apierrors.IsAlreadyExists(err), apierrors.IsConflict(err):
		code = ErrCodeConflict
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		code = ErrCodeInvalidRequest
	case apierrors.IsTimeout(err), apierrors.IsServerTimeout(err):
		code = ErrCodeTimeout
	case apierrors.IsTooManyRequests(err), apierrors.IsServiceUnavailable(err):
		code = ErrCodeUnavailable
	}

	ctx := map[string]any{}
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		s := status.Status()
		ctx["detail"] = s.Message
		ctx["reason"] = string(s.Reason)
		if s.Details != nil {
			ctx["kind"] = s.Details.Kind
			ctx["name"] = s.Details.Name
		}
	}

	return WrapWithContext(code, message, err, ctx)
}
