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
	"testing"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeNotFound, "template not found")

	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "template not found" {
		t.Errorf("expected message 'template not found', got %s", err.Message)
	}
	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, "operation failed", cause)

	if err.Code != ErrCodeInternal {
		t.Errorf("expected code %s, got %s", ErrCodeInternal, err.Code)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped")
	}
}

func TestWrapWithContext(t *testing.T) {
	cause := errors.New("timeout")
	ctx := map[string]any{
		"secret":    "postgres.db1.credentials.postgresql.acid.zalan.do",
		"namespace": "ns",
	}

	err := WrapWithContext(ErrCodePollTimeout, "credential never appeared", cause, ctx)

	if err.Code != ErrCodePollTimeout {
		t.Errorf("expected code %s, got %s", ErrCodePollTimeout, err.Code)
	}
	if err.Context == nil {
		t.Fatal("expected context to be set")
	}
	if err.Context["namespace"] != "ns" {
		t.Errorf("expected namespace to be ns")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      *StructuredError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(ErrCodeNotFound, "not found"),
			expected: "[NOT_FOUND] not found",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeInternal, "failed", errors.New("root cause")),
			expected: "[INTERNAL] failed: root cause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(ErrCodeInternal, "wrapped", cause)

	unwrapped := err.Unwrap()
	if !errors.Is(unwrapped, cause) {
		t.Errorf("expected unwrapped error to be original cause")
	}

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should work with Unwrap")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(ErrCodeTemplateMalformed, "bad document"))
	if got := CodeOf(wrapped); got != ErrCodeTemplateMalformed {
		t.Errorf("expected %s, got %s", ErrCodeTemplateMalformed, got)
	}
	if got := CodeOf(errors.New("plain")); got != ErrCodeInternal {
		t.Errorf("expected %s for plain error, got %s", ErrCodeInternal, got)
	}
}

func TestIsCode(t *testing.T) {
	inner := New(ErrCodeConnectionExhausted, "broker unreachable")
	outer := Wrap(ErrCodeUnavailable, "worker stopped", inner)

	if !IsCode(outer, ErrCodeConnectionExhausted) {
		t.Error("expected nested code to be found")
	}
	if !IsCode(outer, ErrCodeUnavailable) {
		t.Error("expected outer code to be found")
	}
	if IsCode(outer, ErrCodeNotFound) {
		t.Error("did not expect NOT_FOUND")
	}
	if IsCode(nil, ErrCodeNotFound) {
		t.Error("nil error has no code")
	}
}

func TestFromAPIStatus(t *testing.T) {
	gr := schema.GroupResource{Group: "acid.zalan.do", Resource: "postgresqls"}

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"not found", apierrors.NewNotFound(gr, "db1"), ErrCodeNotFound},
		{"already exists", apierrors.NewAlreadyExists(gr, "db1"), ErrCodeConflict},
		{"conflict", apierrors.NewConflict(gr, "db1", errors.New("stale")), ErrCodeConflict},
		{"forbidden", apierrors.NewForbidden(gr, "db1", errors.New("rbac")), ErrCodeUnauthorized},
		{"bad request", apierrors.NewBadRequest("bad"), ErrCodeInvalidRequest},
		{"timeout", apierrors.NewTimeoutError("slow", 1), ErrCodeTimeout},
		{"unavailable", apierrors.NewServiceUnavailable("down"), ErrCodeUnavailable},
		{"internal", apierrors.NewInternalError(errors.New("boom")), ErrCodeApplyFailed},
		{"plain", errors.New("dial tcp: refused"), ErrCodeApplyFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAPIStatus("apply failed", tt.err)
			if got.Code != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Code)
			}
			if !errors.Is(got, tt.err) {
				t.Error("expected cause to be preserved")
			}
		})
	}
}

func TestFromAPIStatusDetail(t *testing.T) {
	gr := schema.GroupResource{Group: "rabbitmq.com", Resource: "rabbitmqclusters"}
	err := FromAPIStatus("create failed", apierrors.NewAlreadyExists(gr, "mq1"))

	detail, ok := err.Context["detail"].(string)
	if !ok || detail == "" {
		t.Fatalf("expected provider detail, got %v", err.Context["detail"])
	}
	if err.Context["name"] != "mq1" {
		t.Errorf("expected name mq1, got %v", err.Context["name"])
	}
	if FromAPIStatus("noop", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeNotFound,
		ErrCodeUnauthorized,
		ErrCodeTimeout,
		ErrCodeInternal,
		ErrCodeInvalidRequest,
		ErrCodeUnavailable,
		ErrCodeConflict,
		ErrCodeTemplateNotFound,
		ErrCodeTemplateMalformed,
		ErrCodeApplyFailed,
		ErrCodePollTimeout,
		ErrCodeConnectionExhausted,
	}

	seen := map[ErrorCode]bool{}
	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("error code should not be empty: %v", code)
		}
		if seen[code] {
			t.Errorf("duplicate error code: %v", code)
		}
		seen[code] = true
	}
}
