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

package applier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cloud-agnost/provisioner/pkg/manifest"
)

// Policy decides how a batch reacts to a failed descriptor.
type Policy int

const (
	// FailFast aborts on the first failure.
	FailFast Policy = iota
	// Degrade logs failures of non-critical kinds and continues; a failure
	// on a critical kind aborts.
	Degrade
	// Tolerate attempts every descriptor and returns all failures joined.
	Tolerate
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Degrade:
		return "degrade"
	case Tolerate:
		return "tolerate"
	default:
		return "unknown"
	}
}

// Entry records what happened to one descriptor of a batch.
type Entry struct {
	Ref     string
	Kind    manifest.Kind
	Outcome Outcome
	Err     error
}

// Report lists the batch entries in the order they were attempted.
type Report struct {
	Operation Operation
	Entries   []Entry
}

// Refs returns the references of entries with outcome o.
func (r *Report) Refs(o Outcome) []string {
	var refs []string
	for _, e := range r.Entries {
		if e.Outcome == o {
			refs = append(refs, e.Ref)
		}
	}
	return refs
}

// Failed returns the failed entries.
func (r *Report) Failed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Outcome == OutcomeFailed {
			out = append(out, e)
		}
	}
	return out
}

// ApplyAll applies descs strictly in order under policy. The returned report
// covers every descriptor attempted, including on error.
func (a *Applier) ApplyAll(ctx context.Context, descs []*manifest.Descriptor, op Operation, policy Policy) (*Report, error) {
	report := &Report{Operation: op}
	var errs []error

	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, err := a.Apply(ctx, d, op)
		report.Entries = append(report.Entries, Entry{Ref: d.Ref(), Kind: d.Kind, Outcome: outcome, Err: err})
		if err == nil {
			continue
		}

		switch {
		case policy == FailFast:
			return report, err
		case policy == Degrade && d.Kind.IsCritical():
			return report, err
		default:
			slog.Warn("descriptor failed, continuing batch",
				"kind", d.RawKind(), "name", d.Name(), "operation", string(op),
				"policy", policy.String(), "error", err)
			if policy == Tolerate {
				errs = append(errs, err)
			}
		}
	}

	return report, errors.Join(errs...)
}

// Reverse returns descs in reverse order without modifying the input.
func Reverse(descs []*manifest.Descriptor) []*manifest.Descriptor {
	out := make([]*manifest.Descriptor, len(descs))
	for i, d := range descs {
		out[len(descs)-1-i] = d
	}
	return out
}
