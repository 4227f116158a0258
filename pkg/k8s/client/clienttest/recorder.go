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

package clienttest

import (
	"sync"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"
)

// Call is one mutating request observed by a Recorder.
type Call struct {
	Verb     string
	Resource string
	Name     string
}

// Recorder captures mutating calls across the typed and dynamic fakes in
// the order they were issued.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// Record installs a Recorder on both halves of f. It observes only and
// never handles a request. Install it after any fault-injecting reactor so
// that failed calls are captured as well.
func (f *Fake) Record() *Recorder {
	r := &Recorder{}
	f.Typed.PrependReactor("*", "*", r.react)
	f.Dynamic.PrependReactor("*", "*", r.react)
	return r
}

func (r *Recorder) react(action k8stesting.Action) (bool, runtime.Object, error) {
	var name string
	switch a := action.(type) {
	case k8stesting.CreateAction:
		if m, err := meta.Accessor(a.GetObject()); err == nil {
			name = m.GetName()
		}
	case k8stesting.UpdateAction:
		if m, err := meta.Accessor(a.GetObject()); err == nil {
			name = m.GetName()
		}
	case k8stesting.PatchAction:
		name = a.GetName()
	case k8stesting.DeleteAction:
		name = a.GetName()
	default:
		return false, nil, nil
	}

	r.mu.Lock()
	r.calls = append(r.calls, Call{Verb: action.GetVerb(), Resource: action.GetResource().Resource, Name: name})
	r.mu.Unlock()
	return false, nil, nil
}

// Calls returns every recorded call with the given verb, in order. An empty
// verb matches every call.
func (r *Recorder) Calls(verb string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Call
	for _, c := range r.calls {
		if verb == "" || c.Verb == verb {
			out = append(out, c)
		}
	}
	return out
}

// Resources returns the resource of every call with the given verb, in order.
func (r *Recorder) Resources(verb string) []string {
	calls := r.Calls(verb)
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Resource
	}
	return out
}
