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

package version

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		str     string
		wantErr error
	}{
		{in: "14", want: Version{Major: 14, Precision: 1}, str: "14"},
		{in: "v15", want: Version{Major: 15, Precision: 1}, str: "15"},
		{in: "8.0", want: Version{Major: 8, Precision: 2}, str: "8.0"},
		{in: "8.0.36", want: Version{Major: 8, Patch: 36, Precision: 3}, str: "8.0.36"},
		{in: "8.0.36-1", want: Version{Major: 8, Patch: 36, Precision: 3, Extras: "-1"}, str: "8.0.36-1"},
		{in: "3.13.2+build", want: Version{Major: 3, Minor: 13, Patch: 2, Precision: 3, Extras: "+build"}, str: "3.13.2+build"},
		{in: "", wantErr: ErrEmptyVersion},
		{in: "1.2.3.4", wantErr: ErrTooManyComponents},
		{in: "latest", wantErr: ErrNonNumeric},
		{in: "1..2", wantErr: ErrNonNumeric},
		{in: "-1", wantErr: ErrNonNumeric},
		{in: "1.+2", wantErr: ErrNonNumeric},
		{in: " 14", wantErr: ErrNonNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.String() != tt.str {
				t.Errorf("String() = %q, want %q", got.String(), tt.str)
			}
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse did not panic on invalid input")
		}
	}()
	MustParse("x")
}

func FuzzParse(f *testing.F) {
	for _, s := range []string{"1", "v1.2", "1.2.3", "8.0.36-1", "", ".", "1.", "1..2", "-1", "a.b", "1.2.3.4"} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		v, err := Parse(input)
		if err != nil {
			return
		}
		if v.Precision < 1 || v.Precision > 3 {
			t.Errorf("Parse(%q) precision %d", input, v.Precision)
		}
		v2, err := Parse(v.String())
		if err != nil {
			t.Fatalf("re-parsing %q (from %q) failed: %v", v.String(), input, err)
		}
		if v2 != v {
			t.Errorf("round-trip mismatch for %q: %+v != %+v", input, v, v2)
		}
	})
}
