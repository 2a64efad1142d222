// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package wfcatalog

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/eidaws/federator/internal/endpoint"
)

func respOK(body string) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}
}

func TestWorkerConcatenatesDistinctObjects(t *testing.T) {
	w := New()
	var out bytes.Buffer
	if err := w.ParseInto(respOK(`[{"a":1},{"a":2}]`), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto chunk1: %v", err)
	}
	if out.String() != `{"a":1},{"a":2}` {
		t.Fatalf("expected chunk1 streamed during ParseInto, got %q", out.String())
	}
	if err := w.ParseInto(respOK(`[{"a":3}]`), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto chunk2: %v", err)
	}
	if err := w.Flush(&out); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := `{"a":1},{"a":2},{"a":3}`
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

func TestWorkerDropsDuplicateBoundaryObject(t *testing.T) {
	w := New()
	var out bytes.Buffer
	if err := w.ParseInto(respOK(`[{"a":1},{"a":2}]`), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto chunk1: %v", err)
	}
	// chunk2 repeats {"a":2} at its start (overlap at the split boundary).
	if err := w.ParseInto(respOK(`[{"a":2},{"a":3}]`), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto chunk2: %v", err)
	}
	want := `{"a":1},{"a":2},{"a":3}`
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

func TestWorkerHandlesObjectsContainingCommasAndBraces(t *testing.T) {
	w := New()
	var out bytes.Buffer
	if err := w.ParseInto(respOK(`[{"a":"x,{y}"},{"b":{"nested":1}}]`), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto: %v", err)
	}
	want := `{"a":"x,{y}"},{"b":{"nested":1}}`
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

func TestWorkerNoContentProducesNothing(t *testing.T) {
	w := New()
	var out bytes.Buffer
	resp := &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(strings.NewReader(""))}
	if err := w.ParseInto(resp, endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto: %v", err)
	}
	_ = w.Flush(&out)
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}
