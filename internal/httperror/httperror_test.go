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

package httperror

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestStatusCodeTaxonomy(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindParser, http.StatusBadRequest},
		{KindRoutingTooLarge, http.StatusRequestEntityTooLarge},
		{KindBodyTooLarge, http.StatusRequestEntityTooLarge},
		{KindStreamingTimeout, http.StatusRequestEntityTooLarge},
		{KindRoutingFailure, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := StatusCode(c.kind, 204); got != c.want {
			t.Fatalf("StatusCode(%v): got %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestStatusCodeNoContentHonorsNodataConfig(t *testing.T) {
	if got := StatusCode(KindNoContent, 204); got != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", got)
	}
	if got := StatusCode(KindNoContent, 404); got != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", got)
	}
}

func TestWriteBodyContainsRequiredFields(t *testing.T) {
	e := New(KindParser, "invalid service", "the requested service is not recognized")
	var buf bytes.Buffer
	at := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	if err := WriteBody(&buf, 400, e, "https://docs.example.org/errors", "http://x/query?a=1", "1.0.0", at); err != nil {
		t.Fatalf("WriteBody: %v", err)
	}
	body := buf.String()
	for _, want := range []string{
		"Error 400: invalid service",
		"the requested service is not recognized",
		"https://docs.example.org/errors",
		"http://x/query?a=1",
		"2026-07-29T12:00:00Z",
		"1.0.0",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q, got %q", want, body)
		}
	}
}
