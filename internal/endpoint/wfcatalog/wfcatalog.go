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

// Package wfcatalog implements the WFCatalog JSON endpoint worker: each
// sub-response is a JSON array of ordered objects; appending the next
// sub-response drops its first object when it byte-duplicates the last
// object emitted (the same overlap rule internal/endpoint/miniseed uses
// for binary records), then streams the survivors to the drain.
// internal/processor wraps the concatenated stream with the surrounding
// "[" / "]" envelope.
package wfcatalog

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"

	"github.com/eidaws/federator/internal/endpoint"
)

// Worker joins the object bodies of a WFCatalog JSON array across
// sub-responses, writing each sub-response's surviving objects to the
// drain as soon as they are consumed. The mutex keeps lastObject/wroteAny
// consistent and orders drain writes across concurrent sub-requests.
type Worker struct {
	mu         sync.Mutex
	lastObject []byte
	wroteAny   bool
}

// New builds a Worker.
func New() *Worker {
	return &Worker{}
}

// ParseInto strips the outer "[" / "]" from one sub-response, drops a
// leading duplicate of the last object emitted, and writes the remainder
// to ctx.Drain with "," separators.
func (w *Worker) ParseInto(resp *http.Response, ctx endpoint.ParseContext) error {
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		return nil
	case http.StatusRequestEntityTooLarge:
		return endpoint.ErrTooLarge
	case http.StatusOK:
	default:
		return fmt.Errorf("wfcatalog: upstream status %d", resp.StatusCode)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("wfcatalog: read body: %w", err)
	}
	inner := stripBrackets(body.Bytes())
	if len(inner) == 0 {
		return nil
	}

	objects := splitObjects(inner)
	if len(objects) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lastObject != nil && bytes.Equal(bytes.TrimSpace(objects[0]), bytes.TrimSpace(w.lastObject)) {
		objects = objects[1:]
	}
	if len(objects) == 0 {
		return nil
	}

	var chunk bytes.Buffer
	for _, obj := range objects {
		if w.wroteAny {
			chunk.WriteByte(',')
		}
		chunk.Write(obj)
		w.wroteAny = true
	}
	if _, err := ctx.Drain.Write(chunk.Bytes()); err != nil {
		return err
	}
	w.lastObject = append([]byte(nil), objects[len(objects)-1]...)
	return nil
}

func stripBrackets(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if len(data) < 2 || data[0] != '[' || data[len(data)-1] != ']' {
		return nil
	}
	return bytes.TrimSpace(data[1 : len(data)-1])
}

// splitObjects scans a comma-joined sequence of top-level "{...}" objects
// by brace-depth, ignoring commas inside string literals and nested
// objects, in one forward scan over the whole array body.
func splitObjects(data []byte) [][]byte {
	var objects [][]byte
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, b := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				objects = append(objects, data[start:i+1])
				start = -1
			}
		}
	}
	return objects
}

// Flush is a no-op: every object already went out through ctx.Drain as
// its sub-response was parsed.
func (w *Worker) Flush(endpoint.Drain) error { return nil }
