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

// Package simple implements the station-text and availability
// text/json/geocsv endpoint worker: strip a format-specific header/footer
// from each sub-response and emit the trimmed body straight to the drain,
// so bytes reach the client as each sub-request completes. The processor
// supplies the envelope (format-specific header/separator/footer) around
// the concatenated output.
package simple

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/eidaws/federator/internal/endpoint"
)

// Format selects the header-stripping rule applied to each sub-response.
type Format int

const (
	// FormatText strips the single leading "#..." comment line (FDSNWS
	// text/plain station and availability responses).
	FormatText Format = iota
	// FormatJSON extracts the content of the top-level "datasources" array.
	FormatJSON
	// FormatGeoCSV strips the first five header lines.
	FormatGeoCSV
)

// Worker strips and forwards sub-response bodies. It holds no merge state
// of its own; the drain serializes concurrent writes.
type Worker struct {
	format Format
}

// New builds a Worker for the given sub-response format.
func New(format Format) *Worker {
	return &Worker{format: format}
}

// ParseInto reads one sub-response body and writes the trimmed result to
// ctx.Drain.
func (w *Worker) ParseInto(resp *http.Response, ctx endpoint.ParseContext) error {
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		return nil
	case http.StatusRequestEntityTooLarge:
		return endpoint.ErrTooLarge
	case http.StatusOK:
	default:
		return fmt.Errorf("simple: upstream status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("simple: read body: %w", err)
	}
	trimmed := w.strip(buf.Bytes())
	if len(trimmed) == 0 {
		return nil
	}
	_, err := ctx.Drain.Write(trimmed)
	return err
}

func (w *Worker) strip(body []byte) []byte {
	switch w.format {
	case FormatText:
		if idx := bytes.IndexByte(body, '\n'); idx >= 0 && len(body) > 0 && body[0] == '#' {
			return body[idx+1:]
		}
		return body
	case FormatGeoCSV:
		rest := body
		for i := 0; i < 5; i++ {
			idx := bytes.IndexByte(rest, '\n')
			if idx < 0 {
				return nil
			}
			rest = rest[idx+1:]
		}
		return rest
	case FormatJSON:
		start := bytes.Index(body, []byte(`"datasources"`))
		if start < 0 {
			return nil
		}
		open := bytes.IndexByte(body[start:], '[')
		if open < 0 {
			return nil
		}
		open += start
		depth := 0
		for i := open; i < len(body); i++ {
			switch body[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return body[open+1 : i]
				}
			}
		}
		return nil
	default:
		return body
	}
}

// Flush is a no-op: every chunk already went out through ctx.Drain as its
// sub-response was parsed.
func (w *Worker) Flush(endpoint.Drain) error { return nil }
