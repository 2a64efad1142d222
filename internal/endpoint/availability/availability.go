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

// Package availability implements the extent endpoint worker. The request
// processor reduces a route's granular per-stream-epoch sub-routes to one
// stream-epoch per logical stream before dispatch (the hull of every
// sub-epoch: earliest start, latest or open end), so each stream arrives
// here as a single upstream response covering its whole window; the worker
// collects those responses and emits them in sorted stream order. If two
// different endpoints serve the same logical stream the route fails with
// "distributed stream epochs not allowed" rather than guessing which
// endpoint is authoritative.
package availability

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/eidaws/federator/internal/endpoint"
	"github.com/eidaws/federator/pkg/sncl"
)

// ErrDistributedStream is returned when a logical stream's sub-epochs were
// served by more than one endpoint. It wraps endpoint.ErrNoData so the
// processor renders the configured no-data status instead of a server
// error.
var ErrDistributedStream = fmt.Errorf("availability: distributed stream epochs not allowed: %w", endpoint.ErrNoData)

type extent struct {
	endpointURL string
	body        [][]byte
}

// Worker collects one reduced hull-window response per logical stream,
// keyed by network/station/location/channel.
type Worker struct {
	mu      sync.Mutex
	extents map[sncl.Stream]*extent
	order   []sncl.Stream
	failed  error
}

// New builds a Worker.
func New() *Worker {
	return &Worker{extents: make(map[sncl.Stream]*extent)}
}

// ParseInto folds one sub-response's body into the extent for its stream,
// tracking which endpoint URL served it.
func (w *Worker) ParseInto(resp *http.Response, ctx endpoint.ParseContext) error {
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		return nil
	case http.StatusRequestEntityTooLarge:
		return endpoint.ErrTooLarge
	case http.StatusOK:
	default:
		return fmt.Errorf("availability: upstream status %d", resp.StatusCode)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("availability: read body: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return nil
	}

	stream := ctx.StreamEpoch.Stream
	e, seen := w.extents[stream]
	if !seen {
		e = &extent{endpointURL: ctx.EndpointURL}
		w.extents[stream] = e
		w.order = append(w.order, stream)
	} else if e.endpointURL != ctx.EndpointURL {
		w.failed = ErrDistributedStream
		return w.failed
	}

	if body.Len() > 0 {
		e.body = append(e.body, append([]byte(nil), body.Bytes()...))
	}
	return nil
}

// Failed reports the distributed-stream error, if one was observed.
func (w *Worker) Failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

// Flush writes each stream's hull-window body to drain in sorted stream
// order. Callers that need network-sorted priority order should drive this
// worker through the sorted-response processor instead of calling Flush
// directly.
func (w *Worker) Flush(drain endpoint.Drain) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failed
	}
	ordered := append([]sncl.Stream(nil), w.order...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})
	for i, s := range ordered {
		if i > 0 {
			if _, err := drain.Write([]byte(",")); err != nil {
				return err
			}
		}
		e := w.extents[s]
		for _, b := range e.body {
			if _, err := drain.Write(b); err != nil {
				return fmt.Errorf("availability: flush: %w", err)
			}
		}
	}
	return nil
}
