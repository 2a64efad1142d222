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

// Package endpoint defines the shared per-format worker contract: one
// worker fetches sub-requests to one endpoint URL and feeds parsed
// results into a drain through the Worker interface, with one concrete
// implementor per service/format living in a sub-package (simple,
// stationxml, miniseed, wfcatalog, availability).
package endpoint

import (
	"net/http"

	"github.com/eidaws/federator/pkg/sncl"
)

// Drain is the sink a worker's merged output is written to: the
// processor's response buffer, mirrored to a cache buffer.
type Drain interface {
	Write(p []byte) (int, error)
}

// ParseContext carries the per-call request scope a worker needs to merge
// one sub-response into its running state. Drain is where formats that can
// emit incrementally (simple, miniseed, wfcatalog) write each
// sub-response's merged output as soon as it is consumed, so response
// bytes reach the client while other sub-requests are still in flight.
type ParseContext struct {
	StreamEpoch sncl.StreamEpoch
	EndpointURL string
	Priority    int
	Drain       Drain
}

// Worker is the interface every endpoint format worker implements: parse
// one HTTP response's body, streaming merged output to ctx.Drain where the
// format permits, and flush whatever had to wait for every sub-request
// (the stationxml network merge, availability's sorted extents) once all
// of them have been consumed.
type Worker interface {
	// ParseInto classifies resp and folds its body into the worker's
	// running state for ctx.StreamEpoch, writing any output that is
	// already final to ctx.Drain. Returns ErrTooLarge if resp was a 413
	// (caller must split-and-align and retry), nil on success or a
	// no-content response.
	ParseInto(resp *http.Response, ctx ParseContext) error

	// Flush writes whatever merged output could not be emitted until every
	// sub-request for the route had been parsed. Called once, after the
	// worker pool drains; a worker that already streamed everything through
	// ctx.Drain has nothing left to do here.
	Flush(drain Drain) error
}

// ErrTooLarge signals a 413 response the caller must split-and-align and
// retry.
var ErrTooLarge = errTooLarge{}

type errTooLarge struct{}

func (errTooLarge) Error() string { return "endpoint: upstream response too large" }

// ErrNoData marks a merge failure the processor must render as the
// configured no-data status rather than an internal error: the merged
// result is unusable, but nothing upstream misbehaved. Format workers wrap
// it into their own, more specific errors.
var ErrNoData = errNoData{}

type errNoData struct{}

func (errNoData) Error() string { return "endpoint: no usable merged data" }
