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

package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eidaws/federator/internal/cache"
	"github.com/eidaws/federator/internal/endpoint"
	"github.com/eidaws/federator/internal/httperror"
	"github.com/eidaws/federator/internal/routingclient"
	"github.com/eidaws/federator/internal/stats"
	"github.com/eidaws/federator/internal/workerpool"
	"github.com/eidaws/federator/pkg/sncl"
)

// Format describes the per-service-format envelope the processor wraps
// around a merged body: the cache-key tag, the worker constructor, and
// whether routes dispatch in priority order (availability's hull
// reduction) or not.
type Format struct {
	Tag            string
	Header         []byte
	Footer         []byte
	Separator      []byte
	NewWorker      func() endpoint.Worker
	Sorted         bool
	ReduceExtent   bool   // collapse each stream's routes to one hull-window request before dispatch
	EndpointMethod string // http.MethodGet or http.MethodPost, the verb used against the endpoint URL
}

// Request is one client-facing federator call, already decoded from the
// GET query string or POST body.
type Request struct {
	QueryParams  map[string][]string
	StreamEpochs []sncl.StreamEpoch
	ExtraParams  map[string]string
	DefaultEnd   time.Time
	UsePOST      bool
	POSTHeaders  map[string]string
}

// Lifecycle wires together the shared request steps: cache lookup,
// routing, worker-pool dispatch onto endpoint workers, merge, response
// streaming, and cache write-back.
type Lifecycle struct {
	Cache cache.Backend
	// CacheCompressed mirrors the cache backend's compress option so the
	// handler can serve a stored blob verbatim with Content-Encoding: gzip
	// when the client accepts it, instead of decompressing on every hit.
	CacheCompressed bool
	CacheTTL        time.Duration
	Routing    *routingclient.Client
	RoutingURL string
	Stats      *stats.Store
	HTTPClient *http.Client

	PoolSize         int
	StreamingTimeout time.Duration

	SplittingFactor  int
	MinSplitDuration time.Duration
	MaxSplitDepth    int

	// NoDataStatus is the HTTP status the handler layer should render for a
	// *httperror.Error with Kind == httperror.KindNoContent (the
	// configurable "nodata" status, 204 or 404). Run itself never
	// writes an HTTP status; it only classifies the error, so this field is
	// read by the handler via httperror.StatusCode(err.Kind, l.NoDataStatus).
	NoDataStatus int
}

// CachedGzip probes the cache for the request's complete response in its
// stored, still-compressed form. It only ever hits when the backend
// compresses on write; callers forward the blob with
// Content-Encoding: gzip rather than decompressing it first.
func (l *Lifecycle) CachedGzip(ctx context.Context, req Request, format Format) ([]byte, bool) {
	if l.Cache == nil || !l.CacheCompressed {
		return nil, false
	}
	key := cache.Key(format.Tag, req.QueryParams, req.StreamEpochs)
	data, hit, err := l.Cache.Get(ctx, key, true)
	if err != nil || !hit {
		return nil, false
	}
	return data, true
}

// Run executes the full lifecycle for one request, streaming response
// bytes to w as sub-responses arrive and mirroring them into a buffer for
// the cache write-back. A non-nil *httperror.Error return means the caller
// should render that taxonomy entry; by then nothing has been written to w
// unless the response was already streaming when the failure happened.
func (l *Lifecycle) Run(ctx context.Context, req Request, format Format, w io.Writer) error {
	key := cache.Key(format.Tag, req.QueryParams, req.StreamEpochs)
	if l.Cache != nil {
		if data, hit, err := l.Cache.Get(ctx, key, false); err == nil && hit {
			_, werr := w.Write(data)
			return werr
		}
	}

	routes, err := l.resolveRoutes(ctx, req)
	if err != nil {
		var tooLarge *routingclient.ErrTooLarge
		if errors.As(err, &tooLarge) {
			return httperror.New(httperror.KindRoutingTooLarge, "request too large", tooLarge.Error())
		}
		return httperror.New(httperror.KindRoutingFailure, "routing failure", err.Error())
	}
	if len(routes) == 0 {
		return httperror.New(httperror.KindNoContent, "no data", "the routing resolver returned no matching streams")
	}
	if format.ReduceExtent {
		routes, err = reduceToExtent(routes)
		if err != nil {
			return classifyFlushErr(err)
		}
	}

	worker := format.NewWorker()
	var buf bytes.Buffer
	out := io.MultiWriter(w, &buf)

	var unsorted *unsortedDrain
	var sorted *sortedDrain
	if format.Sorted {
		sorted = newSortedDrain(out, format.Header, format.Separator)
	} else {
		unsorted = newUnsortedDrain(out, format.Header)
	}

	pool := workerpool.New(func(ctx context.Context, payload any) error {
		job := payload.(dispatchJob)
		return l.dispatchEpoch(ctx, job, 0)
	}, l.PoolSize)
	defer pool.Close()

	var routedURLs []string
	defer func() {
		if l.Stats == nil {
			return
		}
		for _, u := range routedURLs {
			_ = l.Stats.GetOrCreate(u).GC(ctx)
		}
	}()
	priority := 0
	for _, route := range routes {
		routedURLs = append(routedURLs, route.URL)
		for _, se := range route.StreamEpochs {
			job := dispatchJob{
				url:      route.URL,
				method:   format.EndpointMethod,
				se:       se,
				worker:   worker,
				priority: priority,
			}
			if format.Sorted {
				job.drain = priorityDrain{d: sorted, priority: priority}
			} else {
				job.drain = unsorted
			}
			pool.Submit(job, false)
			priority++
		}
	}

	joinErr := pool.Join(l.StreamingTimeout)

	prepared := false
	if unsorted != nil {
		prepared = unsorted.Prepared()
	} else {
		prepared = sorted.Prepared()
	}

	if errors.Is(joinErr, workerpool.ErrJoinTimeout) {
		if !prepared {
			return httperror.New(httperror.KindStreamingTimeout, "streaming timeout", "no response byte was produced before the deadline")
		}
		// Bytes already reached the client; close the stream as-is and
		// keep the partial response out of the cache.
		return nil
	}

	if format.Sorted {
		// Sorted formats (availability) emit their collected per-stream
		// output inside Flush, in one shot; it still goes through
		// sortedDrain for the shared header/prepared/footer bookkeeping.
		if err := worker.Flush(sortedFlushAdapter{sorted}); err != nil {
			return classifyFlushErr(err)
		}
		if err := sorted.Finish(format.Footer); err != nil {
			return classifyFlushErr(err)
		}
	} else {
		if err := worker.Flush(unsorted); err != nil {
			return classifyFlushErr(err)
		}
		if err := unsorted.Finish(format.Footer); err != nil {
			return classifyFlushErr(err)
		}
	}

	if buf.Len() == 0 {
		return httperror.New(httperror.KindNoContent, "no data", "no worker produced any output")
	}

	if l.Cache != nil {
		_ = l.Cache.Set(ctx, key, buf.Bytes(), l.CacheTTL)
	}
	return nil
}

// classifyFlushErr maps a merge failure to the error taxonomy: a worker
// reporting endpoint.ErrNoData (e.g. availability's distributed-stream
// refusal) renders as the configured no-data status, anything else as an
// internal error.
func classifyFlushErr(err error) *httperror.Error {
	if errors.Is(err, endpoint.ErrNoData) {
		return httperror.New(httperror.KindNoContent, "no data", err.Error())
	}
	return httperror.New(httperror.KindInternal, "merge failed", err.Error())
}

func (l *Lifecycle) resolveRoutes(ctx context.Context, req Request) ([]routingclient.Route, error) {
	if req.UsePOST {
		return l.Routing.QueryPOST(ctx, l.RoutingURL, req.POSTHeaders, req.StreamEpochs, req.DefaultEnd)
	}
	var routes []routingclient.Route
	for _, se := range req.StreamEpochs {
		r, err := l.Routing.QueryGET(ctx, l.RoutingURL, se, req.ExtraParams)
		if err != nil {
			return nil, fmt.Errorf("processor: resolve routes: %w", err)
		}
		routes = append(routes, r...)
	}
	return routes, nil
}

// sortedFlushAdapter adapts a *sortedDrain to the endpoint.Drain interface
// for workers (like availability) that write their whole output in one
// Flush call after the pool has drained; chunks append in call order
// rather than claiming priority slots.
type sortedFlushAdapter struct{ d *sortedDrain }

func (a sortedFlushAdapter) Write(p []byte) (int, error) {
	if err := a.d.WriteSequential(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
