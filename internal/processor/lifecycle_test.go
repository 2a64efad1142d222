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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eidaws/federator/internal/cache"
	"github.com/eidaws/federator/internal/endpoint"
	"github.com/eidaws/federator/internal/endpoint/simple"
	"github.com/eidaws/federator/internal/httperror"
	"github.com/eidaws/federator/internal/routingclient"
	"github.com/eidaws/federator/internal/stats"
	"github.com/eidaws/federator/pkg/sncl"
)

func newLifecycle(t *testing.T, endpointBody string) (*Lifecycle, func()) {
	t.Helper()
	endpointServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(endpointBody))
	}))

	routingResp := "http://" + endpointServer.Listener.Addr().String() + "/query\n" +
		"CH HASLI -- LHZ 2019-01-01T00:00:00 2019-01-05T00:00:00\n"
	routingServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(routingResp))
	}))

	backend := stats.NewFakeBackend()
	store := stats.NewStore(backend, stats.Config{WindowSize: 20, TTL: time.Hour, Threshold: 0.9})
	client := routingclient.NewClient(routingServer.Client(), store, routingclient.DurationLimits{})

	l := &Lifecycle{
		Cache:            &cache.Null{},
		Routing:          client,
		RoutingURL:       routingServer.URL,
		Stats:            store,
		HTTPClient:       endpointServer.Client(),
		PoolSize:         2,
		StreamingTimeout: 5 * time.Second,
		SplittingFactor:  2,
		MinSplitDuration: time.Second,
		MaxSplitDepth:    3,
	}
	cleanup := func() {
		endpointServer.Close()
		routingServer.Close()
	}
	return l, cleanup
}

func textFormat() Format {
	return Format{
		Tag:            "station-text",
		Header:         []byte("#Network|Station|Location|Channel\n"),
		NewWorker:      func() endpoint.Worker { return simple.New(simple.FormatText) },
		EndpointMethod: http.MethodGet,
	}
}

func TestLifecycleRunStreamsEndpointBodyThroughFormat(t *testing.T) {
	l, cleanup := newLifecycle(t, "#comment\nCH|HASLI|--|LHZ\n")
	defer cleanup()

	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 1, 5, 0, 0, 0, 0, time.UTC)
	req := Request{
		StreamEpochs: []sncl.StreamEpoch{{
			Stream: sncl.Stream{Network: "CH", Station: "HASLI", Location: "--", Channel: "LHZ"},
			Epoch:  sncl.Epoch{Start: start, End: &end},
		}},
	}

	var out bytes.Buffer
	err := l.Run(context.Background(), req, textFormat(), &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "#Network|Station|Location|Channel\n") {
		t.Fatalf("expected header, got %q", out.String())
	}
	if !strings.Contains(out.String(), "CH|HASLI|--|LHZ") {
		t.Fatalf("expected merged body, got %q", out.String())
	}
}

func TestLifecycleRunReturnsNoContentWhenRoutingEmpty(t *testing.T) {
	routingServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer routingServer.Close()

	backend := stats.NewFakeBackend()
	store := stats.NewStore(backend, stats.Config{WindowSize: 20, TTL: time.Hour, Threshold: 0.9})
	client := routingclient.NewClient(routingServer.Client(), store, routingclient.DurationLimits{})

	l := &Lifecycle{
		Cache:            &cache.Null{},
		Routing:          client,
		RoutingURL:       routingServer.URL,
		Stats:            store,
		HTTPClient:       http.DefaultClient,
		PoolSize:         1,
		StreamingTimeout: time.Second,
	}

	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	req := Request{StreamEpochs: []sncl.StreamEpoch{{
		Stream: sncl.Stream{Network: "FOO", Station: "BAR", Location: "--", Channel: "LHZ"},
		Epoch:  sncl.Epoch{Start: start},
	}}}

	var out bytes.Buffer
	err := l.Run(context.Background(), req, textFormat(), &out)
	herr, ok := err.(*httperror.Error)
	if !ok {
		t.Fatalf("expected *httperror.Error, got %v (%T)", err, err)
	}
	if herr.Kind != httperror.KindNoContent {
		t.Fatalf("expected KindNoContent, got %v", herr.Kind)
	}
}

func TestLifecycleRunServesFromCacheOnHit(t *testing.T) {
	l, cleanup := newLifecycle(t, "#comment\nCH|HASLI|--|LHZ\n")
	defer cleanup()

	memCache := newMemCache()
	l.Cache = memCache

	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 1, 5, 0, 0, 0, 0, time.UTC)
	req := Request{
		StreamEpochs: []sncl.StreamEpoch{{
			Stream: sncl.Stream{Network: "CH", Station: "HASLI", Location: "--", Channel: "LHZ"},
			Epoch:  sncl.Epoch{Start: start, End: &end},
		}},
	}

	var first bytes.Buffer
	if err := l.Run(context.Background(), req, textFormat(), &first); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	var second bytes.Buffer
	if err := l.Run(context.Background(), req, textFormat(), &second); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("expected cache hit to reproduce the first response byte-for-byte")
	}
	if memCache.gets < 2 {
		t.Fatalf("expected the cache to be consulted on both requests")
	}
}

// signalWriter closes signal on the first byte written, so tests can
// observe streaming output while Run is still blocked on other
// sub-requests.
type signalWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	signal chan struct{}
	once   sync.Once
}

func (w *signalWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	if w.buf.Len() > 0 {
		w.once.Do(func() { close(w.signal) })
	}
	return n, err
}

func (w *signalWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// newSplitLifecycle wires a routing store answering one query with two
// stream-epochs on one endpoint; the endpoint answers the LHZ sub-request
// immediately and holds the LHN one until release is closed (or its
// request context is cancelled).
func newSplitLifecycle(t *testing.T, release chan struct{}) (*Lifecycle, Request, func()) {
	t.Helper()
	endpointSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("channel") == "LHN" {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte("#c\nfast-row\n"))
	}))

	routingResp := "http://" + endpointSrv.Listener.Addr().String() + "/query\n" +
		"CH HASLI -- LHZ 2019-01-01T00:00:00 2019-01-05T00:00:00\n" +
		"CH HASLI -- LHN 2019-01-01T00:00:00 2019-01-05T00:00:00\n"
	routingSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(routingResp))
	}))

	store := stats.NewStore(stats.NewFakeBackend(), stats.Config{WindowSize: 20, TTL: time.Hour, Threshold: 0.9})
	client := routingclient.NewClient(routingSrv.Client(), store, routingclient.DurationLimits{})

	l := &Lifecycle{
		Cache:            &cache.Null{},
		Routing:          client,
		RoutingURL:       routingSrv.URL,
		Stats:            store,
		HTTPClient:       endpointSrv.Client(),
		PoolSize:         2,
		StreamingTimeout: 5 * time.Second,
	}

	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 1, 5, 0, 0, 0, 0, time.UTC)
	req := Request{StreamEpochs: []sncl.StreamEpoch{{
		Stream: sncl.Stream{Network: "CH", Station: "HASLI", Location: "--", Channel: "*"},
		Epoch:  sncl.Epoch{Start: start, End: &end},
	}}}
	cleanup := func() {
		endpointSrv.Close()
		routingSrv.Close()
	}
	return l, req, cleanup
}

func TestLifecycleRunStreamsBytesBeforeCompletion(t *testing.T) {
	release := make(chan struct{})
	l, req, cleanup := newSplitLifecycle(t, release)
	defer cleanup()

	firstByte := make(chan struct{})
	w := &signalWriter{signal: firstByte}
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), req, textFormat(), w) }()

	select {
	case <-firstByte:
	case <-time.After(3 * time.Second):
		t.Fatal("no byte was streamed while a sub-request was still in flight")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(w.String(), "fast-row") {
		t.Fatalf("expected streamed body, got %q", w.String())
	}
}

func TestLifecycleRunTimeoutClosesPartialStreamAsIs(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	l, req, cleanup := newSplitLifecycle(t, release)
	defer cleanup()
	l.StreamingTimeout = 300 * time.Millisecond

	memCache := newMemCache()
	l.Cache = memCache

	firstByte := make(chan struct{})
	w := &signalWriter{signal: firstByte}
	err := l.Run(context.Background(), req, textFormat(), w)
	if err != nil {
		t.Fatalf("expected the partial stream to close without error, got %v", err)
	}
	if !strings.Contains(w.String(), "fast-row") {
		t.Fatalf("expected the completed sub-request's bytes on the wire, got %q", w.String())
	}
	if len(memCache.data) != 0 {
		t.Fatalf("expected the partial response to stay out of the cache")
	}
}
