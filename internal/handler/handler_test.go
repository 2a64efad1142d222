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

package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eidaws/federator/internal/cache"
	"github.com/eidaws/federator/internal/endpoint/stationxml"
	"github.com/eidaws/federator/internal/processor"
	"github.com/eidaws/federator/internal/routing"
	"github.com/eidaws/federator/internal/routingclient"
	"github.com/eidaws/federator/internal/routingservice"
	"github.com/eidaws/federator/internal/stats"
)

func TestServiceHandlerStationText(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#Network Station Location Channel\nGE WLF -- BHZ 1.0 2.0\n")
	}))
	defer upstream.Close()

	ctx := context.Background()
	store := routing.NewMemStore()
	netID, _ := store.UpsertNetwork(ctx, "GE")
	staID, _ := store.UpsertStation(ctx, netID, "WLF", 50.0, 6.0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	epochID, _ := store.UpsertChannelEpoch(ctx, staID, "", "BHZ", routing.Epoch{Start: start, Type: routing.LevelChannel, RestrictedStatus: routing.StatusOpen}, now)
	endpointID, _ := store.UpsertEndpoint(ctx, upstream.URL, routing.ServiceStation)
	if err := store.UpsertRouting(ctx, epochID, routing.LevelChannel, endpointID, start, nil, now); err != nil {
		t.Fatalf("UpsertRouting: %v", err)
	}

	routingSrv := httptest.NewServer(routingservice.NewHandler(routing.NewResolver(store), "", nil))
	defer routingSrv.Close()

	routingClient := routingclient.NewClient(http.DefaultClient, stats.NewStore(stats.NewFakeBackend(), stats.Config{TTL: time.Minute}), routingclient.DurationLimits{})

	lifecycle := &processor.Lifecycle{
		Cache:            cache.Null{},
		Routing:          routingClient,
		RoutingURL:       routingSrv.URL,
		Stats:            stats.NewStore(stats.NewFakeBackend(), stats.Config{TTL: time.Minute}),
		HTTPClient:       http.DefaultClient,
		PoolSize:         4,
		StreamingTimeout: 5 * time.Second,
		SplittingFactor:  2,
		MinSplitDuration: time.Second,
		MaxSplitDepth:    3,
		NoDataStatus:     http.StatusNoContent,
	}

	h := NewServiceHandler(lifecycle, "station", StationFormats(stationxml.LevelChannel), "text", nil)

	r := httptest.NewRequest("GET", "/fdsnws/station/1/query?net=GE&sta=WLF&loc=*&cha=BHZ&start=2020-01-01&format=text", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "GE WLF -- BHZ 1.0 2.0\n" {
		t.Fatalf("unexpected body: %q", w.Body.String())
	}
}

func TestServiceHandlerUnsupportedFormat(t *testing.T) {
	lifecycle := &processor.Lifecycle{
		Cache:        cache.Null{},
		NoDataStatus: http.StatusNoContent,
	}
	h := NewServiceHandler(lifecycle, "station", StationFormats(stationxml.LevelChannel), "text", nil)
	r := httptest.NewRequest("GET", "/fdsnws/station/1/query?net=GE&sta=WLF&loc=*&cha=BHZ&start=2020-01-01&format=bogus", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", w.Code)
	}
}

// rawHitCache serves one fixed blob for every raw Get, standing in for a
// compressing backend with the response already stored.
type rawHitCache struct {
	cache.Null
	blob []byte
}

func (c rawHitCache) Get(_ context.Context, _ string, raw bool) ([]byte, bool, error) {
	if raw {
		return c.blob, true, nil
	}
	return nil, false, nil
}

func TestServiceHandlerServesCompressedCacheHit(t *testing.T) {
	blob := []byte("\x1f\x8b-compressed-bytes")
	lifecycle := &processor.Lifecycle{
		Cache:           rawHitCache{blob: blob},
		CacheCompressed: true,
		NoDataStatus:    http.StatusNoContent,
	}
	h := NewServiceHandler(lifecycle, "station", StationFormats(stationxml.LevelChannel), "text", nil)

	r := httptest.NewRequest("GET", "/fdsnws/station/1/query?net=GE&sta=WLF&loc=*&cha=BHZ&start=2020-01-01&format=text", nil)
	r.Header.Set("Accept-Encoding", "gzip, deflate")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("expected Content-Encoding: gzip, got %q", got)
	}
	if w.Body.String() != string(blob) {
		t.Fatalf("expected the stored blob verbatim, got %q", w.Body.String())
	}
}

func TestServiceHandlerRejectsOversizedPOSTBody(t *testing.T) {
	lifecycle := &processor.Lifecycle{
		Cache:        cache.Null{},
		NoDataStatus: http.StatusNoContent,
	}
	h := NewServiceHandler(lifecycle, "station", StationFormats(stationxml.LevelChannel), "text", nil)
	h.ClientMaxSize = 16

	body := "format=text\nGE WLF -- BHZ 2020-01-01 2020-01-02\n"
	r := httptest.NewRequest("POST", "/fdsnws/station/1/query", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized body, got %d", w.Code)
	}
}
