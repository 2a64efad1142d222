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

package routingclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eidaws/federator/internal/stats"
	"github.com/eidaws/federator/pkg/sncl"
)

const sampleRoutingResponse = `http://eida.ethz.ch/fdsnws/dataselect/1/query
CH HASLI -- LHZ 2019-01-01T00:00:00 2019-01-05T00:00:00

http://eida.bgr.de/fdsnws/dataselect/1/query
GR BFO -- BHZ 2019-01-01T00:00:00 2019-01-05T00:00:00
`

func mustStreamEpoch(t *testing.T) sncl.StreamEpoch {
	t.Helper()
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 1, 5, 0, 0, 0, 0, time.UTC)
	return sncl.StreamEpoch{
		Stream: sncl.Stream{Network: "CH", Station: "HASLI", Location: "--", Channel: "LHZ"},
		Epoch:  sncl.Epoch{Start: start, End: &end},
	}
}

func TestParseRoutingResponse(t *testing.T) {
	routes, err := ParseRoutingResponse(strings.NewReader(sampleRoutingResponse))
	if err != nil {
		t.Fatalf("ParseRoutingResponse: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].URL != "http://eida.ethz.ch/fdsnws/dataselect/1/query" {
		t.Fatalf("unexpected first url: %s", routes[0].URL)
	}
	if len(routes[0].StreamEpochs) != 1 || routes[0].StreamEpochs[0].Stream.Station != "HASLI" {
		t.Fatalf("unexpected first block: %+v", routes[0])
	}
	if routes[1].StreamEpochs[0].Stream.Station != "BFO" {
		t.Fatalf("unexpected second block: %+v", routes[1])
	}
}

func TestParseRoutingResponseRejectsMalformedLine(t *testing.T) {
	_, err := ParseRoutingResponse(strings.NewReader("http://x/query\nnot a valid sncl line\n"))
	if err == nil {
		t.Fatalf("expected an error for a malformed SNCL line")
	}
}

func TestQueryGETFiltersOverThresholdEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRoutingResponse))
	}))
	defer server.Close()

	backend := stats.NewFakeBackend()
	store := stats.NewStore(backend, stats.Config{WindowSize: 10, TTL: time.Hour, Threshold: 0.1})

	ctx := context.Background()
	blockedCounter := store.GetOrCreate("http://eida.ethz.ch/fdsnws/dataselect/1/query")
	for i := 0; i < 5; i++ {
		if err := blockedCounter.Append(ctx, 503); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	client := NewClient(server.Client(), store, DurationLimits{})
	routes, err := client.QueryGET(ctx, server.URL, mustStreamEpoch(t), nil)
	if err != nil {
		t.Fatalf("QueryGET: %v", err)
	}
	if len(routes) != 1 || routes[0].URL != "http://eida.bgr.de/fdsnws/dataselect/1/query" {
		t.Fatalf("expected only the non-degraded endpoint, got %+v", routes)
	}
}

func TestQueryGETEnforcesPerStreamDurationLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRoutingResponse))
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, DurationLimits{PerStream: time.Hour})
	_, err := client.QueryGET(context.Background(), server.URL, mustStreamEpoch(t), nil)
	var tooLarge *ErrTooLarge
	if err == nil {
		t.Fatalf("expected ErrTooLarge")
	}
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected *ErrTooLarge, got %v (%T)", err, err)
	}
	if tooLarge.Limit != "max_stream_epoch_duration" {
		t.Fatalf("unexpected limit name: %s", tooLarge.Limit)
	}
}

func TestQueryGETEnforcesTotalDurationLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRoutingResponse))
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, DurationLimits{Total: time.Hour})
	_, err := client.QueryGET(context.Background(), server.URL, mustStreamEpoch(t), nil)
	var tooLarge *ErrTooLarge
	if err == nil {
		t.Fatalf("expected ErrTooLarge")
	}
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected *ErrTooLarge, got %v (%T)", err, err)
	}
	if tooLarge.Limit != "max_stream_epoch_duration_total" {
		t.Fatalf("unexpected limit name: %s", tooLarge.Limit)
	}
}

func TestQueryGETNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, DurationLimits{})
	routes, err := client.QueryGET(context.Background(), server.URL, mustStreamEpoch(t), nil)
	if err != nil {
		t.Fatalf("QueryGET: %v", err)
	}
	if routes != nil {
		t.Fatalf("expected nil routes on 204, got %+v", routes)
	}
}

func TestQueryPOSTSubstitutesDefaultEndOnlyWhenOmitted(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		_, _ = w.Write([]byte(sampleRoutingResponse))
	}))
	defer server.Close()

	open := sncl.StreamEpoch{
		Stream: sncl.Stream{Network: "GR", Station: "BFO", Location: "--", Channel: "BHZ"},
		Epoch:  sncl.Epoch{Start: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	defaultEnd := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	client := NewClient(server.Client(), nil, DurationLimits{})
	_, err := client.QueryPOST(context.Background(), server.URL, nil, []sncl.StreamEpoch{open}, defaultEnd)
	if err != nil {
		t.Fatalf("QueryPOST: %v", err)
	}
	if !strings.Contains(gotBody, "2020-06-01T00:00:00") {
		t.Fatalf("expected substituted default end in POST body, got %q", gotBody)
	}
}
