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
	"errors"
	"testing"
	"time"

	"github.com/eidaws/federator/internal/endpoint"
	"github.com/eidaws/federator/internal/routingclient"
	"github.com/eidaws/federator/pkg/sncl"
)

func extentSE(cha string, start, end time.Time, hasEnd bool) sncl.StreamEpoch {
	se := sncl.StreamEpoch{
		Stream: sncl.Stream{Network: "CH", Station: "HASLI", Location: "--", Channel: cha},
		Epoch:  sncl.Epoch{Start: start},
	}
	if hasEnd {
		se.Epoch.End = &end
	}
	return se
}

func TestReduceToExtentCollapsesGranularEpochsToHull(t *testing.T) {
	d1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2019, 1, 3, 0, 0, 0, 0, time.UTC)
	d4 := time.Date(2019, 1, 5, 0, 0, 0, 0, time.UTC)

	routes := []routingclient.Route{
		{URL: "http://a", StreamEpochs: []sncl.StreamEpoch{extentSE("LHZ", d1, d2, true)}},
		{URL: "http://a", StreamEpochs: []sncl.StreamEpoch{extentSE("LHZ", d3, d4, true)}},
	}
	reduced, err := reduceToExtent(routes)
	if err != nil {
		t.Fatalf("reduceToExtent: %v", err)
	}
	if len(reduced) != 1 || len(reduced[0].StreamEpochs) != 1 {
		t.Fatalf("expected one route with one stream-epoch, got %+v", reduced)
	}
	hull := reduced[0].StreamEpochs[0]
	if !hull.Epoch.Start.Equal(d1) {
		t.Fatalf("expected hull start %v, got %v", d1, hull.Epoch.Start)
	}
	if hull.Epoch.End == nil || !hull.Epoch.End.Equal(d4) {
		t.Fatalf("expected hull end %v, got %v", d4, hull.Epoch.End)
	}
}

func TestReduceToExtentOpenSubEpochOpensHull(t *testing.T) {
	d1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)

	routes := []routingclient.Route{
		{URL: "http://a", StreamEpochs: []sncl.StreamEpoch{
			extentSE("LHZ", d1, d2, true),
			extentSE("LHZ", d2, d2, false),
		}},
	}
	reduced, err := reduceToExtent(routes)
	if err != nil {
		t.Fatalf("reduceToExtent: %v", err)
	}
	if reduced[0].StreamEpochs[0].Epoch.End != nil {
		t.Fatalf("expected open hull end, got %v", reduced[0].StreamEpochs[0].Epoch.End)
	}
}

func TestReduceToExtentKeepsDistinctStreamsSeparate(t *testing.T) {
	d1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)

	routes := []routingclient.Route{
		{URL: "http://a", StreamEpochs: []sncl.StreamEpoch{
			extentSE("LHZ", d1, d2, true),
			extentSE("LHN", d1, d2, true),
		}},
	}
	reduced, err := reduceToExtent(routes)
	if err != nil {
		t.Fatalf("reduceToExtent: %v", err)
	}
	if len(reduced) != 1 || len(reduced[0].StreamEpochs) != 2 {
		t.Fatalf("expected both streams kept on one route, got %+v", reduced)
	}
}

func TestReduceToExtentRejectsDistributedStream(t *testing.T) {
	d1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2019, 1, 3, 0, 0, 0, 0, time.UTC)

	routes := []routingclient.Route{
		{URL: "http://a", StreamEpochs: []sncl.StreamEpoch{extentSE("LHZ", d1, d2, true)}},
		{URL: "http://b", StreamEpochs: []sncl.StreamEpoch{extentSE("LHZ", d2, d3, true)}},
	}
	_, err := reduceToExtent(routes)
	if !errors.Is(err, endpoint.ErrNoData) {
		t.Fatalf("expected a no-data classification, got %v", err)
	}
}
