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

package harvester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eidaws/federator/internal/routing"
	"github.com/eidaws/federator/pkg/sncl"
)

const routingConfigFixture = `<?xml version="1.0" encoding="UTF-8"?>
<ns0:routing xmlns:ns0="http://geofon.gfz-potsdam.de/ns/Routing/1.0/">
  <ns0:route networkCode="GE" stationCode="WLF" locationCode="*" streamCode="BH?">
    <ns0:station address="STATION_URL" priority="1"/>
    <ns0:dataselect address="DATASELECT_URL" priority="1" start="2010-01-01" end=""/>
  </ns0:route>
</ns0:routing>`

const stationXMLFixture = `<?xml version="1.0" encoding="UTF-8"?>
<FDSNStationXML xmlns="http://www.fdsn.org/xml/station/1">
  <Network code="GE" restrictedStatus="open">
    <Station code="WLF" restrictedStatus="open">
      <Latitude>50.1</Latitude>
      <Longitude>6.2</Longitude>
      <Channel code="BHZ" locationCode="" startDate="2010-01-01T00:00:00" restrictedStatus="open"/>
      <Channel code="BHN" locationCode="" startDate="2010-01-01T00:00:00" restrictedStatus="closed"/>
    </Station>
  </Network>
</FDSNStationXML>`

func TestRoutingHarvesterHarvest(t *testing.T) {
	mux := http.NewServeMux()
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	dataselectURL := upstream.URL + "/fdsnws/dataselect/1/query"
	stationURL := upstream.URL + "/fdsnws/station/1/query"

	mux.HandleFunc("/fdsnws/station/1/query", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(stationXMLFixture))
	})
	mux.HandleFunc("/routing-config", func(w http.ResponseWriter, r *http.Request) {
		doc := strings.ReplaceAll(routingConfigFixture, "STATION_URL", stationURL)
		doc = strings.ReplaceAll(doc, "DATASELECT_URL", dataselectURL)
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(doc))
	})

	repo := routing.NewMemStore()
	h := NewRoutingHarvester(repo, upstream.Client(), nil)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := h.Harvest(context.Background(), upstream.URL+"/routing-config", now); err != nil {
		t.Fatalf("Harvest: %v", err)
	}

	rows, err := repo.FindRoutingRows(context.Background(), routing.Criteria{
		Stream:  sncl.Stream{Network: "*", Station: "*", Location: "*", Channel: "*"},
		Window:  sncl.Epoch{Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		Service: routing.ServiceDataselect,
		Level:   routing.LevelChannel,
		Access:  routing.AccessAny,
	})
	if err != nil {
		t.Fatalf("FindRoutingRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 routing rows (BHZ open, BHN closed), got %d", len(rows))
	}

	byChannel := map[string]routing.RoutingRow{}
	for _, r := range rows {
		byChannel[r.Stream.Channel] = r
	}
	if byChannel["BHZ"].EndpointURL != dataselectURL {
		t.Fatalf("expected open channel to keep query token, got %q", byChannel["BHZ"].EndpointURL)
	}
	wantClosed := upstream.URL + "/fdsnws/dataselect/1/queryauth"
	if byChannel["BHN"].EndpointURL != wantClosed {
		t.Fatalf("expected closed channel to use queryauth token, got %q", byChannel["BHN"].EndpointURL)
	}
}

const vnetConfigFixture = `<?xml version="1.0" encoding="UTF-8"?>
<ns0:routing xmlns:ns0="http://geofon.gfz-potsdam.de/ns/Routing/1.0/">
  <ns0:vnetwork networkCode="_ALPARRAY">
    <ns0:stream networkCode="GE" stationCode="WLF" locationCode="*" streamCode="BHZ" start="2010-01-01" end=""/>
  </ns0:vnetwork>
</ns0:routing>`

func TestVNetHarvesterHarvest(t *testing.T) {
	repo := routing.NewMemStore()
	ctx := context.Background()
	netID, _ := repo.UpsertNetwork(ctx, "GE")
	staID, _ := repo.UpsertStation(ctx, netID, "WLF", 50.1, 6.2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := repo.UpsertChannelEpoch(ctx, staID, "", "BHZ", routing.Epoch{Start: start, Type: routing.LevelChannel, RestrictedStatus: routing.StatusOpen}, now); err != nil {
		t.Fatalf("UpsertChannelEpoch: %v", err)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(vnetConfigFixture))
	}))
	defer upstream.Close()

	vh := NewVNetHarvester(repo, upstream.Client(), nil)
	if err := vh.Harvest(ctx, upstream.URL, now); err != nil {
		t.Fatalf("Harvest: %v", err)
	}

	expansion, err := repo.FindVirtualExpansion(ctx, "_ALPARRAY", sncl.Epoch{Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}, "")
	if err != nil {
		t.Fatalf("FindVirtualExpansion: %v", err)
	}
	if len(expansion) != 1 {
		t.Fatalf("expected 1 virtual stream-epoch, got %d", len(expansion))
	}
	if expansion[0].Stream.Channel != "BHZ" {
		t.Fatalf("unexpected expansion: %+v", expansion[0])
	}
}

func TestSchedulerStartStop(t *testing.T) {
	repo := routing.NewMemStore()
	sched := NewScheduler(repo, NewRoutingHarvester(repo, nil, nil), NewVNetHarvester(repo, nil, nil), time.Hour, 0, "", nil)
	if err := sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sched.Stop()
}
