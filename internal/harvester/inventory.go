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
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/eidaws/federator/internal/routing"
	"github.com/eidaws/federator/pkg/sncl"
)

// inventoryChannel is one <Channel> element resolved from a StationXML
// inventory, flattened with the Network/Station attributes a harvested
// ChannelEpoch needs.
type inventoryChannel struct {
	Network, Station, Location, Channel string
	Latitude, Longitude                 float64
	Start                               time.Time
	End                                 *time.Time
	RestrictedStatus                    routing.RestrictedStatus
}

// fetchInventory retrieves and flattens a StationXML document, resolving the
// FDSN wildcards a route names into concrete channel epochs via the
// route's own station service.
func (h *RoutingHarvester) fetchInventory(ctx context.Context, stationURL string) ([]inventoryChannel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build station request: %w", err)
	}
	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch station inventory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("station inventory: status %d", resp.StatusCode)
	}

	dec := xml.NewDecoder(resp.Body)
	var doc *node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse station inventory: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			doc, err = parseNode(dec, start)
			if err != nil {
				return nil, fmt.Errorf("parse station inventory: %w", err)
			}
			break
		}
	}
	if doc == nil {
		return nil, nil
	}

	var out []inventoryChannel
	for _, netNode := range childrenNamed(doc, "Network") {
		netCode := attrOr(netNode, "code", "")
		netStatus := restrictedStatusOf(netNode, routing.StatusOpen)
		for _, staNode := range childrenNamed(netNode, "Station") {
			staCode := attrOr(staNode, "code", "")
			lat, lon := stationLatLon(staNode)
			staStatus := restrictedStatusOf(staNode, netStatus)
			for _, chaNode := range childrenNamed(staNode, "Channel") {
				start, err := sncl.ParseTime(attrOr(chaNode, "startDate", ""))
				if err != nil {
					continue
				}
				var end *time.Time
				if e := attrOr(chaNode, "endDate", ""); e != "" {
					if t, err := sncl.ParseTime(e); err == nil {
						end = &t
					}
				}
				out = append(out, inventoryChannel{
					Network:          netCode,
					Station:          staCode,
					Location:         attrOr(chaNode, "locationCode", ""),
					Channel:          attrOr(chaNode, "code", ""),
					Latitude:         lat,
					Longitude:        lon,
					Start:            start,
					End:              end,
					RestrictedStatus: restrictedStatusOf(chaNode, staStatus),
				})
			}
		}
	}
	return out, nil
}

func stationLatLon(staNode *node) (float64, float64) {
	var lat, lon float64
	if c := childrenNamed(staNode, "Latitude"); len(c) > 0 {
		lat, _ = strconv.ParseFloat(string(c[0].CharData), 64)
	}
	if c := childrenNamed(staNode, "Longitude"); len(c) > 0 {
		lon, _ = strconv.ParseFloat(string(c[0].CharData), 64)
	}
	return lat, lon
}

func restrictedStatusOf(n *node, fallback routing.RestrictedStatus) routing.RestrictedStatus {
	switch attrOr(n, "restrictedStatus", "") {
	case "open":
		return routing.StatusOpen
	case "closed":
		return routing.StatusClosed
	case "partial":
		return routing.StatusPartial
	default:
		return fallback
	}
}
