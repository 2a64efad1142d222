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
	"fmt"
	"time"

	"github.com/eidaws/federator/internal/endpoint"
	"github.com/eidaws/federator/internal/routingclient"
	"github.com/eidaws/federator/pkg/sncl"
)

// errDistributedStream wraps endpoint.ErrNoData so the refusal renders as
// the configured no-data status rather than a server error.
var errDistributedStream = fmt.Errorf("processor: distributed stream epochs not allowed: %w", endpoint.ErrNoData)

type streamHull struct {
	url   string
	start time.Time
	end   *time.Time
	open  bool
}

// reduceToExtent collapses each logical stream's granular sub-epochs,
// across every route, into a single stream-epoch covering their hull
// (earliest start; latest end, or open if any sub-epoch is open), so an
// availability extent query issues exactly one upstream request per
// stream at the combined window. A stream whose sub-epochs are served by
// more than one endpoint cannot be reduced and fails the whole request
// with errDistributedStream.
func reduceToExtent(routes []routingclient.Route) ([]routingclient.Route, error) {
	byStream := make(map[sncl.Stream]*streamHull)
	streamsByURL := make(map[string][]sncl.Stream)
	var urlOrder []string

	for _, route := range routes {
		for _, se := range route.StreamEpochs {
			h, seen := byStream[se.Stream]
			if !seen {
				h = &streamHull{url: route.URL, start: se.Epoch.Start}
				byStream[se.Stream] = h
				if _, ok := streamsByURL[route.URL]; !ok {
					urlOrder = append(urlOrder, route.URL)
				}
				streamsByURL[route.URL] = append(streamsByURL[route.URL], se.Stream)
			} else if h.url != route.URL {
				return nil, errDistributedStream
			}

			if se.Epoch.Start.Before(h.start) {
				h.start = se.Epoch.Start
			}
			if se.Epoch.End == nil {
				h.open = true
			} else if !h.open && (h.end == nil || se.Epoch.End.After(*h.end)) {
				end := *se.Epoch.End
				h.end = &end
			}
		}
	}

	out := make([]routingclient.Route, 0, len(urlOrder))
	for _, url := range urlOrder {
		reduced := routingclient.Route{URL: url}
		for _, stream := range streamsByURL[url] {
			h := byStream[stream]
			se := sncl.StreamEpoch{Stream: stream, Epoch: sncl.Epoch{Start: h.start}}
			if !h.open {
				se.Epoch.End = h.end
			}
			reduced.StreamEpochs = append(reduced.StreamEpochs, se)
		}
		out = append(out, reduced)
	}
	return out, nil
}
