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

package routing

import (
	"context"
	"sort"

	"github.com/eidaws/federator/pkg/sncl"
)

// Resolver answers route queries against a Repository.
type Resolver struct {
	repo Repository
}

// NewResolver builds a Resolver over repo.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// QueryRoutes resolves one stream-epoch query into routes grouped by
// endpoint: virtual-network expansion, the channel-epoch join, epoch
// intersection, station-service canonicalization, grouping, and sorting.
//
// A resulting boundary is treated as "user supplied" (and so left alone by
// canonicalization) only when it coincides exactly with the top-level
// query's own start/end and that bound was itself marked user-supplied on
// se; every boundary introduced by a join, a virtual-network expansion, or
// an epoch intersection is, by construction, not something the client
// typed, and so is always subject to the +/-1µs offset of step 4.
func (r *Resolver) QueryRoutes(ctx context.Context, se sncl.StreamEpoch, c Criteria) ([]Route, error) {
	c.Stream = se.Stream
	c.Window = se.Epoch

	// Step 1: virtual network expansion.
	queryStreamEpochs := []sncl.StreamEpoch{se}
	if !se.Stream.NetworkIsWildcardOnly() {
		expanded, err := r.repo.FindVirtualExpansion(ctx, se.Stream.Network, se.Epoch, c.Escape)
		if err != nil {
			return nil, err
		}
		if len(expanded) > 0 {
			queryStreamEpochs = expanded
		}
	}

	byEndpoint := make(map[string]*sncl.StreamEpochsHandler)
	endpointOrder := []string{}
	endpointService := make(map[string]ServiceName)

	for _, qse := range queryStreamEpochs {
		crit := c
		crit.Stream = qse.Stream
		rows, err := r.repo.FindRoutingRows(ctx, crit)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			// Step 3: epoch intersection of entity epoch, routing epoch, query window.
			routingEpoch := sncl.Epoch{Start: row.RoutingStart, End: row.RoutingEnd}
			entityEpoch := row.EntityEpoch.AsSNCL()
			clipped, ok := entityEpoch.Intersect(routingEpoch)
			if !ok {
				continue
			}
			clipped, ok = clipped.Intersect(qse.Epoch)
			if !ok {
				continue
			}

			resultSE := sncl.StreamEpoch{
				Stream:            row.Stream,
				Epoch:             clipped,
				UserSuppliedStart: se.UserSuppliedStart && clipped.Start.Equal(se.Epoch.Start),
				UserSuppliedEnd:   se.UserSuppliedEnd && clipped.End != nil && se.Epoch.End != nil && clipped.End.Equal(*se.Epoch.End),
			}

			// At network/station level the emitted sub-codes are wildcards,
			// so every channel under one entity groups into a single hull.
			switch c.Level {
			case LevelNetwork:
				resultSE.Stream.Station = "*"
				resultSE.Stream.Location = "*"
				resultSE.Stream.Channel = "*"
			case LevelStation:
				resultSE.Stream.Location = "*"
				resultSE.Stream.Channel = "*"
			}

			if _, ok := byEndpoint[row.EndpointURL]; !ok {
				byEndpoint[row.EndpointURL] = sncl.NewStreamEpochsHandler()
				endpointOrder = append(endpointOrder, row.EndpointURL)
				endpointService[row.EndpointURL] = row.Service
			}
			byEndpoint[row.EndpointURL].Add(canonicalizeIfStation(resultSE, endpointService[row.EndpointURL]))
		}
	}

	sort.Strings(endpointOrder)

	routes := make([]Route, 0, len(endpointOrder))
	for _, url := range endpointOrder {
		handler := byEndpoint[url]

		// Step 5: grouping/demultiplexing.
		var streamEpochs []sncl.StreamEpoch
		if c.Level == LevelNetwork || c.Level == LevelStation {
			streamEpochs = handler.Hulls()
		} else {
			streamEpochs = handler.Expand()
		}
		if len(streamEpochs) == 0 {
			continue
		}
		routes = append(routes, Route{URL: url, Service: endpointService[url], StreamEpochs: streamEpochs})
	}

	// Step 6: sort groups by URL (already sorted via endpointOrder); each
	// group's contents are sorted inside Hulls()/Expand().
	return routes, nil
}

// canonicalizeIfStation applies the +/-1µs boundary offset to
// non-user-supplied bounds, but only for the station service, so adjacent
// station-level epochs never touch on paper.
func canonicalizeIfStation(se sncl.StreamEpoch, service ServiceName) sncl.StreamEpoch {
	if service != ServiceStation {
		return se
	}
	return se.Canonicalize()
}
