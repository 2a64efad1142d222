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
	"errors"
	"time"

	"github.com/eidaws/federator/pkg/sncl"
)

// BBox is a spatial constraint on station latitude/longitude.
type BBox struct {
	MinLatitude, MaxLatitude   float64
	MinLongitude, MaxLongitude float64
}

// Valid reports the invariant min < max on both axes.
func (b BBox) Valid() bool {
	return b.MinLatitude < b.MaxLatitude && b.MinLongitude < b.MaxLongitude
}

// ErrInvalidService and ErrInvalidSpatialConstraints classify resolution
// failures the client caused, so HTTP surfaces can render them as a 400
// rather than a store failure.
var (
	ErrInvalidService            = errors.New("routing: invalid service")
	ErrInvalidSpatialConstraints = errors.New("routing: invalid spatial constraints")
)

// Criteria is the resolver's query shape, the join filter over the store.
type Criteria struct {
	Stream       sncl.Stream
	Window       sncl.Epoch
	Service      ServiceName
	Level        EntityLevel
	Access       Access
	MethodFilter string
	BBox         *BBox
	Escape       string
}

// RoutingRow is one joined (entity epoch, routing epoch, endpoint) triple,
// the unit of work resolution operates on. Repository
// implementations emit these pre-filtered by Criteria; the intersection,
// canonicalization, and grouping steps stay backend-independent in query.go.
type RoutingRow struct {
	Stream       sncl.Stream
	EntityEpoch  Epoch
	RoutingStart time.Time
	RoutingEnd   *time.Time
	EndpointURL  string
	Service      ServiceName
}

// Repository is the query surface query.go needs from whatever backs the
// routing store (a relational schema, or an in-memory index for tests and
// the zero-config default). Implementations never surface raw entity rows beyond
// this shape.
type Repository interface {
	// FindVirtualExpansion resolves a (possibly wildcarded) virtual-network
	// code into the concrete stream-epochs it expands to over window,
	// clipped to both the virtual entry and window.
	FindVirtualExpansion(ctx context.Context, code string, window sncl.Epoch, escape string) ([]sncl.StreamEpoch, error)

	// FindRoutingRows performs the channel-epoch join and returns
	// candidate rows; epoch intersection is left to
	// the caller since it is the same arithmetic regardless of backend.
	FindRoutingRows(ctx context.Context, c Criteria) ([]RoutingRow, error)
}

// ChannelEpochMatch is one ChannelEpoch row matching a wildcarded stream
// definition, independent of any routed service. The virtual-network
// harvester joins directly against channel epochs this way; a vnetwork
// expansion is not itself routed to an endpoint.
type ChannelEpochMatch struct {
	ID     ID
	Stream sncl.Stream
	Epoch  Epoch
}

// HarvestRepository is the write-side surface used only by the harvester;
// kept separate from Repository so request-path code can never
// accidentally mutate routing state.
type HarvestRepository interface {
	Repository

	UpsertNetwork(ctx context.Context, code string) (ID, error)
	UpsertStation(ctx context.Context, networkID ID, code string, lat, lon float64) (ID, error)
	UpsertChannelEpoch(ctx context.Context, stationID ID, location, channel string, epoch Epoch, now time.Time) (ID, error)
	UpsertEndpoint(ctx context.Context, url string, service ServiceName) (ID, error)
	UpsertRouting(ctx context.Context, epochID ID, level EntityLevel, endpointID ID, start time.Time, end *time.Time, now time.Time) error
	UpsertVirtualChannelEpoch(ctx context.Context, groupCode string, stream sncl.Stream, epoch sncl.Epoch) error

	// FindChannelEpochs resolves a wildcarded stream over window directly
	// against ChannelEpoch rows, bypassing the Routing join FindRoutingRows
	// performs.
	FindChannelEpochs(ctx context.Context, stream sncl.Stream, window sncl.Epoch, escape string) ([]ChannelEpochMatch, error)

	// Truncate deletes every row whose LastSeen is before cutoff, the
	// harvester's periodic stale-row sweep.
	Truncate(ctx context.Context, cutoff time.Time) (int64, error)
}
