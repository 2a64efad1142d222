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

// Package routing resolves stream-epoch queries into dispatchable routes.
// It owns the entity model backing that resolution (networks, stations,
// channel epochs, endpoints, and the many-to-many routing table joining
// them) and exposes it only through a Repository query interface; rows
// never leak to callers outside this package except as Route values.
package routing

import (
	"time"

	"github.com/eidaws/federator/pkg/sncl"
)

// RestrictedStatus classifies who may read a stream.
type RestrictedStatus string

const (
	StatusOpen    RestrictedStatus = "open"
	StatusClosed  RestrictedStatus = "closed"
	StatusPartial RestrictedStatus = "partial"
)

// EntityLevel is the granularity an Epoch row describes.
type EntityLevel string

const (
	LevelNetwork EntityLevel = "network"
	LevelStation EntityLevel = "station"
	LevelChannel EntityLevel = "channel"
)

// ServiceName is one of the FDSNWS/EIDA service families a Routing row can
// point at.
type ServiceName string

const (
	ServiceStation      ServiceName = "station"
	ServiceDataselect   ServiceName = "dataselect"
	ServiceWFCatalog    ServiceName = "wfcatalog"
	ServiceAvailability ServiceName = "availability"
)

// Access selects which Routing rows a query may use.
type Access string

const (
	AccessAny    Access = "any"
	AccessOpen   Access = "open"
	AccessClosed Access = "closed"
)

// ID is an arena-style integer identifier. Entities reference each other by
// ID, never by pointer, so the store can be backed by a relational table
// without translation.
type ID int64

// Network is the coarsest routed entity.
type Network struct {
	ID   ID
	Code string
}

// NetworkEpoch bounds the validity of a Network row.
type NetworkEpoch struct {
	ID        ID
	NetworkID ID
	Epoch     Epoch
}

// Station belongs to a Network.
type Station struct {
	ID        ID
	NetworkID ID
	Code      string
	Latitude  float64
	Longitude float64
}

// StationEpoch bounds the validity of a Station row.
type StationEpoch struct {
	ID        ID
	StationID ID
	Epoch     Epoch
}

// ChannelEpoch is the finest-grained routed entity: a location+channel code
// under a station, valid over Epoch.
type ChannelEpoch struct {
	ID        ID
	StationID ID
	Location  string
	Channel   string
	Epoch     Epoch
}

// Epoch carries an interval plus restricted status and entity level;
// sncl.Epoch only carries the bare interval, so routing wraps it with
// the fields the resolver and harvester need.
type Epoch struct {
	Start            time.Time
	End              *time.Time
	RestrictedStatus RestrictedStatus
	Type             EntityLevel
}

// AsSNCL converts to the bare interval used by sncl's generic epoch math.
func (e Epoch) AsSNCL() sncl.Epoch { return sncl.Epoch{Start: e.Start, End: e.End} }

// Endpoint is one concrete service URL.
type Endpoint struct {
	ID      ID
	URL     string
	Service ServiceName
}

// Routing many-to-many joins an entity epoch (by EpochID, referencing
// whichever of NetworkEpoch/StationEpoch/ChannelEpoch Level selects) to an
// Endpoint, itself bounded by [Start,End).
type Routing struct {
	ID         ID
	EpochID    ID
	Level      EntityLevel
	EndpointID ID
	Start      time.Time
	End        *time.Time
	LastSeen   time.Time
}

// VirtualChannelEpochGroup names a virtual-network code (e.g. "_ALPARRAY").
type VirtualChannelEpochGroup struct {
	ID   ID
	Code string
}

// VirtualChannelEpoch expands a virtual-network group into one concrete
// stream-epoch.
type VirtualChannelEpoch struct {
	ID      ID
	GroupID ID
	Stream  sncl.Stream
	Epoch   sncl.Epoch
}

// Route is the only shape external callers (the federating processor) ever
// see: one endpoint URL plus the stream-epochs to fetch from it.
type Route struct {
	URL          string
	Service      ServiceName
	StreamEpochs []sncl.StreamEpoch
}
