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
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/eidaws/federator/pkg/sncl"
)

// MemStore is an in-memory HarvestRepository, the reference implementation
// used by query.go's tests and returned by Open when no driver/DSN is
// configured. It performs
// the same LIKE-style wildcard join the SQL backend does, using regexp
// translated from the FDSNWS wildcards instead of a database engine.
type MemStore struct {
	mu sync.RWMutex

	networks  map[ID]*Network
	stations  map[ID]*Station
	channels  map[ID]*ChannelEpoch
	endpoints map[ID]*Endpoint
	routings  []*Routing
	vgroups   map[string]ID
	vepochs   []*VirtualChannelEpoch

	byNetworkCode map[string]ID
	byStationKey  map[stationKey]ID
	nextID        ID
}

type stationKey struct {
	networkID ID
	code      string
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		networks:      make(map[ID]*Network),
		stations:      make(map[ID]*Station),
		channels:      make(map[ID]*ChannelEpoch),
		endpoints:     make(map[ID]*Endpoint),
		vgroups:       make(map[string]ID),
		byNetworkCode: make(map[string]ID),
		byStationKey:  make(map[stationKey]ID),
	}
}

func (s *MemStore) allocID() ID {
	s.nextID++
	return s.nextID
}

// UpsertNetwork implements HarvestRepository.
func (s *MemStore) UpsertNetwork(_ context.Context, code string) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byNetworkCode[code]; ok {
		return id, nil
	}
	id := s.allocID()
	s.networks[id] = &Network{ID: id, Code: code}
	s.byNetworkCode[code] = id
	return id, nil
}

// UpsertStation implements HarvestRepository.
func (s *MemStore) UpsertStation(_ context.Context, networkID ID, code string, lat, lon float64) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stationKey{networkID, code}
	if id, ok := s.byStationKey[key]; ok {
		st := s.stations[id]
		st.Latitude, st.Longitude = lat, lon
		return id, nil
	}
	id := s.allocID()
	s.stations[id] = &Station{ID: id, NetworkID: networkID, Code: code, Latitude: lat, Longitude: lon}
	s.byStationKey[key] = id
	return id, nil
}

// UpsertChannelEpoch implements HarvestRepository. Overlapping (not
// identical) intervals for the same (station, location, channel) are
// treated as updates: the older row is replaced and
// its Routing rows cascade-deleted.
func (s *MemStore) UpsertChannelEpoch(_ context.Context, stationID ID, location, channel string, epoch Epoch, now time.Time) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ce := range s.channels {
		if ce.StationID != stationID || ce.Location != location || ce.Channel != channel {
			continue
		}
		if sameEpoch(ce.Epoch, epoch) {
			return id, nil // identical: caller bumps LastSeen on the Routing rows that reference it
		}
		if ce.Epoch.AsSNCL().Overlaps(epoch.AsSNCL()) {
			s.deleteChannelEpochCascade(id)
		}
	}
	id := s.allocID()
	s.channels[id] = &ChannelEpoch{ID: id, StationID: stationID, Location: location, Channel: channel, Epoch: epoch}
	return id, nil
}

func sameEpoch(a, b Epoch) bool {
	if !a.Start.Equal(b.Start) {
		return false
	}
	if (a.End == nil) != (b.End == nil) {
		return false
	}
	if a.End != nil && !a.End.Equal(*b.End) {
		return false
	}
	return a.RestrictedStatus == b.RestrictedStatus
}

func (s *MemStore) deleteChannelEpochCascade(channelEpochID ID) {
	delete(s.channels, channelEpochID)
	kept := s.routings[:0]
	for _, r := range s.routings {
		if r.Level == LevelChannel && r.EpochID == channelEpochID {
			continue
		}
		kept = append(kept, r)
	}
	s.routings = kept
}

// UpsertEndpoint implements HarvestRepository.
func (s *MemStore) UpsertEndpoint(_ context.Context, url string, service ServiceName) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ep := range s.endpoints {
		if ep.URL == url && ep.Service == service {
			return id, nil
		}
	}
	id := s.allocID()
	s.endpoints[id] = &Endpoint{ID: id, URL: url, Service: service}
	return id, nil
}

// UpsertRouting implements HarvestRepository. Overlapping intervals for the
// same (epoch, endpoint) pair are collapsed by union so they stay disjoint.
func (s *MemStore) UpsertRouting(_ context.Context, epochID ID, level EntityLevel, endpointID ID, start time.Time, end *time.Time, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.routings {
		if r.EpochID != epochID || r.EndpointID != endpointID {
			continue
		}
		a := sncl.Epoch{Start: r.Start, End: r.End}
		b := sncl.Epoch{Start: start, End: end}
		if a.Overlaps(b) {
			if start.Before(r.Start) {
				r.Start = start
			}
			if r.End != nil && end != nil && end.After(*r.End) {
				r.End = end
			} else if end == nil {
				r.End = nil
			}
			r.LastSeen = now
			return nil
		}
	}
	s.routings = append(s.routings, &Routing{
		ID: s.allocID(), EpochID: epochID, Level: level, EndpointID: endpointID,
		Start: start, End: end, LastSeen: now,
	})
	return nil
}

// UpsertVirtualChannelEpoch implements HarvestRepository.
func (s *MemStore) UpsertVirtualChannelEpoch(_ context.Context, groupCode string, stream sncl.Stream, epoch sncl.Epoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gid, ok := s.vgroups[groupCode]
	if !ok {
		gid = s.allocID()
		s.vgroups[groupCode] = gid
	}
	for _, v := range s.vepochs {
		if v.GroupID == gid && v.Stream == stream && v.Epoch.Start.Equal(epoch.Start) {
			v.Epoch = epoch
			return nil
		}
	}
	s.vepochs = append(s.vepochs, &VirtualChannelEpoch{ID: s.allocID(), GroupID: gid, Stream: stream, Epoch: epoch})
	return nil
}

// Truncate implements HarvestRepository.
func (s *MemStore) Truncate(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.routings[:0]
	for _, r := range s.routings {
		if r.LastSeen.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.routings = kept
	return n, nil
}

// FindVirtualExpansion implements Repository.
func (s *MemStore) FindVirtualExpansion(_ context.Context, code string, window sncl.Epoch, escape string) ([]sncl.StreamEpoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gid, ok := s.vgroups[code]
	if !ok {
		return nil, nil
	}
	var out []sncl.StreamEpoch
	for _, v := range s.vepochs {
		if v.GroupID != gid {
			continue
		}
		if !v.Epoch.Overlaps(window) {
			continue
		}
		clipped, ok := v.Epoch.Intersect(window)
		if !ok {
			continue
		}
		out = append(out, sncl.StreamEpoch{Stream: v.Stream, Epoch: clipped})
	}
	return out, nil
}

// FindRoutingRows implements Repository, performing the channel/station/
// network-epoch join with wildcard, service, bbox,
// access, and method-filter predicates.
func (s *MemStore) FindRoutingRows(_ context.Context, c Criteria) ([]RoutingRow, error) {
	if err := validateService(c.Service); err != nil {
		return nil, err
	}
	if c.BBox != nil && !c.BBox.Valid() {
		return nil, ErrInvalidSpatialConstraints
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	netRe := likeToRegexp(c.Stream.Network, c.Escape)
	staRe := likeToRegexp(c.Stream.Station, c.Escape)
	locRe := likeToRegexp(c.Stream.Location, c.Escape)
	chaRe := likeToRegexp(c.Stream.Channel, c.Escape)

	var out []RoutingRow
	for _, ce := range s.channels {
		if !locRe.MatchString(ce.Location) || !chaRe.MatchString(ce.Channel) {
			continue
		}
		st, ok := s.stations[ce.StationID]
		if !ok || !staRe.MatchString(st.Code) {
			continue
		}
		net, ok := s.networks[st.NetworkID]
		if !ok || !netRe.MatchString(net.Code) {
			continue
		}
		if c.BBox != nil && !withinBBox(*c.BBox, st.Latitude, st.Longitude) {
			continue
		}
		for _, r := range s.routings {
			if r.Level != LevelChannel || r.EpochID != ce.ID {
				continue
			}
			ep, ok := s.endpoints[r.EndpointID]
			if !ok || ep.Service != c.Service {
				continue
			}
			if !accessMatches(c.Access, ce.Epoch.RestrictedStatus) {
				continue
			}
			if c.MethodFilter != "" && !strings.Contains(ep.URL, c.MethodFilter) {
				continue
			}
			out = append(out, RoutingRow{
				Stream:       sncl.Stream{Network: net.Code, Station: st.Code, Location: ce.Location, Channel: ce.Channel},
				EntityEpoch:  ce.Epoch,
				RoutingStart: r.Start,
				RoutingEnd:   r.End,
				EndpointURL:  ep.URL,
				Service:      ep.Service,
			})
		}
	}
	return out, nil
}

// FindChannelEpochs implements HarvestRepository, joining directly against
// ChannelEpoch rows without requiring a routed service.
func (s *MemStore) FindChannelEpochs(_ context.Context, stream sncl.Stream, window sncl.Epoch, escape string) ([]ChannelEpochMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	netRe := likeToRegexp(stream.Network, escape)
	staRe := likeToRegexp(stream.Station, escape)
	locRe := likeToRegexp(stream.Location, escape)
	chaRe := likeToRegexp(stream.Channel, escape)

	var out []ChannelEpochMatch
	for id, ce := range s.channels {
		if !locRe.MatchString(ce.Location) || !chaRe.MatchString(ce.Channel) {
			continue
		}
		if !ce.Epoch.AsSNCL().Overlaps(window) {
			continue
		}
		st, ok := s.stations[ce.StationID]
		if !ok || !staRe.MatchString(st.Code) {
			continue
		}
		net, ok := s.networks[st.NetworkID]
		if !ok || !netRe.MatchString(net.Code) {
			continue
		}
		out = append(out, ChannelEpochMatch{
			ID:     id,
			Stream: sncl.Stream{Network: net.Code, Station: st.Code, Location: ce.Location, Channel: ce.Channel},
			Epoch:  ce.Epoch,
		})
	}
	return out, nil
}

func validateService(s ServiceName) error {
	switch s {
	case ServiceStation, ServiceDataselect, ServiceWFCatalog, ServiceAvailability:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidService, s)
	}
}

func accessMatches(a Access, status RestrictedStatus) bool {
	switch a {
	case "", AccessAny:
		return true
	case AccessOpen:
		return status == StatusOpen
	case AccessClosed:
		return status == StatusClosed || status == StatusPartial
	default:
		return true
	}
}

func withinBBox(b BBox, lat, lon float64) bool {
	return lat >= b.MinLatitude && lat <= b.MaxLatitude && lon >= b.MinLongitude && lon <= b.MaxLongitude
}

// likeToRegexp converts an FDSNWS-wildcarded code (as stored, pre-SQL-LIKE
// translation) into an anchored regexp, mirroring what a LIKE clause with
// '%'/'_' and escape would match, without needing a real SQL engine.
func likeToRegexp(code, escape string) *regexp.Regexp {
	if code == "" {
		code = "*"
	}
	var b strings.Builder
	b.WriteString("^")
	for _, r := range code {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	_ = escape
	return regexp.MustCompile(b.String())
}
