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

// Package harvester periodically ingests an EIDA node's eida-routing
// localconfig document and FDSN station inventories into a
// routing.HarvestRepository, and separately folds a vnetwork/stream
// configuration into the virtual-network expansion table.
package harvester

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eidaws/federator/internal/routing"
	"github.com/eidaws/federator/pkg/sncl"
	"github.com/sirupsen/logrus"
)

const (
	methodQuery      = "query"
	methodQueryAuth  = "queryauth"
	methodExtent     = "extent"
	methodExtentAuth = "extentauth"
)

// DefaultServices is the set of route child elements a RoutingHarvester
// processes when Services is left unset.
var DefaultServices = []routing.ServiceName{
	routing.ServiceStation, routing.ServiceDataselect, routing.ServiceWFCatalog, routing.ServiceAvailability,
}

// RoutingHarvester ingests an eida-routing localconfig document: each
// <route> element names a stream pattern and one service child per routed
// endpoint. The route's own "station" service is resolved first (GET, since
// POST requires both start and end times) to discover the concrete channel
// epochs the route's other services apply to.
type RoutingHarvester struct {
	Repo            routing.HarvestRepository
	HTTPClient      *http.Client
	Services        []routing.ServiceName
	ForceRestricted bool
	Log             *logrus.Entry
}

// NewRoutingHarvester builds a RoutingHarvester against repo.
func NewRoutingHarvester(repo routing.HarvestRepository, httpClient *http.Client, log *logrus.Entry) *RoutingHarvester {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RoutingHarvester{
		Repo:            repo,
		HTTPClient:      httpClient,
		Services:        DefaultServices,
		ForceRestricted: true,
		Log:             log,
	}
}

// Harvest fetches configURL and upserts every route it describes, stamping
// now as the LastSeen time for rows touched this run.
func (h *RoutingHarvester) Harvest(ctx context.Context, configURL string, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL, nil)
	if err != nil {
		return fmt.Errorf("harvester: build request: %w", err)
	}
	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("harvester: fetch routing config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("harvester: routing config %s: status %d", configURL, resp.StatusCode)
	}

	dec := xml.NewDecoder(resp.Body)
	var n int
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("harvester: parse routing config: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "route" {
			continue
		}
		routeNode, err := parseNode(dec, start)
		if err != nil {
			return fmt.Errorf("harvester: parse route element: %w", err)
		}
		if err := h.harvestRoute(ctx, routeNode, now); err != nil {
			h.Log.WithError(err).Warn("harvester: route failed")
			continue
		}
		n++
	}
	h.Log.WithField("routes", n).Debug("harvester: routing config harvested")
	return nil
}

func (h *RoutingHarvester) harvestRoute(ctx context.Context, routeNode *node, now time.Time) error {
	stream := sncl.Stream{
		Network:  attrOr(routeNode, "networkCode", "*"),
		Station:  attrOr(routeNode, "stationCode", "*"),
		Location: attrOr(routeNode, "locationCode", "*"),
		Channel:  attrOr(routeNode, "streamCode", "*"),
	}

	stationBase := stationServiceURL(routeNode)
	if stationBase == "" {
		return nil // no fdsn-station route: nothing to resolve wildcards against
	}
	stationURL := stationBase + "?" + streamQueryString(stream) + "&level=channel"

	channels, err := h.fetchInventory(ctx, stationURL)
	if err != nil {
		return fmt.Errorf("station inventory for %s: %w", stream, err)
	}
	if len(channels) == 0 {
		return nil
	}

	serviceNodes := serviceElements(routeNode, h.Services)
	for _, ch := range channels {
		netID, err := h.Repo.UpsertNetwork(ctx, ch.Network)
		if err != nil {
			return err
		}
		staID, err := h.Repo.UpsertStation(ctx, netID, ch.Station, ch.Latitude, ch.Longitude)
		if err != nil {
			return err
		}
		epoch := routing.Epoch{Start: ch.Start, End: ch.End, RestrictedStatus: ch.RestrictedStatus, Type: routing.LevelChannel}
		epochID, err := h.Repo.UpsertChannelEpoch(ctx, staID, ch.Location, ch.Channel, epoch, now)
		if err != nil {
			return err
		}

		for _, serviceNode := range serviceNodes {
			if priority := attrOr(serviceNode, "priority", ""); priority != "" {
				if p, err := strconv.Atoi(priority); err != nil || p != 1 {
					continue
				}
			}
			address := attrOr(serviceNode, "address", "")
			if address == "" {
				continue
			}
			service := routing.ServiceName(serviceNode.XMLName.Local)
			start, end, err := routeServiceWindow(serviceNode)
			if err != nil {
				return fmt.Errorf("service window: %w", err)
			}
			for _, endpointURL := range h.autocorrectURLs(service, address, ch.RestrictedStatus) {
				endpointID, err := h.Repo.UpsertEndpoint(ctx, endpointURL, service)
				if err != nil {
					return err
				}
				if err := h.Repo.UpsertRouting(ctx, epochID, routing.LevelChannel, endpointID, start, end, now); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func stationServiceURL(routeNode *node) string {
	for _, c := range childrenNamed(routeNode, "station") {
		if attrOr(c, "priority", "1") != "1" {
			continue
		}
		if addr := attrOr(c, "address", ""); addr != "" {
			return addr
		}
	}
	return ""
}

func serviceElements(routeNode *node, services []routing.ServiceName) []*node {
	want := make(map[string]bool, len(services))
	for _, s := range services {
		want[string(s)] = true
	}
	var out []*node
	for _, c := range routeNode.Children {
		if want[c.XMLName.Local] {
			out = append(out, c)
		}
	}
	return out
}

func streamQueryString(s sncl.Stream) string {
	v := url.Values{}
	v.Set("network", s.Network)
	v.Set("station", s.Station)
	v.Set("location", s.Location)
	v.Set("channel", s.Channel)
	return v.Encode()
}

func routeServiceWindow(n *node) (time.Time, *time.Time, error) {
	startStr := attrOr(n, "start", "")
	if startStr == "" {
		return time.Time{}, nil, fmt.Errorf("missing start attribute")
	}
	start, err := sncl.ParseTime(startStr)
	if err != nil {
		return time.Time{}, nil, err
	}
	endStr := attrOr(n, "end", "")
	if endStr == "" {
		return start, nil, nil
	}
	end, err := sncl.ParseTime(endStr)
	if err != nil {
		return time.Time{}, nil, err
	}
	return start, &end, nil
}

// autocorrectURLs expands address into the query/queryauth (and, for
// availability, extent/extentauth) method-token variants matching status,
// unless ForceRestricted is off or service isn't one that carries a method
// token at all.
func (h *RoutingHarvester) autocorrectURLs(service routing.ServiceName, address string, status routing.RestrictedStatus) []string {
	if !h.ForceRestricted || (service != routing.ServiceDataselect && service != routing.ServiceAvailability) {
		return []string{address}
	}

	token := methodTokenOf(address)
	var tokens []string
	if status == routing.StatusClosed || status == routing.StatusPartial {
		tokens = append(tokens, methodQueryAuth)
		if service == routing.ServiceAvailability {
			switch token {
			case "":
				tokens = append(tokens, methodExtentAuth)
			case methodExtent, methodExtentAuth:
				tokens = []string{methodExtentAuth}
			}
		}
	} else {
		tokens = append(tokens, methodQuery)
		if service == routing.ServiceAvailability {
			switch token {
			case "":
				tokens = append(tokens, methodExtent)
			case methodExtent:
				tokens = []string{methodExtent}
			}
		}
	}

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, joinMethodToken(address, t))
	}
	return out
}

func methodTokenOf(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	last := parts[len(parts)-1]
	switch last {
	case methodQuery, methodQueryAuth, methodExtent, methodExtentAuth:
		return last
	default:
		return ""
	}
}

// joinMethodToken replaces the last path segment of base with token,
// mirroring RFC 3986 relative resolution (Python's urljoin(url, token)):
// ".../dataselect/1/query" + "queryauth" -> ".../dataselect/1/queryauth".
func joinMethodToken(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + token
	}
	idx := strings.LastIndex(u.Path, "/")
	if idx < 0 {
		u.Path = token
	} else {
		u.Path = u.Path[:idx+1] + token
	}
	u.RawQuery = ""
	return u.String()
}
