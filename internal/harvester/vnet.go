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
	"time"

	"github.com/eidaws/federator/internal/routing"
	"github.com/eidaws/federator/pkg/sncl"
	"github.com/sirupsen/logrus"
)

// VNetHarvester ingests a <vnetwork> configuration: each group names a
// virtual network code and a set of wildcarded <stream> definitions, every
// one of which is resolved against the existing ChannelEpoch rows and
// recorded as a VirtualChannelEpoch for later expansion by the resolver.
// It does not talk to the routing service at all.
type VNetHarvester struct {
	Repo       routing.HarvestRepository
	HTTPClient *http.Client
	Log        *logrus.Entry
}

// NewVNetHarvester builds a VNetHarvester against repo.
func NewVNetHarvester(repo routing.HarvestRepository, httpClient *http.Client, log *logrus.Entry) *VNetHarvester {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &VNetHarvester{Repo: repo, HTTPClient: httpClient, Log: log}
}

// Harvest fetches configURL and upserts every vnetwork group it describes.
func (h *VNetHarvester) Harvest(ctx context.Context, configURL string, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL, nil)
	if err != nil {
		return fmt.Errorf("harvester: build request: %w", err)
	}
	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("harvester: fetch vnetwork config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("harvester: vnetwork config %s: status %d", configURL, resp.StatusCode)
	}

	dec := xml.NewDecoder(resp.Body)
	var n int
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("harvester: parse vnetwork config: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "vnetwork" {
			continue
		}
		vnetNode, err := parseNode(dec, start)
		if err != nil {
			return fmt.Errorf("harvester: parse vnetwork element: %w", err)
		}
		if err := h.harvestVNet(ctx, vnetNode, now); err != nil {
			h.Log.WithError(err).Warn("harvester: vnetwork failed")
			continue
		}
		n++
	}
	h.Log.WithField("vnetworks", n).Debug("harvester: vnetwork config harvested")
	return nil
}

func (h *VNetHarvester) harvestVNet(ctx context.Context, vnetNode *node, now time.Time) error {
	code := attrOr(vnetNode, "networkCode", "")
	if code == "" {
		return fmt.Errorf("missing networkCode attribute")
	}

	for _, streamNode := range childrenNamed(vnetNode, "stream") {
		vstream := sncl.Stream{
			Network:  attrOr(streamNode, "networkCode", "*"),
			Station:  attrOr(streamNode, "stationCode", "*"),
			Location: attrOr(streamNode, "locationCode", "*"),
			Channel:  attrOr(streamNode, "streamCode", "*"),
		}
		start, err := sncl.ParseTime(attrOr(streamNode, "start", ""))
		if err != nil {
			return fmt.Errorf("stream start: %w", err)
		}
		var end *time.Time
		if e := attrOr(streamNode, "end", ""); e != "" {
			if t, err := sncl.ParseTime(e); err == nil {
				end = &t
			}
		}
		window := sncl.Epoch{Start: start, End: end}

		matches, err := h.Repo.FindChannelEpochs(ctx, vstream, window, "")
		if err != nil {
			return fmt.Errorf("find channel epochs for %s: %w", vstream, err)
		}
		if len(matches) == 0 {
			h.Log.WithField("stream", vstream.String()).Warn("harvester: no channel epoch matches virtual stream definition")
			continue
		}
		for _, m := range matches {
			clipped, ok := m.Epoch.AsSNCL().Intersect(window)
			if !ok {
				continue
			}
			if err := h.Repo.UpsertVirtualChannelEpoch(ctx, code, m.Stream, clipped); err != nil {
				return err
			}
		}
	}
	return nil
}
