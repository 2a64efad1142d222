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

// Package routingservice exposes the routing resolver over the
// same textual block wire format internal/routingclient decodes: a URL
// line, one "NET STA LOC CHA START [END]" line per matched stream-epoch,
// and a blank line separating endpoints. internal/routingclient is this
// handler's client when the federator and the routing store run as
// separate processes; nothing stops wiring them in-process for a
// single-binary deployment instead.
package routingservice

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/eidaws/federator/internal/fdsnreq"
	"github.com/eidaws/federator/internal/routing"
	"github.com/eidaws/federator/pkg/sncl"
	"github.com/sirupsen/logrus"
)

// Handler serves the routing HTTP surface.
type Handler struct {
	Resolver *routing.Resolver
	Escape   string
	Log      *logrus.Entry
}

// NewHandler builds a Handler resolving queries through resolver.
func NewHandler(resolver *routing.Resolver, escape string, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{Resolver: resolver, Escape: escape, Log: log}
}

// ServeHTTP implements the same GET/POST envelope as the federator surface,
// parsed through internal/fdsnreq, then writes the resolved routes as the
// textual block format.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var params fdsnreq.Params
	var err error
	switch r.Method {
	case http.MethodGet:
		params, err = fdsnreq.ParseGET(r)
	case http.MethodPost:
		defer r.Body.Close()
		params, err = fdsnreq.ParsePOST(r.Body)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	criteria := criteriaFromQuery(params, h.Escape)

	byURL := make(map[string][]sncl.StreamEpoch)
	var order []string
	for _, se := range params.StreamEpochs {
		routes, err := h.Resolver.QueryRoutes(r.Context(), se, criteria)
		if err != nil {
			if errors.Is(err, routing.ErrInvalidService) || errors.Is(err, routing.ErrInvalidSpatialConstraints) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.Log.WithError(err).Warn("routingservice: resolve failed")
			http.Error(w, "routing resolution failed", http.StatusInternalServerError)
			return
		}
		for _, route := range routes {
			if _, seen := byURL[route.URL]; !seen {
				order = append(order, route.URL)
			}
			byURL[route.URL] = append(byURL[route.URL], route.StreamEpochs...)
		}
	}

	if len(order) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sort.Strings(order)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, url := range order {
		if err := writeBlock(w, url, byURL[url]); err != nil {
			h.Log.WithError(err).Warn("routingservice: write response failed")
			return
		}
	}
}

func writeBlock(w io.Writer, url string, epochs []sncl.StreamEpoch) error {
	if _, err := fmt.Fprintln(w, url); err != nil {
		return err
	}
	for _, se := range epochs {
		end := ""
		if se.Epoch.End != nil {
			end = " " + sncl.FormatTime(*se.Epoch.End)
		}
		if _, err := fmt.Fprintf(w, "%s %s %s %s %s%s\n",
			se.Stream.Network, se.Stream.Station, se.Stream.Location, se.Stream.Channel,
			sncl.FormatTime(se.Epoch.Start), end); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func criteriaFromQuery(params fdsnreq.Params, escape string) routing.Criteria {
	c := routing.Criteria{
		Service:      routing.ServiceName(valueOr(params, "service", string(routing.ServiceDataselect))),
		Level:        routing.EntityLevel(valueOr(params, "level", string(routing.LevelChannel))),
		Access:       routing.Access(valueOr(params, "access", string(routing.AccessAny))),
		MethodFilter: valueOr(params, "method", ""),
		BBox:         bboxFromQuery(params),
		Escape:       escape,
	}
	if params.POSTHeaders != nil {
		if v, ok := params.POSTHeaders["service"]; ok {
			c.Service = routing.ServiceName(v)
		}
		if v, ok := params.POSTHeaders["level"]; ok {
			c.Level = routing.EntityLevel(v)
		}
		if v, ok := params.POSTHeaders["access"]; ok {
			c.Access = routing.Access(v)
		}
	}
	return c
}

// bboxFromQuery decodes the four min/max latitude/longitude parameters into
// a BBox, or nil when none was given. Validity (min < max) is the store's
// concern, not the decoder's: an inverted box must surface as the
// "invalid spatial constraints" resolution error, not be silently dropped.
func bboxFromQuery(params fdsnreq.Params) *routing.BBox {
	minLat, okMinLat := floatParam(params, "minlatitude")
	maxLat, okMaxLat := floatParam(params, "maxlatitude")
	minLon, okMinLon := floatParam(params, "minlongitude")
	maxLon, okMaxLon := floatParam(params, "maxlongitude")
	if !okMinLat && !okMaxLat && !okMinLon && !okMaxLon {
		return nil
	}
	b := &routing.BBox{MinLatitude: -90, MaxLatitude: 90, MinLongitude: -180, MaxLongitude: 180}
	if okMinLat {
		b.MinLatitude = minLat
	}
	if okMaxLat {
		b.MaxLatitude = maxLat
	}
	if okMinLon {
		b.MinLongitude = minLon
	}
	if okMaxLon {
		b.MaxLongitude = maxLon
	}
	return b
}

func floatParam(params fdsnreq.Params, key string) (float64, bool) {
	v := valueOr(params, key, "")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func valueOr(params fdsnreq.Params, key, fallback string) string {
	if vs, ok := params.RawQuery[key]; ok && len(vs) > 0 && vs[0] != "" {
		return vs[0]
	}
	if v, ok := params.POSTHeaders[key]; ok && v != "" {
		return v
	}
	if v, ok := params.Extra[key]; ok && v != "" {
		return v
	}
	return fallback
}
