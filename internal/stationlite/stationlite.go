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

// Package stationlite is a read-only JSON discovery surface: "which
// channel epochs, and under what restricted-status, match this stream
// query" without resolving or dispatching to an endpoint. It answers the
// same question the routing join already has the data for, just without
// grouping by endpoint URL, letting a client discover restricted-status and
// validity windows before ever issuing a federated query.
package stationlite

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/eidaws/federator/internal/fdsnreq"
	"github.com/eidaws/federator/internal/routing"
	"github.com/eidaws/federator/pkg/sncl"
	"github.com/sirupsen/logrus"
)

// Handler serves the stationlite query surface.
type Handler struct {
	Repo    routing.Repository
	Service routing.ServiceName // which joined service's existence to probe, e.g. dataselect
	Escape  string
	Log     *logrus.Entry
}

// NewHandler builds a Handler querying repo's channel-epoch join for
// service.
func NewHandler(repo routing.Repository, service routing.ServiceName, escape string, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if service == "" {
		service = routing.ServiceDataselect
	}
	return &Handler{Repo: repo, Service: service, Escape: escape, Log: log}
}

// channelEpoch is one merged (stream, restricted-status) row's JSON shape.
type channelEpoch struct {
	Network          string `json:"network"`
	Station          string `json:"station"`
	Location         string `json:"location"`
	Channel          string `json:"channel"`
	StartTime        string `json:"starttime"`
	EndTime          string `json:"endtime,omitempty"`
	RestrictedStatus string `json:"restrictedStatus"`
}

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

	handler := newEpochsHandler()
	for _, se := range params.StreamEpochs {
		criteria := routing.Criteria{
			Stream:  se.Stream,
			Window:  se.Epoch,
			Service: h.Service,
			Level:   routing.LevelChannel,
			Access:  routing.AccessAny,
			Escape:  h.Escape,
		}
		rows, err := h.Repo.FindRoutingRows(r.Context(), criteria)
		if err != nil {
			h.Log.WithError(err).Warn("stationlite: query failed")
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		for _, row := range rows {
			entityEpoch := row.EntityEpoch.AsSNCL()
			clipped, ok := entityEpoch.Intersect(se.Epoch)
			if !ok {
				continue
			}
			handler.add(row.Stream, row.EntityEpoch.RestrictedStatus, clipped)
		}
	}

	if handler.empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	_, _ = w.Write([]byte("["))
	first := true
	for _, row := range handler.rows() {
		if !first {
			_, _ = w.Write([]byte(","))
		}
		first = false
		_ = enc.Encode(row)
	}
	_, _ = w.Write([]byte("]"))
}

// key identifies one (stream, restricted-status) group whose epochs union
// into the merged set emitted.
type key struct {
	stream sncl.Stream
	status routing.RestrictedStatus
}

// epochsHandler accumulates channel-epoch rows into merged per-(stream,
// status) interval sets: grouping collapses duplicate joins (the same
// channel epoch reached through more than one Routing row, say)
// down to one row per distinct time range, unioning any that touch or
// overlap.
type epochsHandler struct {
	byKey map[key]*sncl.Epochs
	order []key
}

func newEpochsHandler() *epochsHandler {
	return &epochsHandler{byKey: make(map[key]*sncl.Epochs)}
}

func (h *epochsHandler) add(stream sncl.Stream, status routing.RestrictedStatus, epoch sncl.Epoch) {
	k := key{stream: stream, status: status}
	set, ok := h.byKey[k]
	if !ok {
		set = &sncl.Epochs{}
		h.byKey[k] = set
		h.order = append(h.order, k)
	}
	set.Add(epoch)
}

func (h *epochsHandler) empty() bool {
	return len(h.order) == 0
}

func (h *epochsHandler) rows() []channelEpoch {
	keys := append([]key(nil), h.order...)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].stream != keys[j].stream {
			return keys[i].stream.Less(keys[j].stream)
		}
		return keys[i].status < keys[j].status
	})

	var out []channelEpoch
	for _, k := range keys {
		for _, iv := range h.byKey[k].List() {
			row := channelEpoch{
				Network:          k.stream.Network,
				Station:          k.stream.Station,
				Location:         k.stream.Location,
				Channel:          k.stream.Channel,
				StartTime:        sncl.FormatTime(iv.Start),
				RestrictedStatus: string(k.status),
			}
			if iv.End != nil {
				row.EndTime = sncl.FormatTime(*iv.End)
			}
			out = append(out, row)
		}
	}
	return out
}
