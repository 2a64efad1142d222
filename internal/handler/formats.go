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

package handler

import (
	"net/http"

	"github.com/eidaws/federator/internal/endpoint"
	"github.com/eidaws/federator/internal/endpoint/availability"
	"github.com/eidaws/federator/internal/endpoint/miniseed"
	"github.com/eidaws/federator/internal/endpoint/simple"
	"github.com/eidaws/federator/internal/endpoint/stationxml"
	"github.com/eidaws/federator/internal/endpoint/wfcatalog"
	"github.com/eidaws/federator/internal/processor"
)

// StationFormats builds the station service's format table: plain text
// uses the header-strip worker, xml the hierarchical
// merge worker. level sets the network/station/channel depth of the
// stationxml merge; it does not reach the routing query.
func StationFormats(level stationxml.Level) map[string]processor.Format {
	return map[string]processor.Format{
		"text": {
			Tag:            "station-text",
			NewWorker:      func() endpoint.Worker { return simple.New(simple.FormatText) },
			EndpointMethod: http.MethodGet,
		},
		"xml": {
			Tag:            "station-xml",
			Header:         []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n"),
			NewWorker:      func() endpoint.Worker { return stationxml.New(level) },
			EndpointMethod: http.MethodGet,
		},
	}
}

// DataselectFormats builds the dataselect service's format table:
// MiniSEED only, with split-and-align on 413.
func DataselectFormats(fallbackRecordSize int) map[string]processor.Format {
	return map[string]processor.Format{
		"miniseed": {
			Tag:            "dataselect",
			NewWorker:      func() endpoint.Worker { return miniseed.New(fallbackRecordSize) },
			EndpointMethod: http.MethodGet,
		},
	}
}

// WFCatalogFormats builds the WFCatalog service's format table: a single
// JSON array envelope around the split-and-align-aware merge worker.
func WFCatalogFormats() map[string]processor.Format {
	return map[string]processor.Format{
		"json": {
			Tag:            "wfcatalog",
			Header:         []byte("["),
			Footer:         []byte("]"),
			Separator:      []byte(","),
			NewWorker:      func() endpoint.Worker { return wfcatalog.New() },
			EndpointMethod: http.MethodGet,
		},
	}
}

// AvailabilityFormats builds the availability service's format table.
// Every variant reduces each stream's routes to one hull-window request
// before dispatch and drains in priority order.
func AvailabilityFormats() map[string]processor.Format {
	return map[string]processor.Format{
		"text": {
			Tag:            "availability-text",
			ReduceExtent:   true,
			NewWorker:      func() endpoint.Worker { return availability.New() },
			Sorted:         true,
			EndpointMethod: http.MethodGet,
		},
		"json": {
			Tag:            "availability-json",
			ReduceExtent:   true,
			Header:         []byte(`{"created":"","version":1,"datasources":[`),
			Footer:         []byte("]}"),
			NewWorker:      func() endpoint.Worker { return availability.New() },
			Sorted:         true,
			EndpointMethod: http.MethodGet,
		},
		"geocsv": {
			Tag:            "availability-geocsv",
			ReduceExtent:   true,
			NewWorker:      func() endpoint.Worker { return availability.New() },
			Sorted:         true,
			EndpointMethod: http.MethodGet,
		},
	}
}
