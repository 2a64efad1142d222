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

// Package fdsnreq decodes the FDSNWS GET/POST request envelope
// shared by the federator's FDSNWS-facing surface (internal/handler) and
// the internal routing HTTP surface (internal/routingservice): comma-list
// net/sta/loc/cha codes crossed against a time window for GET, or a
// key=value header block followed by "NET STA LOC CHA START [END]" lines
// for POST. internal/httpfdsn covers the mirror-image outbound shape this
// gateway itself speaks to upstream services.
package fdsnreq

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eidaws/federator/pkg/sncl"
)

// Params is a decoded FDSNWS request, ready to hand to processor.Request
// or routing.Resolver.QueryRoutes.
type Params struct {
	StreamEpochs []sncl.StreamEpoch
	Extra        map[string]string
	UsePOST      bool
	POSTHeaders  map[string]string
	RawQuery     map[string][]string
}

// knownExtra is carried through verbatim as Extra/POSTHeaders, per-service
// params the federator doesn't interpret itself but forwards to endpoints.
var knownExtra = []string{"format", "nodata", "quality", "level", "service", "access", "minimumlength", "longestonly", "mergegaps", "includerestricted"}

func first(values url2Values, keys ...string) (string, bool) {
	for _, k := range keys {
		if vs, ok := values[k]; ok && len(vs) > 0 && vs[0] != "" {
			return vs[0], true
		}
	}
	return "", false
}

// url2Values avoids importing net/url just for the map alias; http.Request
// already hands back url.Values, which satisfies this shape.
type url2Values = map[string][]string

func splitCSV(s string) []string {
	if s == "" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// ParseGET decodes a GET request's query string into Params. A start time
// is required; an absent "end" is not substituted, so the stream-epochs
// stay open-ended and a genuinely open query reaches the resolver as open.
func ParseGET(r *http.Request) (Params, error) {
	q := r.URL.Query()
	values := url2Values(q)

	nets := splitCSV(getAny(values, "net", "network"))
	stas := splitCSV(getAny(values, "sta", "station"))
	locs := splitCSV(getAny(values, "loc", "location"))
	chas := splitCSV(getAny(values, "cha", "channel"))

	var start time.Time
	var err error
	if s, ok := first(values, "start", "starttime"); ok {
		start, err = sncl.ParseTime(s)
		if err != nil {
			return Params{}, fmt.Errorf("fdsnreq: bad starttime: %w", err)
		}
	} else {
		return Params{}, fmt.Errorf("fdsnreq: starttime is required")
	}
	userSuppliedStart := true

	var end *time.Time
	userSuppliedEnd := false
	if s, ok := first(values, "end", "endtime"); ok {
		t, err := sncl.ParseTime(s)
		if err != nil {
			return Params{}, fmt.Errorf("fdsnreq: bad endtime: %w", err)
		}
		end = &t
		userSuppliedEnd = true
	}

	epoch := sncl.Epoch{Start: start, End: end}
	if !epoch.Valid() {
		return Params{}, fmt.Errorf("fdsnreq: starttime must be before endtime")
	}

	var streamEpochs []sncl.StreamEpoch
	for _, net := range nets {
		for _, sta := range stas {
			for _, loc := range locs {
				for _, cha := range chas {
					streamEpochs = append(streamEpochs, sncl.StreamEpoch{
						Stream:            sncl.Stream{Network: net, Station: sta, Location: loc, Channel: cha},
						Epoch:             epoch,
						UserSuppliedStart: userSuppliedStart,
						UserSuppliedEnd:   userSuppliedEnd,
					})
				}
			}
		}
	}

	return Params{
		StreamEpochs: streamEpochs,
		Extra:        extractExtra(values),
		RawQuery:     values,
	}, nil
}

func getAny(values url2Values, keys ...string) string {
	v, _ := first(values, keys...)
	return v
}

func extractExtra(values url2Values) map[string]string {
	extra := make(map[string]string)
	for _, k := range knownExtra {
		if v, ok := first(values, k); ok {
			extra[k] = v
		}
	}
	return extra
}

// ParsePOST decodes a POST body: leading "key=value" lines, then one
// "NET STA LOC CHA START [END]" line per stream-epoch, a blank line
// terminating nothing in this envelope (unlike the routing store's
// multi-block reply, a client POST is a single block).
func ParsePOST(body io.Reader) (Params, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	headers := make(map[string]string)
	var streamEpochs []sncl.StreamEpoch
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(streamEpochs) == 0 {
			if idx := strings.IndexByte(line, '='); idx >= 0 && !looksLikeSNCLLine(line) {
				key := strings.ToLower(strings.TrimSpace(line[:idx]))
				headers[key] = strings.TrimSpace(line[idx+1:])
				continue
			}
		}
		parsed, err := sncl.FromPOSTLine([]byte(line), nil)
		if err != nil {
			return Params{}, fmt.Errorf("fdsnreq: %w", err)
		}
		streamEpochs = append(streamEpochs, parsed)
	}
	if err := scanner.Err(); err != nil {
		return Params{}, fmt.Errorf("fdsnreq: read POST body: %w", err)
	}

	extra := make(map[string]string)
	for _, k := range knownExtra {
		if v, ok := headers[k]; ok {
			extra[k] = v
		}
	}

	return Params{
		StreamEpochs: streamEpochs,
		Extra:        extra,
		UsePOST:      true,
		POSTHeaders:  headers,
	}, nil
}

// looksLikeSNCLLine reports whether a line is a 5-or-6-field stream-epoch
// row rather than a key=value header, so a channel code that happens to
// contain '=' never gets misread (FDSNWS channel codes never do, but a
// header value might legitimately contain a space-free '=' too).
func looksLikeSNCLLine(line string) bool {
	fields := strings.Fields(line)
	return len(fields) == 5 || len(fields) == 6
}
