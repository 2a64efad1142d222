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

// Package httpfdsn builds the two outbound request shapes FDSNWS-style
// services accept (GET query-string and POST multiline body), shared by the
// routing client and the endpoint workers so both speak the same wire
// format to upstream services.
package httpfdsn

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/eidaws/federator/pkg/sncl"
)

// BuildGETURL renders a GET request URL for one stream-epoch: the codes
// and epoch become query parameters. extraParams is merged in (e.g.
// format=miniseed); its keys are sorted for a deterministic,
// cache-friendly URL.
func BuildGETURL(baseURL string, se sncl.StreamEpoch, extraParams map[string]string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("httpfdsn: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("network", se.Stream.Network)
	q.Set("station", se.Stream.Station)
	q.Set("location", se.Stream.Location)
	q.Set("channel", se.Stream.Channel)
	q.Set("start", sncl.FormatTime(se.Epoch.Start))
	if se.Epoch.End != nil {
		q.Set("end", sncl.FormatTime(*se.Epoch.End))
	}
	keys := make([]string, 0, len(extraParams))
	for k := range extraParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, extraParams[k])
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildPOSTBody renders the multiline POST body: `key=value`
// header lines (sorted for determinism) followed by one
// "NET STA LOC CHA START [END]" line per stream-epoch.
func BuildPOSTBody(headers map[string]string, epochs []sncl.StreamEpoch) []byte {
	var buf bytes.Buffer
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%s\n", k, headers[k])
	}
	for _, se := range epochs {
		end := ""
		if se.Epoch.End != nil {
			end = " " + sncl.FormatTime(*se.Epoch.End)
		}
		fmt.Fprintf(&buf, "%s %s %s %s %s%s\n",
			se.Stream.Network, se.Stream.Station, se.Stream.Location, se.Stream.Channel,
			sncl.FormatTime(se.Epoch.Start), end)
	}
	return buf.Bytes()
}

// NewGETRequest builds an *http.Request for a single stream-epoch GET call.
func NewGETRequest(ctx context.Context, baseURL string, se sncl.StreamEpoch, extraParams map[string]string) (*http.Request, error) {
	u, err := BuildGETURL(baseURL, se, extraParams)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
}

// NewPOSTRequest builds an *http.Request carrying the multiline POST body
// for one or more stream-epochs.
func NewPOSTRequest(ctx context.Context, baseURL string, headers map[string]string, epochs []sncl.StreamEpoch) (*http.Request, error) {
	body := BuildPOSTBody(headers, epochs)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")
	return req, nil
}
