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

// Package routingclient renders a call to the routing store as an HTTP
// request (GET or POST, via internal/httpfdsn), decoding the textual
// routing block the
// store replies with, filtering endpoints over their retry budget
// (internal/stats), and enforcing the per-stream/total epoch duration
// budget.
package routingclient

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eidaws/federator/internal/httpfdsn"
	"github.com/eidaws/federator/internal/stats"
	"github.com/eidaws/federator/pkg/sncl"
)

// Route is one decoded (URL, stream-epochs) block from the routing
// response, after stats-based filtering and duration-budget enforcement.
type Route struct {
	URL          string
	StreamEpochs []sncl.StreamEpoch
}

// DurationLimits bounds epoch durations, the
// max_stream_epoch_duration(_total) option pair.
type DurationLimits struct {
	PerStream time.Duration
	Total     time.Duration
}

// ErrTooLarge is returned when a duration limit is exceeded; it names the
// offending limit for the eventual 413 body.
type ErrTooLarge struct {
	Limit string
}

func (e *ErrTooLarge) Error() string { return fmt.Sprintf("routingclient: exceeds %s limit", e.Limit) }

// Client queries a routing store endpoint and decodes its response.
type Client struct {
	HTTPClient *http.Client
	StatsStore *stats.Store
	Limits     DurationLimits
}

// NewClient builds a Client with sane defaults for a nil http.Client.
func NewClient(httpClient *http.Client, statsStore *stats.Store, limits DurationLimits) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTPClient: httpClient, StatsStore: statsStore, Limits: limits}
}

// QueryGET issues one GET request per stream-epoch fan-out. The GET form
// never substitutes a default end time, to maximize HTTP-cache hits,
// and returns the decoded, filtered routes.
func (c *Client) QueryGET(ctx context.Context, routingURL string, se sncl.StreamEpoch, extraParams map[string]string) ([]Route, error) {
	reqURL, err := httpfdsn.BuildGETURL(routingURL, se, extraParams)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req, []sncl.StreamEpoch{se})
}

// QueryPOST issues one POST request carrying every stream-epoch,
// substituting defaultEnd for omitted end times.
func (c *Client) QueryPOST(ctx context.Context, routingURL string, headers map[string]string, epochs []sncl.StreamEpoch, defaultEnd time.Time) ([]Route, error) {
	withDefaults := make([]sncl.StreamEpoch, len(epochs))
	for i, se := range epochs {
		withDefaults[i] = se
		if se.Epoch.End == nil {
			end := defaultEnd
			withDefaults[i].Epoch.End = &end
		}
	}
	req, err := httpfdsn.NewPOSTRequest(ctx, routingURL, headers, withDefaults)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req, withDefaults)
}

func (c *Client) do(ctx context.Context, req *http.Request, queried []sncl.StreamEpoch) ([]Route, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routingclient: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("routingclient: routing store returned %d: %s", resp.StatusCode, string(body))
	}

	blocks, err := ParseRoutingResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	var total time.Duration
	var routes []Route
	for _, block := range blocks {
		if c.StatsStore != nil {
			counter := c.StatsStore.GetOrCreate(block.URL)
			over, err := counter.OverThreshold(ctx)
			if err != nil {
				return nil, err
			}
			if over {
				stats.ObserveRejection()
				continue
			}
		}

		for _, se := range block.StreamEpochs {
			if se.Epoch.End != nil {
				d := se.Epoch.End.Sub(se.Epoch.Start)
				if c.Limits.PerStream > 0 && d > c.Limits.PerStream {
					return nil, &ErrTooLarge{Limit: "max_stream_epoch_duration"}
				}
				total += d
				if c.Limits.Total > 0 && total > c.Limits.Total {
					return nil, &ErrTooLarge{Limit: "max_stream_epoch_duration_total"}
				}
			}
		}
		routes = append(routes, block)
	}
	return routes, nil
}

// ParseRoutingResponse decodes the routing store's textual block format:
// a URL on one line, followed by "NET STA LOC CHA START [END]"
// lines until a blank line separates the next block.
func ParseRoutingResponse(r io.Reader) ([]Route, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var routes []Route
	var current *Route
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if current != nil {
				routes = append(routes, *current)
				current = nil
			}
			continue
		}
		if current == nil {
			current = &Route{URL: strings.TrimSpace(line)}
			continue
		}
		se, err := sncl.FromPOSTLine([]byte(line), nil)
		if err != nil {
			return nil, fmt.Errorf("routingclient: parse routing block: %w", err)
		}
		current.StreamEpochs = append(current.StreamEpochs, se)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("routingclient: read routing response: %w", err)
	}
	if current != nil {
		routes = append(routes, *current)
	}
	return routes, nil
}
