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

package stats

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config bounds one Counter's behavior, the window_size/ttl/threshold trio
// surfaced as the CLI/env options client_retry_budget_{threshold,ttl,
// window_size}.
type Config struct {
	WindowSize int64
	TTL        time.Duration
	Threshold  float64
}

// errorCodes are the upstream statuses that count against a URL's
// error-ratio.
var errorCodes = map[int]bool{500: true, 503: true}

// Counter is the rolling response-code series for one endpoint URL.
type Counter struct {
	backend Backend
	key     string
	cfg     Config
	now     func() time.Time
}

// newCounter builds a Counter over backend for the canonical key derived
// from endpointURL.
func newCounter(backend Backend, endpointURL string, cfg Config) *Counter {
	return &Counter{backend: backend, key: CanonicalKey(endpointURL), cfg: cfg, now: time.Now}
}

// CanonicalKey joins the URL's netloc and path, so the same endpoint is
// counted under one key regardless of scheme or query string.
func CanonicalKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host + u.Path
}

// Append records one observed response code.
func (c *Counter) Append(ctx context.Context, code int) error {
	member, err := formatMember(code, c.now())
	if err != nil {
		return err
	}
	return c.backend.Append(ctx, c.key, member, float64(c.now().Unix()), c.cfg.WindowSize)
}

// GC removes every member older than the configured TTL.
func (c *Counter) GC(ctx context.Context) error {
	cutoff := float64(c.now().Add(-c.cfg.TTL).Unix())
	return c.backend.RemoveExpired(ctx, c.key, cutoff)
}

// ErrorRatio computes the fraction of window members in {500,503}.
// An empty window reports 0, not an error.
func (c *Counter) ErrorRatio(ctx context.Context) (float64, error) {
	now := c.now()
	members, err := c.backend.InWindow(ctx, c.key, float64(now.Add(-c.cfg.TTL).Unix()), float64(now.Unix()))
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	var errs int
	for _, m := range members {
		code, ok := parseMemberCode(m)
		if ok && errorCodes[code] {
			errs++
		}
	}
	return float64(errs) / float64(len(members)), nil
}

// OverThreshold reports whether ErrorRatio exceeds cfg.Threshold, the
// admission rule the routing client and endpoint workers consult.
func (c *Counter) OverThreshold(ctx context.Context) (bool, error) {
	ratio, err := c.ErrorRatio(ctx)
	if err != nil {
		return false, err
	}
	return ratio > c.cfg.Threshold, nil
}

func formatMember(code int, at time.Time) (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("stats: random suffix: %w", err)
	}
	return fmt.Sprintf("%d:%d:%s", code, at.Unix(), hex.EncodeToString(buf[:])), nil
}

func parseMemberCode(member string) (int, bool) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	return code, true
}
