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

package sncl

import (
	"fmt"
	"strings"
	"time"
)

// CanonicalOffset is the smallest representable unit of the wire time
// format: one microsecond.
const CanonicalOffset = time.Microsecond

// timeLayouts are tried in order when parsing an ISO-8601 instant without a
// timezone suffix (always interpreted as UTC), from full microsecond
// precision down to the bare date.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// ParseTime parses an FDSNWS time string. A date-only "YYYY-MM-DD" value is
// treated as midnight UTC. The result is always in UTC regardless of any
// offset implied by the input (the wire format carries none).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("sncl: empty time value")
	}
	// The wire format omits the timezone suffix, but a trailing 'Z' still
	// means UTC when a client sends one.
	s = strings.TrimSuffix(s, "Z")
	var lastErr error
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("sncl: invalid time %q: %w", s, lastErr)
}

// FormatTime renders t using microsecond precision ISO-8601 without a
// timezone suffix, trimming trailing zero fractional digits the way the
// upstream services do for compact routing-block output.
func FormatTime(t time.Time) string {
	t = t.UTC()
	s := t.Format("2006-01-02T15:04:05.000000")
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
