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

// Package sncl provides the stream-epoch data model shared by the routing
// store, the routing client, and the endpoint workers: network/station/
// location/channel codes, epochs (half-open UTC intervals), and the
// wildcard/time codecs FDSNWS uses on the wire.
package sncl

import (
	"fmt"
	"strings"
)

// Stream is a 4-tuple network.station.location.channel code. Codes may
// contain the FDSNWS wildcards '*' (multi-char) and '?' (single-char).
type Stream struct {
	Network  string
	Station  string
	Location string
	Channel  string
}

// String renders the dotted join used for ordering and logging.
func (s Stream) String() string {
	return strings.Join([]string{s.Network, s.Station, s.Location, s.Channel}, ".")
}

// Less orders streams lexicographically by the dotted join.
func (s Stream) Less(other Stream) bool {
	return s.String() < other.String()
}

// Equal reports whether all four fields are identical.
func (s Stream) Equal(other Stream) bool {
	return s == other
}

// HasWildcard reports whether any code contains '*' or '?'.
func (s Stream) HasWildcard() bool {
	for _, code := range []string{s.Network, s.Station, s.Location, s.Channel} {
		if strings.ContainsAny(code, "*?") {
			return true
		}
	}
	return false
}

// NetworkIsWildcardOnly reports whether the network code is the bare
// multi-char wildcard, as used to detect "no network given" in routing
// virtual-network expansion.
func (s Stream) NetworkIsWildcardOnly() bool {
	return s.Network == "*" || s.Network == ""
}

// DefaultEscape is the escape character used to protect pre-existing
// single characters when translating FDSNWS wildcards to SQL LIKE wildcards.
const DefaultEscape = "/"

// ToSQLWildcards translates '*' -> '%' and '?' -> '_' for SQL LIKE matching,
// escaping any pre-existing occurrence of '%', '_' or the escape character
// itself with escape. An empty escape falls back to DefaultEscape.
func ToSQLWildcards(code, escape string) string {
	if escape == "" {
		escape = DefaultEscape
	}
	var b strings.Builder
	for _, r := range code {
		switch r {
		case '%', '_':
			b.WriteString(escape)
			b.WriteRune(r)
		case rune(escape[0]):
			b.WriteString(escape)
			b.WriteRune(r)
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LikePattern renders the stream as a SQL LIKE-ready (pattern, escape) pair
// per field, in NET/STA/LOC/CHA order.
func (s Stream) LikePattern(escape string) (net, sta, loc, cha string) {
	return ToSQLWildcards(s.Network, escape),
		ToSQLWildcards(s.Station, escape),
		ToSQLWildcards(s.Location, escape),
		ToSQLWildcards(s.Channel, escape)
}

// ParseStream builds a Stream from an already split NET/STA/LOC/CHA token
// group. fields must hold exactly 4 entries.
func ParseStream(fields []string) (Stream, error) {
	if len(fields) != 4 {
		return Stream{}, fmt.Errorf("sncl: expected 4 stream fields, got %d", len(fields))
	}
	return Stream{Network: fields[0], Station: fields[1], Location: fields[2], Channel: fields[3]}, nil
}
