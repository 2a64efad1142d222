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

// Package stats implements the per-endpoint rolling response-code counter:
// a TTL-bounded sorted set of recent HTTP status codes per
// endpoint URL, used by the routing client and endpoint workers as an
// error-ratio admission filter.
package stats

import "context"

// Backend abstracts the sorted-set primitives Counter needs. RedisBackend
// is the production implementation; FakeBackend is an in-memory stand-in for
// tests; LoggingBackend decorates either, logging each Append. Uses an
// explicit WATCH/MULTI/EXEC sequence rather than a single Lua EVAL since the
// retry-budget update needs to read the current window before deciding
// whether to trim it.
type Backend interface {
	// Append adds member (format "<code>:<score>:<random>") with score=at to
	// the sorted set at key. If doing so would leave more than windowSize
	// members, the oldest are trimmed first. The whole read-trim-add
	// sequence runs inside one optimistic WATCH/MULTI/EXEC transaction on
	// key, retried internally on a watch conflict.
	Append(ctx context.Context, key, member string, at float64, windowSize int64) error

	// RemoveExpired deletes every member with score <= cutoff.
	RemoveExpired(ctx context.Context, key string, cutoff float64) error

	// InWindow returns every member with score in [min,max].
	InWindow(ctx context.Context, key string, min, max float64) ([]string, error)
}
