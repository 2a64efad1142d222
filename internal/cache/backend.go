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

// Package cache implements the response-buffer cache backend:
// get/set/delete/exists/flush-all over a computed cache key, with a Null
// variant for buffering-disabled deployments and a Redis variant with
// optional gzip compression.
package cache

import (
	"context"
	"time"
)

// Backend is the cache capability set. Implementations must
// make Get a pure decode miss when the key is absent, never an error.
type Backend interface {
	// Get returns the stored value and true, or (nil, false) on a miss.
	// When raw is true, a compressed Redis backend returns the stored bytes
	// as-is (so the caller can forward them with Content-Encoding: gzip)
	// instead of transparently decompressing them.
	Get(ctx context.Context, key string, raw bool) ([]byte, bool, error)

	// Set stores value under key with an optional ttl (zero means no
	// expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key, if present.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// FlushAll clears every key this backend manages.
	FlushAll(ctx context.Context) error
}
