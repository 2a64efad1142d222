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

import "sync"

// Store hands out one Counter per endpoint URL, caching them across
// requests. A sync.Map fast path avoids allocating a Counter on every
// lookup once a URL has been seen.
type Store struct {
	counters sync.Map // string -> *Counter
	backend  Backend
	cfg      Config
}

// NewStore returns a Store handing out Counters backed by backend, all
// sharing cfg.
func NewStore(backend Backend, cfg Config) *Store {
	return &Store{backend: backend, cfg: cfg}
}

// GetOrCreate returns the Counter for endpointURL, creating it on first
// sight.
func (s *Store) GetOrCreate(endpointURL string) *Counter {
	key := CanonicalKey(endpointURL)
	if actual, ok := s.counters.Load(key); ok {
		return actual.(*Counter)
	}
	c := newCounter(s.backend, endpointURL, s.cfg)
	actual, _ := s.counters.LoadOrStore(key, c)
	return actual.(*Counter)
}

// ForEach iterates every Counter currently cached, used by the background
// GC worker.
func (s *Store) ForEach(f func(c *Counter)) {
	s.counters.Range(func(_, value any) bool {
		f(value.(*Counter))
		return true
	})
}
