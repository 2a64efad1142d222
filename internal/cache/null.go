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

package cache

import (
	"context"
	"time"
)

// Null is the buffering-disabled backend: every write is
// discarded and every read misses.
type Null struct{}

// Get always misses.
func (Null) Get(_ context.Context, _ string, _ bool) ([]byte, bool, error) { return nil, false, nil }

// Set is a no-op.
func (Null) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }

// Delete is a no-op.
func (Null) Delete(_ context.Context, _ string) error { return nil }

// Exists always reports false.
func (Null) Exists(_ context.Context, _ string) (bool, error) { return false, nil }

// FlushAll is a no-op.
func (Null) FlushAll(_ context.Context) error { return nil }
