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

// Package processor implements the federating request processor: the
// cache → route → dispatch → merge → response lifecycle shared by every
// federator surface, in its two merge shapes (unsorted, priority-sorted).
package processor

import (
	"fmt"
	"sync"
)

// unsortedDrain is the unordered merge shape: the
// response is prepared lazily on the first write (a format-specific header
// goes out just before it), writes are serialized by a mutex shared across
// every worker, and a footer follows the last write. If nothing is ever
// written, the response is never prepared and the caller emits the
// configured no-data status.
type unsortedDrain struct {
	mu       sync.Mutex
	w        writer
	header   []byte
	prepared bool
}

type writer interface {
	Write(p []byte) (int, error)
}

func newUnsortedDrain(w writer, header []byte) *unsortedDrain {
	return &unsortedDrain{w: w, header: header}
}

// Write implements endpoint.Drain.
func (d *unsortedDrain) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.prepared {
		if len(d.header) > 0 {
			if _, err := d.w.Write(d.header); err != nil {
				return 0, fmt.Errorf("processor: write header: %w", err)
			}
		}
		d.prepared = true
	}
	return d.w.Write(p)
}

// Prepared reports whether any payload (and therefore the header) has been
// written yet.
func (d *unsortedDrain) Prepared() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prepared
}

// Finish writes the footer, if the response was ever prepared.
func (d *unsortedDrain) Finish(footer []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.prepared || len(footer) == 0 {
		return nil
	}
	if _, err := d.w.Write(footer); err != nil {
		return fmt.Errorf("processor: write footer: %w", err)
	}
	return nil
}
