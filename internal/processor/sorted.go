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

package processor

import (
	"container/heap"
	"fmt"
	"sync"
)

// priorityChunk is one (priority, bytes) tuple from a dispatched job.
type priorityChunk struct {
	priority int
	data     []byte
}

type chunkHeap []priorityChunk

func (h chunkHeap) Len() int            { return len(h) }
func (h chunkHeap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h chunkHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *chunkHeap) Push(x any)         { *h = append(*h, x.(priorityChunk)) }
func (h *chunkHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// sortedDrain implements the sorted-response processor: each (priority,
// bytes) write either goes straight out (priority == expected, advancing
// expected and draining any now-contiguous heap entries), buffers on a
// min-heap (priority > expected), or is dropped (priority < expected, an
// already-finalized slot). The pool-submitted workers writing directly
// under this mutex stand in for a separate background consumer pulling
// from a queue: the net effect, one writer admitted at a time in priority
// order, is the same without an extra goroutine hop.
type sortedDrain struct {
	mu        sync.Mutex
	w         writer
	header    []byte
	separator []byte
	expected  int
	heap      chunkHeap
	prepared  bool
}

func newSortedDrain(w writer, header, separator []byte) *sortedDrain {
	return &sortedDrain{w: w, header: header, separator: separator}
}

// WritePriority submits one job's output at its priority slot.
func (d *sortedDrain) WritePriority(priority int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if priority < d.expected {
		return nil
	}
	if priority > d.expected {
		heap.Push(&d.heap, priorityChunk{priority: priority, data: data})
		return nil
	}

	if err := d.emit(data); err != nil {
		return err
	}
	d.expected++
	for len(d.heap) > 0 && d.heap[0].priority == d.expected {
		next := heap.Pop(&d.heap).(priorityChunk)
		if err := d.emit(next.data); err != nil {
			return err
		}
		d.expected++
	}
	return nil
}

func (d *sortedDrain) emit(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !d.prepared {
		if len(d.header) > 0 {
			if _, err := d.w.Write(d.header); err != nil {
				return fmt.Errorf("processor: write header: %w", err)
			}
		}
		d.prepared = true
	} else if len(d.separator) > 0 {
		if _, err := d.w.Write(d.separator); err != nil {
			return fmt.Errorf("processor: write separator: %w", err)
		}
	}
	_, err := d.w.Write(data)
	return err
}

// priorityDrain adapts one dispatched job's slot in a sortedDrain to the
// endpoint.Drain interface, so a worker streaming through ctx.Drain lands
// its bytes at the job's pre-assigned priority.
type priorityDrain struct {
	d        *sortedDrain
	priority int
}

func (p priorityDrain) Write(data []byte) (int, error) {
	if err := p.d.WritePriority(p.priority, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// WriteSequential appends data in call order, bypassing the priority
// slots. Used for output produced after the pool has drained (a worker
// emitting everything in one Flush), where the priority bookkeeping would
// treat every chunk as a replay of an already-finalized slot.
func (d *sortedDrain) WriteSequential(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.emit(data)
}

// Prepared reports whether any chunk has been written yet.
func (d *sortedDrain) Prepared() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prepared
}

// Finish flushes any heap entries left after the pool has drained, in
// priority order, and writes the footer if the response was ever prepared.
func (d *sortedDrain) Finish(footer []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.heap) > 0 {
		next := heap.Pop(&d.heap).(priorityChunk)
		if err := d.emit(next.data); err != nil {
			return err
		}
	}
	if !d.prepared || len(footer) == 0 {
		return nil
	}
	if _, err := d.w.Write(footer); err != nil {
		return fmt.Errorf("processor: write footer: %w", err)
	}
	return nil
}
