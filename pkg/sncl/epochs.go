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
	"sort"
	"time"
)

// Epochs is a sorted, non-overlapping set of time intervals for one stream.
// It behaves like a minimal interval tree: Add does a union-merge (treating
// end-to-end adjacency as a merge), Slice cuts at a point, and Overlap
// answers range queries. A plain sorted slice is sufficient at the sizes
// this system deals with (one stream rarely has more than a handful of
// disjoint windows) so no balanced-tree machinery is needed.
type Epochs struct {
	intervals []Epoch
}

// NewEpochs builds an Epochs set from zero or more intervals, merging any
// that touch or overlap.
func NewEpochs(intervals ...Epoch) *Epochs {
	e := &Epochs{}
	for _, iv := range intervals {
		e.Add(iv)
	}
	return e
}

// Add unions iv into the set, merging with any existing interval that
// overlaps or is end-to-end adjacent to it.
func (e *Epochs) Add(iv Epoch) {
	merged := iv
	out := e.intervals[:0]
	for _, existing := range e.intervals {
		if merged.AdjacentOrOverlapping(existing) {
			merged = unionOf(merged, existing)
		} else {
			out = append(out, existing)
		}
	}
	out = append(out, merged)
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	e.intervals = out
}

func unionOf(a, b Epoch) Epoch {
	start := a.Start
	if b.Start.Before(start) {
		start = b.Start
	}
	if a.End == nil || b.End == nil {
		return Epoch{Start: start, End: nil}
	}
	endT := *a.End
	if b.End.After(endT) {
		endT = *b.End
	}
	return Epoch{Start: start, End: &endT}
}

// List returns the merged, sorted intervals.
func (e *Epochs) List() []Epoch {
	out := make([]Epoch, len(e.intervals))
	copy(out, e.intervals)
	return out
}

// Empty reports whether the set has no intervals.
func (e *Epochs) Empty() bool { return len(e.intervals) == 0 }

// Hull returns the smallest single epoch spanning every interval in the
// set, open-ended if any member is open. ok is false for an empty set.
func (e *Epochs) Hull() (Epoch, bool) {
	if len(e.intervals) == 0 {
		return Epoch{}, false
	}
	start := e.intervals[0].Start
	for _, iv := range e.intervals {
		if iv.Start.Before(start) {
			start = iv.Start
		}
	}
	anyOpen := false
	var maxEnd time.Time
	for i, iv := range e.intervals {
		if iv.End == nil {
			anyOpen = true
			continue
		}
		if i == 0 || iv.End.After(maxEnd) {
			maxEnd = *iv.End
		}
	}
	if anyOpen {
		return Epoch{Start: start, End: nil}, true
	}
	return Epoch{Start: start, End: &maxEnd}, true
}

// Overlap returns the subset of intervals overlapping window.
func (e *Epochs) Overlap(window Epoch) []Epoch {
	var out []Epoch
	for _, iv := range e.intervals {
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	return out
}

// IntersectAll intersects every interval with window, dropping members that
// no longer overlap. Used by StreamEpochsHandler.ModifyWithTemporalConstraints.
func (e *Epochs) IntersectAll(window Epoch) *Epochs {
	out := &Epochs{}
	for _, iv := range e.intervals {
		if clipped, ok := iv.Intersect(window); ok {
			out.intervals = append(out.intervals, clipped)
		}
	}
	sort.Slice(out.intervals, func(i, j int) bool { return out.intervals[i].Start.Before(out.intervals[j].Start) })
	return out
}

// Slice cuts each interval at point t into a "before" and "after" part,
// returning the two resulting Epochs sets. Empty halves are omitted.
func (e *Epochs) Slice(t time.Time) (before, after *Epochs) {
	before, after = &Epochs{}, &Epochs{}
	for _, iv := range e.intervals {
		if !iv.Start.Before(t) {
			after.intervals = append(after.intervals, iv)
			continue
		}
		if iv.End != nil && !iv.End.After(t) {
			before.intervals = append(before.intervals, iv)
			continue
		}
		// t falls strictly inside iv: split.
		before.intervals = append(before.intervals, Epoch{Start: iv.Start, End: &t})
		var afterEnd *time.Time
		if iv.End != nil {
			e := *iv.End
			afterEnd = &e
		}
		after.intervals = append(after.intervals, Epoch{Start: t, End: afterEnd})
	}
	return before, after
}
