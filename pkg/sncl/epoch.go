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
	"time"
)

// Epoch is a half-open UTC time interval [Start, End). A nil End means
// open-ended ("currently acquiring").
type Epoch struct {
	Start time.Time
	End   *time.Time
}

// NewEpoch builds an epoch, panicking is avoided: callers validate with
// Valid() since an ill-formed epoch (Start >= End) is a data error, not a
// programmer error, in routing/harvester code paths.
func NewEpoch(start time.Time, end *time.Time) Epoch {
	return Epoch{Start: start.UTC(), End: normalizeEnd(end)}
}

func normalizeEnd(end *time.Time) *time.Time {
	if end == nil {
		return nil
	}
	u := end.UTC()
	return &u
}

// Valid reports the invariant starttime < endtime when both are set.
func (e Epoch) Valid() bool {
	if e.End == nil {
		return true
	}
	return e.Start.Before(*e.End)
}

// Open reports whether the epoch has no end (still acquiring).
func (e Epoch) Open() bool { return e.End == nil }

// Duration returns End-Start, or the maximum duration if open-ended.
func (e Epoch) Duration() time.Duration {
	if e.End == nil {
		return time.Duration(1<<63 - 1)
	}
	return e.End.Sub(e.Start)
}

// EndOrMax returns End if set, or max if the epoch is open-ended, used to
// compute hulls and overlaps against a fixed reference instant.
func (e Epoch) EndOrMax(max time.Time) time.Time {
	if e.End == nil {
		return max
	}
	return *e.End
}

// Overlaps reports whether e and other share any instant, treating an open
// end as extending to positive infinity.
func (e Epoch) Overlaps(other Epoch) bool {
	if !e.Start.Before(other.endBound()) {
		return false
	}
	if !other.Start.Before(e.endBound()) {
		return false
	}
	return true
}

// endBound returns a far-future sentinel for open epochs so comparisons can
// use plain time.Before/After without special-casing nil.
func (e Epoch) endBound() time.Time {
	if e.End == nil {
		return maxTime
	}
	return *e.End
}

var maxTime = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Intersect returns the overlap of e and other, and false if they do not
// overlap. An open end survives intersection only if both operands are open.
func (e Epoch) Intersect(other Epoch) (Epoch, bool) {
	if !e.Overlaps(other) {
		return Epoch{}, false
	}
	start := e.Start
	if other.Start.After(start) {
		start = other.Start
	}
	var end *time.Time
	switch {
	case e.End == nil && other.End == nil:
		end = nil
	case e.End == nil:
		end = other.End
	case other.End == nil:
		end = e.End
	default:
		if e.End.Before(*other.End) {
			end = e.End
		} else {
			end = other.End
		}
	}
	return Epoch{Start: start, End: end}, start.Before(endOf(end))
}

func endOf(end *time.Time) time.Time {
	if end == nil {
		return maxTime
	}
	return *end
}

// AdjacentOrOverlapping reports whether e ends where other begins (or
// overlaps it), the condition under which Epochs.union-merges two entries.
func (e Epoch) AdjacentOrOverlapping(other Epoch) bool {
	if e.Start.After(other.Start) {
		return other.AdjacentOrOverlapping(e)
	}
	return !e.endBound().Before(other.Start)
}
