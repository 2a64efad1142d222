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

// StreamEpoch is a Stream plus the time window to fetch it over.
type StreamEpoch struct {
	Stream Stream
	Epoch  Epoch

	// UserSuppliedStart/UserSuppliedEnd record whether the corresponding
	// bound came from the client (vs. a substituted default), which feeds
	// epoch canonicalization.
	UserSuppliedStart bool
	UserSuppliedEnd   bool
}

// String renders "NET STA LOC CHA START END" for POST-style logging.
func (se StreamEpoch) String() string {
	end := ".."
	if se.Epoch.End != nil {
		end = FormatTime(*se.Epoch.End)
	}
	return fmt.Sprintf("%s %s %s %s %s %s", se.Stream.Network, se.Stream.Station, se.Stream.Location, se.Stream.Channel, FormatTime(se.Epoch.Start), end)
}

// Less orders by Stream then Epoch.Start.
func (se StreamEpoch) Less(other StreamEpoch) bool {
	if se.Stream != other.Stream {
		return se.Stream.Less(other.Stream)
	}
	return se.Epoch.Start.Before(other.Epoch.Start)
}

// FromPOSTLine parses one "NET STA LOC CHA START [END]" POST-body line.
// If END is omitted, defaultEnd is substituted when non-nil; otherwise the
// epoch is left open-ended.
func FromPOSTLine(line []byte, defaultEnd *time.Time) (StreamEpoch, error) {
	fields := strings.Fields(string(line))
	if len(fields) < 5 || len(fields) > 6 {
		return StreamEpoch{}, fmt.Errorf("sncl: malformed POST line %q", string(line))
	}
	stream, err := ParseStream(fields[:4])
	if err != nil {
		return StreamEpoch{}, err
	}
	start, err := ParseTime(fields[4])
	if err != nil {
		return StreamEpoch{}, fmt.Errorf("sncl: bad start time: %w", err)
	}
	se := StreamEpoch{Stream: stream, UserSuppliedStart: true}
	if len(fields) == 6 {
		end, err := ParseTime(fields[5])
		if err != nil {
			return StreamEpoch{}, fmt.Errorf("sncl: bad end time: %w", err)
		}
		se.Epoch = Epoch{Start: start, End: &end}
		se.UserSuppliedEnd = true
	} else if defaultEnd != nil {
		se.Epoch = Epoch{Start: start, End: defaultEnd}
		se.UserSuppliedEnd = false
	} else {
		se.Epoch = Epoch{Start: start, End: nil}
		se.UserSuppliedEnd = false
	}
	if !se.Epoch.Valid() {
		return StreamEpoch{}, fmt.Errorf("sncl: invalid epoch, start must be before end: %s", se)
	}
	return se, nil
}

// Slice divides the epoch into n equal-duration contiguous pieces. The
// first n-1 pieces get equal shares; the last absorbs any rounding
// remainder. Slicing an open-ended epoch is an error: there is no fixed
// duration to divide.
func (se StreamEpoch) Slice(n int) ([]StreamEpoch, error) {
	if n < 1 {
		return nil, fmt.Errorf("sncl: slice count must be >= 1, got %d", n)
	}
	if se.Epoch.End == nil {
		return nil, fmt.Errorf("sncl: cannot slice an open-ended epoch")
	}
	total := se.Epoch.End.Sub(se.Epoch.Start)
	share := total / time.Duration(n)
	out := make([]StreamEpoch, n)
	cursor := se.Epoch.Start
	for i := 0; i < n; i++ {
		var end time.Time
		if i == n-1 {
			end = *se.Epoch.End
		} else {
			end = cursor.Add(share)
		}
		out[i] = StreamEpoch{
			Stream:            se.Stream,
			Epoch:             Epoch{Start: cursor, End: &end},
			UserSuppliedStart: se.UserSuppliedStart && i == 0,
			UserSuppliedEnd:   se.UserSuppliedEnd && i == n-1,
		}
		cursor = end
	}
	return out, nil
}

// Canonicalize offsets each boundary not supplied by the user by
// +CanonicalOffset (start) or -CanonicalOffset (end), so adjacent
// station-level epochs don't visually touch.
func (se StreamEpoch) Canonicalize() StreamEpoch {
	out := se
	if !se.UserSuppliedStart {
		out.Epoch.Start = se.Epoch.Start.Add(CanonicalOffset)
	}
	if !se.UserSuppliedEnd && se.Epoch.End != nil {
		end := se.Epoch.End.Add(-CanonicalOffset)
		out.Epoch.End = &end
	}
	return out
}

// ClipTo intersects se's epoch with window, reporting false if there is no
// overlap. The result's UserSupplied flags are inherited from se; clipping
// to a query window is not itself a user-supplied bound unless the clip
// didn't move that boundary.
func (se StreamEpoch) ClipTo(window Epoch) (StreamEpoch, bool) {
	clipped, ok := se.Epoch.Intersect(window)
	if !ok {
		return StreamEpoch{}, false
	}
	out := se
	out.Epoch = clipped
	out.UserSuppliedStart = se.UserSuppliedStart && clipped.Start.Equal(se.Epoch.Start)
	if clipped.End != nil && se.Epoch.End != nil {
		out.UserSuppliedEnd = se.UserSuppliedEnd && clipped.End.Equal(*se.Epoch.End)
	} else {
		out.UserSuppliedEnd = se.UserSuppliedEnd && clipped.End == se.Epoch.End
	}
	return out, true
}
