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

import "sort"

// StreamEpochs is a Stream paired with the (possibly several,
// non-overlapping) time windows requested for it.
type StreamEpochs struct {
	Stream Stream
	Epochs *Epochs
}

// Yield emits one StreamEpoch per interval in Epochs, in sorted order.
func (se StreamEpochs) Yield() []StreamEpoch {
	intervals := se.Epochs.List()
	out := make([]StreamEpoch, len(intervals))
	for i, iv := range intervals {
		out[i] = StreamEpoch{Stream: se.Stream, Epoch: iv}
	}
	return out
}

// StreamEpochsHandler maps each Stream to the epochs requested for it. It is
// the accumulator routing resolution builds up while joining rows and the
// processor uses to group dispatch by endpoint.
type StreamEpochsHandler struct {
	byStream map[Stream]*Epochs
	order    []Stream
}

// NewStreamEpochsHandler returns an empty handler.
func NewStreamEpochsHandler() *StreamEpochsHandler {
	return &StreamEpochsHandler{byStream: make(map[Stream]*Epochs)}
}

// Add unions se's epoch into the set for se.Stream.
func (h *StreamEpochsHandler) Add(se StreamEpoch) {
	e, ok := h.byStream[se.Stream]
	if !ok {
		e = &Epochs{}
		h.byStream[se.Stream] = e
		h.order = append(h.order, se.Stream)
	}
	e.Add(se.Epoch)
}

// ModifyWithTemporalConstraints intersects every stream's epochs with
// window, dropping streams left with no overlap.
func (h *StreamEpochsHandler) ModifyWithTemporalConstraints(window Epoch) {
	for _, s := range h.order {
		h.byStream[s] = h.byStream[s].IntersectAll(window)
	}
}

// CanonicalizeEpochs applies StreamEpoch.Canonicalize to every emitted
// interval. supplied reports, for a given stream and boundary instant,
// whether that exact instant was client-supplied (vs. derived by a join);
// callers pass a closure capturing the per-row UserSupplied flags they
// tracked during resolution, since Epochs itself loses that provenance on
// union-merge.
func (h *StreamEpochsHandler) CanonicalizeEpochs(supplied func(s Stream, boundary StreamEpoch) (startUser, endUser bool)) {
	for _, s := range h.order {
		epochs := h.byStream[s]
		canon := &Epochs{}
		for _, iv := range epochs.List() {
			se := StreamEpoch{Stream: s, Epoch: iv}
			se.UserSuppliedStart, se.UserSuppliedEnd = supplied(s, se)
			canon.intervals = append(canon.intervals, se.Canonicalize().Epoch)
		}
		h.byStream[s] = canon
	}
}

// Streams returns the streams with at least one epoch, in insertion order.
func (h *StreamEpochsHandler) Streams() []Stream {
	out := make([]Stream, 0, len(h.order))
	for _, s := range h.order {
		if e, ok := h.byStream[s]; ok && !e.Empty() {
			out = append(out, s)
		}
	}
	return out
}

// Epochs returns the epoch set for s, or nil if unknown.
func (h *StreamEpochsHandler) Epochs(s Stream) *Epochs {
	return h.byStream[s]
}

// Hulls demultiplexes the handler into one StreamEpoch per stream spanning
// the hull of its epochs, used at network and station level.
func (h *StreamEpochsHandler) Hulls() []StreamEpoch {
	streams := h.Streams()
	out := make([]StreamEpoch, 0, len(streams))
	for _, s := range streams {
		hull, ok := h.byStream[s].Hull()
		if !ok {
			continue
		}
		out = append(out, StreamEpoch{Stream: s, Epoch: hull})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Expand demultiplexes the handler into one StreamEpoch per merged
// interval, the granular counterpart of Hulls.
func (h *StreamEpochsHandler) Expand() []StreamEpoch {
	var out []StreamEpoch
	for _, s := range h.Streams() {
		out = append(out, StreamEpochs{Stream: s, Epochs: h.byStream[s]}.Yield()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
