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
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime(%q): %v", s, err)
	}
	return tm
}

func TestFromPOSTLine(t *testing.T) {
	se, err := FromPOSTLine([]byte("CH HASLI -- LHZ 2019-01-01 2019-01-05"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if se.Stream.Network != "CH" || se.Stream.Station != "HASLI" || se.Stream.Location != "--" || se.Stream.Channel != "LHZ" {
		t.Fatalf("unexpected stream: %+v", se.Stream)
	}
	if se.Epoch.End == nil || !se.Epoch.End.Equal(mustTime(t, "2019-01-05")) {
		t.Fatalf("unexpected end: %v", se.Epoch.End)
	}
}

func TestFromPOSTLineDefaultEnd(t *testing.T) {
	def := mustTime(t, "2020-01-01T00:00:00")
	se, err := FromPOSTLine([]byte("CH HASLI -- LHZ 2019-01-01"), &def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if se.Epoch.End == nil || !se.Epoch.End.Equal(def) {
		t.Fatalf("expected default end substituted, got %v", se.Epoch.End)
	}
	if se.UserSuppliedEnd {
		t.Fatalf("default-substituted end must not be marked user-supplied")
	}
}

func TestFromPOSTLineRejectsInvertedEpoch(t *testing.T) {
	_, err := FromPOSTLine([]byte("CH HASLI -- LHZ 2019-01-05 2019-01-01"), nil)
	if err == nil {
		t.Fatalf("expected error for inverted epoch")
	}
}

func TestSliceEvenAndRemainder(t *testing.T) {
	se := StreamEpoch{
		Stream: Stream{Network: "CH", Station: "HASLI", Location: "--", Channel: "LHZ"},
		Epoch:  Epoch{Start: mustTime(t, "2019-01-01"), End: ptrTime(mustTime(t, "2019-01-10"))},
	}
	pieces, err := se.Slice(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	if !pieces[0].Epoch.Start.Equal(se.Epoch.Start) {
		t.Fatalf("first piece should start at original start")
	}
	if !pieces[len(pieces)-1].Epoch.End.Equal(*se.Epoch.End) {
		t.Fatalf("last piece should end at original end")
	}
	for i := 0; i < len(pieces)-1; i++ {
		if !pieces[i].Epoch.End.Equal(pieces[i+1].Epoch.Start) {
			t.Fatalf("pieces must be contiguous: %v != %v", pieces[i].Epoch.End, pieces[i+1].Epoch.Start)
		}
	}
}

func TestSliceRejectsOpenEpoch(t *testing.T) {
	se := StreamEpoch{Epoch: Epoch{Start: mustTime(t, "2019-01-01"), End: nil}}
	if _, err := se.Slice(2); err == nil {
		t.Fatalf("expected error slicing an open epoch")
	}
}

func TestToSQLWildcards(t *testing.T) {
	cases := map[string]string{
		"HH*": "HH%",
		"H?Z": "H_Z",
		"H_Z": "H/_Z",
		"*":   "%",
	}
	for in, want := range cases {
		if got := ToSQLWildcards(in, ""); got != want {
			t.Errorf("ToSQLWildcards(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalizeOffsetsOnlyUnsuppliedBounds(t *testing.T) {
	t0 := mustTime(t, "2019-01-01T00:00:00")
	t1 := mustTime(t, "2019-01-02T00:00:00")
	se := StreamEpoch{
		Epoch:             Epoch{Start: t0, End: &t1},
		UserSuppliedStart: true,
		UserSuppliedEnd:   false,
	}
	canon := se.Canonicalize()
	if !canon.Epoch.Start.Equal(t0) {
		t.Fatalf("user-supplied start must not move, got %v", canon.Epoch.Start)
	}
	if !canon.Epoch.End.Equal(t1.Add(-CanonicalOffset)) {
		t.Fatalf("unsupplied end must move back by one offset, got %v", canon.Epoch.End)
	}
}

func TestEpochsUnionMergesAdjacent(t *testing.T) {
	t0 := mustTime(t, "2019-01-01")
	t1 := mustTime(t, "2019-01-02")
	t2 := mustTime(t, "2019-01-03")
	e := NewEpochs(Epoch{Start: t0, End: &t1}, Epoch{Start: t1, End: &t2})
	list := e.List()
	if len(list) != 1 {
		t.Fatalf("expected adjacent intervals to merge into 1, got %d", len(list))
	}
	if !list[0].Start.Equal(t0) || !list[0].End.Equal(t2) {
		t.Fatalf("unexpected merged interval: %+v", list[0])
	}
}

func TestEpochsOverlapQuery(t *testing.T) {
	t0 := mustTime(t, "2019-01-01")
	t1 := mustTime(t, "2019-01-02")
	t3 := mustTime(t, "2019-01-05")
	t4 := mustTime(t, "2019-01-06")
	e := NewEpochs(Epoch{Start: t0, End: &t1}, Epoch{Start: t3, End: &t4})
	hits := e.Overlap(Epoch{Start: mustTime(t, "2019-01-04"), End: ptrTime(mustTime(t, "2019-01-10"))})
	if len(hits) != 1 {
		t.Fatalf("expected 1 overlapping interval, got %d", len(hits))
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
