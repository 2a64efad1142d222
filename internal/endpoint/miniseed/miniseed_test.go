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

package miniseed

import (
	"bytes"
	"encoding/binary"
	"io"
	"net/http"
	"testing"

	"github.com/eidaws/federator/internal/endpoint"
)

const testRecordSize = 256

// fakeRecord builds one 256-byte synthetic MiniSEED record carrying a
// blockette-1000 whose record-length exponent is 8 (2^8 = 256), with fill
// set so distinct records can be told apart.
func fakeRecord(fill byte) []byte {
	rec := make([]byte, testRecordSize)
	binary.BigEndian.PutUint16(rec[44:46], 56) // data_offset
	binary.BigEndian.PutUint16(rec[48:50], 1000) // blockette id
	binary.BigEndian.PutUint16(rec[50:52], 0)    // next_offset (none)
	rec[52] = 5                                  // encoding format
	rec[53] = 1                                  // word order
	rec[54] = 8                                  // record length exponent
	rec[55] = 0                                  // reserved
	for i := 56; i < testRecordSize; i++ {
		rec[i] = fill
	}
	return rec
}

func respOK(body []byte) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body))}
}

func TestWorkerDetectsRecordSizeFromBlockette1000(t *testing.T) {
	w := New(0)
	var out bytes.Buffer
	body := fakeRecord(0xAA)
	if err := w.ParseInto(respOK(body), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto: %v", err)
	}
	if w.recordSize != testRecordSize {
		t.Fatalf("expected detected record size %d, got %d", testRecordSize, w.recordSize)
	}
	if out.Len() != testRecordSize {
		t.Fatalf("expected the record streamed during ParseInto, got %d bytes", out.Len())
	}
}

func TestWorkerDedupsRepeatedLastRecord(t *testing.T) {
	w := New(0)
	var out bytes.Buffer
	r1 := fakeRecord(0x11)
	r2 := fakeRecord(0x22)

	if err := w.ParseInto(respOK(r1), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto r1: %v", err)
	}
	// Second sub-response repeats r1 (overlap at split boundary) then adds r2.
	overlap := append(append([]byte(nil), r1...), r2...)
	if err := w.ParseInto(respOK(overlap), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto overlap: %v", err)
	}

	if err := w.Flush(&out); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if out.Len() != 2*testRecordSize {
		t.Fatalf("expected exactly 2 records after dedup, got %d bytes", out.Len())
	}
	if !bytes.Equal(out.Bytes()[:testRecordSize], r1) || !bytes.Equal(out.Bytes()[testRecordSize:], r2) {
		t.Fatalf("unexpected merged output")
	}
}

func TestWorkerUsesFallbackWhenNoBlockette1000(t *testing.T) {
	w := New(128)
	var out bytes.Buffer
	body := make([]byte, 128) // no blockette 1000 present
	if err := w.ParseInto(respOK(body), endpoint.ParseContext{Drain: &out}); err != nil {
		t.Fatalf("ParseInto: %v", err)
	}
	if w.recordSize != 128 {
		t.Fatalf("expected fallback record size 128, got %d", w.recordSize)
	}
}

func TestWorkerDropsResponseWithoutRecordSizeOrFallback(t *testing.T) {
	w := New(0)
	var out bytes.Buffer
	body := make([]byte, 128)
	err := w.ParseInto(respOK(body), endpoint.ParseContext{Drain: &out})
	if err != ErrNoRecordSize {
		t.Fatalf("expected ErrNoRecordSize, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected dropped response to stream nothing, got %d bytes", out.Len())
	}
}

func TestWorkerTooLargeReturnsSentinel(t *testing.T) {
	w := New(0)
	resp := &http.Response{StatusCode: http.StatusRequestEntityTooLarge, Body: io.NopCloser(bytes.NewReader(nil))}
	if err := w.ParseInto(resp, endpoint.ParseContext{}); err != endpoint.ErrTooLarge {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
