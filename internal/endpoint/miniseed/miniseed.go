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

// Package miniseed implements the dataselect endpoint worker.
// The worker itself only holds the merge mechanics
// (record-size detection and last-record dedup across sub-responses);
// retrying a 413'd stream-epoch at progressively smaller sub-epochs is
// dispatch policy owned by internal/processor, which resubmits to the same
// Worker instance so its record-size/dedup state survives across retries
// for one logical stream-epoch.
package miniseed

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"

	"github.com/eidaws/federator/internal/endpoint"
)

const headerSize = 48

// ErrNoRecordSize is returned when blockette 1000 is absent and no usable
// fallback record size was configured; the response is dropped.
var ErrNoRecordSize = fmt.Errorf("miniseed: cannot determine record size")

// Worker aligns and deduplicates MiniSEED records across possibly-many
// sub-responses (split-and-align retries, or a plain multi-endpoint
// fan-out), writing each sub-response's surviving records to the drain as
// soon as they are consumed. The mutex keeps recordSize/lastRecord
// consistent and orders drain writes across concurrent sub-requests.
type Worker struct {
	fallbackRecordSize int

	mu         sync.Mutex
	recordSize int
	lastRecord []byte
}

// New builds a Worker. fallbackRecordSize is used only when blockette 1000
// cannot be located in the first record; it must be 0 or a multiple of 64.
func New(fallbackRecordSize int) *Worker {
	return &Worker{fallbackRecordSize: fallbackRecordSize}
}

// ParseInto reads one sub-response's MiniSEED body, determines the record
// size on first use, aligns the body to whole records, deduplicates a
// record that repeats the last one emitted (adjacent split-aligned
// sub-epochs overlap at their boundary), and writes the remainder to
// ctx.Drain.
func (w *Worker) ParseInto(resp *http.Response, ctx endpoint.ParseContext) error {
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotFound:
		return nil
	case http.StatusRequestEntityTooLarge:
		return endpoint.ErrTooLarge
	case http.StatusOK:
	default:
		return fmt.Errorf("miniseed: upstream status %d", resp.StatusCode)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("miniseed: read body: %w", err)
	}
	data := body.Bytes()
	if len(data) < headerSize {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.recordSize == 0 {
		size, err := detectRecordSize(data, w.fallbackRecordSize)
		if err != nil {
			return err
		}
		w.recordSize = size
	}

	aligned := len(data) / w.recordSize * w.recordSize
	data = data[:aligned]
	if len(data) == 0 {
		return nil
	}

	if w.lastRecord != nil && len(data) >= w.recordSize &&
		bytes.Equal(data[:w.recordSize], w.lastRecord) {
		data = data[w.recordSize:]
	}
	if len(data) == 0 {
		return nil
	}

	if _, err := ctx.Drain.Write(data); err != nil {
		return err
	}
	w.lastRecord = append([]byte(nil), data[len(data)-w.recordSize:]...)
	return nil
}

// detectRecordSize locates blockette 1000 in the first record and derives
// the record size as 2^(byte at blockette_start+6).
func detectRecordSize(data []byte, fallback int) (int, error) {
	dataOffset := int(binary.BigEndian.Uint16(data[44:46]))
	remainingStart := headerSize
	remainingEnd := dataOffset
	if remainingEnd < 256 {
		remainingEnd = 256
	}
	if remainingEnd > len(data) {
		remainingEnd = len(data)
	}

	pos := remainingStart
	for pos+4 <= remainingEnd {
		blocketteID := binary.BigEndian.Uint16(data[pos : pos+2])
		nextOffset := binary.BigEndian.Uint16(data[pos+2 : pos+4])
		if blocketteID == 1000 {
			if pos+7 > len(data) {
				break
			}
			exp := data[pos+6]
			return 1 << exp, nil
		}
		if nextOffset == 0 || int(nextOffset) <= pos {
			break
		}
		pos = int(nextOffset)
	}

	if fallback > 0 && fallback%64 == 0 {
		return fallback, nil
	}
	return 0, ErrNoRecordSize
}

// Flush is a no-op: every aligned record already went out through
// ctx.Drain as its sub-response was parsed.
func (w *Worker) Flush(endpoint.Drain) error { return nil }
