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
	"bytes"
	"testing"
)

func TestUnsortedDrainWritesHeaderOnlyOnce(t *testing.T) {
	var buf bytes.Buffer
	d := newUnsortedDrain(&buf, []byte("HEADER\n"))

	if d.Prepared() {
		t.Fatalf("drain should not be prepared before any write")
	}
	if _, err := d.Write([]byte("a")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := d.Write([]byte("b")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := d.Finish([]byte("FOOTER\n")); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if buf.String() != "HEADER\nabFOOTER\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestUnsortedDrainNoWritesMeansNoHeaderOrFooter(t *testing.T) {
	var buf bytes.Buffer
	d := newUnsortedDrain(&buf, []byte("HEADER\n"))
	if err := d.Finish([]byte("FOOTER\n")); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output when nothing was written, got %q", buf.String())
	}
	if d.Prepared() {
		t.Fatalf("drain should not be prepared")
	}
}
