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

package config

import (
	"flag"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestRegisterFlagsDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c := RegisterFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", c.Port)
	}
	if c.CacheType != "null" {
		t.Fatalf("expected default cache_type null, got %q", c.CacheType)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "federator.yaml")
	doc := "port: 9090\nclient_retry_budget_threshold: 0.5\ncache_type: redis\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c := RegisterFlags(fs)
	if err := fs.Parse([]string{"-config", path}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := c.LoadOverlay(); err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	if c.Port != 9090 {
		t.Fatalf("expected overlaid port 9090, got %d", c.Port)
	}
	if c.RetryBudgetThreshold != 0.5 {
		t.Fatalf("expected overlaid threshold 0.5, got %v", c.RetryBudgetThreshold)
	}
	if c.CacheType != "redis" {
		t.Fatalf("expected overlaid cache_type redis, got %q", c.CacheType)
	}
	if c.PoolSize != 20 {
		t.Fatalf("expected un-overlaid pool_size to keep its flag default, got %d", c.PoolSize)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")

	if got := ClientIP(r, 0); got != "10.0.0.1" {
		t.Fatalf("numForwarded=0: expected peer address, got %q", got)
	}
	if got := ClientIP(r, 1); got != "203.0.113.9" {
		t.Fatalf("numForwarded=1: expected client address behind one trusted proxy, got %q", got)
	}
	if got := ClientIP(r, 5); got != "10.0.0.1" {
		t.Fatalf("numForwarded exceeding hop count: expected fallback to peer address, got %q", got)
	}
}
