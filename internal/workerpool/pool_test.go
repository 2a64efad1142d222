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

package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllJobs(t *testing.T) {
	var count int64
	p := New(func(ctx context.Context, payload any) error {
		atomic.AddInt64(&count, payload.(int64))
		return nil
	}, 4)
	defer p.Close()

	for i := int64(1); i <= 10; i++ {
		p.Submit(i, false)
	}
	if err := p.Join(2 * time.Second); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if count != 55 {
		t.Fatalf("expected sum 55, got %d", count)
	}
}

func TestPoolFuturePropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	p := New(func(ctx context.Context, payload any) error {
		return wantErr
	}, 1)
	defer p.Close()

	f := p.Submit(nil, true)
	if err := f.Wait(); !errors.Is(err, wantErr) {
		t.Fatalf("expected future error %v, got %v", wantErr, err)
	}
}

func TestPoolJoinTimesOut(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := New(func(ctx context.Context, payload any) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	}, 1)
	defer func() {
		close(release)
		p.Close()
	}()

	p.Submit(nil, false)
	<-started
	if err := p.Join(10 * time.Millisecond); !errors.Is(err, ErrJoinTimeout) {
		t.Fatalf("expected ErrJoinTimeout, got %v", err)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	p := New(func(ctx context.Context, payload any) error {
		panic("worker exploded")
	}, 1)
	defer p.Close()

	f := p.Submit(nil, true)
	err := f.Wait()
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *PanicError, got %v (%T)", err, err)
	}
}
