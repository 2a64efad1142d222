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

package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// GCWorker periodically garbage-collects every Counter in a Store: a
// ticker loop guarded by a stopChan and WaitGroup, stoppable exactly once.
type GCWorker struct {
	store    *Store
	interval time.Duration
	log      *logrus.Entry
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// NewGCWorker builds a worker that GCs store's counters every interval.
func NewGCWorker(store *Store, interval time.Duration, log *logrus.Entry) *GCWorker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &GCWorker{store: store, interval: interval, log: log, stopChan: make(chan struct{})}
}

// Start launches the GC loop in a background goroutine.
func (w *GCWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
}

// Stop signals the loop to exit and waits for it.
func (w *GCWorker) Stop() {
	if !atomic.CompareAndSwapUint32(&w.stopped, 0, 1) {
		return
	}
	close(w.stopChan)
	w.wg.Wait()
}

func (w *GCWorker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.runCycle()
		case <-w.stopChan:
			return
		}
	}
}

func (w *GCWorker) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()
	var n int
	w.store.ForEach(func(c *Counter) {
		if err := c.GC(ctx); err != nil {
			w.log.WithError(err).WithField("key", c.key).Warn("stats: gc failed")
			return
		}
		n++
	})
	gcCyclesTotal.Inc()
	w.log.WithField("counters", n).Debug("stats: gc cycle complete")
}
