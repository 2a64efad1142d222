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

package harvester

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eidaws/federator/internal/routing"
	"github.com/sirupsen/logrus"
)

// Scheduler periodically runs the routing and virtual-network harvesters
// and then truncates stale rows, holding a PID lock for its whole lifetime
// so at most one harvester instance runs against a given store. Shaped
// after internal/stats.GCWorker's ticker+stopChan+WaitGroup+atomic pattern.
type Scheduler struct {
	Repo             routing.HarvestRepository
	RoutingHarvester *RoutingHarvester
	VNetHarvester    *VNetHarvester
	RoutingConfigURL string
	VNetConfigURL    string
	Interval         time.Duration
	Truncation       time.Duration
	PIDFile          string
	Log              *logrus.Entry

	lock     *pidLock
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// NewScheduler builds a Scheduler. RoutingConfigURL and VNetConfigURL may be
// left empty to skip that harvester; PIDFile may be left empty to skip
// interprocess locking (used by tests).
func NewScheduler(repo routing.HarvestRepository, routingHarvester *RoutingHarvester, vnetHarvester *VNetHarvester, interval, truncation time.Duration, pidFile string, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		Repo:             repo,
		RoutingHarvester: routingHarvester,
		VNetHarvester:    vnetHarvester,
		Interval:         interval,
		Truncation:       truncation,
		PIDFile:          pidFile,
		Log:              log,
	}
}

// Start acquires the PID lock (if PIDFile is set) and launches the
// harvesting loop in the background, running one cycle immediately.
func (s *Scheduler) Start() error {
	if s.PIDFile != "" {
		lock, err := acquirePIDLock(s.PIDFile)
		if err != nil {
			return fmt.Errorf("harvester: %w", err)
		}
		s.lock = lock
	}
	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return nil
}

// Stop signals the loop to exit, waits for it, and releases the PID lock.
func (s *Scheduler) Stop() {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return
	}
	close(s.stopChan)
	s.wg.Wait()
	if s.lock != nil {
		s.lock.release()
	}
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.runCycle()
	for {
		select {
		case <-ticker.C:
			s.runCycle()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
	defer cancel()
	now := time.Now().UTC()

	if s.RoutingConfigURL != "" && s.RoutingHarvester != nil {
		if err := s.RoutingHarvester.Harvest(ctx, s.RoutingConfigURL, now); err != nil {
			s.Log.WithError(err).Warn("harvester: routing harvest failed")
		}
	}
	if s.VNetConfigURL != "" && s.VNetHarvester != nil {
		if err := s.VNetHarvester.Harvest(ctx, s.VNetConfigURL, now); err != nil {
			s.Log.WithError(err).Warn("harvester: vnetwork harvest failed")
		}
	}
	if s.Truncation > 0 {
		cutoff := now.Add(-s.Truncation)
		n, err := s.Repo.Truncate(ctx, cutoff)
		if err != nil {
			s.Log.WithError(err).Warn("harvester: truncate failed")
			return
		}
		if n > 0 {
			s.Log.WithField("removed", n).Info("harvester: truncated stale routings")
		}
	}
}
