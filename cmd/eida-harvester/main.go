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

// Package main provides the entry point for eida-harvester, the standalone
// periodic harvester process: it re-populates a routing store from
// an eida-routing localconfig document and a vnetwork document, pointed at
// the same store a co-deployed eida-federator reads through routing_dsn
// (a shared database). Against the zero-config in-memory store the
// harvested rows live only in this process and are not visible to a
// separately running eida-federator, which runs no harvester of its own.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eidaws/federator/internal/config"
	"github.com/eidaws/federator/internal/harvester"
	"github.com/eidaws/federator/internal/routing"
	"github.com/sirupsen/logrus"
)

func main() {
	fs := flag.NewFlagSet("eida-harvester", flag.ExitOnError)
	cfg := config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])
	if err := cfg.LoadOverlay(); err != nil {
		logrus.WithError(err).Fatal("harvester: load config overlay")
	}
	if cfg.HarvestConfigFile == "" {
		logrus.Fatal("harvester: -harvest_config is required")
	}

	log := logrus.NewEntry(logrus.StandardLogger())

	store, closeStore, err := routing.Open(cfg.RoutingDriver, cfg.RoutingDSN)
	if err != nil {
		log.WithError(err).Fatal("harvester: open routing store")
	}
	defer closeStore()

	transport := &http.Transport{}
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	httpClient := &http.Client{Timeout: cfg.EndpointConnectTimeout + cfg.EndpointReadTimeout, Transport: transport}
	routingHarvester := harvester.NewRoutingHarvester(store, httpClient, log)
	vnetHarvester := harvester.NewVNetHarvester(store, httpClient, log)

	scheduler := harvester.NewScheduler(store, routingHarvester, vnetHarvester, cfg.HarvestInterval, cfg.HarvestTruncation, cfg.HarvestPIDFile, log)
	scheduler.RoutingConfigURL = cfg.HarvestConfigFile
	scheduler.VNetConfigURL = cfg.HarvestConfigFile

	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("harvester: start")
	}
	log.WithField("interval", cfg.HarvestInterval).Info("harvester: started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("harvester: shutting down")
	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("harvester: stop timed out, exiting anyway")
	}
}
