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

// Package main provides the entry point for eida-federator, the federating
// gateway: it mounts the FDSNWS-facing station/dataselect/wfcatalog/
// availability surfaces, the routing HTTP surface its own routing client
// talks to at /eidaws/routing/1/query, and the read-only stationlite
// discovery surface, sharing one routing store, one retry-budget stats
// store, and one response cache across every request.
//
// Initialization order: parse flags, build the long-lived components,
// wire the HTTP mux, start listening in a goroutine, then block for a
// shutdown signal and drain in-flight requests before exiting.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eidaws/federator/internal/cache"
	"github.com/eidaws/federator/internal/config"
	"github.com/eidaws/federator/internal/endpoint/stationxml"
	"github.com/eidaws/federator/internal/handler"
	"github.com/eidaws/federator/internal/processor"
	"github.com/eidaws/federator/internal/routing"
	"github.com/eidaws/federator/internal/routingclient"
	"github.com/eidaws/federator/internal/routingservice"
	"github.com/eidaws/federator/internal/stationlite"
	"github.com/eidaws/federator/internal/stats"
	"github.com/sirupsen/logrus"

	redis "github.com/redis/go-redis/v9"
)

func main() {
	fs := flag.NewFlagSet("eida-federator", flag.ExitOnError)
	cfg := config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])
	if err := cfg.LoadOverlay(); err != nil {
		logrus.WithError(err).Fatal("federator: load config overlay")
	}

	log := logrus.NewEntry(logrus.StandardLogger())

	store, closeStore, err := routing.Open(cfg.RoutingDriver, cfg.RoutingDSN)
	if err != nil {
		log.WithError(err).Fatal("federator: open routing store")
	}
	defer closeStore()
	resolver := routing.NewResolver(store)

	statsBackend, closeStats := buildStatsBackend(cfg, log)
	defer closeStats()
	statsStore := stats.NewStore(statsBackend, stats.Config{
		WindowSize: cfg.RetryBudgetWindowSize,
		TTL:        cfg.RetryBudgetTTL,
		Threshold:  cfg.RetryBudgetThreshold,
	})
	gcWorker := stats.NewGCWorker(statsStore, cfg.RetryBudgetTTL, log)
	gcWorker.Start()
	defer gcWorker.Stop()

	cacheBackend, err := cache.Build(cfg.CacheType, cache.Options{URL: cfg.CacheURL, Compress: cfg.CacheCompress})
	if err != nil {
		log.WithError(err).Fatal("federator: build cache backend")
	}

	transport := &http.Transport{
		MaxConnsPerHost:     cfg.EndpointPerHostLimit,
		MaxIdleConnsPerHost: cfg.EndpointPerHostLimit,
		MaxIdleConns:        cfg.EndpointConnectionLimit,
		DialContext: (&net.Dialer{Timeout: cfg.EndpointConnectTimeout}).DialContext,
	}
	endpointClient := &http.Client{Transport: transport, Timeout: cfg.EndpointReadTimeout}

	routingURL := cfg.RoutingURL
	if routingURL == "" {
		routingURL = fmt.Sprintf("http://127.0.0.1:%d/eidaws/routing/1/query", cfg.Port)
	}
	routingHTTPClient := &http.Client{Timeout: cfg.EndpointConnectTimeout + cfg.EndpointReadTimeout}
	routingClient := routingclient.NewClient(routingHTTPClient, statsStore, routingclient.DurationLimits{
		PerStream: cfg.MaxStreamEpochDuration,
		Total:     cfg.MaxStreamEpochDurationTotal,
	})

	lifecycle := func(poolSize int, splittingFactor int) *processor.Lifecycle {
		return &processor.Lifecycle{
			Cache:            cacheBackend,
			CacheCompressed:  cfg.CacheType != "null" && cfg.CacheCompress,
			CacheTTL:         cfg.CacheDefaultTimeout,
			Routing:          routingClient,
			RoutingURL:       routingURL,
			Stats:            statsStore,
			HTTPClient:       endpointClient,
			PoolSize:         poolSize,
			StreamingTimeout: cfg.StreamingTimeout,
			SplittingFactor:  splittingFactor,
			MinSplitDuration: cfg.MinSplitDuration,
			MaxSplitDepth:    cfg.MaxSplitDepth,
			NoDataStatus:     cfg.NoDataStatus,
		}
	}

	mux := http.NewServeMux()

	mux.Handle("/fdsnws/station/1/query", serviceHandler(lifecycle(cfg.PoolSize, cfg.SplittingFactor), "station",
		handler.StationFormats(stationxml.LevelChannel), "xml", cfg, log))
	mux.Handle("/fdsnws/dataselect/1/query", serviceHandler(lifecycle(cfg.PoolSize, cfg.SplittingFactor), "dataselect",
		handler.DataselectFormats(cfg.FallbackMSeedRecordSize), "miniseed", cfg, log))
	mux.Handle("/eidaws/wfcatalog/1/query", serviceHandler(lifecycle(cfg.PoolSize, cfg.SplittingFactor), "wfcatalog",
		handler.WFCatalogFormats(), "json", cfg, log))
	mux.Handle("/fdsnws/availability/1/query", serviceHandler(lifecycle(cfg.PoolSize, cfg.SplittingFactor), "availability",
		handler.AvailabilityFormats(), "text", cfg, log))
	mux.Handle("/fdsnws/availability/1/extent", serviceHandler(lifecycle(cfg.PoolSize, cfg.SplittingFactor), "availability",
		handler.AvailabilityFormats(), "text", cfg, log))

	mux.Handle("/eidaws/routing/1/query", routingservice.NewHandler(resolver, "", log))
	mux.Handle("/eidaws/stationlite/1/query", stationlite.NewHandler(store, routing.ServiceStation, "", log))

	addr := fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	listener, err := listen(cfg)
	if err != nil {
		log.WithError(err).Fatal("federator: listen")
	}
	go func() {
		log.WithField("addr", listener.Addr().String()).Info("federator: listening")
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("federator: serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("federator: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("federator: shutdown")
	}
}

// listen binds the unix_path socket when set, falling back to the
// hostname:port TCP listener otherwise.
func listen(cfg *config.Config) (net.Listener, error) {
	if cfg.UnixPath != "" {
		return net.Listen("unix", cfg.UnixPath)
	}
	return net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port))
}

// serviceHandler wires a ServiceHandler's ancillary fields from cfg, since
// handler.NewServiceHandler only takes the arguments every caller shares.
func serviceHandler(lifecycle *processor.Lifecycle, service string, formats map[string]processor.Format, defaultFormat string, cfg *config.Config, log *logrus.Entry) http.Handler {
	h := handler.NewServiceHandler(lifecycle, service, formats, defaultFormat, log)
	h.NumForwarded = cfg.NumForwarded
	h.ClientMaxSize = cfg.ClientMaxSize
	return h
}

// buildStatsBackend selects the retry-budget backend: Redis when
// redis_url is configured, an in-process fake otherwise. The counter's
// bounds are advisory anyway, so a single-process approximation without
// Redis degrades gracefully.
func buildStatsBackend(cfg *config.Config, log *logrus.Entry) (stats.Backend, func() error) {
	if cfg.RedisURL == "" {
		return stats.NewFakeBackend(), func() error { return nil }
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("federator: parse redis_url")
	}
	opts.PoolSize = cfg.RedisPoolMaxSize
	opts.PoolTimeout = cfg.RedisPoolTimeout
	client := redis.NewClient(opts)
	return stats.NewRedisBackend(client), client.Close
}
