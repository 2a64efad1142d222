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

// Package config centralizes the federator's runtime options:
// flag-bound defaults, optionally overlaid by a YAML document for the
// knobs operators prefer to check into a deployment repo rather than pass
// on a command line.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the federator process's full option set, one flat struct
// shared by cmd/eida-federator and cmd/eida-harvester (both binaries
// register every flag; each reads only the options relevant to it).
type Config struct {
	Hostname string
	Port     int
	UnixPath string

	RoutingURL              string
	RoutingDriver           string
	RoutingDSN              string
	RoutingConnectionLimit  int
	EndpointConnectionLimit int
	EndpointPerHostLimit    int
	EndpointConnectTimeout  time.Duration
	EndpointReadTimeout     time.Duration

	RedisURL         string
	RedisPoolMinSize int
	RedisPoolMaxSize int
	RedisPoolTimeout time.Duration

	PoolSize         int
	StreamingTimeout time.Duration

	ClientMaxSize               int64
	MaxStreamEpochDuration      time.Duration
	MaxStreamEpochDurationTotal time.Duration

	RetryBudgetThreshold  float64
	RetryBudgetTTL        time.Duration
	RetryBudgetWindowSize int64

	NumForwarded int
	ProxyNetloc  string
	ServeStatic  bool

	CacheType           string
	CacheURL            string
	CacheDefaultTimeout time.Duration
	CacheCompress       bool

	SplittingFactor         int
	MinSplitDuration        time.Duration
	MaxSplitDepth           int
	FallbackMSeedRecordSize int

	Tempdir            string
	BufferRolloverSize int64
	NoDataStatus       int

	HarvestInterval   time.Duration
	HarvestTruncation time.Duration
	HarvestConfigFile string
	HarvestPIDFile    string

	ConfigFile string
}

// RegisterFlags binds every option to fs and returns a Config the caller
// fills in by calling fs.Parse: defaults declared inline, one flag per
// option, no separate defaults table.
func RegisterFlags(fs *flag.FlagSet) *Config {
	c := &Config{}
	fs.StringVar(&c.Hostname, "hostname", "0.0.0.0", "HTTP listen hostname")
	fs.IntVar(&c.Port, "port", 8080, "HTTP listen port")
	fs.StringVar(&c.UnixPath, "unix_path", "", "Unix domain socket path; overrides hostname/port when set")

	fs.StringVar(&c.RoutingURL, "routing_url", "", "Base URL of the routing HTTP surface (internal/routingservice); defaults to this process's own embedded mount when empty")
	fs.StringVar(&c.RoutingDriver, "routing_driver", "", "database/sql driver name backing the routing store; empty uses the in-memory reference store")
	fs.StringVar(&c.RoutingDSN, "routing_dsn", "", "database/sql data source name; requires routing_driver to be registered by the binary's main package (blank import)")
	fs.IntVar(&c.RoutingConnectionLimit, "routing_connection_limit", 20, "Max concurrent connections to the routing store")
	fs.IntVar(&c.EndpointConnectionLimit, "endpoint_connection_limit", 100, "Max concurrent connections across all endpoints")
	fs.IntVar(&c.EndpointPerHostLimit, "endpoint_connection_limit_per_host", 10, "Max concurrent connections per endpoint host")
	fs.DurationVar(&c.EndpointConnectTimeout, "endpoint_timeout_connect", 10*time.Second, "Endpoint TCP connect timeout")
	fs.DurationVar(&c.EndpointReadTimeout, "endpoint_timeout_sock_read", 30*time.Second, "Endpoint socket read timeout")

	fs.StringVar(&c.RedisURL, "redis_url", "", "Redis connection URL backing cache/stats (empty disables Redis)")
	fs.IntVar(&c.RedisPoolMinSize, "redis_pool_minsize", 1, "Minimum Redis connection pool size")
	fs.IntVar(&c.RedisPoolMaxSize, "redis_pool_maxsize", 10, "Maximum Redis connection pool size")
	fs.DurationVar(&c.RedisPoolTimeout, "redis_pool_timeout", 5*time.Second, "Redis pool checkout timeout")

	fs.IntVar(&c.PoolSize, "pool_size", 20, "Worker-pool size for per-request endpoint dispatch")
	fs.DurationVar(&c.StreamingTimeout, "streaming_timeout", 60*time.Second, "Deadline for all dispatched endpoint requests to finish; 413 if no response byte was produced by then, otherwise the stream is cut")

	fs.Int64Var(&c.ClientMaxSize, "client_max_size", 0, "Max accepted POST body size in bytes (0 = unlimited)")
	fs.DurationVar(&c.MaxStreamEpochDuration, "max_stream_epoch_duration", 0, "Max duration of any single resolved stream-epoch (0 = unlimited)")
	fs.DurationVar(&c.MaxStreamEpochDurationTotal, "max_stream_epoch_duration_total", 0, "Max summed duration across all resolved stream-epochs (0 = unlimited)")

	fs.Float64Var(&c.RetryBudgetThreshold, "client_retry_budget_threshold", 0.25, "Error-ratio above which an endpoint is suppressed from dispatch")
	fs.DurationVar(&c.RetryBudgetTTL, "client_retry_budget_ttl", 15*time.Minute, "Rolling window over which retry-budget error ratios are computed")
	fs.Int64Var(&c.RetryBudgetWindowSize, "client_retry_budget_window_size", 100, "Max retained response-code samples per endpoint before the oldest are trimmed")

	fs.IntVar(&c.NumForwarded, "num_forwarded", 0, "Number of trusted reverse-proxy hops to skip in X-Forwarded-For")
	fs.StringVar(&c.ProxyNetloc, "proxy_netloc", "", "Public-facing host:port substituted into any endpoint URL pointing at this service's own loopback address")
	fs.BoolVar(&c.ServeStatic, "serve_static", false, "Serve the bundled static documentation assets")

	fs.StringVar(&c.CacheType, "cache_type", "null", "Cache backend adapter: null or redis")
	fs.StringVar(&c.CacheURL, "cache_url", "", "Cache backend connection URL (redis adapter only)")
	fs.DurationVar(&c.CacheDefaultTimeout, "cache_default_timeout", time.Hour, "Default cache entry TTL")
	fs.BoolVar(&c.CacheCompress, "cache_compress", false, "Gzip-compress cached response bodies")

	fs.IntVar(&c.SplittingFactor, "splitting_factor", 2, "Number of contiguous sub-epochs a 413 response is split into")
	fs.DurationVar(&c.MinSplitDuration, "min_split_duration", time.Minute, "Smallest sub-epoch duration split-and-align will retry at")
	fs.IntVar(&c.MaxSplitDepth, "max_split_depth", 6, "Max recursive split-and-align depth before giving up")
	fs.IntVar(&c.FallbackMSeedRecordSize, "fallback_mseed_record_size", 0, "MiniSEED record size assumed when blockette 1000 is absent (0 = drop the response)")

	fs.StringVar(&c.Tempdir, "tempdir", os.TempDir(), "Scratch directory for buffered response bodies")
	fs.Int64Var(&c.BufferRolloverSize, "buffer_rollover_size", 10*1024*1024, "Response size above which merge buffering rolls over to disk")
	fs.IntVar(&c.NoDataStatus, "nodata", 204, "HTTP status rendered for an empty result: 204 or 404")

	fs.DurationVar(&c.HarvestInterval, "harvest_interval", time.Hour, "Period between harvest cycles")
	fs.DurationVar(&c.HarvestTruncation, "harvest_truncate_after", 7*24*time.Hour, "Routing rows not seen for longer than this are truncated")
	fs.StringVar(&c.HarvestConfigFile, "harvest_config", "", "Path to the local routing-config/vnetwork XML document to harvest")
	fs.StringVar(&c.HarvestPIDFile, "harvest_pid_file", "", "PID file guarding against overlapping harvest runs")

	fs.StringVar(&c.ConfigFile, "config", "", "Optional YAML document overlaying these flag defaults")
	return c
}

// overlay is the YAML document shape: every field optional, a pointer so
// "absent" and "zero value" are distinguishable on overlay.
type overlay struct {
	Hostname                    *string        `yaml:"hostname"`
	Port                        *int           `yaml:"port"`
	RoutingURL                  *string        `yaml:"url_routing"`
	RedisURL                    *string        `yaml:"redis_url"`
	PoolSize                    *int           `yaml:"pool_size"`
	StreamingTimeout            *time.Duration `yaml:"streaming_timeout"`
	ClientMaxSize               *int64         `yaml:"client_max_size"`
	MaxStreamEpochDuration      *time.Duration `yaml:"max_stream_epoch_duration"`
	MaxStreamEpochDurationTotal *time.Duration `yaml:"max_stream_epoch_duration_total"`
	RetryBudgetThreshold        *float64       `yaml:"client_retry_budget_threshold"`
	RetryBudgetTTL              *time.Duration `yaml:"client_retry_budget_ttl"`
	RetryBudgetWindowSize       *int64         `yaml:"client_retry_budget_window_size"`
	NumForwarded                *int           `yaml:"num_forwarded"`
	ProxyNetloc                 *string        `yaml:"proxy_netloc"`
	CacheType                   *string        `yaml:"cache_type"`
	CacheURL                    *string        `yaml:"cache_url"`
	CacheCompress               *bool          `yaml:"cache_compress"`
	SplittingFactor             *int           `yaml:"splitting_factor"`
	FallbackMSeedRecordSize     *int           `yaml:"fallback_mseed_record_size"`
	NoDataStatus                *int           `yaml:"nodata"`
}

// LoadOverlay reads c.ConfigFile, if set, and overwrites any field the
// document names. A missing ConfigFile is a no-op, not an error.
func (c *Config) LoadOverlay() error {
	if c.ConfigFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return errors.Wrapf(err, "config: read %s", c.ConfigFile)
	}
	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return errors.Wrapf(err, "config: parse %s", c.ConfigFile)
	}

	setString(&c.Hostname, ov.Hostname)
	setInt(&c.Port, ov.Port)
	setString(&c.RoutingURL, ov.RoutingURL)
	setString(&c.RedisURL, ov.RedisURL)
	setInt(&c.PoolSize, ov.PoolSize)
	setDuration(&c.StreamingTimeout, ov.StreamingTimeout)
	setInt64(&c.ClientMaxSize, ov.ClientMaxSize)
	setDuration(&c.MaxStreamEpochDuration, ov.MaxStreamEpochDuration)
	setDuration(&c.MaxStreamEpochDurationTotal, ov.MaxStreamEpochDurationTotal)
	setFloat64(&c.RetryBudgetThreshold, ov.RetryBudgetThreshold)
	setDuration(&c.RetryBudgetTTL, ov.RetryBudgetTTL)
	setInt64(&c.RetryBudgetWindowSize, ov.RetryBudgetWindowSize)
	setInt(&c.NumForwarded, ov.NumForwarded)
	setString(&c.ProxyNetloc, ov.ProxyNetloc)
	setString(&c.CacheType, ov.CacheType)
	setString(&c.CacheURL, ov.CacheURL)
	setBool(&c.CacheCompress, ov.CacheCompress)
	setInt(&c.SplittingFactor, ov.SplittingFactor)
	setInt(&c.FallbackMSeedRecordSize, ov.FallbackMSeedRecordSize)
	setInt(&c.NoDataStatus, ov.NoDataStatus)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
func setInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}
func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
func setFloat64(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
func setDuration(dst *time.Duration, src *time.Duration) {
	if src != nil {
		*dst = *src
	}
}
