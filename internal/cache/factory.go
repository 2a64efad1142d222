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

package cache

import (
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// Options configures Build, mirroring the cache_config{type, url,
// default_timeout, compress} option group.
type Options struct {
	URL      string
	Compress bool
}

// Build constructs a Backend for the named adapter via a simple
// adapter-selection switch. Supported adapters: "null" (default) and
// "redis".
func Build(adapter string, opts Options) (Backend, error) {
	switch adapter {
	case "", "null":
		return Null{}, nil
	case "redis":
		if opts.URL == "" {
			return nil, fmt.Errorf("cache: redis adapter requires a URL")
		}
		redisOpts, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("cache: parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		return NewRedis(client, opts.Compress), nil
	default:
		return nil, fmt.Errorf("cache: unknown adapter %q", adapter)
	}
}
