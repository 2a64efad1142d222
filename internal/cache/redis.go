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
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis is the key-value cache backend, storing values gzip-
// compressed when Compress is set. Compression is a plain stdlib choice
// (compress/gzip): nothing in the example pack wires an alternative
// compression library, and gzip is also what the wire format promises
// clients via Content-Encoding.
type Redis struct {
	client   *redis.Client
	compress bool
}

// NewRedis wraps an already-configured go-redis client.
func NewRedis(client *redis.Client, compress bool) *Redis {
	return &Redis{client: client, compress: compress}
}

// Get implements Backend.
func (r *Redis) Get(ctx context.Context, key string, raw bool) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get(%s): %w", key, err)
	}
	if !r.compress || raw {
		return b, true, nil
	}
	decompressed, err := gunzip(b)
	if err != nil {
		return nil, false, fmt.Errorf("cache: gunzip(%s): %w", key, err)
	}
	return decompressed, true, nil
}

// Set implements Backend.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	payload := value
	if r.compress {
		compressed, err := gzipBytes(value)
		if err != nil {
			return fmt.Errorf("cache: gzip(%s): %w", key, err)
		}
		payload = compressed
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set(%s): %w", key, err)
	}
	return nil
}

// Delete implements Backend.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: redis del(%s): %w", key, err)
	}
	return nil
}

// Exists implements Backend.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: redis exists(%s): %w", key, err)
	}
	return n > 0, nil
}

// FlushAll implements Backend, clearing the entire selected Redis database.
func (r *Redis) FlushAll(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("cache: redis flushall: %w", err)
	}
	return nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
