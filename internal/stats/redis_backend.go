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
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBackend is the production Backend, built on github.com/redis/go-redis/v9.
// Use NewRedisBackend to wrap an already-configured *redis.Client.
type RedisBackend struct {
	c *redis.Client
}

// NewRedisBackend wraps an already-configured go-redis client.
func NewRedisBackend(c *redis.Client) *RedisBackend {
	return &RedisBackend{c: c}
}

// Append implements Backend using client.Watch, which runs fn with a
// transactional pipeline, retrying automatically on a WATCH conflict
// after a short delay.
func (r *RedisBackend) Append(ctx context.Context, key, member string, at float64, windowSize int64) error {
	const maxAttempts = 8
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := r.c.Watch(ctx, func(tx *redis.Tx) error {
			card, err := tx.ZCard(ctx, key).Result()
			if err != nil && err != redis.Nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if card >= windowSize && windowSize > 0 {
					trim := card - windowSize + 1
					pipe.ZRemRangeByRank(ctx, key, 0, trim-1)
				}
				pipe.ZAdd(ctx, key, redis.Z{Score: at, Member: member})
				return nil
			})
			return err
		}, key)
		if err == nil {
			return nil
		}
		if err != redis.TxFailedErr {
			return fmt.Errorf("stats: redis append(%s): %w", key, err)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1+attempt) * 5 * time.Millisecond):
		}
	}
	return fmt.Errorf("stats: redis append(%s): exhausted retries: %w", key, lastErr)
}

// RemoveExpired implements Backend.
func (r *RedisBackend) RemoveExpired(ctx context.Context, key string, cutoff float64) error {
	if err := r.c.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", cutoff)).Err(); err != nil {
		return fmt.Errorf("stats: redis gc(%s): %w", key, err)
	}
	return nil
}

// InWindow implements Backend.
func (r *RedisBackend) InWindow(ctx context.Context, key string, min, max float64) ([]string, error) {
	members, err := r.c.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%f", min),
		Max: fmt.Sprintf("%f", max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("stats: redis window(%s): %w", key, err)
	}
	return members, nil
}
