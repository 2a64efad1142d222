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

package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eidaws/federator/internal/endpoint"
	"github.com/eidaws/federator/internal/httpfdsn"
	"github.com/eidaws/federator/pkg/sncl"
)

// dispatchJob is one worker-pool task: fetch a single stream-epoch from
// one endpoint URL and fold it into the shared merge worker.
type dispatchJob struct {
	url      string
	method   string
	se       sncl.StreamEpoch
	worker   endpoint.Worker
	priority int
	drain    endpoint.Drain
}

// dispatchEpoch issues the sub-request and recurses into split-and-align
// on a 413, reusing the same worker instance so its
// record-size/last-record (or last-JSON-object) state survives across
// retries for this logical stream-epoch.
func (l *Lifecycle) dispatchEpoch(ctx context.Context, job dispatchJob, depth int) error {
	method := job.method
	if method == "" {
		method = http.MethodGet
	}

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = httpfdsn.NewPOSTRequest(ctx, job.url, nil, []sncl.StreamEpoch{job.se})
	} else {
		req, err = httpfdsn.NewGETRequest(ctx, job.url, job.se, nil)
	}
	if err != nil {
		return fmt.Errorf("processor: build request: %w", err)
	}

	resp, doErr := l.HTTPClient.Do(req)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	l.recordStats(ctx, job.url, statusCode, doErr)
	if doErr != nil {
		return fmt.Errorf("processor: %s %s: %w", method, job.url, doErr)
	}

	parseCtx := endpoint.ParseContext{StreamEpoch: job.se, EndpointURL: job.url, Priority: job.priority, Drain: job.drain}
	parseErr := job.worker.ParseInto(resp, parseCtx)
	if parseErr == nil {
		return nil
	}
	if !errors.Is(parseErr, endpoint.ErrTooLarge) {
		// Endpoint/client errors are swallowed here: error accounting
		// already recorded the code above, and the absence of
		// any successful sub-request is what surfaces, at Flush time, as
		// no-content, not a hard failure of this one job.
		return nil
	}
	return l.splitAndAlign(ctx, job, depth)
}

func (l *Lifecycle) recordStats(ctx context.Context, url string, statusCode int, transportErr error) {
	if l.Stats == nil {
		return
	}
	code := httpfdsn.StatsCode(statusCode, transportErr)
	_ = l.Stats.GetOrCreate(url).Append(ctx, code)
}

// splitAndAlign retries a stream-epoch that returned 413: divide into
// splittingFactor contiguous equal sub-epochs and retry each, splitting
// further until success, the minimum epoch duration, or the retry ceiling.
func (l *Lifecycle) splitAndAlign(ctx context.Context, job dispatchJob, depth int) error {
	if depth >= l.MaxSplitDepth {
		return fmt.Errorf("processor: %s: split retry ceiling reached", job.url)
	}
	if job.se.Epoch.End == nil {
		return fmt.Errorf("processor: %s: cannot split an open-ended epoch", job.url)
	}

	factor := l.SplittingFactor
	if factor < 2 {
		factor = 2
	}
	total := job.se.Epoch.End.Sub(job.se.Epoch.Start)
	subDuration := total / time.Duration(factor)
	if subDuration < l.MinSplitDuration {
		return fmt.Errorf("processor: %s: minimum split duration reached", job.url)
	}

	start := job.se.Epoch.Start
	var firstErr error
	for i := 0; i < factor; i++ {
		end := start.Add(subDuration)
		if i == factor-1 {
			end = *job.se.Epoch.End
		}
		subSE := job.se
		subSE.Epoch = sncl.NewEpoch(start, &end)
		subJob := job
		subJob.se = subSE
		if err := l.dispatchEpoch(ctx, subJob, depth+1); err != nil && firstErr == nil {
			firstErr = err
		}
		start = end
	}
	return firstErr
}
