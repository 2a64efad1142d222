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

package httpfdsn

import "net/http"

// Outcome classifies one upstream response for the dispatch loop.
type Outcome int

const (
	// OutcomeData means 200: parse body, pass to drain.
	OutcomeData Outcome = iota
	// OutcomeNoContent means 204 or an equivalent no-content code: log, no output.
	OutcomeNoContent
	// OutcomeTooLarge means 413: invoke split-and-align.
	OutcomeTooLarge
	// OutcomeError means 5xx or a client error: log, schedule error accounting.
	OutcomeError
)

// Classify maps an HTTP status code to the Outcome the endpoint worker acts
// on.
func Classify(statusCode int) Outcome {
	switch {
	case statusCode == http.StatusOK:
		return OutcomeData
	case statusCode == http.StatusNoContent || statusCode == http.StatusNotFound:
		return OutcomeNoContent
	case statusCode == http.StatusRequestEntityTooLarge:
		return OutcomeTooLarge
	default:
		return OutcomeError
	}
}

// StatsCode returns the code to record against stats.Counter for a finished
// attempt: the real status on success, or 503 for a transport-level error
// that never produced a status code.
func StatsCode(statusCode int, transportErr error) int {
	if transportErr != nil {
		return http.StatusServiceUnavailable
	}
	return statusCode
}
