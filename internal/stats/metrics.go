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

import "github.com/prometheus/client_golang/prometheus"

var (
	gcCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "federator_stats_gc_cycles_total",
		Help: "Total number of stats garbage-collection cycles run.",
	})
	admissionRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "federator_stats_admission_rejections_total",
		Help: "Total number of endpoint URLs dropped by the retry-budget admission filter.",
	})
)

func init() {
	prometheus.MustRegister(gcCyclesTotal, admissionRejectionsTotal)
}

// ObserveRejection increments the admission-rejection counter. Called
// whenever OverThreshold suppresses a URL for the remainder of a request.
func ObserveRejection() {
	admissionRejectionsTotal.Inc()
}
