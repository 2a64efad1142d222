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
	"crypto/md5"
	"encoding/base64"
	"sort"
	"strings"
	"unicode"

	"github.com/eidaws/federator/pkg/sncl"
)

// keyLength is the truncated length of a cache key.
const keyLength = 16

// Key computes the cache key for one request:
// base64(md5(concat(processor_type_tag, sorted query params minus
// {nodata,service}, sorted stream-epochs))), truncated to 16 chars.
// Control characters are stripped from every input before hashing.
func Key(processorTag string, queryParams map[string][]string, streamEpochs []sncl.StreamEpoch) string {
	var b strings.Builder
	b.WriteString(stripControl(processorTag))

	paramKeys := make([]string, 0, len(queryParams))
	for k := range queryParams {
		if k == "nodata" || k == "service" {
			continue
		}
		paramKeys = append(paramKeys, k)
	}
	sort.Strings(paramKeys)
	for _, k := range paramKeys {
		values := append([]string(nil), queryParams[k]...)
		sort.Strings(values)
		b.WriteString(stripControl(k))
		for _, v := range values {
			b.WriteString(stripControl(v))
		}
	}

	epochStrs := make([]string, 0, len(streamEpochs))
	for _, se := range streamEpochs {
		epochStrs = append(epochStrs, se.String())
	}
	sort.Strings(epochStrs)
	for _, s := range epochStrs {
		b.WriteString(stripControl(s))
	}

	sum := md5.Sum([]byte(b.String()))
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	if len(encoded) > keyLength {
		encoded = encoded[:keyLength]
	}
	return encoded
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
