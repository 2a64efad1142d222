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

package harvester

import (
	"fmt"

	"github.com/gofrs/flock"
)

// pidLock is a non-blocking interprocess file lock, preventing two
// harvester instances from running concurrently against the same routing
// store; a harvester is single-instance per store.
type pidLock struct {
	fl *flock.Flock
}

func acquirePIDLock(path string) (*pidLock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire pid lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("harvester already running (pid file %s locked)", path)
	}
	return &pidLock{fl: fl}, nil
}

func (l *pidLock) release() {
	_ = l.fl.Unlock()
}
