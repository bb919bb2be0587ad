// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package clock

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current unix time in seconds.
// All time-dependent components read time through a Clock, never ambiently.
type Clock interface {
	Now() uint64
}

type systemClock struct{}

func (systemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// System returns the wall clock.
func System() Clock {
	return systemClock{}
}

// Manual a settable clock for deterministic tests.
type Manual struct {
	now atomic.Uint64
}

// NewManual creates a manual clock starting at now.
func NewManual(now uint64) *Manual {
	m := &Manual{}
	m.now.Store(now)
	return m
}

// Now returns the current manual time.
func (m *Manual) Now() uint64 {
	return m.now.Load()
}

// Set sets the current time.
func (m *Manual) Set(now uint64) {
	m.now.Store(now)
}

// Advance moves the clock forward by d seconds.
func (m *Manual) Advance(d uint64) {
	m.now.Add(d)
}
