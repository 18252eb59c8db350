/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package edge detects rising edges over named boolean signal
// histories sampled once per poll cycle.
package edge

// Detector remembers the previous sample per signal name. It is used
// from a single goroutine (the poll loop) and needs no locking.
type Detector struct {
	prev map[string]byte
}

func NewDetector() *Detector {
	return &Detector{prev: make(map[string]byte)}
}

// Observe reports whether the sample is a rising edge (previous 0,
// current 1) and stores the sample as the new previous value either
// way. An unseen name has implicit previous 0, so a signal that is
// already asserted when polling starts registers as rising on its
// first observation rather than being missed.
func (d *Detector) Observe(name string, value byte) bool {
	if value != 0 {
		value = 1
	}

	rising := value == 1 && d.prev[name] == 0
	d.prev[name] = value

	return rising
}

// Reset forgets all signal histories.
func (d *Detector) Reset() {
	d.prev = make(map[string]byte)
}
