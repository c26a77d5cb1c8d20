// Copyright 2025 Ewout Prangsma
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
//
// Author Ewout Prangsma
//

package devicetest

import (
	"sync"

	"github.com/binkynet/ioexpander/pkg/bridge"
)

// SimShiftOutput simulates a chain of 74HC595 style output shift registers
// wired to pins of a virtual bridge.
// Bits are shifted in on the rising clock edge and copied to the outputs
// on the rising latch edge.
type SimShiftOutput struct {
	mutex   sync.Mutex
	vb      *bridge.VirtualBridge
	data    int
	bits    uint
	shift   uint32
	outputs uint32
	latches int
}

// NewSimShiftOutput attaches a chain of the given number of chips
// to the given pins of the bridge.
func NewSimShiftOutput(vb *bridge.VirtualBridge, dataPin, clockPin, latchPin, devices int) *SimShiftOutput {
	s := &SimShiftOutput{vb: vb, data: dataPin, bits: uint(devices) * 8}
	vb.WatchLevel(clockPin, func(level bool) {
		if level {
			s.clock()
		}
	})
	vb.WatchLevel(latchPin, func(level bool) {
		if level {
			s.latch()
		}
	})
	return s
}

func (s *SimShiftOutput) clock() {
	bit := uint32(0)
	if s.vb.Level(s.data) {
		bit = 1
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.shift = (s.shift<<1 | bit) & s.mask()
}

func (s *SimShiftOutput) latch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.outputs = s.shift
	s.latches++
}

func (s *SimShiftOutput) mask() uint32 {
	if s.bits >= 32 {
		return 0xffffffff
	}
	return uint32(1)<<s.bits - 1
}

// Outputs returns the latched outputs; bit 0 is output 0 of the first chip.
func (s *SimShiftOutput) Outputs() uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.outputs
}

// Latches returns the number of rising latch edges seen.
func (s *SimShiftOutput) Latches() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.latches
}

// SimShiftInput simulates a chain of 74HC165 style input shift registers
// wired to pins of a virtual bridge.
// The inputs are captured while the load pin is low. Every rising clock
// edge moves the next bit onto the data pin, most significant bit of the
// first chip first.
type SimShiftInput struct {
	mutex    sync.Mutex
	vb       *bridge.VirtualBridge
	data     int
	bits     uint
	inputs   uint32
	captured uint32
	index    uint
	loads    int
}

// NewSimShiftInput attaches a chain of the given number of chips
// to the given pins of the bridge.
func NewSimShiftInput(vb *bridge.VirtualBridge, dataPin, clockPin, loadPin, devices int) *SimShiftInput {
	s := &SimShiftInput{vb: vb, data: dataPin, bits: uint(devices) * 8}
	vb.WatchLevel(loadPin, func(level bool) {
		if !level {
			s.load()
		}
	})
	vb.WatchLevel(clockPin, func(level bool) {
		if level {
			s.clock()
		}
	})
	return s
}

// SetInputs sets the levels of the parallel inputs; bit 0 is input 0
// of the first chip.
func (s *SimShiftInput) SetInputs(inputs uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.inputs = inputs
}

// Loads returns the number of times the inputs were captured.
func (s *SimShiftInput) Loads() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.loads
}

func (s *SimShiftInput) load() {
	s.mutex.Lock()
	s.captured = s.inputs
	s.index = 0
	s.loads++
	level := s.bit()
	s.mutex.Unlock()
	s.vb.SetLevel(s.data, level)
}

func (s *SimShiftInput) clock() {
	s.mutex.Lock()
	s.index++
	level := s.bit()
	s.mutex.Unlock()
	s.vb.SetLevel(s.data, level)
}

// bit returns the level of the serial output at the current index.
// Caller must hold the mutex.
func (s *SimShiftInput) bit() bool {
	if s.index >= s.bits {
		return false
	}
	chip, pos := s.index/8, 7-s.index%8
	return s.captured&(uint32(1)<<(chip*8+pos)) != 0
}
