// Copyright 2021 Ewout Prangsma
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

	"github.com/pkg/errors"

	"github.com/binkynet/ioexpander/pkg/bridge"
)

var (
	// BusError is returned by simulated chips that are set to fail.
	BusError = errors.New("simulated bus error")
	// UnsupportedError is returned for transactions a chip does not support.
	UnsupportedError = errors.New("unsupported transaction")
)

// SimPCF8574 simulates a PCF8574 on the I2C bus.
// A pin reads low when its latch is low or when it is pulled low externally.
type SimPCF8574 struct {
	mutex       sync.Mutex
	latch       uint8
	external    uint8
	lastRead    uint8
	asserted    bool
	onInterrupt func()
	writes      int
	reads       int
	failing     bool
}

var _ bridge.I2CDevice = &SimPCF8574{}

// NewSimPCF8574 creates a chip in its power-on state.
func NewSimPCF8574() *SimPCF8574 {
	return &SimPCF8574{
		latch:    0xff,
		external: 0xff,
		lastRead: 0xff,
	}
}

func (s *SimPCF8574) pins() uint8 {
	return s.latch & s.external
}

// SetInterruptHandler sets the function called when the INT line is asserted.
func (s *SimPCF8574) SetInterruptHandler(cb func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onInterrupt = cb
}

// SetInputs sets the levels driven by external devices (1 = released).
func (s *SimPCF8574) SetInputs(levels uint8) {
	s.mutex.Lock()
	s.external = levels
	cb := s.assertIfChanged()
	s.mutex.Unlock()
	if cb != nil {
		cb()
	}
}

// assertIfChanged asserts INT when pins differ from the last read.
// Returns the callback to invoke (outside the lock).
func (s *SimPCF8574) assertIfChanged() func() {
	if s.asserted || s.pins() == s.lastRead {
		return nil
	}
	s.asserted = true
	return s.onInterrupt
}

// SetFailing makes all transactions fail with BusError.
func (s *SimPCF8574) SetFailing(failing bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failing = failing
}

// Latch returns the last written byte.
func (s *SimPCF8574) Latch() uint8 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.latch
}

// InterruptPending returns true while the INT line is asserted.
func (s *SimPCF8574) InterruptPending() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.asserted
}

// Writes returns the number of write transactions.
func (s *SimPCF8574) Writes() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.writes
}

// Reads returns the number of read transactions.
func (s *SimPCF8574) Reads() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.reads
}

// ResetCounters sets the transaction counters to 0.
func (s *SimPCF8574) ResetCounters() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.writes, s.reads = 0, 0
}

func (s *SimPCF8574) write(value uint8) error {
	if s.failing {
		return BusError
	}
	s.writes++
	s.latch = value
	// Any bus write releases INT
	s.asserted = false
	return nil
}

func (s *SimPCF8574) read() (uint8, error) {
	if s.failing {
		return 0, BusError
	}
	s.reads++
	s.lastRead = s.pins()
	s.asserted = false
	return s.lastRead, nil
}

func (s *SimPCF8574) WriteByte(value byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.write(value)
}

func (s *SimPCF8574) ReadByte() (byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.read()
}

// WriteDevice writes all bytes in sequence; the last one remains latched.
func (s *SimPCF8574) WriteDevice(data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(data) == 0 {
		return nil
	}
	if s.failing {
		return BusError
	}
	s.writes++
	s.latch = data[len(data)-1]
	s.asserted = false
	return nil
}

func (s *SimPCF8574) ReadDevice(data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failing {
		return BusError
	}
	s.reads++
	s.lastRead = s.pins()
	s.asserted = false
	for i := range data {
		data[i] = s.lastRead
	}
	return nil
}

func (s *SimPCF8574) ReadByteReg(reg uint8) (uint8, error) {
	return 0, errors.Wrap(UnsupportedError, "pcf8574 has no registers")
}

func (s *SimPCF8574) WriteByteReg(reg uint8, value uint8) error {
	return errors.Wrap(UnsupportedError, "pcf8574 has no registers")
}
