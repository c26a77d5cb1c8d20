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
	"context"

	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/devices"
)

const (
	mockPinCount = 16
	// DefaultCycles is the number of sync cycles recorded by a MockIO.
	DefaultCycles = 6
)

// MockError identifies the first misuse detected by a MockIO.
type MockError uint8

const (
	MockErrorNone MockError = iota
	MockErrorPinTooHigh
	MockErrorReadNotInput
	MockErrorWriteNotOutput
)

func (e MockError) String() string {
	switch e {
	case MockErrorNone:
		return "none"
	case MockErrorPinTooHigh:
		return "pin-too-high"
	case MockErrorReadNotInput:
		return "read-not-input"
	case MockErrorWriteNotOutput:
		return "write-not-output"
	default:
		return "unknown"
	}
}

// MockIO is a 16 pin Device that records what is written in every
// sync cycle and returns scripted values on reads.
// Values written in a cycle are visible through WrittenValue after Sync.
// Sync starts a new cycle that begins with the last written value.
type MockIO struct {
	modes          [mockPinCount]devices.PinMode
	configured     [mockPinCount]bool
	readValues     []uint16
	writeValues    []uint16
	cycle          int
	syncCount      int
	loopback       bool
	err            MockError
	handler        devices.InterruptHandler
	interruptPin   devices.Pin
	interruptMode  bridge.TriggerMode
	interruptIsSet bool
}

var _ devices.Device = &MockIO{}

// NewMockIO creates a MockIO that records the given number of cycles
// (DefaultCycles when cycles <= 0).
// With loopback, written values are returned by reads after Sync.
func NewMockIO(cycles int, loopback bool) *MockIO {
	if cycles <= 0 {
		cycles = DefaultCycles
	}
	return &MockIO{
		readValues:  make([]uint16, cycles),
		writeValues: make([]uint16, cycles),
		loopback:    loopback,
	}
}

// ResetIO clears all recorded values, pin modes & errors.
func (m *MockIO) ResetIO() {
	cycles := len(m.writeValues)
	*m = MockIO{
		readValues:  make([]uint16, cycles),
		writeValues: make([]uint16, cycles),
		loopback:    m.loopback,
	}
}

// fail records the first misuse only.
func (m *MockIO) fail(e MockError) {
	if m.err == MockErrorNone {
		m.err = e
	}
}

// checkPin returns false (and records an error) for pins out of range.
func (m *MockIO) checkPin(pin devices.Pin) bool {
	if int(pin) >= mockPinCount {
		m.fail(MockErrorPinTooHigh)
		return false
	}
	return true
}

// checkPinsAre verifies that all pins in the inclusive range [first, last]
// are configured as input (or output).
func (m *MockIO) checkPinsAre(first, last devices.Pin, input bool) bool {
	for pin := first; pin <= last; pin++ {
		if !m.configured[pin] || m.modes[pin].IsInput() != input {
			if input {
				m.fail(MockErrorReadNotInput)
			} else {
				m.fail(MockErrorWriteNotOutput)
			}
			return false
		}
	}
	return true
}

func portRange(pin devices.Pin) (devices.Pin, devices.Pin) {
	if pin < 8 {
		return 0, 7
	}
	return 8, 15
}

// PinCount returns the number of pins of the device
func (m *MockIO) PinCount() int {
	return mockPinCount
}

func (m *MockIO) SetDirection(pin devices.Pin, mode devices.PinMode) {
	if !m.checkPin(pin) {
		return
	}
	m.modes[pin] = mode
	m.configured[pin] = true
}

// PinMode returns the mode of the given pin and true,
// or false when the pin has not been configured.
func (m *MockIO) PinMode(pin devices.Pin) (devices.PinMode, bool) {
	if int(pin) >= mockPinCount {
		return devices.PinModeInput, false
	}
	return m.modes[pin], m.configured[pin]
}

func (m *MockIO) WriteValue(pin devices.Pin, value bool) {
	if !m.checkPin(pin) {
		return
	}
	m.checkPinsAre(pin, pin, false)
	mask := uint16(1) << pin
	if value {
		m.writeValues[m.cycle] |= mask
	} else {
		m.writeValues[m.cycle] &^= mask
	}
}

func (m *MockIO) ReadValue(pin devices.Pin) bool {
	if !m.checkPin(pin) {
		return false
	}
	m.checkPinsAre(pin, pin, true)
	return m.readValues[m.cycle]&(uint16(1)<<pin) != 0
}

func (m *MockIO) WritePort(pin devices.Pin, value uint8) {
	if !m.checkPin(pin) {
		return
	}
	first, last := portRange(pin)
	m.checkPinsAre(first, last, false)
	mask := uint16(0xff) << first
	m.writeValues[m.cycle] = (m.writeValues[m.cycle] &^ mask) | (uint16(value) << first)
}

func (m *MockIO) ReadPort(pin devices.Pin) uint8 {
	if !m.checkPin(pin) {
		return 0
	}
	first, last := portRange(pin)
	m.checkPinsAre(first, last, true)
	return uint8(m.readValues[m.cycle] >> first)
}

func (m *MockIO) AttachInterrupt(pin devices.Pin, handler devices.InterruptHandler, mode bridge.TriggerMode) {
	if !m.checkPin(pin) {
		return
	}
	m.handler = handler
	m.interruptPin = pin
	m.interruptMode = mode
	m.interruptIsSet = true
}

// Sync starts the next cycle.
func (m *MockIO) Sync(ctx context.Context) error {
	written := m.writeValues[m.cycle]
	m.cycle = (m.cycle + 1) % len(m.writeValues)
	m.writeValues[m.cycle] = written
	if m.loopback {
		m.readValues[m.cycle] = written
	}
	m.syncCount++
	return nil
}

// Err always returns nil; misuse is reported by ErrorMode.
func (m *MockIO) Err() error {
	return nil
}

// ClearError resets the recorded misuse.
func (m *MockIO) ClearError() {
	m.err = MockErrorNone
}

// ErrorMode returns the first misuse detected.
func (m *MockIO) ErrorMode() MockError {
	return m.err
}

// SyncCount returns the number of Sync calls.
func (m *MockIO) SyncCount() int {
	return m.syncCount
}

// Cycle returns the index of the current cycle.
func (m *MockIO) Cycle() int {
	return m.cycle
}

// Cycles returns the number of recorded cycles.
func (m *MockIO) Cycles() int {
	return len(m.writeValues)
}

// WrittenValue returns the value of all pins written in the given cycle.
func (m *MockIO) WrittenValue(cycle int) uint16 {
	return m.writeValues[cycle%len(m.writeValues)]
}

// SetValueForReading sets the value returned by reads in the given cycle.
func (m *MockIO) SetValueForReading(cycle int, value uint16) {
	m.readValues[cycle%len(m.readValues)] = value
}

// IsInterruptRegisteredAs returns true if an interrupt is attached to the
// given pin with the given mode.
func (m *MockIO) IsInterruptRegisteredAs(pin devices.Pin, mode bridge.TriggerMode) bool {
	return m.interruptIsSet && m.interruptPin == pin && m.interruptMode == mode
}

// TriggerInterrupt invokes the attached handler.
// Returns false if no handler is attached.
func (m *MockIO) TriggerInterrupt() bool {
	if m.handler == nil {
		return false
	}
	m.handler()
	return true
}
