// Copyright 2020 Ewout Prangsma
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

package devices

import (
	"context"

	"github.com/binkynet/ioexpander/pkg/bridge"
)

// Pin is the index of a pin on a device (0...).
type Pin uint8

// PinMode is the direction of a pin.
type PinMode uint8

const (
	PinModeInput PinMode = iota
	PinModeInputPullUp
	PinModeOutput
)

// IsInput returns true for all input modes.
func (m PinMode) IsInput() bool {
	return m == PinModeInput || m == PinModeInputPullUp
}

// String returns the name of the pin mode.
func (m PinMode) String() string {
	switch m {
	case PinModeInput:
		return "input"
	case PinModeInputPullUp:
		return "input-pullup"
	case PinModeOutput:
		return "output"
	default:
		return "unknown"
	}
}

// InterruptHandler is called when an interrupt line of a device is raised.
// It runs outside the control of the device; the device state is only
// reconciled by the next Sync.
type InterruptHandler func()

// Device is the digital IO capability that is implemented by all
// IO devices, regardless of how they are connected to the host.
//
// Setters and getters only operate on in-memory state of the device.
// Sync is the only operation that talks to the hardware: it flushes
// pending writes and refreshes the values returned by ReadValue & ReadPort.
//
// None of the operations validate pin ranges or directions.
type Device interface {
	// PinCount returns the number of pins of the device
	PinCount() int
	// SetDirection sets the mode of the given pin.
	SetDirection(pin Pin, mode PinMode)
	// WriteValue sets the value of the given pin, effective after the next Sync.
	WriteValue(pin Pin, value bool)
	// ReadValue returns the value of the given pin as read by the last Sync.
	ReadValue(pin Pin) bool
	// WritePort sets the value of all 8 pins of the port that contains the given pin.
	WritePort(pin Pin, value uint8)
	// ReadPort returns the value of the 8 pins of the port that contains the
	// given pin as read by the last Sync.
	ReadPort(pin Pin) uint8
	// AttachInterrupt registers the handler for interrupts of the given pin.
	// The mode is advisory on devices that cannot discriminate triggers.
	AttachInterrupt(pin Pin, handler InterruptHandler, mode bridge.TriggerMode)
	// Sync flushes pending writes to the device and refreshes cached reads.
	// Errors are returned and also recorded as sticky error.
	Sync(ctx context.Context) error
	// Err returns the sticky error recorded by a failing Sync (if any).
	Err() error
	// ClearError resets the sticky error.
	ClearError()
}
