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

package devices

import (
	"context"

	"github.com/binkynet/ioexpander/pkg/bridge"
)

// pcf8574 drives a PCF8574 8-bit quasi-bidirectional expander.
// The chip has no registers: every write sets the latch of all 8 pins,
// every read returns the level of all 8 pins.
// A pin is an input when its latch is high; the weak internal
// pull-up then lets an external device pull it low.
type pcf8574 struct {
	wire
	host          bridge.HostInterrupts
	output        Register[uint8]
	input         uint8
	interruptPin  int
	interruptMode bridge.TriggerMode
	handler       InterruptHandler
	attached      bool
}

// NewPCF8574 creates a device for a PCF8574 at the given address.
// Use bridge.NoPin as interruptPin when the INT line is not connected.
func NewPCF8574(w Wiring, address uint8, interruptPin int) Device {
	return &pcf8574{
		wire:         newWire(w, "pcf8574", address),
		host:         w.Host,
		output:       NewRegister[uint8](0xff, true), // All input (high)
		interruptPin: interruptPin,
	}
}

// PinCount returns the number of pins of the device
func (d *pcf8574) PinCount() int {
	return 8
}

// SetDirection sets the mode of the given pin.
// All input modes release the latch, resulting in a pulled-up input.
// An output keeps the value last written to its latch.
func (d *pcf8574) SetDirection(pin Pin, mode PinMode) {
	if mode.IsInput() {
		d.output.SetBits(PinMask8(pin), true)
	}
}

// WriteValue sets the latch of the given pin.
func (d *pcf8574) WriteValue(pin Pin, value bool) {
	d.output.SetBits(PinMask8(pin), value)
}

// ReadValue returns the level of the given pin as read by the last Sync.
func (d *pcf8574) ReadValue(pin Pin) bool {
	return d.input&PinMask8(pin) != 0
}

// WritePort sets the latch of all pins. The pin is ignored.
func (d *pcf8574) WritePort(pin Pin, value uint8) {
	d.output.SetMasked(0xff, value)
}

// ReadPort returns the levels of all pins as read by the last Sync.
func (d *pcf8574) ReadPort(pin Pin) uint8 {
	return d.input
}

// AttachInterrupt registers the handler for the INT line of the device.
// The chip raises its INT line on any change of any pin, so the pin
// and mode are only recorded.
func (d *pcf8574) AttachInterrupt(pin Pin, handler InterruptHandler, mode bridge.TriggerMode) {
	d.handler = handler
	d.interruptMode = mode
	if mode != bridge.TriggerChange {
		d.log.Debug().
			Uint8("pin", uint8(pin)).
			Str("mode", mode.String()).
			Msg("Device only signals changes, requested trigger mode is ignored")
	}
	if d.attached || d.interruptPin == bridge.NoPin || d.host == nil {
		return
	}
	if err := d.host.AttachInterrupt(d.interruptPin, bridge.TriggerChange, d.onInterrupt); err != nil {
		d.log.Warn().Err(err).Int("host-pin", d.interruptPin).Msg("Failed to attach interrupt")
		return
	}
	d.attached = true
}

// onInterrupt is called by the host when the INT line is raised.
func (d *pcf8574) onInterrupt() {
	interruptsTotal.WithLabelValues(d.name).Inc()
	if h := d.handler; h != nil {
		h()
	}
}

// Sync writes the latch (when changed) and reads the pin levels.
// The read also resets the INT line of the chip.
func (d *pcf8574) Sync(ctx context.Context) error {
	syncTotal.WithLabelValues(d.name).Inc()
	flushed, werr := d.output.Commit(func(value uint8) error {
		return d.writeByte(ctx, value)
	})
	if flushed && werr == nil {
		flushTotal.WithLabelValues(d.name).Inc()
	}
	var rerr error
	d.input, rerr = d.readByte(ctx)
	if werr != nil {
		return werr
	}
	return rerr
}
