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

package devices

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ioexpander/pkg/bridge"
)

const (
	// ShiftRegisterOutputCutover is the first pin of the output chain.
	// Pins below it belong to the input chain.
	ShiftRegisterOutputCutover = 32
	maxShiftDevices            = 4
	shiftRegisterName          = "shift-register"
)

// ShiftChain holds the host pins of a chain of daisy-chained shift registers.
// A chain with 0 devices is not connected.
type ShiftChain struct {
	DataPin  int
	ClockPin int
	LatchPin int
	Devices  int
}

func (c ShiftChain) connected() bool {
	return c.Devices > 0
}

func (c ShiftChain) pinCount() int {
	if c.Devices > maxShiftDevices {
		return maxShiftDevices * 8
	}
	return c.Devices * 8
}

// shiftRegister drives 74HC165 style inputs and 74HC595 style outputs
// by bit-banging host pins.
// Input pins are 0...31, output pins start at ShiftRegisterOutputCutover.
type shiftRegister struct {
	api      bridge.API
	log      zerolog.Logger
	in       ShiftChain
	out      ShiftChain
	opened   bool
	inData   bridge.InputPin
	inClock  bridge.OutputPin
	inLoad   bridge.OutputPin
	outData  bridge.OutputPin
	outClock bridge.OutputPin
	outLatch bridge.OutputPin
	output   Register[uint32]
	input    uint32
	err      error
}

// NewShiftRegister creates a device for an input and/or output chain
// of shift registers on host pins.
// The outputs are cleared by the first Sync.
func NewShiftRegister(api bridge.API, in, out ShiftChain, log zerolog.Logger) Device {
	return &shiftRegister{
		api:    api,
		log:    log.With().Str("device", shiftRegisterName).Logger(),
		in:     in,
		out:    out,
		output: NewRegister[uint32](0, true),
	}
}

// PinCount returns the number of pins of the device
func (d *shiftRegister) PinCount() int {
	if d.out.connected() {
		return ShiftRegisterOutputCutover + d.out.pinCount()
	}
	return d.in.pinCount()
}

// outputIndex returns the index of the pin in the output chain.
func (d *shiftRegister) outputIndex(pin Pin) (uint, bool) {
	if int(pin) < ShiftRegisterOutputCutover {
		return 0, false
	}
	index := uint(pin) - ShiftRegisterOutputCutover
	return index, index < uint(d.out.pinCount())
}

// SetDirection is a no-op, the direction of a pin follows from its index.
func (d *shiftRegister) SetDirection(pin Pin, mode PinMode) {}

func (d *shiftRegister) WriteValue(pin Pin, value bool) {
	if index, ok := d.outputIndex(pin); ok {
		d.output.SetBits(uint32(1)<<index, value)
	}
}

// ReadValue returns the input as read by the last Sync.
// Output pins return their written value.
func (d *shiftRegister) ReadValue(pin Pin) bool {
	if index, ok := d.outputIndex(pin); ok {
		return d.output.Value()&(uint32(1)<<index) != 0
	}
	if int(pin) < d.in.pinCount() {
		return d.input&(uint32(1)<<pin) != 0
	}
	return false
}

func (d *shiftRegister) WritePort(pin Pin, value uint8) {
	index, ok := d.outputIndex(pin)
	if !ok {
		return
	}
	shift := (index / pinsPerPort) * pinsPerPort
	d.output.SetMasked(uint32(0xff)<<shift, uint32(value)<<shift)
}

func (d *shiftRegister) ReadPort(pin Pin) uint8 {
	if index, ok := d.outputIndex(pin); ok {
		return uint8(d.output.Value() >> ((index / pinsPerPort) * pinsPerPort))
	}
	if int(pin) < d.in.pinCount() {
		return uint8(d.input >> ((uint(pin) / pinsPerPort) * pinsPerPort))
	}
	return 0
}

// AttachInterrupt is not supported by shift registers; inputs are
// only refreshed by Sync.
func (d *shiftRegister) AttachInterrupt(pin Pin, handler InterruptHandler, mode bridge.TriggerMode) {
	d.log.Debug().Uint8("pin", uint8(pin)).Msg("Interrupts are not supported")
}

// open initializes all chain pins.
// Clocks idle low, the parallel load idles high.
func (d *shiftRegister) open() error {
	var err error
	if d.in.connected() {
		if d.inData, err = d.api.Input(d.in.DataPin, false, false); err != nil {
			return errors.Wrap(err, "open input data pin")
		}
		if d.inClock, err = d.api.Output(d.in.ClockPin, false, false); err != nil {
			return errors.Wrap(err, "open input clock pin")
		}
		if d.inLoad, err = d.api.Output(d.in.LatchPin, false, true); err != nil {
			return errors.Wrap(err, "open input load pin")
		}
	}
	if d.out.connected() {
		if d.outData, err = d.api.Output(d.out.DataPin, false, false); err != nil {
			return errors.Wrap(err, "open output data pin")
		}
		if d.outClock, err = d.api.Output(d.out.ClockPin, false, false); err != nil {
			return errors.Wrap(err, "open output clock pin")
		}
		if d.outLatch, err = d.api.Output(d.out.LatchPin, false, false); err != nil {
			return errors.Wrap(err, "open output latch pin")
		}
	}
	d.opened = true
	return nil
}

// pulse writes a high followed by a low to the given pin.
func pulse(pin bridge.OutputPin) error {
	if err := pin.Write(true); err != nil {
		return err
	}
	return pin.Write(false)
}

// shiftOut sends the value to the output chain, the last chip first,
// most significant bit first, and latches it.
func (d *shiftRegister) shiftOut(value uint32) error {
	if err := d.outLatch.Write(false); err != nil {
		return errors.Wrap(err, "latch low")
	}
	for chip := d.out.pinCount()/8 - 1; chip >= 0; chip-- {
		b := uint8(value >> (chip * 8))
		for bit := 7; bit >= 0; bit-- {
			if err := d.outData.Write(b&(1<<bit) != 0); err != nil {
				return errors.Wrap(err, "write data")
			}
			if err := pulse(d.outClock); err != nil {
				return errors.Wrap(err, "clock")
			}
		}
	}
	if err := d.outLatch.Write(true); err != nil {
		return errors.Wrap(err, "latch high")
	}
	return nil
}

// shiftIn captures the parallel inputs and reads them, the first chip
// first, most significant bit first.
func (d *shiftRegister) shiftIn() (uint32, error) {
	if err := d.inLoad.Write(false); err != nil {
		return 0, errors.Wrap(err, "load low")
	}
	if err := d.inLoad.Write(true); err != nil {
		return 0, errors.Wrap(err, "load high")
	}
	var result uint32
	for chip := 0; chip < d.in.pinCount()/8; chip++ {
		for bit := 7; bit >= 0; bit-- {
			level, err := d.inData.Read()
			if err != nil {
				return 0, errors.Wrap(err, "read data")
			}
			if level {
				result |= uint32(1) << (chip*8 + bit)
			}
			if err := pulse(d.inClock); err != nil {
				return 0, errors.Wrap(err, "clock")
			}
		}
	}
	return result, nil
}

func (d *shiftRegister) keep(err error) {
	if err != nil && d.err == nil {
		d.err = err
		d.log.Warn().Err(err).Msg("Shift register failed")
	}
}

// Sync opens the pins (once), shifts out the outputs when changed
// and shifts in all inputs.
func (d *shiftRegister) Sync(ctx context.Context) error {
	syncTotal.WithLabelValues(shiftRegisterName).Inc()
	if !d.opened {
		if err := d.open(); err != nil {
			busErrorsTotal.WithLabelValues(shiftRegisterName).Inc()
			d.keep(err)
			return err
		}
	}
	var firstErr error
	if d.out.connected() {
		flushed, err := d.output.Commit(d.shiftOut)
		if flushed && err == nil {
			flushTotal.WithLabelValues(shiftRegisterName).Inc()
		}
		if err != nil {
			busErrorsTotal.WithLabelValues(shiftRegisterName).Inc()
			d.keep(err)
			firstErr = err
		}
	}
	if d.in.connected() {
		value, err := d.shiftIn()
		if err != nil {
			busErrorsTotal.WithLabelValues(shiftRegisterName).Inc()
			d.keep(err)
			if firstErr == nil {
				firstErr = err
			}
		}
		d.input = value
	}
	return firstErr
}

func (d *shiftRegister) Err() error {
	return d.err
}

func (d *shiftRegister) ClearError() {
	d.err = nil
}
