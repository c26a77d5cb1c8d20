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
	maxLocalPins = 64
	localName    = "gpio"
)

// localGPIO exposes the GPIO pins of the host through the Device interface.
// Pins are grouped in ports of 8.
type localGPIO struct {
	api     bridge.API
	log     zerolog.Logger
	count   int
	modes   []PinMode
	pending []bool
	inputs  []bridge.InputPin
	outputs []bridge.OutputPin
	output  Register[uint64]
	input   uint64
	err     error
}

// NewLocalGPIO creates a device for the GPIO pins of the host.
func NewLocalGPIO(api bridge.API, log zerolog.Logger) Device {
	count := api.PinCount()
	if count > maxLocalPins {
		count = maxLocalPins
	}
	return &localGPIO{
		api:     api,
		log:     log.With().Str("device", localName).Logger(),
		count:   count,
		modes:   make([]PinMode, count),
		pending: make([]bool, count),
		inputs:  make([]bridge.InputPin, count),
		outputs: make([]bridge.OutputPin, count),
	}
}

// PinCount returns the number of pins of the device
func (d *localGPIO) PinCount() int {
	return d.count
}

func (d *localGPIO) valid(pin Pin) bool {
	return int(pin) < d.count
}

// SetDirection records the mode, the pin is (re)opened on the next Sync.
// PinModeInputPullUp enables the pull-up of the host pin.
func (d *localGPIO) SetDirection(pin Pin, mode PinMode) {
	if !d.valid(pin) {
		return
	}
	d.modes[pin] = mode
	d.pending[pin] = true
}

func (d *localGPIO) WriteValue(pin Pin, value bool) {
	if !d.valid(pin) {
		return
	}
	d.output.SetBits(uint64(1)<<pin, value)
}

func (d *localGPIO) ReadValue(pin Pin) bool {
	if !d.valid(pin) {
		return false
	}
	return d.input&(uint64(1)<<pin) != 0
}

func (d *localGPIO) WritePort(pin Pin, value uint8) {
	shift := (uint(pin) / pinsPerPort) * pinsPerPort
	if shift >= maxLocalPins {
		return
	}
	d.output.SetMasked(uint64(0xff)<<shift, uint64(value)<<shift)
}

func (d *localGPIO) ReadPort(pin Pin) uint8 {
	shift := (uint(pin) / pinsPerPort) * pinsPerPort
	if shift >= maxLocalPins {
		return 0
	}
	return uint8(d.input >> shift)
}

// AttachInterrupt subscribes directly to the host pin, which
// supports all trigger modes.
func (d *localGPIO) AttachInterrupt(pin Pin, handler InterruptHandler, mode bridge.TriggerMode) {
	if !d.valid(pin) || handler == nil {
		return
	}
	err := d.api.AttachInterrupt(int(pin), mode, func() {
		interruptsTotal.WithLabelValues(localName).Inc()
		handler()
	})
	if err != nil {
		d.log.Warn().Err(err).Uint8("pin", uint8(pin)).Msg("Failed to attach interrupt")
		d.keep(err)
	}
}

func (d *localGPIO) keep(err error) {
	if err != nil && d.err == nil {
		d.err = err
	}
}

// Sync opens pins with a changed mode, writes all outputs (when changed)
// and reads all inputs. Output pins read back their written value.
func (d *localGPIO) Sync(ctx context.Context) error {
	syncTotal.WithLabelValues(localName).Inc()
	var firstErr error
	keep := func(err error) {
		if err != nil {
			busErrorsTotal.WithLabelValues(localName).Inc()
			d.keep(err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for i := 0; i < d.count; i++ {
		if !d.pending[i] {
			continue
		}
		if d.modes[i].IsInput() {
			p, err := d.api.Input(i, false, d.modes[i] == PinModeInputPullUp)
			if err != nil {
				keep(errors.Wrapf(err, "open input pin %d", i))
				continue
			}
			d.inputs[i], d.outputs[i] = p, nil
		} else {
			p, err := d.api.Output(i, false, d.output.Value()&(uint64(1)<<i) != 0)
			if err != nil {
				keep(errors.Wrapf(err, "open output pin %d", i))
				continue
			}
			d.inputs[i], d.outputs[i] = nil, p
		}
		d.pending[i] = false
	}
	flushed, err := d.output.Commit(func(value uint64) error {
		for i, p := range d.outputs {
			if p == nil {
				continue
			}
			if err := p.Write(value&(uint64(1)<<i) != 0); err != nil {
				return errors.Wrapf(err, "write pin %d", i)
			}
		}
		return nil
	})
	if flushed && err == nil {
		flushTotal.WithLabelValues(localName).Inc()
	}
	keep(err)
	var input uint64
	for i := 0; i < d.count; i++ {
		mask := uint64(1) << i
		if p := d.inputs[i]; p != nil {
			value, err := p.Read()
			if err != nil {
				keep(errors.Wrapf(err, "read pin %d", i))
				continue
			}
			if value {
				input |= mask
			}
		} else if d.outputs[i] != nil {
			input |= d.output.Value() & mask
		}
	}
	d.input = input
	return firstErr
}

func (d *localGPIO) Err() error {
	return d.err
}

func (d *localGPIO) ClearError() {
	d.err = nil
}
