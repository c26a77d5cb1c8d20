// Copyright 2024 Ewout Prangsma
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
	"fmt"

	"github.com/rs/zerolog"

	"github.com/binkynet/ioexpander/pkg/bridge"
)

// Wiring holds the host side collaborators of a bus attached device.
type Wiring struct {
	// Bus the device is attached to
	Bus bridge.I2CBus
	// Host is used to subscribe to interrupt lines of the device.
	// May be nil when no interrupt lines are connected.
	Host bridge.HostInterrupts
	// Log receives device level messages
	Log zerolog.Logger
}

// wire performs the transactions of a single device on the bus.
// A failing transaction is recorded as sticky error and yields
// zero values, so callers always get defined results.
type wire struct {
	bus     bridge.I2CBus
	address uint8
	name    string
	log     zerolog.Logger
	err     error
}

func newWire(w Wiring, typeName string, address uint8) wire {
	name := fmt.Sprintf("%s@0x%02x", typeName, address)
	return wire{
		bus:     w.Bus,
		address: address,
		name:    name,
		log:     w.Log.With().Str("device", name).Logger(),
	}
}

// execute runs the given operation against the device.
func (w *wire) execute(ctx context.Context, op func(dev bridge.I2CDevice) error) error {
	err := w.bus.Execute(ctx, w.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		return op(dev)
	})
	if err != nil {
		busErrorsTotal.WithLabelValues(w.name).Inc()
		if w.err == nil {
			w.log.Warn().Err(err).Msg("Bus transaction failed")
			w.err = err
		}
	}
	return err
}

// writeByte transmits a single byte.
func (w *wire) writeByte(ctx context.Context, value uint8) error {
	return w.execute(ctx, func(dev bridge.I2CDevice) error {
		return dev.WriteByte(value)
	})
}

// readByte receives a single byte, 0 on failure.
func (w *wire) readByte(ctx context.Context) (uint8, error) {
	var result uint8
	err := w.execute(ctx, func(dev bridge.I2CDevice) error {
		var err error
		result, err = dev.ReadByte()
		return err
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// writeRegisters transmits the register address followed by the
// given data in one transaction; the device auto-increments the address.
func (w *wire) writeRegisters(ctx context.Context, reg uint8, data ...uint8) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, reg)
	buf = append(buf, data...)
	return w.execute(ctx, func(dev bridge.I2CDevice) error {
		return dev.WriteDevice(buf)
	})
}

// readRegisters selects the given register and reads count
// consecutive bytes. On failure all bytes are 0.
func (w *wire) readRegisters(ctx context.Context, reg uint8, count int) ([]byte, error) {
	buf := make([]byte, count)
	err := w.execute(ctx, func(dev bridge.I2CDevice) error {
		if err := dev.WriteByte(reg); err != nil {
			return err
		}
		return dev.ReadDevice(buf)
	})
	if err != nil {
		return make([]byte, count), err
	}
	return buf, nil
}

// Err returns the sticky error.
func (w *wire) Err() error {
	return w.err
}

// ClearError resets the sticky error.
func (w *wire) ClearError() {
	w.err = nil
}
