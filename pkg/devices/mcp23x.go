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

// Logical register indexes of the MCP23x family.
// With IOCON.BANK=0 the address of a register is index*ports+port.
const (
	mcpRegIODIR = iota
	mcpRegIPOL
	mcpRegGPINTEN
	mcpRegDEFVAL
	mcpRegINTCON
	mcpRegIOCON
	mcpRegGPPU
	mcpRegINTF
	mcpRegINTCAP
	mcpRegGPIO
	mcpRegOLAT
)

// IOCON bits
const (
	ioconINTPOL = 0x02
	ioconODR    = 0x04
	ioconHAEN   = 0x08
	ioconSEQOP  = 0x20
	ioconMIRROR = 0x40
	ioconBANK   = 0x80
)

// MCPRegisterAddress returns the address of the register with given
// index and port for a chip with given number of ports in BANK=0 mode.
func MCPRegisterAddress(index, port, ports int) uint8 {
	return uint8(index*ports + port)
}

// InterruptMode configures the electrical behavior of the INT lines of an MCP23x.
type InterruptMode uint8

const (
	// InterruptNotEnabled means the INT lines are not connected to the host.
	InterruptNotEnabled InterruptMode = iota
	InterruptActiveHighOpen
	InterruptActiveLowOpen
	InterruptActiveHigh
	InterruptActiveLow
)

// ioconBits returns the ODR & INTPOL bits for the mode.
func (m InterruptMode) ioconBits() uint8 {
	switch m {
	case InterruptActiveHighOpen:
		return ioconODR | ioconINTPOL
	case InterruptActiveLowOpen:
		return ioconODR
	case InterruptActiveHigh:
		return ioconINTPOL
	default:
		return 0
	}
}

// hostTrigger returns the edge the host has to listen to.
func (m InterruptMode) hostTrigger() bridge.TriggerMode {
	switch m {
	case InterruptActiveHighOpen, InterruptActiveHigh:
		return bridge.TriggerRising
	default:
		return bridge.TriggerFalling
	}
}

func (m InterruptMode) String() string {
	switch m {
	case InterruptNotEnabled:
		return "not-enabled"
	case InterruptActiveHighOpen:
		return "active-high-open"
	case InterruptActiveLowOpen:
		return "active-low-open"
	case InterruptActiveHigh:
		return "active-high"
	case InterruptActiveLow:
		return "active-low"
	default:
		return "unknown"
	}
}

type mcpState uint8

const (
	mcpUninitialized mcpState = iota
	mcpReady
)

// mcp23x drives the MCP23008 (1 port) and MCP23017 (2 ports).
type mcp23x struct {
	wire
	host          bridge.HostInterrupts
	ports         int
	mode          InterruptMode
	interruptPinA int
	interruptPinB int
	state         mcpState
	iodir         Register[uint16]
	gppu          Register[uint16]
	gpinten       Register[uint16]
	defval        Register[uint16]
	intcon        Register[uint16]
	output        Register[uint16]
	input         uint16
	handler       InterruptHandler
	attached      bool
}

// NewMCP23017 creates a device for an MCP23017 at the given address.
// Both INT lines are mirrored onto a single host pin.
func NewMCP23017(w Wiring, address uint8, mode InterruptMode, interruptPin int) Device {
	return newMCP23x(w, "mcp23017", address, 2, mode, interruptPin, bridge.NoPin)
}

// NewMCP23017IntPerPort creates a device for an MCP23017 at the given address
// with INTA and INTB connected to separate host pins.
func NewMCP23017IntPerPort(w Wiring, address uint8, mode InterruptMode, interruptPinA, interruptPinB int) Device {
	return newMCP23x(w, "mcp23017", address, 2, mode, interruptPinA, interruptPinB)
}

// NewMCP23008 creates a device for an MCP23008 at the given address.
func NewMCP23008(w Wiring, address uint8, mode InterruptMode, interruptPin int) Device {
	return newMCP23x(w, "mcp23008", address, 1, mode, interruptPin, bridge.NoPin)
}

func newMCP23x(w Wiring, typeName string, address uint8, ports int, mode InterruptMode, pinA, pinB int) *mcp23x {
	return &mcp23x{
		wire:          newWire(w, typeName, address),
		host:          w.Host,
		ports:         ports,
		mode:          mode,
		interruptPinA: pinA,
		interruptPinB: pinB,
		// Power-on state of the chip: all inputs
		iodir: NewRegister[uint16](0xffff, false),
	}
}

// PinCount returns the number of pins of the device
func (d *mcp23x) PinCount() int {
	return d.ports * pinsPerPort
}

// SetDirection sets the mode of the given pin.
func (d *mcp23x) SetDirection(pin Pin, mode PinMode) {
	mask := PinMask16(pin)
	d.iodir.SetBits(mask, mode.IsInput())
	d.gppu.SetBits(mask, mode == PinModeInputPullUp)
}

// WriteValue sets the output latch of the given pin.
func (d *mcp23x) WriteValue(pin Pin, value bool) {
	d.output.SetBits(PinMask16(pin), value)
}

// ReadValue returns the level of the given pin as read by the last Sync.
func (d *mcp23x) ReadValue(pin Pin) bool {
	return d.input&PinMask16(pin) != 0
}

// WritePort sets the output latches of the port containing the given pin.
func (d *mcp23x) WritePort(pin Pin, value uint8) {
	v := uint16(value)
	d.output.SetMasked(PortMask16(pin), v<<pinsPerPort | v)
}

// ReadPort returns the levels of the port containing the given pin.
func (d *mcp23x) ReadPort(pin Pin) uint8 {
	return PortValue16(d.input, pin)
}

// AttachInterrupt enables interrupt-on-change for the given pin.
// Rising & High trigger when the pin differs from a low default,
// Falling & Low when it differs from a high default.
// Change triggers on any difference with the previous value.
func (d *mcp23x) AttachInterrupt(pin Pin, handler InterruptHandler, mode bridge.TriggerMode) {
	d.handler = handler
	mask := PinMask16(pin)
	d.gpinten.SetBits(mask, true)
	d.intcon.SetBits(mask, mode != bridge.TriggerChange)
	d.defval.SetBits(mask, mode == bridge.TriggerFalling || mode == bridge.TriggerLow)
	d.attachHost()
}

// attachHost subscribes to the INT line(s) once.
func (d *mcp23x) attachHost() {
	if d.attached || d.host == nil || d.mode == InterruptNotEnabled {
		return
	}
	trigger := d.mode.hostTrigger()
	for _, hostPin := range []int{d.interruptPinA, d.interruptPinB} {
		if hostPin == bridge.NoPin {
			continue
		}
		if err := d.host.AttachInterrupt(hostPin, trigger, d.onInterrupt); err != nil {
			d.log.Warn().Err(err).Int("host-pin", hostPin).Msg("Failed to attach interrupt")
			return
		}
	}
	d.attached = true
}

func (d *mcp23x) onInterrupt() {
	interruptsTotal.WithLabelValues(d.name).Inc()
	if h := d.handler; h != nil {
		h()
	}
}

// register returns the address of the register with given index for port A.
func (d *mcp23x) register(index int) uint8 {
	return MCPRegisterAddress(index, 0, d.ports)
}

// bytes splits the value into one byte per port.
func (d *mcp23x) bytes(value uint16) []byte {
	if d.ports == 1 {
		return []byte{uint8(value)}
	}
	return []byte{uint8(value), uint8(value >> 8)}
}

// initialize configures IOCON.
func (d *mcp23x) initialize(ctx context.Context) error {
	raw, err := d.readRegisters(ctx, d.register(mcpRegIOCON), 1)
	if err != nil {
		return err
	}
	iocon := raw[0] &^ (ioconBANK | ioconMIRROR | ioconSEQOP | ioconODR | ioconINTPOL)
	iocon |= ioconHAEN | d.mode.ioconBits()
	if d.interruptPinB == bridge.NoPin {
		iocon |= ioconMIRROR
	}
	if err := d.writeRegisters(ctx, d.register(mcpRegIOCON), iocon); err != nil {
		return err
	}
	d.state = mcpReady
	d.log.Debug().Uint8("iocon", iocon).Msg("Device initialized")
	return nil
}

// Sync initializes the device (once), flushes all changed registers and
// reads all GPIO pins. The read also resets pending interrupts of the chip.
func (d *mcp23x) Sync(ctx context.Context) error {
	syncTotal.WithLabelValues(d.name).Inc()
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.state == mcpUninitialized {
		keep(d.initialize(ctx))
	}
	if d.state == mcpReady {
		// Latch outputs before switching pins to output,
		// set the compare registers before enabling interrupts.
		for _, x := range []struct {
			reg   *Register[uint16]
			index int
		}{
			{&d.output, mcpRegGPIO},
			{&d.iodir, mcpRegIODIR},
			{&d.gppu, mcpRegGPPU},
			{&d.defval, mcpRegDEFVAL},
			{&d.intcon, mcpRegINTCON},
			{&d.gpinten, mcpRegGPINTEN},
		} {
			flushed, err := x.reg.Commit(func(value uint16) error {
				return d.writeRegisters(ctx, d.register(x.index), d.bytes(value)...)
			})
			if flushed && err == nil {
				flushTotal.WithLabelValues(d.name).Inc()
			}
			keep(err)
		}
	}
	raw, err := d.readRegisters(ctx, d.register(mcpRegGPIO), d.ports)
	keep(err)
	d.input = uint16(raw[0])
	if d.ports > 1 {
		d.input |= uint16(raw[1]) << 8
	}
	return firstErr
}
