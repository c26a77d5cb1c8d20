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

	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/devices"
)

// Register indexes as used by SimMCP23x.Register & RegisterPair.
const (
	RegIODIR = iota
	RegIPOL
	RegGPINTEN
	RegDEFVAL
	RegINTCON
	RegIOCON
	RegGPPU
	RegINTF
	RegINTCAP
	RegGPIO
	RegOLAT
	regCount
)

const ioconMirror = 0x40

// SimMCP23x simulates an MCP23008 or MCP23017 in BANK=0 mode.
type SimMCP23x struct {
	mutex       sync.Mutex
	ports       int
	regs        []uint8
	pointer     uint8
	external    uint16
	previous    uint16
	onInterrupt [2]func()
	writes      int
	writeOrder  []int
	reads       int
	failing     bool
}

var _ bridge.I2CDevice = &SimMCP23x{}

// NewSimMCP23017 creates a 2 port chip in its power-on state.
func NewSimMCP23017() *SimMCP23x {
	return newSimMCP23x(2)
}

// NewSimMCP23008 creates a 1 port chip in its power-on state.
func NewSimMCP23008() *SimMCP23x {
	return newSimMCP23x(1)
}

func newSimMCP23x(ports int) *SimMCP23x {
	s := &SimMCP23x{
		ports:    ports,
		regs:     make([]uint8, regCount*ports),
		external: 0xffff,
		previous: 0xffff,
	}
	for port := 0; port < ports; port++ {
		s.regs[s.address(RegIODIR, port)] = 0xff
	}
	return s
}

func (s *SimMCP23x) address(index, port int) uint8 {
	return devices.MCPRegisterAddress(index, port, s.ports)
}

// pair returns the 16-bit value of the register with given index
// (port A in the low byte).
func (s *SimMCP23x) pair(index int) uint16 {
	result := uint16(s.regs[s.address(index, 0)])
	if s.ports > 1 {
		result |= uint16(s.regs[s.address(index, 1)]) << 8
	}
	return result
}

func (s *SimMCP23x) portMask(port int) uint16 {
	return uint16(0xff) << (port * 8)
}

// levels returns the level of all pins.
func (s *SimMCP23x) levels() uint16 {
	iodir := s.pair(RegIODIR)
	return (s.pair(RegOLAT) &^ iodir) | ((s.external ^ s.pair(RegIPOL)) & iodir)
}

// SetInterruptHandler sets the function called when the INT line of
// the given port (0=INTA, 1=INTB) is asserted.
func (s *SimMCP23x) SetInterruptHandler(port int, cb func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onInterrupt[port] = cb
}

// SetInputs sets the levels driven by external devices (1 = high).
func (s *SimMCP23x) SetInputs(levels uint16) {
	s.mutex.Lock()
	s.external = levels
	callbacks := s.evaluateInterrupts()
	s.mutex.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

// evaluateInterrupts updates INTF & INTCAP and returns the callbacks
// of the INT lines that became asserted.
func (s *SimMCP23x) evaluateInterrupts() []func() {
	current := s.levels()
	previous := s.previous
	s.previous = current
	enabled := s.pair(RegGPINTEN) & s.pair(RegIODIR)
	intcon := s.pair(RegINTCON)
	compare := (intcon & (current ^ s.pair(RegDEFVAL))) | (^intcon & (current ^ previous))
	flags := enabled & compare

	mirror := s.regs[s.address(RegIOCON, 0)]&ioconMirror != 0
	var asserted [2]bool
	for port := 0; port < s.ports; port++ {
		mask := s.portMask(port)
		if flags&mask == 0 {
			continue
		}
		intf := s.address(RegINTF, port)
		if s.regs[intf] == 0 {
			s.regs[s.address(RegINTCAP, port)] = uint8(current >> (port * 8))
			asserted[port] = true
		}
		s.regs[intf] |= uint8(flags >> (port * 8))
	}
	if mirror && (asserted[0] || asserted[1]) {
		asserted[0], asserted[1] = true, s.ports > 1
	}
	var result []func()
	for port, a := range asserted {
		if a && s.onInterrupt[port] != nil {
			result = append(result, s.onInterrupt[port])
		}
	}
	return result
}

// SetFailing makes all transactions fail with BusError.
func (s *SimMCP23x) SetFailing(failing bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failing = failing
}

// Register returns the value of the register at the given address.
func (s *SimMCP23x) Register(address uint8) uint8 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.regs[address]
}

// RegisterPair returns the value of the register with the given index,
// port A in the low byte.
func (s *SimMCP23x) RegisterPair(index int) uint16 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pair(index)
}

// InterruptPending returns true while any INTF bit is set.
func (s *SimMCP23x) InterruptPending() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pair(RegINTF) != 0
}

// RegisterWrites returns the number of transactions that wrote registers.
// Transactions that only set the register pointer are not counted.
func (s *SimMCP23x) RegisterWrites() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.writes
}

// WriteOrder returns the register index of the first register written
// by each write transaction, in the order of the transactions.
func (s *SimMCP23x) WriteOrder() []int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]int(nil), s.writeOrder...)
}

// Reads returns the number of read transactions.
func (s *SimMCP23x) Reads() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.reads
}

// ResetCounters sets the transaction counters to 0.
func (s *SimMCP23x) ResetCounters() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.writes, s.reads = 0, 0
	s.writeOrder = nil
}

func (s *SimMCP23x) next() {
	s.pointer = uint8((int(s.pointer) + 1) % len(s.regs))
}

func (s *SimMCP23x) writeRegister(address uint8, value uint8) {
	if int(address) >= len(s.regs) {
		return
	}
	index, port := int(address)/s.ports, int(address)%s.ports
	switch index {
	case RegINTF, RegINTCAP:
		// Read-only
	case RegGPIO, RegOLAT:
		s.regs[s.address(RegOLAT, port)] = value
	case RegIOCON:
		// Shared by both ports
		for p := 0; p < s.ports; p++ {
			s.regs[s.address(RegIOCON, p)] = value
		}
	default:
		s.regs[address] = value
	}
}

func (s *SimMCP23x) readRegister(address uint8) uint8 {
	if int(address) >= len(s.regs) {
		return 0
	}
	index, port := int(address)/s.ports, int(address)%s.ports
	switch index {
	case RegGPIO:
		s.regs[s.address(RegINTF, port)] = 0
		s.previous = s.levels()
		return uint8(s.levels() >> (port * 8))
	case RegINTCAP:
		value := s.regs[address]
		s.regs[s.address(RegINTF, port)] = 0
		return value
	default:
		return s.regs[address]
	}
}

// WriteByte sets the register pointer.
func (s *SimMCP23x) WriteByte(value byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failing {
		return BusError
	}
	s.pointer = value
	return nil
}

// ReadByte reads the register at the pointer and advances the pointer.
func (s *SimMCP23x) ReadByte() (byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failing {
		return 0, BusError
	}
	s.reads++
	value := s.readRegister(s.pointer)
	s.next()
	return value, nil
}

// WriteDevice sets the pointer to the first byte and writes the remaining
// bytes to sequential registers.
func (s *SimMCP23x) WriteDevice(data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failing {
		return BusError
	}
	if len(data) == 0 {
		return nil
	}
	s.pointer = data[0]
	if len(data) == 1 {
		return nil
	}
	s.writes++
	s.writeOrder = append(s.writeOrder, int(s.pointer)/s.ports)
	for _, b := range data[1:] {
		s.writeRegister(s.pointer, b)
		s.next()
	}
	return nil
}

// ReadDevice reads sequential registers starting at the pointer.
func (s *SimMCP23x) ReadDevice(data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failing {
		return BusError
	}
	s.reads++
	for i := range data {
		data[i] = s.readRegister(s.pointer)
		s.next()
	}
	return nil
}

func (s *SimMCP23x) ReadByteReg(reg uint8) (uint8, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failing {
		return 0, BusError
	}
	s.reads++
	return s.readRegister(reg), nil
}

func (s *SimMCP23x) WriteByteReg(reg uint8, value uint8) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failing {
		return BusError
	}
	s.writes++
	s.writeOrder = append(s.writeOrder, int(reg)/s.ports)
	s.writeRegister(reg, value)
	return nil
}
