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

const (
	pinsPerPort = 8
)

// PinLocation returns the port (0=A, 1=B) and the bit within that port
// of the given pin.
// Pins 0-7 are bit 0-7 of port A, all other pins select port B with bit pin%8.
func PinLocation(pin Pin) (port uint8, bit uint8) {
	bit = uint8(pin % pinsPerPort)
	if pin < pinsPerPort {
		return 0, bit
	}
	return 1, bit
}

// PinMask16 returns the bit mask of the given pin in a register pair
// where port A is the low byte and port B the high byte.
func PinMask16(pin Pin) uint16 {
	port, bit := PinLocation(pin)
	return uint16(1) << (port*pinsPerPort + bit)
}

// PortMask16 returns the mask of all bits of the port that contains the given pin.
func PortMask16(pin Pin) uint16 {
	port, _ := PinLocation(pin)
	return uint16(0xff) << (port * pinsPerPort)
}

// PortValue16 extracts the 8-bit value of the port containing the given pin.
func PortValue16(value uint16, pin Pin) uint8 {
	port, _ := PinLocation(pin)
	return uint8(value >> (port * pinsPerPort))
}

// PinMask8 returns the bit mask of the given pin in an 8-bit port.
// Pins beyond 7 yield an empty mask.
func PinMask8(pin Pin) uint8 {
	if pin >= pinsPerPort {
		return 0
	}
	return uint8(1) << pin
}
