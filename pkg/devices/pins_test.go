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
	"testing"
)

func TestPinLocation(t *testing.T) {
	for pin := Pin(0); pin < 16; pin++ {
		port, bit := PinLocation(pin)
		if pin < 8 && port != 0 {
			t.Errorf("pin %d: expected port 0, got %d", pin, port)
		}
		if pin >= 8 && port != 1 {
			t.Errorf("pin %d: expected port 1, got %d", pin, port)
		}
		if Pin(port)*8+Pin(bit) != pin {
			t.Errorf("pin %d: port %d bit %d does not map back", pin, port, bit)
		}
		if PinMask16(pin) != uint16(1)<<pin {
			t.Errorf("pin %d: unexpected mask 0x%04x", pin, PinMask16(pin))
		}
		if PortMask16(pin)&PinMask16(pin) == 0 {
			t.Errorf("pin %d: port mask 0x%04x does not contain pin", pin, PortMask16(pin))
		}
	}
}

func TestPortValue16(t *testing.T) {
	if v := PortValue16(0xa55a, 3); v != 0x5a {
		t.Errorf("Expected 0x5a, got 0x%02x", v)
	}
	if v := PortValue16(0xa55a, 12); v != 0xa5 {
		t.Errorf("Expected 0xa5, got 0x%02x", v)
	}
}

func TestPinMask8(t *testing.T) {
	if m := PinMask8(7); m != 0x80 {
		t.Errorf("Expected 0x80, got 0x%02x", m)
	}
	if m := PinMask8(8); m != 0 {
		t.Errorf("Expected 0 for pin out of range, got 0x%02x", m)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		Input    string
		Expected uint8
		Valid    bool
	}{
		{"0x20", 0x20, true},
		{"0X27", 0x27, true},
		{"32", 32, true},
		{" 0x7f ", 0x7f, true},
		{"0x80", 0, false},
		{"zz", 0, false},
		{"", 0, false},
	}
	for _, test := range tests {
		result, err := ParseAddress(test.Input)
		if test.Valid {
			if err != nil {
				t.Errorf("'%s': unexpected error %v", test.Input, err)
			} else if result != test.Expected {
				t.Errorf("'%s': expected 0x%02x, got 0x%02x", test.Input, test.Expected, result)
			}
		} else if !IsInvalidAddress(err) {
			t.Errorf("'%s': expected InvalidAddressError, got %v", test.Input, err)
		}
	}
}
