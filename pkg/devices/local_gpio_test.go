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

package devices_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/devices"
)

func TestLocalGPIO(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	d := devices.NewLocalGPIO(vb, zerolog.Nop())

	if d.PinCount() != vb.PinCount() {
		t.Errorf("Expected %d pins, got %d", vb.PinCount(), d.PinCount())
	}
	d.SetDirection(2, devices.PinModeOutput)
	d.WriteValue(2, true)
	d.SetDirection(9, devices.PinModeInput)
	vb.SetLevel(9, true)
	if vb.Level(2) {
		t.Error("Expected no pin change before Sync")
	}
	mustSync(t, d)
	if !vb.Level(2) {
		t.Error("Expected pin 2 to be high")
	}
	if !d.ReadValue(9) {
		t.Error("Expected pin 9 to read high")
	}
	if !d.ReadValue(2) {
		t.Error("Expected output pin 2 to read back high")
	}
	if v := d.ReadPort(8); v != 0x02 {
		t.Errorf("Expected port 1 to be 0x02, got 0x%02x", v)
	}

	d.WritePort(0, 0x00)
	mustSync(t, d)
	if vb.Level(2) {
		t.Error("Expected pin 2 to be low")
	}
}

func TestLocalGPIOPullUp(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	d := devices.NewLocalGPIO(vb, zerolog.Nop())

	d.SetDirection(4, devices.PinModeInputPullUp)
	d.SetDirection(6, devices.PinModeInput)
	mustSync(t, d)
	if !vb.PulledUp(4) {
		t.Error("Expected pull-up on pin 4")
	}
	if vb.PulledUp(6) {
		t.Error("Expected no pull-up on pin 6")
	}

	d.SetDirection(4, devices.PinModeInput)
	mustSync(t, d)
	if vb.PulledUp(4) {
		t.Error("Expected pull-up of pin 4 to be released")
	}
}

func TestLocalGPIOInterrupt(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	d := devices.NewLocalGPIO(vb, zerolog.Nop())

	calls := 0
	d.SetDirection(5, devices.PinModeInput)
	d.AttachInterrupt(5, func() { calls++ }, bridge.TriggerLow)
	if mode, found := vb.Registration(5); !found || mode != bridge.TriggerLow {
		t.Errorf("Expected low registration on pin 5, got %v %v", mode, found)
	}
	vb.RaiseInterrupt(5)
	if calls != 1 {
		t.Errorf("Expected 1 handler call, got %d", calls)
	}
}

func TestLocalGPIOInvalidPin(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	d := devices.NewLocalGPIO(vb, zerolog.Nop())

	d.SetDirection(200, devices.PinModeOutput)
	d.WriteValue(200, true)
	mustSync(t, d)
	if d.ReadValue(200) {
		t.Error("Expected pin out of range to read low")
	}
}
