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

package devices_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/devices"
	"github.com/binkynet/ioexpander/pkg/devices/devicetest"
)

const (
	outData, outClock, outLatch = 5, 6, 13
	inData, inClock, inLoad     = 19, 20, 21
)

func newShiftRegister(vb *bridge.VirtualBridge, inDevices, outDevices int) devices.Device {
	return devices.NewShiftRegister(vb,
		devices.ShiftChain{DataPin: inData, ClockPin: inClock, LatchPin: inLoad, Devices: inDevices},
		devices.ShiftChain{DataPin: outData, ClockPin: outClock, LatchPin: outLatch, Devices: outDevices},
		zerolog.Nop())
}

func TestShiftRegisterOutputs(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimShiftOutput(vb, outData, outClock, outLatch, 2)
	d := newShiftRegister(vb, 0, 2)

	if n := d.PinCount(); n != devices.ShiftRegisterOutputCutover+16 {
		t.Errorf("Expected %d pins, got %d", devices.ShiftRegisterOutputCutover+16, n)
	}
	mustSync(t, d)
	if sim.Latches() != 1 || sim.Outputs() != 0 {
		t.Errorf("Expected outputs cleared by the first sync, got 0x%04x after %d latches", sim.Outputs(), sim.Latches())
	}

	cutover := devices.Pin(devices.ShiftRegisterOutputCutover)
	d.WriteValue(cutover, true)
	d.WriteValue(cutover+3, true)
	d.WritePort(cutover+8, 0xa5)
	if sim.Outputs() != 0 {
		t.Error("Expected no output change before Sync")
	}
	mustSync(t, d)
	if v := sim.Outputs(); v != 0xa509 {
		t.Errorf("Expected outputs 0xa509, got 0x%04x", v)
	}
	if !d.ReadValue(cutover + 3) {
		t.Error("Expected output pin to read back its written value")
	}
	if v := d.ReadPort(cutover + 8); v != 0xa5 {
		t.Errorf("Expected port 0xa5, got 0x%02x", v)
	}

	// Pins below the cutover & beyond the chain are not outputs
	d.WriteValue(3, true)
	d.WriteValue(cutover+16, true)
	mustSync(t, d)
	if sim.Latches() != 2 {
		t.Errorf("Expected no shift without changes, got %d latches", sim.Latches())
	}
}

func TestShiftRegisterInputs(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimShiftInput(vb, inData, inClock, inLoad, 2)
	d := newShiftRegister(vb, 2, 0)

	if n := d.PinCount(); n != 16 {
		t.Errorf("Expected 16 pins, got %d", n)
	}
	sim.SetInputs(0x8001)
	mustSync(t, d)
	if sim.Loads() != 1 {
		t.Errorf("Expected 1 load, got %d", sim.Loads())
	}
	if !d.ReadValue(0) || !d.ReadValue(15) || d.ReadValue(1) {
		t.Errorf("Unexpected input values 0x%02x%02x", d.ReadPort(8), d.ReadPort(0))
	}

	sim.SetInputs(0x3c00)
	if v := d.ReadPort(8); v != 0x80 {
		t.Errorf("Expected cached port 0x80 before Sync, got 0x%02x", v)
	}
	mustSync(t, d)
	if v := d.ReadPort(8); v != 0x3c {
		t.Errorf("Expected port 0x3c, got 0x%02x", v)
	}
	if v := d.ReadPort(0); v != 0x00 {
		t.Errorf("Expected port 0x00, got 0x%02x", v)
	}
}

func TestShiftRegisterInvalidPins(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	d := devices.NewShiftRegister(vb,
		devices.ShiftChain{DataPin: 40, ClockPin: inClock, LatchPin: inLoad, Devices: 1},
		devices.ShiftChain{},
		zerolog.Nop())

	if err := d.Sync(context.Background()); err == nil {
		t.Fatal("Expected Sync to fail on a pin out of range")
	}
	if d.Err() == nil {
		t.Error("Expected sticky error")
	}
	d.ClearError()
	if d.Err() != nil {
		t.Error("Expected error to be cleared")
	}
}
