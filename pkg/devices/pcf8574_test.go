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
	"context"
	"testing"

	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/devices"
	"github.com/binkynet/ioexpander/pkg/devices/devicetest"
)

func TestPCF8574Outputs(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimPCF8574()
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewPCF8574(newWiring(vb), 0x20, bridge.NoPin)

	mustSync(t, d)
	if sim.Latch() != 0xff {
		t.Errorf("Expected all inputs (0xff), got 0x%02x", sim.Latch())
	}
	d.SetDirection(2, devices.PinModeOutput)
	d.WriteValue(2, true)
	d.WriteValue(3, false)
	d.SetDirection(3, devices.PinModeOutput)
	mustSync(t, d)
	if sim.Latch() != 0xf7 {
		t.Errorf("Expected 0xf7, got 0x%02x", sim.Latch())
	}
	if d.ReadValue(3) {
		t.Error("Expected output pin 3 to read low")
	}
	// Switching to output keeps an earlier written value
	d.WriteValue(5, true)
	d.SetDirection(5, devices.PinModeOutput)
	mustSync(t, d)
	if sim.Latch() != 0xf7 {
		t.Errorf("Expected 0xf7, got 0x%02x", sim.Latch())
	}
	if !d.ReadValue(5) {
		t.Error("Expected output pin 5 to keep its high value")
	}
	// Back to input must release the pin, regardless of the written value
	d.WriteValue(3, false)
	d.SetDirection(3, devices.PinModeInput)
	mustSync(t, d)
	if sim.Latch() != 0xff {
		t.Errorf("Expected 0xff, got 0x%02x", sim.Latch())
	}
}

func TestPCF8574Inputs(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimPCF8574()
	vb.AttachI2CDevice(0x21, sim)
	d := devices.NewPCF8574(newWiring(vb), 0x21, bridge.NoPin)

	sim.SetInputs(0xfe)
	if d.ReadPort(0) != 0 {
		t.Error("Expected no value before Sync")
	}
	mustSync(t, d)
	if d.ReadValue(0) {
		t.Error("Expected pin 0 to read low")
	}
	if !d.ReadValue(1) {
		t.Error("Expected pin 1 to read high")
	}
	if v := d.ReadPort(5); v != 0xfe {
		t.Errorf("Expected 0xfe, got 0x%02x", v)
	}
}

func TestPCF8574SyncWithoutChanges(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimPCF8574()
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewPCF8574(newWiring(vb), 0x20, bridge.NoPin)

	mustSync(t, d)
	sim.ResetCounters()
	mustSync(t, d)
	mustSync(t, d)
	if sim.Writes() != 0 {
		t.Errorf("Expected no writes, got %d", sim.Writes())
	}
	if sim.Reads() != 2 {
		t.Errorf("Expected 2 reads, got %d", sim.Reads())
	}
}

func TestPCF8574StickyError(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	d := devices.NewPCF8574(newWiring(vb), 0x20, bridge.NoPin)

	if err := d.Sync(context.Background()); err == nil {
		t.Fatal("Expected Sync to fail on missing device")
	}
	if d.Err() == nil {
		t.Error("Expected sticky error")
	}
	if d.ReadPort(0) != 0 || d.ReadValue(0) {
		t.Error("Expected zero values after failed read")
	}
	// Error stays until cleared
	sim := devicetest.NewSimPCF8574()
	vb.AttachI2CDevice(0x20, sim)
	mustSync(t, d)
	if d.Err() == nil {
		t.Error("Expected sticky error to remain")
	}
	d.ClearError()
	if d.Err() != nil {
		t.Errorf("Expected no error after ClearError, got %v", d.Err())
	}
	// The failed write is retried
	if sim.Writes() != 1 {
		t.Errorf("Expected pending write to be flushed, got %d writes", sim.Writes())
	}
}

func TestPCF8574Interrupt(t *testing.T) {
	const hostPin = 4
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimPCF8574()
	sim.SetInterruptHandler(func() { vb.RaiseInterrupt(hostPin) })
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewPCF8574(newWiring(vb), 0x20, hostPin)
	mustSync(t, d)

	calls := 0
	sim.SetInputs(0xfe)
	if calls != 0 {
		t.Error("Expected no handler call before AttachInterrupt")
	}
	mustSync(t, d)

	d.AttachInterrupt(0, func() { calls++ }, bridge.TriggerFalling)
	d.AttachInterrupt(1, func() { calls++ }, bridge.TriggerFalling)
	if mode, found := vb.Registration(hostPin); !found || mode != bridge.TriggerChange {
		t.Errorf("Expected change registration on host pin, got %v %v", mode, found)
	}
	if pins := vb.Pins(); len(pins) != 1 {
		t.Errorf("Expected a single host registration, got %v", pins)
	}
	sim.SetInputs(0xfc)
	sim.SetInputs(0xf8)
	if calls != 1 {
		t.Errorf("Expected 1 handler call, got %d", calls)
	}
	if !sim.InterruptPending() {
		t.Error("Expected pending interrupt")
	}
	mustSync(t, d)
	if sim.InterruptPending() {
		t.Error("Expected Sync to clear pending interrupt")
	}
	if v := d.ReadPort(0); v != 0xf8 {
		t.Errorf("Expected 0xf8, got 0x%02x", v)
	}
}
