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

	"github.com/go-test/deep"

	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/devices"
	"github.com/binkynet/ioexpander/pkg/devices/devicetest"
)

func TestMCP23017InterruptScenario(t *testing.T) {
	const hostPin = 17
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimMCP23017()
	sim.SetInterruptHandler(0, func() { vb.RaiseInterrupt(hostPin) })
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewMCP23017(newWiring(vb), 0x20, devices.InterruptActiveLow, hostPin)

	calls := 0
	d.SetDirection(3, devices.PinModeInput)
	d.AttachInterrupt(3, func() { calls++ }, bridge.TriggerFalling)
	mustSync(t, d)

	if mode, found := vb.Registration(hostPin); !found || mode != bridge.TriggerFalling {
		t.Errorf("Expected falling registration on host pin, got %v %v", mode, found)
	}
	if v := sim.Register(0x0A); v != 0x48 {
		t.Errorf("Expected IOCON 0x48 (HAEN|MIRROR), got 0x%02x", v)
	}
	if v := sim.RegisterPair(devicetest.RegGPINTEN); v != 0x0008 {
		t.Errorf("Expected GPINTEN 0x0008, got 0x%04x", v)
	}
	if v := sim.RegisterPair(devicetest.RegINTCON); v != 0x0008 {
		t.Errorf("Expected INTCON 0x0008, got 0x%04x", v)
	}
	if v := sim.RegisterPair(devicetest.RegDEFVAL); v != 0x0008 {
		t.Errorf("Expected DEFVAL 0x0008, got 0x%04x", v)
	}
	if calls != 0 {
		t.Fatalf("Expected no handler calls yet, got %d", calls)
	}

	sim.SetInputs(0xfff7)
	if calls != 1 {
		t.Errorf("Expected 1 handler call, got %d", calls)
	}
	if !sim.InterruptPending() {
		t.Fatal("Expected pending interrupt")
	}
	mustSync(t, d)
	if sim.InterruptPending() {
		t.Error("Expected Sync to clear pending interrupt")
	}
	if d.ReadValue(3) {
		t.Error("Expected pin 3 to read low")
	}
	if calls != 1 {
		t.Errorf("Expected still 1 handler call, got %d", calls)
	}
}

func TestMCP23017Outputs(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimMCP23017()
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewMCP23017(newWiring(vb), 0x20, devices.InterruptNotEnabled, bridge.NoPin)

	if d.PinCount() != 16 {
		t.Errorf("Expected 16 pins, got %d", d.PinCount())
	}
	d.SetDirection(0, devices.PinModeOutput)
	d.SetDirection(9, devices.PinModeOutput)
	d.SetDirection(5, devices.PinModeInputPullUp)
	d.WriteValue(9, true)
	d.WritePort(0, 0x81)
	mustSync(t, d)

	if v := sim.RegisterPair(devicetest.RegOLAT); v != 0x0281 {
		t.Errorf("Expected OLAT 0x0281, got 0x%04x", v)
	}
	if v := sim.RegisterPair(devicetest.RegIODIR); v != 0xfdfe {
		t.Errorf("Expected IODIR 0xfdfe, got 0x%04x", v)
	}
	if v := sim.RegisterPair(devicetest.RegGPPU); v != 0x0020 {
		t.Errorf("Expected GPPU 0x0020, got 0x%04x", v)
	}
	if !d.ReadValue(9) {
		t.Error("Expected output pin 9 to read high")
	}

	sim.SetInputs(0x00ff)
	mustSync(t, d)
	if v := d.ReadPort(8); v != 0x02 {
		t.Errorf("Expected port B 0x02, got 0x%02x", v)
	}
	if v := d.ReadPort(0); v != 0xff {
		t.Errorf("Expected port A 0xff, got 0x%02x", v)
	}
}

func TestMCP23017FlushOrder(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimMCP23017()
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewMCP23017(newWiring(vb), 0x20, devices.InterruptActiveLow, 17)

	d.WriteValue(8, true)
	d.SetDirection(8, devices.PinModeOutput)
	d.SetDirection(3, devices.PinModeInputPullUp)
	d.AttachInterrupt(3, func() {}, bridge.TriggerFalling)
	mustSync(t, d)

	expected := []int{
		devicetest.RegIOCON,
		devicetest.RegGPIO,
		devicetest.RegIODIR,
		devicetest.RegGPPU,
		devicetest.RegDEFVAL,
		devicetest.RegINTCON,
		devicetest.RegGPINTEN,
	}
	if diff := deep.Equal(sim.WriteOrder(), expected); diff != nil {
		t.Errorf("Unexpected register write order: %v", diff)
	}
}

func TestMCP23017SyncWithoutChanges(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimMCP23017()
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewMCP23017(newWiring(vb), 0x20, devices.InterruptNotEnabled, bridge.NoPin)

	d.WriteValue(1, true)
	mustSync(t, d)
	sim.ResetCounters()
	mustSync(t, d)
	mustSync(t, d)
	if sim.RegisterWrites() != 0 {
		t.Errorf("Expected no register writes, got %d", sim.RegisterWrites())
	}
	if sim.Reads() != 2 {
		t.Errorf("Expected 2 reads, got %d", sim.Reads())
	}
}

func TestMCP23017IntPerPort(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimMCP23017()
	sim.SetInterruptHandler(0, func() { vb.RaiseInterrupt(17) })
	sim.SetInterruptHandler(1, func() { vb.RaiseInterrupt(18) })
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewMCP23017IntPerPort(newWiring(vb), 0x20, devices.InterruptActiveHigh, 17, 18)

	calls := 0
	d.SetDirection(10, devices.PinModeInput)
	d.AttachInterrupt(10, func() { calls++ }, bridge.TriggerRising)
	mustSync(t, d)

	for _, pin := range []int{17, 18} {
		if mode, found := vb.Registration(pin); !found || mode != bridge.TriggerRising {
			t.Errorf("Expected rising registration on host pin %d, got %v %v", pin, mode, found)
		}
	}
	if v := sim.Register(0x0A); v != 0x0a {
		t.Errorf("Expected IOCON 0x0a (HAEN|INTPOL), got 0x%02x", v)
	}
	// Low does not differ from the low default
	sim.SetInputs(0xfbff)
	if calls != 0 {
		t.Errorf("Expected no handler call, got %d", calls)
	}
	sim.SetInputs(0xffff)
	if calls != 1 {
		t.Errorf("Expected 1 handler call, got %d", calls)
	}
	if v := sim.Register(devices.MCPRegisterAddress(devicetest.RegINTF, 1, 2)); v != 0x04 {
		t.Errorf("Expected INTFB 0x04, got 0x%02x", v)
	}
}

func TestMCP23008(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimMCP23008()
	vb.AttachI2CDevice(0x21, sim)
	d := devices.NewMCP23008(newWiring(vb), 0x21, devices.InterruptActiveLowOpen, bridge.NoPin)

	if d.PinCount() != 8 {
		t.Errorf("Expected 8 pins, got %d", d.PinCount())
	}
	d.SetDirection(1, devices.PinModeOutput)
	d.WriteValue(1, true)
	mustSync(t, d)
	if v := sim.Register(0x0A); v != 0x02 {
		t.Errorf("Expected OLAT 0x02, got 0x%02x", v)
	}
	if v := sim.Register(0x00); v != 0xfd {
		t.Errorf("Expected IODIR 0xfd, got 0x%02x", v)
	}
	if v := sim.Register(0x05); v != 0x4c {
		t.Errorf("Expected IOCON 0x4c (HAEN|ODR|MIRROR), got 0x%02x", v)
	}
	sim.SetInputs(0xfffe)
	mustSync(t, d)
	if v := d.ReadPort(0); v != 0xfe {
		t.Errorf("Expected 0xfe, got 0x%02x", v)
	}
}

func TestMCP23017InitPreservesConfiguration(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	d := devices.NewMCP23017(newWiring(vb), 0x20, devices.InterruptNotEnabled, bridge.NoPin)
	d.SetDirection(0, devices.PinModeOutput)

	if err := d.Sync(context.Background()); err == nil {
		t.Fatal("Expected Sync to fail on missing device")
	}
	if d.Err() == nil {
		t.Error("Expected sticky error")
	}

	sim := devicetest.NewSimMCP23017()
	// DISSLW must survive, BANK & SEQOP are cleared
	if err := sim.WriteByteReg(0x0A, 0x10|0x80|0x20); err != nil {
		t.Fatal(err)
	}
	vb.AttachI2CDevice(0x20, sim)
	d.ClearError()
	mustSync(t, d)
	if v := sim.Register(0x0A); v != 0x58 {
		t.Errorf("Expected IOCON 0x58, got 0x%02x", v)
	}
	if v := sim.RegisterPair(devicetest.RegIODIR); v != 0xfffe {
		t.Errorf("Expected IODIR 0xfffe, got 0x%04x", v)
	}
	if d.Err() != nil {
		t.Errorf("Expected no error, got %v", d.Err())
	}
}

func TestMCP23017FailedFlushIsRetried(t *testing.T) {
	vb := bridge.NewVirtualBridge()
	sim := devicetest.NewSimMCP23017()
	vb.AttachI2CDevice(0x20, sim)
	d := devices.NewMCP23017(newWiring(vb), 0x20, devices.InterruptNotEnabled, bridge.NoPin)
	d.SetDirection(4, devices.PinModeOutput)
	mustSync(t, d)

	sim.SetFailing(true)
	d.WriteValue(4, true)
	if err := d.Sync(context.Background()); err == nil {
		t.Fatal("Expected Sync to fail")
	}
	if d.ReadPort(0) != 0 {
		t.Error("Expected zero value after failed read")
	}
	sim.SetFailing(false)
	mustSync(t, d)
	if v := sim.RegisterPair(devicetest.RegOLAT); v != 0x0010 {
		t.Errorf("Expected OLAT 0x0010, got 0x%04x", v)
	}
}
