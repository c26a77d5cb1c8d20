//    Copyright 2017 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package bridge

import (
	"context"
	"testing"

	"github.com/go-test/deep"
	"github.com/pkg/errors"
)

type nopDevice struct {
	written []byte
}

func (d *nopDevice) ReadByteReg(reg uint8) (uint8, error)    { return reg, nil }
func (d *nopDevice) WriteByteReg(reg uint8, val uint8) error { return nil }
func (d *nopDevice) ReadByte() (byte, error)                 { return 0x5a, nil }
func (d *nopDevice) WriteByte(val byte) error {
	d.written = append(d.written, val)
	return nil
}
func (d *nopDevice) ReadDevice(data []byte) error { return nil }
func (d *nopDevice) WriteDevice(data []byte) error {
	d.written = append(d.written, data...)
	return nil
}

func TestVirtualBusExecute(t *testing.T) {
	b := NewVirtualBridge()
	dev := &nopDevice{}
	b.AttachI2CDevice(0x20, dev)
	bus, _ := b.I2CBus()

	ctx := context.Background()
	if err := bus.Execute(ctx, 0x20, func(ctx context.Context, d I2CDevice) error {
		return d.WriteByte(0x42)
	}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if diff := deep.Equal(dev.written, []byte{0x42}); diff != nil {
		t.Error(diff)
	}

	err := bus.Execute(ctx, 0x21, func(ctx context.Context, d I2CDevice) error { return nil })
	if errors.Cause(err) != DeviceNotFoundError {
		t.Errorf("Expected DeviceNotFoundError, got %v", err)
	}
	if diff := deep.Equal(bus.DetectSlaveAddresses(), []byte{0x20}); diff != nil {
		t.Error(diff)
	}
}

func TestVirtualPins(t *testing.T) {
	b := NewVirtualBridge()
	out, err := b.Output(3, false, true)
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	if !b.Level(3) {
		t.Error("Expected initial value to drive the pin high")
	}
	out.Write(false)
	if b.Level(3) {
		t.Error("Expected pin low after write")
	}

	in, _ := b.Input(5, true, false)
	b.SetLevel(5, false)
	if v, _ := in.Read(); !v {
		t.Error("Expected active-low input to read true on a low level")
	}
	if _, err := b.Input(7, false, true); err != nil || !b.PulledUp(7) {
		t.Errorf("Expected pull-up on pin 7, got %v", err)
	}
	if _, err := b.Input(virtualPinCount, false, false); errors.Cause(err) != InvalidPinError {
		t.Errorf("Expected InvalidPinError, got %v", err)
	}
}

func TestVirtualWatchLevel(t *testing.T) {
	b := NewVirtualBridge()
	var seen []bool
	b.WatchLevel(9, func(level bool) { seen = append(seen, level) })
	out, _ := b.Output(9, false, false)
	out.Write(true)
	out.Write(true)
	out.Write(false)
	b.SetLevel(10, true)
	if diff := deep.Equal(seen, []bool{true, false}); diff != nil {
		t.Errorf("Unexpected level changes: %v", diff)
	}
}

func TestVirtualRaiseInterrupt(t *testing.T) {
	b := NewVirtualBridge()
	var api API = b
	calls := 0
	api.AttachInterrupt(6, TriggerChange, func() { calls++ })
	api.PollInterrupts()
	if calls != 0 {
		t.Fatal("PollInterrupts must not raise anything on the virtual bridge")
	}
	b.RaiseInterrupt(6)
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}
