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
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	virtualPinCount = 32
)

var (
	// DeviceNotFoundError is returned by the virtual bus when no device
	// is attached at the requested address.
	DeviceNotFoundError = errors.New("device not found")
)

// VirtualBridge is an in-memory bridge.
// I2C devices are attached explicitly, local pins are plain memory cells
// and interrupts are raised by calling RaiseInterrupt.
type VirtualBridge struct {
	*InterruptRegistry

	mutex   sync.Mutex
	devices map[uint8]I2CDevice
	levels  [virtualPinCount]bool
	pullUps [virtualPinCount]bool
	leds    [2]bool
	watches map[int][]func(level bool)
}

// NewVirtualBridge implements the bridge for running without hardware.
func NewVirtualBridge() *VirtualBridge {
	return &VirtualBridge{
		InterruptRegistry: NewInterruptRegistry(),
		devices:           make(map[uint8]I2CDevice),
		watches:           make(map[int][]func(level bool)),
	}
}

// AttachI2CDevice makes the given device respond at the given address.
func (p *VirtualBridge) AttachI2CDevice(address uint8, dev I2CDevice) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.devices[address] = dev
}

// Returns number of local pins
func (p *VirtualBridge) PinCount() int {
	return virtualPinCount
}

// SetLevel sets the level of a local pin, as if driven externally.
// Watchers of the pin are called when the level changes.
func (p *VirtualBridge) SetLevel(pinNumber int, level bool) {
	p.mutex.Lock()
	if pinNumber < 0 || pinNumber >= virtualPinCount || p.levels[pinNumber] == level {
		p.mutex.Unlock()
		return
	}
	p.levels[pinNumber] = level
	watches := p.watches[pinNumber]
	p.mutex.Unlock()

	for _, cb := range watches {
		cb(level)
	}
}

// WatchLevel registers a callback that is called with the new level
// every time the level of the given pin changes.
// Callbacks run on the goroutine that changed the level.
func (p *VirtualBridge) WatchLevel(pinNumber int, cb func(level bool)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.watches[pinNumber] = append(p.watches[pinNumber], cb)
}

// Level returns the level of a local pin.
func (p *VirtualBridge) Level(pinNumber int) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if pinNumber >= 0 && pinNumber < virtualPinCount {
		return p.levels[pinNumber]
	}
	return false
}

// PulledUp returns true when the pull-up of the given pin was enabled
// by the last Input call for that pin.
func (p *VirtualBridge) PulledUp(pinNumber int) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if pinNumber >= 0 && pinNumber < virtualPinCount {
		return p.pullUps[pinNumber]
	}
	return false
}

type virtualPin struct {
	bridge    *VirtualBridge
	number    int
	activeLow bool
}

// Read the logical value of the pin.
func (vp virtualPin) Read() (bool, error) {
	return vp.bridge.Level(vp.number) != vp.activeLow, nil
}

// Write the logical value of the pin.
func (vp virtualPin) Write(value bool) error {
	vp.bridge.SetLevel(vp.number, value != vp.activeLow)
	return nil
}

// Input initializes a GPIO input pin with the given pin number.
func (p *VirtualBridge) Input(pinNumber int, activeLow, pullUp bool) (InputPin, error) {
	if pinNumber < 0 || pinNumber >= virtualPinCount {
		return nil, errors.Wrapf(InvalidPinError, "pin %d", pinNumber)
	}
	p.mutex.Lock()
	p.pullUps[pinNumber] = pullUp
	p.mutex.Unlock()
	return virtualPin{bridge: p, number: pinNumber, activeLow: activeLow}, nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *VirtualBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	if pinNumber < 0 || pinNumber >= virtualPinCount {
		return nil, errors.Wrapf(InvalidPinError, "pin %d", pinNumber)
	}
	p.mutex.Lock()
	p.pullUps[pinNumber] = false
	p.mutex.Unlock()
	vp := virtualPin{bridge: p, number: pinNumber, activeLow: activeLow}
	vp.Write(initialValue)
	return vp, nil
}

// RaiseInterrupt invokes the handler attached to the given pin.
func (p *VirtualBridge) RaiseInterrupt(pinNumber int) bool {
	return p.InterruptRegistry.Raise(pinNumber)
}

// PollInterrupts is a no-op; virtual interrupts are raised synchronously.
func (p *VirtualBridge) PollInterrupts() {}

// Turn Green status led on/off
func (p *VirtualBridge) SetGreenLED(on bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.leds[0] = on
	return nil
}

// Turn Red status led on/off
func (p *VirtualBridge) SetRedLED(on bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.leds[1] = on
	return nil
}

// Blink Green status led with given duration between on/off
func (p *VirtualBridge) BlinkGreenLED(delay time.Duration) error {
	return p.SetGreenLED(true)
}

// Blink Red status led with given duration between on/off
func (p *VirtualBridge) BlinkRedLED(delay time.Duration) error {
	return p.SetRedLED(true)
}

// Open the I2C bus
func (p *VirtualBridge) I2CBus() (I2CBus, error) {
	return p, nil
}

func (p *VirtualBridge) Close() error {
	return nil
}

// Execute an option on the bus.
// A missing device behaves like an address that is not acknowledged.
func (p *VirtualBridge) Execute(ctx context.Context, address uint8, op func(ctx context.Context, dev I2CDevice) error) error {
	addrLabel := strconv.Itoa(int(address))
	i2cExecuteCounters.WithLabelValues(addrLabel).Inc()

	p.mutex.Lock()
	dev, found := p.devices[address]
	p.mutex.Unlock()

	if !found {
		i2cExecuteErrorCounters.WithLabelValues(addrLabel).Inc()
		return errors.Wrapf(DeviceNotFoundError, "no device at address 0x%02x", address)
	}
	if err := op(ctx, dev); err != nil {
		i2cExecuteErrorCounters.WithLabelValues(addrLabel).Inc()
		return fmt.Errorf("execute operation on i2c address 0x%02x failed: %w", address, err)
	}
	return nil
}

// DetectSlaveAddresses returns the addresses of all attached devices.
func (p *VirtualBridge) DetectSlaveAddresses() []byte {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	result := make([]byte, 0, len(p.devices))
	for addr := range p.devices {
		result = append(result, addr)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

var _ API = &VirtualBridge{}
