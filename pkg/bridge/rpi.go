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
	"sync"
	"time"

	"github.com/ecc1/gpio"
	"github.com/pkg/errors"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

const (
	greenLedPin = 23
	redLedPin   = 24
	rpiPinCount = 28

	// DefaultRaspberryPiI2CBus is the location of the I2C bus on the GPIO header.
	DefaultRaspberryPiI2CBus = "/dev/i2c-1"
)

type statusLed struct {
	sync.Mutex
	pin         gpio.OutputPin
	cancelBlink func()
}

// Turn led on/off, cancel blink
func (l *statusLed) Set(on bool) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	if cancel := l.cancelBlink; cancel != nil {
		l.cancelBlink = nil
		cancel()
	}
	if err := l.pin.Write(on); err != nil {
		return errors.Wrap(err, "Write failed")
	}
	return nil
}

// Blink led on/off
func (l *statusLed) Blink(delay time.Duration) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	if cancel := l.cancelBlink; cancel != nil {
		l.cancelBlink = nil
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancelBlink = cancel
	go func() {
		value := true
		for {
			l.Mutex.Lock()
			if ctx.Err() == nil {
				l.pin.Write(value)
				value = !value
			}
			l.Mutex.Unlock()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

type piBridge struct {
	mutex      sync.Mutex
	greenLed   statusLed
	redLed     statusLed
	busPath    string
	sclPin     int
	bus        I2CBus
	interrupts *InterruptRegistry
	rpioOpen   bool
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's.
// Status leds and local pins use the sysfs GPIO interface,
// interrupt lines use the edge detection of the GPIO controller.
func NewRaspberryPiBridge(busPath string, sclPin int) (API, error) {
	activeLow := true
	initialValue := false
	greenLed, err := gpio.Output(greenLedPin, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrap(err, "Output[greenLed] failed")
	}
	redLed, err := gpio.Output(redLedPin, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrap(err, "Output[redLed] failed")
	}
	if busPath == "" {
		busPath = DefaultRaspberryPiI2CBus
	}
	return &piBridge{
		greenLed:   statusLed{pin: greenLed},
		redLed:     statusLed{pin: redLed},
		busPath:    busPath,
		sclPin:     sclPin,
		interrupts: NewInterruptRegistry(),
	}, nil
}

// Returns number of local pins
func (p *piBridge) PinCount() int {
	return rpiPinCount
}

// Input initializes a GPIO input pin with the given pin number.
// The sysfs interface has no pull control, so pulls are set through rpio.
func (p *piBridge) Input(pinNumber int, activeLow, pullUp bool) (InputPin, error) {
	if pinNumber < 0 || pinNumber >= rpiPinCount {
		return nil, errors.Wrapf(InvalidPinError, "pin %d", pinNumber)
	}
	pin, err := gpio.Input(pinNumber, activeLow)
	if err != nil {
		return nil, errors.Wrapf(err, "Input[%d] failed", pinNumber)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if err := p.openRpio(); err != nil {
		return nil, err
	}
	if pullUp {
		rpio.Pin(pinNumber).PullUp()
	} else {
		rpio.Pin(pinNumber).PullOff()
	}
	return pin, nil
}

// openRpio maps the GPIO registers on first use.
// Caller must hold the mutex.
func (p *piBridge) openRpio() error {
	if !p.rpioOpen {
		if err := rpio.Open(); err != nil {
			return errors.Wrap(err, "rpio.Open failed")
		}
		p.rpioOpen = true
	}
	return nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *piBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	if pinNumber < 0 || pinNumber >= rpiPinCount {
		return nil, errors.Wrapf(InvalidPinError, "pin %d", pinNumber)
	}
	return gpio.Output(pinNumber, activeLow, initialValue)
}

// AttachInterrupt enables edge detection on the given pin and
// registers the handler for it.
func (p *piBridge) AttachInterrupt(pin int, mode TriggerMode, handler func()) error {
	if pin < 0 || pin >= rpiPinCount {
		return errors.Wrapf(InvalidPinError, "pin %d", pin)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err := p.openRpio(); err != nil {
		return err
	}
	rp := rpio.Pin(pin)
	rp.Input()
	rp.PullUp()
	switch mode {
	case TriggerRising:
		rp.Detect(rpio.RiseEdge)
	case TriggerFalling:
		rp.Detect(rpio.FallEdge)
	case TriggerChange:
		rp.Detect(rpio.AnyEdge)
	default:
		// Level triggers are sampled in PollInterrupts
		rp.Detect(rpio.NoEdge)
	}
	return p.interrupts.AttachInterrupt(pin, mode, handler)
}

// PollInterrupts invokes the handlers of all pins that
// have seen their trigger condition since the last poll.
func (p *piBridge) PollInterrupts() {
	for _, pin := range p.interrupts.Pins() {
		mode, _ := p.interrupts.Registration(pin)
		rp := rpio.Pin(pin)
		var raised bool
		switch mode {
		case TriggerLow:
			raised = rp.Read() == rpio.Low
		case TriggerHigh:
			raised = rp.Read() == rpio.High
		default:
			raised = rp.EdgeDetected()
		}
		if raised {
			p.interrupts.Raise(pin)
		}
	}
}

// Turn Green status led on/off
func (p *piBridge) SetGreenLED(on bool) error {
	if err := p.greenLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[greenLed] failed")
	}
	return nil
}

// Turn Red status led on/off
func (p *piBridge) SetRedLED(on bool) error {
	if err := p.redLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[redLed] failed")
	}
	return nil
}

// Blink Green status led with given duration between on/off
func (p *piBridge) BlinkGreenLED(delay time.Duration) error {
	if err := p.greenLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[greenLed] failed")
	}
	return nil
}

// Blink Red status led with given duration between on/off
func (p *piBridge) BlinkRedLED(delay time.Duration) error {
	if err := p.redLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[redLed] failed")
	}
	return nil
}

// Open the I2C bus
func (p *piBridge) I2CBus() (I2CBus, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bus == nil {
		bus, err := NewI2CBus(p.busPath, p.sclPin)
		if err != nil {
			return nil, errors.Wrap(err, "NewI2CBus failed")
		}
		p.bus = bus
	}
	return p.bus, nil
}

func (p *piBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.rpioOpen {
		for _, pin := range p.interrupts.Pins() {
			rpio.Pin(pin).Detect(rpio.NoEdge)
		}
		p.rpioOpen = false
		if err := rpio.Close(); err != nil {
			return errors.Wrap(err, "rpio.Close failed")
		}
	}
	if p.bus != nil {
		bus := p.bus
		p.bus = nil
		if err := bus.Close(); err != nil {
			return errors.Wrap(err, "Close failed")
		}
	}
	return nil
}
