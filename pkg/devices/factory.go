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
	"github.com/pkg/errors"

	"github.com/binkynet/ioexpander/model"
	"github.com/binkynet/ioexpander/pkg/bridge"
)

// NewDevice creates a device for the given configuration.
// The api is only used for devices on host pins (gpio & shift-register).
func NewDevice(config model.HWDevice, w Wiring, api bridge.API) (Device, error) {
	if !config.Type.IsI2C() && api == nil {
		return nil, errors.Wrapf(UnknownTypeError, "device '%s' requires a host bridge", config.ID)
	}
	switch config.Type {
	case model.HWDeviceTypeGPIO:
		return NewLocalGPIO(api, w.Log), nil
	case model.HWDeviceTypeShiftRegister:
		return NewShiftRegister(api, shiftChain(config.ShiftInput), shiftChain(config.ShiftOutput), w.Log), nil
	}
	address, err := ParseAddress(config.Address)
	if err != nil {
		return nil, maskAny(err)
	}
	mode, err := ParseInterruptMode(config.InterruptMode)
	if err != nil {
		return nil, maskAny(err)
	}
	pinA, pinB := config.GetInterruptPin(), config.GetInterruptPinB()
	switch config.Type {
	case model.HWDeviceTypePCF8574:
		return NewPCF8574(w, address, pinA), nil
	case model.HWDeviceTypeMCP23008:
		return NewMCP23008(w, address, mode, pinA), nil
	case model.HWDeviceTypeMCP23017:
		if pinB != bridge.NoPin {
			return NewMCP23017IntPerPort(w, address, mode, pinA, pinB), nil
		}
		return NewMCP23017(w, address, mode, pinA), nil
	default:
		return nil, errors.Wrapf(UnknownTypeError, "'%s'", string(config.Type))
	}
}

// shiftChain converts a configured chain, nil results in a chain
// that is not connected.
func shiftChain(c *model.HWShiftChain) ShiftChain {
	if c == nil {
		return ShiftChain{}
	}
	return ShiftChain{
		DataPin:  c.DataPin,
		ClockPin: c.ClockPin,
		LatchPin: c.LatchPin,
		Devices:  c.GetDevices(),
	}
}

// ParseInterruptMode converts a configured interrupt mode.
// An empty mode results in InterruptNotEnabled.
func ParseInterruptMode(mode model.InterruptMode) (InterruptMode, error) {
	switch mode {
	case "", model.InterruptModeNotEnabled:
		return InterruptNotEnabled, nil
	case model.InterruptModeActiveHighOpen:
		return InterruptActiveHighOpen, nil
	case model.InterruptModeActiveLowOpen:
		return InterruptActiveLowOpen, nil
	case model.InterruptModeActiveHigh:
		return InterruptActiveHigh, nil
	case model.InterruptModeActiveLow:
		return InterruptActiveLow, nil
	default:
		return InterruptNotEnabled, errors.Wrapf(model.ValidationError, "invalid interrupt mode '%s'", string(mode))
	}
}

// ParsePinMode converts a configured pin mode.
func ParsePinMode(mode model.PinMode) (PinMode, error) {
	switch mode {
	case model.PinModeInput:
		return PinModeInput, nil
	case model.PinModeInputPullUp:
		return PinModeInputPullUp, nil
	case model.PinModeOutput:
		return PinModeOutput, nil
	default:
		return PinModeInput, errors.Wrapf(model.ValidationError, "invalid pin mode '%s'", string(mode))
	}
}
