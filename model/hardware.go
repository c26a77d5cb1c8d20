package model

import "github.com/pkg/errors"

// HWDevice holds configuration data for a specif hardward device.
// Typically a hardware device is attached to a bus.
type HWDevice struct {
	// Unique identifier of the device (instance)
	ID string `json:"id"`
	// Address is used to identify the device on a bus.
	// Decimal or hexadecimal (0x..). Not used for local GPIO.
	Address string `json:"address,omitempty"`
	// Type of the device
	Type HWDeviceType `json:"type"`
	// Host pin connected to the INT (or INTA) line of the device.
	InterruptPin *int `json:"interrupt_pin,omitempty"`
	// Host pin connected to the INTB line of an MCP23017.
	// When set, INTA & INTB are not mirrored.
	InterruptPinB *int `json:"interrupt_pin_b,omitempty"`
	// Electrical configuration of the INT lines (MCP23x only)
	InterruptMode InterruptMode `json:"interrupt_mode,omitempty"`
	// Input chain of a shift-register device (74HC165 style)
	ShiftInput *HWShiftChain `json:"shift_input,omitempty"`
	// Output chain of a shift-register device (74HC595 style)
	ShiftOutput *HWShiftChain `json:"shift_output,omitempty"`
	// Pins to configure
	Pins []HWPin `json:"pins,omitempty"`
}

// HWShiftChain holds the host pins driving a chain of daisy-chained
// shift registers.
type HWShiftChain struct {
	// Host pin of the serial data line
	DataPin int `json:"data_pin"`
	// Host pin of the shift clock
	ClockPin int `json:"clock_pin"`
	// Host pin of the storage latch (outputs) or parallel load (inputs)
	LatchPin int `json:"latch_pin"`
	// Number of chips in the chain (1...4), 0 means 1
	Devices int `json:"devices,omitempty"`
}

// GetDevices returns the number of chips in the chain.
func (c HWShiftChain) GetDevices() int {
	if c.Devices == 0 {
		return 1
	}
	return c.Devices
}

// Validate the given chain, returning nil on ok,
// or an error upon validation issues.
func (c HWShiftChain) Validate() error {
	if c.DataPin < 0 || c.ClockPin < 0 || c.LatchPin < 0 {
		return errors.Wrap(ValidationError, "pins cannot be negative")
	}
	if c.DataPin == c.ClockPin || c.DataPin == c.LatchPin || c.ClockPin == c.LatchPin {
		return errors.Wrap(ValidationError, "data, clock & latch must use different pins")
	}
	if n := c.GetDevices(); n < 1 || n > ShiftRegisterMaxDevices {
		return errors.Wrapf(ValidationError, "devices must be 1...%d", ShiftRegisterMaxDevices)
	}
	return nil
}

// HWDeviceType identifies a type of devices (typically chip name)
type HWDeviceType string

const (
	HWDeviceTypePCF8574  HWDeviceType = "pcf8574"
	HWDeviceTypeMCP23008 HWDeviceType = "mcp23008"
	HWDeviceTypeMCP23017 HWDeviceType = "mcp23017"
	HWDeviceTypeGPIO     HWDeviceType = "gpio"

	// Shift registers bit-banged over host pins
	HWDeviceTypeShiftRegister HWDeviceType = "shift-register"
)

const (
	// ShiftRegisterOutputCutover is the index of the first output pin of a
	// shift-register device. Pins below it are inputs.
	ShiftRegisterOutputCutover = 32
	// ShiftRegisterMaxDevices is the maximum number of chips per chain.
	ShiftRegisterMaxDevices = 4
)

// Validate the given type, returning nil on ok,
// or an error upon validation issues.
func (t HWDeviceType) Validate() error {
	switch t {
	case HWDeviceTypePCF8574, HWDeviceTypeMCP23008, HWDeviceTypeMCP23017, HWDeviceTypeGPIO,
		HWDeviceTypeShiftRegister:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid device type '%s'", string(t))
	}
}

// IsI2C returns true for device types that are attached to the I2C bus.
func (t HWDeviceType) IsI2C() bool {
	return t != HWDeviceTypeGPIO && t != HWDeviceTypeShiftRegister
}

// PinCount returns the number of pins of devices of this type.
// Returns 0 when the number depends on the host.
func (t HWDeviceType) PinCount() int {
	switch t {
	case HWDeviceTypePCF8574, HWDeviceTypeMCP23008:
		return 8
	case HWDeviceTypeMCP23017:
		return 16
	case HWDeviceTypeShiftRegister:
		return ShiftRegisterOutputCutover + ShiftRegisterMaxDevices*8
	default:
		return 0
	}
}

// InterruptMode identifies the electrical configuration of the
// interrupt line(s) of an MCP23x.
type InterruptMode string

const (
	InterruptModeNotEnabled     InterruptMode = "not-enabled"
	InterruptModeActiveHighOpen InterruptMode = "active-high-open"
	InterruptModeActiveLowOpen  InterruptMode = "active-low-open"
	InterruptModeActiveHigh     InterruptMode = "active-high"
	InterruptModeActiveLow      InterruptMode = "active-low"
)

// Validate the given mode, returning nil on ok,
// or an error upon validation issues.
// An empty mode is valid and means not-enabled.
func (m InterruptMode) Validate() error {
	switch m {
	case "", InterruptModeNotEnabled, InterruptModeActiveHighOpen, InterruptModeActiveLowOpen,
		InterruptModeActiveHigh, InterruptModeActiveLow:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid interrupt mode '%s'", string(m))
	}
}

// GetInterruptPin returns the INT (INTA) host pin or -1 when not set.
func (d HWDevice) GetInterruptPin() int {
	if d.InterruptPin == nil {
		return -1
	}
	return *d.InterruptPin
}

// GetInterruptPinB returns the INTB host pin or -1 when not set.
func (d HWDevice) GetInterruptPinB() int {
	if d.InterruptPinB == nil {
		return -1
	}
	return *d.InterruptPinB
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (d HWDevice) Validate() error {
	if d.ID == "" {
		return errors.Wrap(ValidationError, "ID is empty")
	}
	if err := d.Type.Validate(); err != nil {
		return errors.Wrapf(ValidationError, "Error in Type of '%s': %s", d.ID, err.Error())
	}
	if d.Type.IsI2C() && d.Address == "" {
		return errors.Wrapf(ValidationError, "Address of '%s' is empty", d.ID)
	}
	if err := d.InterruptMode.Validate(); err != nil {
		return errors.Wrapf(ValidationError, "Error in InterruptMode of '%s': %s", d.ID, err.Error())
	}
	if d.InterruptPin != nil && *d.InterruptPin < 0 {
		return errors.Wrapf(ValidationError, "InterruptPin of '%s' is negative", d.ID)
	}
	if d.InterruptPinB != nil {
		if d.Type != HWDeviceTypeMCP23017 {
			return errors.Wrapf(ValidationError, "InterruptPinB of '%s' is only supported for %s", d.ID, HWDeviceTypeMCP23017)
		}
		if d.InterruptPin == nil {
			return errors.Wrapf(ValidationError, "InterruptPinB of '%s' requires InterruptPin", d.ID)
		}
		if *d.InterruptPinB < 0 {
			return errors.Wrapf(ValidationError, "InterruptPinB of '%s' is negative", d.ID)
		}
	}
	if d.Type == HWDeviceTypeShiftRegister {
		if err := d.validateShiftRegister(); err != nil {
			return errors.Wrapf(ValidationError, "Error in shift register '%s': %s", d.ID, err.Error())
		}
	} else if d.ShiftInput != nil || d.ShiftOutput != nil {
		return errors.Wrapf(ValidationError, "Shift chains of '%s' are only supported for %s", d.ID, HWDeviceTypeShiftRegister)
	}
	seen := make(map[int]struct{})
	for _, p := range d.Pins {
		if err := p.Validate(d.Type.PinCount()); err != nil {
			return errors.Wrapf(ValidationError, "Error in pin %d of '%s': %s", p.Index, d.ID, err.Error())
		}
		if _, found := seen[p.Index]; found {
			return errors.Wrapf(ValidationError, "Pin %d of '%s' is configured twice", p.Index, d.ID)
		}
		seen[p.Index] = struct{}{}
	}
	return nil
}

// validateShiftRegister checks the chains & pins of a shift-register device.
// Pins below the cutover are inputs, the others outputs.
func (d HWDevice) validateShiftRegister() error {
	if d.ShiftInput == nil && d.ShiftOutput == nil {
		return errors.Wrap(ValidationError, "shift_input or shift_output is required")
	}
	if d.InterruptPin != nil {
		return errors.Wrap(ValidationError, "interrupts are not supported")
	}
	if d.ShiftInput != nil {
		if err := d.ShiftInput.Validate(); err != nil {
			return errors.Wrapf(ValidationError, "shift_input: %s", err)
		}
	}
	if d.ShiftOutput != nil {
		if err := d.ShiftOutput.Validate(); err != nil {
			return errors.Wrapf(ValidationError, "shift_output: %s", err)
		}
	}
	for _, p := range d.Pins {
		if p.Interrupt != "" {
			return errors.Wrapf(ValidationError, "pin %d: interrupts are not supported", p.Index)
		}
		if p.Index < ShiftRegisterOutputCutover {
			if d.ShiftInput == nil || !p.Mode.IsInput() || p.Index >= d.ShiftInput.GetDevices()*8 {
				return errors.Wrapf(ValidationError, "pin %d is not an input of the chain", p.Index)
			}
		} else if d.ShiftOutput == nil || p.Mode != PinModeOutput || p.Index-ShiftRegisterOutputCutover >= d.ShiftOutput.GetDevices()*8 {
			return errors.Wrapf(ValidationError, "pin %d is not an output of the chain", p.Index)
		}
	}
	return nil
}
