package model

import (
	"github.com/pkg/errors"

	"github.com/binkynet/ioexpander/pkg/bridge"
)

// HWPin holds the configuration of a single pin of a hardware device.
type HWPin struct {
	// Pin number (0...)
	Index int `json:"index"`
	// Mode of the pin
	Mode PinMode `json:"mode"`
	// Initial value of an output pin
	Value bool `json:"value,omitempty"`
	// Interrupt trigger of an input pin (change|rising|falling|low|high).
	// Empty means no interrupt.
	Interrupt string `json:"interrupt,omitempty"`
}

// PinMode identifies the mode of a pin.
type PinMode string

const (
	PinModeInput       PinMode = "input"
	PinModeInputPullUp PinMode = "input-pullup"
	PinModeOutput      PinMode = "output"
)

// IsInput returns true for input modes.
func (m PinMode) IsInput() bool {
	return m == PinModeInput || m == PinModeInputPullUp
}

// Validate the given mode, returning nil on ok,
// or an error upon validation issues.
func (m PinMode) Validate() error {
	switch m {
	case PinModeInput, PinModeInputPullUp, PinModeOutput:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid pin mode '%s'", string(m))
	}
}

// Validate the given pin, returning nil on ok,
// or an error upon validation issues.
// A pinCount of 0 disables the upper bound check.
func (p HWPin) Validate(pinCount int) error {
	if p.Index < 0 || (pinCount > 0 && p.Index >= pinCount) {
		return errors.Wrapf(ValidationError, "index %d out of range", p.Index)
	}
	if err := p.Mode.Validate(); err != nil {
		return maskAny(err)
	}
	if p.Interrupt != "" {
		if !p.Mode.IsInput() {
			return errors.Wrap(ValidationError, "interrupt requires an input pin")
		}
		if _, err := bridge.ParseTriggerMode(p.Interrupt); err != nil {
			return errors.Wrapf(ValidationError, "invalid interrupt '%s'", p.Interrupt)
		}
	}
	return nil
}
