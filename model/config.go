package model

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// LocalConfiguration holds the configuration of a single host.
type LocalConfiguration struct {
	// List of devices attached to the host
	Devices []HWDevice `json:"devices,omitempty"`
}

// DeviceByID returns the device with given ID.
// Return false if not found.
func (c LocalConfiguration) DeviceByID(id string) (HWDevice, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return HWDevice{}, false
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c LocalConfiguration) Validate() error {
	ids := make(map[string]struct{})
	gpio := 0
	for _, d := range c.Devices {
		if err := d.Validate(); err != nil {
			return maskAny(err)
		}
		if _, found := ids[d.ID]; found {
			return errors.Wrapf(ValidationError, "Device '%s' is configured twice", d.ID)
		}
		ids[d.ID] = struct{}{}
		if d.Type == HWDeviceTypeGPIO {
			gpio++
		}
	}
	if gpio > 1 {
		return errors.Wrapf(ValidationError, "Only one device of type '%s' is allowed", HWDeviceTypeGPIO)
	}
	return nil
}

// LoadConfiguration reads a JSON encoded configuration from the given file
// and validates it.
func LoadConfiguration(path string) (LocalConfiguration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return LocalConfiguration{}, errors.Wrapf(err, "failed to read %s", path)
	}
	var c LocalConfiguration
	if err := json.Unmarshal(raw, &c); err != nil {
		return LocalConfiguration{}, errors.Wrapf(err, "failed to parse %s", path)
	}
	if err := c.Validate(); err != nil {
		return LocalConfiguration{}, maskAny(err)
	}
	return c, nil
}
