package devices

import "github.com/pkg/errors"

var (
	InvalidPinError     = errors.New("invalid pin")
	IsInvalidPin        = isErrorFunc(InvalidPinError)
	InvalidAddressError = errors.New("invalid address")
	IsInvalidAddress    = isErrorFunc(InvalidAddressError)
	UnknownTypeError    = errors.New("unknown device type")
	IsUnknownType       = isErrorFunc(UnknownTypeError)
	DeviceNotFoundError = errors.New("device not found")
	IsDeviceNotFound    = isErrorFunc(DeviceNotFoundError)

	maskAny = errors.WithStack
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}
