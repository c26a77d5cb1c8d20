// Copyright 2024 Ewout Prangsma
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

package bridge

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// NoPin is the sentinel for "no host pin connected".
const NoPin = -1

var (
	// InvalidPinError is returned when a host pin number is out of range.
	InvalidPinError = errors.New("invalid host pin")
)

// TriggerMode is the condition on a host pin that raises an interrupt.
type TriggerMode uint8

const (
	TriggerChange TriggerMode = iota
	TriggerRising
	TriggerFalling
	TriggerLow
	TriggerHigh
)

var triggerModeNames = []string{"change", "rising", "falling", "low", "high"}

// String returns the name of the trigger mode.
func (m TriggerMode) String() string {
	if int(m) < len(triggerModeNames) {
		return triggerModeNames[m]
	}
	return fmt.Sprintf("trigger(%d)", uint8(m))
}

// ParseTriggerMode converts a name (see String) into a TriggerMode.
func ParseTriggerMode(name string) (TriggerMode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range triggerModeNames {
		if n == name {
			return TriggerMode(i), nil
		}
	}
	return TriggerChange, errors.Errorf("unknown trigger mode '%s'", name)
}

// HostInterrupts is implemented by the component that subscribes
// handlers to interrupt lines wired to host pins.
type HostInterrupts interface {
	// AttachInterrupt registers the handler for the given host pin.
	// An existing registration for that pin is replaced.
	AttachInterrupt(pin int, mode TriggerMode, handler func()) error
}

type interruptRegistration struct {
	mode    TriggerMode
	handler func()
}

// InterruptRegistry keeps the handlers attached to host pins and
// dispatches to them when a pin is raised.
// It performs no edge detection itself.
type InterruptRegistry struct {
	mutex         sync.Mutex
	registrations map[int]interruptRegistration
}

// NewInterruptRegistry returns an empty registry.
func NewInterruptRegistry() *InterruptRegistry {
	return &InterruptRegistry{
		registrations: make(map[int]interruptRegistration),
	}
}

// AttachInterrupt registers the handler for the given host pin.
func (r *InterruptRegistry) AttachInterrupt(pin int, mode TriggerMode, handler func()) error {
	if pin < 0 {
		return errors.Wrapf(InvalidPinError, "cannot attach interrupt to pin %d", pin)
	}
	if handler == nil {
		return errors.Errorf("nil interrupt handler for pin %d", pin)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.registrations[pin] = interruptRegistration{mode: mode, handler: handler}
	return nil
}

// Registration returns the trigger mode registered for the given pin.
func (r *InterruptRegistry) Registration(pin int) (TriggerMode, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	reg, found := r.registrations[pin]
	return reg.mode, found
}

// Pins returns the sorted list of pins that have a handler attached.
func (r *InterruptRegistry) Pins() []int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	result := make([]int, 0, len(r.registrations))
	for pin := range r.registrations {
		result = append(result, pin)
	}
	sort.Ints(result)
	return result
}

// Raise invokes the handler attached to the given pin.
// Returns false when no handler is attached.
func (r *InterruptRegistry) Raise(pin int) bool {
	r.mutex.Lock()
	reg, found := r.registrations[pin]
	r.mutex.Unlock()
	if !found {
		return false
	}
	hostInterruptsTotal.WithLabelValues(fmt.Sprint(pin)).Inc()
	reg.handler()
	return true
}
