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
	"testing"

	"github.com/go-test/deep"
	"github.com/pkg/errors"
)

func TestInterruptRegistryRaise(t *testing.T) {
	r := NewInterruptRegistry()
	calls := 0
	if r.Raise(4) {
		t.Fatal("Raise must report false without a handler")
	}
	if err := r.AttachInterrupt(4, TriggerFalling, func() { calls++ }); err != nil {
		t.Fatalf("AttachInterrupt failed: %v", err)
	}
	if !r.Raise(4) {
		t.Fatal("Raise must report true with a handler")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	mode, found := r.Registration(4)
	if !found || mode != TriggerFalling {
		t.Errorf("Expected falling registration, got %v (found=%v)", mode, found)
	}
}

func TestInterruptRegistryReplace(t *testing.T) {
	r := NewInterruptRegistry()
	first, second := 0, 0
	r.AttachInterrupt(2, TriggerChange, func() { first++ })
	r.AttachInterrupt(2, TriggerRising, func() { second++ })
	r.AttachInterrupt(7, TriggerLow, func() {})
	r.Raise(2)
	if first != 0 || second != 1 {
		t.Errorf("Expected only the replacing handler to fire, got first=%d second=%d", first, second)
	}
	if diff := deep.Equal(r.Pins(), []int{2, 7}); diff != nil {
		t.Error(diff)
	}
}

func TestInterruptRegistryInvalidPin(t *testing.T) {
	r := NewInterruptRegistry()
	err := r.AttachInterrupt(NoPin, TriggerChange, func() {})
	if errors.Cause(err) != InvalidPinError {
		t.Errorf("Expected InvalidPinError, got %v", err)
	}
	if err := r.AttachInterrupt(1, TriggerChange, nil); err == nil {
		t.Error("Expected error for nil handler")
	} else if _, ok := err.(stackTracer); !ok {
		t.Errorf("Expected error with stack trace for nil handler, got %#v", err)
	}
}

func TestParseTriggerMode(t *testing.T) {
	for _, mode := range []TriggerMode{TriggerChange, TriggerRising, TriggerFalling, TriggerLow, TriggerHigh} {
		parsed, err := ParseTriggerMode(mode.String())
		if err != nil {
			t.Fatalf("ParseTriggerMode(%s) failed: %v", mode, err)
		}
		if parsed != mode {
			t.Errorf("Expected %s, got %s", mode, parsed)
		}
	}
	_, err := ParseTriggerMode("sideways")
	if _, ok := err.(stackTracer); !ok {
		t.Errorf("Expected error with stack trace for unknown trigger mode, got %#v", err)
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}
