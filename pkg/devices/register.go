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

package devices

type registerValue interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Register is the in-memory shadow of a device register.
// It holds the value that must be in effect after the next commit
// and whether that value diverges from what was last committed.
type Register[T registerValue] struct {
	value T
	dirty bool
}

// NewRegister returns a register holding the given power-on value.
// If dirty is set, the first commit writes the value.
func NewRegister[T registerValue](value T, dirty bool) Register[T] {
	return Register[T]{value: value, dirty: dirty}
}

// Value returns the current shadow value.
func (r *Register[T]) Value() T {
	return r.value
}

// Dirty returns true when the shadow diverges from the last committed value.
func (r *Register[T]) Dirty() bool {
	return r.dirty
}

// SetBits sets (on=true) or clears (on=false) the bits of the given mask.
func (r *Register[T]) SetBits(mask T, on bool) {
	if on {
		r.value |= mask
	} else {
		r.value &= ^mask
	}
	r.dirty = true
}

// SetMasked replaces the bits of the given mask with those of value.
func (r *Register[T]) SetMasked(mask T, value T) {
	r.value = (r.value & ^mask) | (value & mask)
	r.dirty = true
}

// Commit calls flush with the current value when the register is dirty.
// The dirty marker is only cleared when flush succeeds.
// Returns true if flush was called.
func (r *Register[T]) Commit(flush func(T) error) (bool, error) {
	if !r.dirty {
		return false, nil
	}
	if err := flush(r.value); err != nil {
		return true, err
	}
	r.dirty = false
	return true, nil
}
