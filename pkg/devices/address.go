// Copyright 2020 Ewout Prangsma
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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	maxI2CAddress = 0x7f
)

// ParseAddress parses a string containing a 7-bit bus address,
// either decimal or hexadecimal with a 0x prefix.
func ParseAddress(addr string) (uint8, error) {
	addr = strings.TrimSpace(addr)
	base := 10
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		addr = addr[2:]
		base = 16
	}
	result, err := strconv.ParseUint(addr, base, 8)
	if err != nil {
		return 0, errors.Wrapf(InvalidAddressError, "'%s': %s", addr, err)
	}
	if result > maxI2CAddress {
		return 0, errors.Wrapf(InvalidAddressError, "0x%02x exceeds 7 bits", result)
	}
	return uint8(result), nil
}
