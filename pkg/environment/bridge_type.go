//    Copyright 2018 Ewout Prangsma
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

package environment

import (
	"fmt"
	"strings"
)

// BridgeType identifies the hardware bridge to use.
type BridgeType string

const (
	BridgeTypeAuto        BridgeType = "auto"
	BridgeTypeRaspberryPi BridgeType = "rpi"
	BridgeTypeVirtual     BridgeType = "virtual"
)

// ParseBridgeType converts a name into a BridgeType.
func ParseBridgeType(name string) (BridgeType, error) {
	switch t := BridgeType(strings.ToLower(strings.TrimSpace(name))); t {
	case BridgeTypeAuto, BridgeTypeRaspberryPi, BridgeTypeVirtual:
		return t, nil
	case "":
		return BridgeTypeAuto, nil
	default:
		return BridgeTypeAuto, fmt.Errorf("unknown bridge type '%s'", name)
	}
}
