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

import "testing"

func TestParseBridgeType(t *testing.T) {
	tests := map[string]BridgeType{
		"":        BridgeTypeAuto,
		"auto":    BridgeTypeAuto,
		" RPI ":   BridgeTypeRaspberryPi,
		"virtual": BridgeTypeVirtual,
	}
	for input, expected := range tests {
		result, err := ParseBridgeType(input)
		if err != nil {
			t.Errorf("'%s': unexpected error %v", input, err)
		} else if result != expected {
			t.Errorf("'%s': expected %s, got %s", input, expected, result)
		}
	}
	if _, err := ParseBridgeType("opz"); err == nil {
		t.Error("Expected error for unknown bridge type")
	}
}
