// Copyright 2021 Ewout Prangsma
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

package devices_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/devices"
)

func newWiring(vb *bridge.VirtualBridge) devices.Wiring {
	return devices.Wiring{
		Bus:  vb,
		Host: vb,
		Log:  zerolog.Nop(),
	}
}

func mustSync(t *testing.T, d devices.Device) {
	t.Helper()
	if err := d.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
}
