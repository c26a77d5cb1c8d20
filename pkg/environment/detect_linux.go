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

//go:build linux

package environment

import (
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	gpioMemDevice = "/dev/gpiomem"
)

// AutoDetectBridgeType returns the bridge type of the hardware we run on.
// A Raspberry Pi is recognized by its GPIO memory device, everything
// else runs virtual.
func AutoDetectBridgeType(log zerolog.Logger) BridgeType {
	var name unix.Utsname
	release := ""
	if err := unix.Uname(&name); err == nil {
		release = strings.Trim(string(name.Release[:]), "\x00 ")
	}
	if err := unix.Access(gpioMemDevice, unix.R_OK|unix.W_OK); err != nil {
		log.Debug().Err(err).Str("release", release).Msg("No GPIO memory device, using virtual bridge")
		return BridgeTypeVirtual
	}
	log.Debug().Str("release", release).Msg("Detected Raspberry Pi")
	return BridgeTypeRaspberryPi
}
