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

import (
	"github.com/binkynet/ioexpander/pkg/metrics"
)

const (
	subSystem = "devices"
)

var (
	// Total number of Sync calls per device
	syncTotal = metrics.MustRegisterCounterVec(subSystem,
		"sync_total",
		"Total number of Sync calls per device",
		"device")
	// Total number of shadow registers flushed per device
	flushTotal = metrics.MustRegisterCounterVec(subSystem,
		"flush_total",
		"Total number of shadow registers flushed per device",
		"device")
	// Total number of failed bus transactions per device
	busErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"bus_errors_total",
		"Total number of failed bus transactions per device",
		"device")
	// Total number of interrupt notifications per device
	interruptsTotal = metrics.MustRegisterCounterVec(subSystem,
		"interrupts_total",
		"Total number of interrupt notifications per device",
		"device")
	// Number of devices created by the service
	devicesCreatedTotal = metrics.MustRegisterGauge(subSystem,
		"created",
		"Number of devices created by the service")
	// Number of devices configured by the service
	devicesConfiguredTotal = metrics.MustRegisterGauge(subSystem,
		"configured",
		"Number of devices configured by the service")
)
