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

package devices

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/ioexpander/model"
	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/util"
)

// Service contains the API that is exposed by the device service.
type Service interface {
	// Configure is called once to put all devices in the desired state.
	Configure(ctx context.Context) error
	// Run the service until the given context is canceled.
	Run(ctx context.Context) error
	// SyncAll syncs all devices once.
	SyncAll(ctx context.Context) error
	// Close brings all devices back to a safe state.
	Close(context.Context) error
	// Do calls the given function with exclusive access to the device
	// with given ID. Changes are flushed by the next sync, which is
	// scheduled immediately.
	Do(id string, fn func(Device) error) error
	// Get a list of configured device IDs
	GetConfiguredDeviceIDs() []string
	// Get a list of unconfigured device IDs
	GetUnconfiguredDeviceIDs() []string
	// Status returns the status of the device with given ID.
	Status(id string) (DeviceStatus, bool)
	// Statuses returns the status of all devices, sorted by ID.
	Statuses() []DeviceStatus
	// DiscoverAddresses returns the addresses that respond on the I2C bus.
	DiscoverAddresses() []string
}

// Config of the service
type Config struct {
	// Time between periodic syncs
	SyncInterval time.Duration
}

// DeviceStatus is a snapshot of the state of a device.
type DeviceStatus struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Address    string    `json:"address,omitempty"`
	Configured bool      `json:"configured"`
	Error      string    `json:"error,omitempty"`
	Ports      []string  `json:"ports,omitempty"`
	Interrupts uint64    `json:"interrupts"`
	LastSync   time.Time `json:"last_sync"`
}

const (
	DefaultSyncInterval = time.Millisecond * 100
)

type service struct {
	Config
	log               zerolog.Logger
	mutex             sync.Mutex
	configs           map[string]model.HWDevice
	devices           map[string]Device
	configuredDevices map[string]Device
	lastSync          map[string]time.Time
	interrupts        map[string]*uint64
	bus               bridge.I2CBus
	bAPI              bridge.API
	activeCount       uint32
	wakeup            chan struct{}
}

// NewService instantiates a new Service and Device's for the given
// device configurations.
func NewService(conf Config, configs []model.HWDevice, bAPI bridge.API, bus bridge.I2CBus, log zerolog.Logger) (Service, error) {
	if conf.SyncInterval <= 0 {
		conf.SyncInterval = DefaultSyncInterval
	}
	s := &service{
		Config:            conf,
		log:               log.With().Str("component", "device-service").Logger(),
		configs:           make(map[string]model.HWDevice),
		devices:           make(map[string]Device),
		configuredDevices: make(map[string]Device),
		lastSync:          make(map[string]time.Time),
		interrupts:        make(map[string]*uint64),
		bus:               bus,
		bAPI:              bAPI,
		wakeup:            make(chan struct{}, 1),
	}
	w := Wiring{
		Bus:  bus,
		Host: bAPI,
		Log:  s.log,
	}
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, maskAny(err)
		}
		if _, found := s.devices[c.ID]; found {
			return nil, errors.Wrapf(model.ValidationError, "Device '%s' is configured twice", c.ID)
		}
		dev, err := NewDevice(c, w, bAPI)
		if err != nil {
			return nil, errors.Wrapf(err, "device '%s'", c.ID)
		}
		s.configs[c.ID] = c
		s.devices[c.ID] = dev
		s.interrupts[c.ID] = new(uint64)
	}
	devicesCreatedTotal.Set(float64(len(s.devices)))
	return s, nil
}

// sortedIDs returns the IDs of all devices, sorted.
func (s *service) sortedIDs() []string {
	ids := lo.Keys(s.devices)
	sort.Strings(ids)
	return ids
}

// Configure is called once to put all devices in the desired state.
// Devices that fail their first sync are retried by every SyncAll.
func (s *service) Configure(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var ae aerr.AggregateError
	for _, id := range s.sortedIDs() {
		log := s.log.With().Str("device-id", id).Logger()
		log.Debug().Msg("configuring device...")
		d := s.devices[id]
		if err := s.applyPins(d, s.configs[id]); err != nil {
			log.Error().Err(err).Msg("Invalid pin configuration")
			ae.Add(err)
			continue
		}
		if err := s.syncDevice(ctx, id, d); err != nil {
			log.Error().Err(err).Msg("Failed to configure device")
			ae.Add(errors.Wrapf(err, "device '%s'", id))
		} else {
			log.Debug().Msg("configured device")
		}
	}
	s.log.Info().Int("count", len(s.configuredDevices)).Msg("Configured devices")
	return ae.AsError()
}

// applyPins sets the configured pin modes, values & interrupts.
func (s *service) applyPins(d Device, c model.HWDevice) error {
	for _, p := range c.Pins {
		mode, err := ParsePinMode(p.Mode)
		if err != nil {
			return maskAny(err)
		}
		pin := Pin(p.Index)
		d.SetDirection(pin, mode)
		if mode == PinModeOutput {
			d.WriteValue(pin, p.Value)
		}
		if p.Interrupt != "" {
			trigger, err := bridge.ParseTriggerMode(p.Interrupt)
			if err != nil {
				return errors.Wrapf(model.ValidationError, "pin %d: %s", p.Index, err)
			}
			d.AttachInterrupt(pin, s.onInterrupt(c.ID), trigger)
		}
	}
	return nil
}

// syncDevice syncs a single device and marks it configured on success.
// Caller must hold the mutex.
func (s *service) syncDevice(ctx context.Context, id string, d Device) error {
	if err := d.Sync(ctx); err != nil {
		return err
	}
	s.lastSync[id] = time.Now()
	if _, found := s.configuredDevices[id]; !found {
		s.configuredDevices[id] = d
		devicesConfiguredTotal.Set(float64(len(s.configuredDevices)))
	}
	return nil
}

// SyncAll syncs all devices once.
func (s *service) SyncAll(ctx context.Context) error {
	_, err := s.syncAll(ctx)
	return err
}

// syncAll syncs all devices, returning the number of successful syncs.
func (s *service) syncAll(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var ae aerr.AggregateError
	succeeded := 0
	for _, id := range s.sortedIDs() {
		if err := s.syncDevice(ctx, id, s.devices[id]); err != nil {
			ae.Add(errors.Wrapf(err, "device '%s'", id))
		} else {
			succeeded++
		}
	}
	return succeeded, ae.AsError()
}

// Run the service until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runSync(ctx) })
	g.Go(func() error { return s.runActiveNotify(ctx) })
	return g.Wait()
}

// runSync polls host interrupts & syncs all devices periodically and
// immediately after an interrupt.
func (s *service) runSync(ctx context.Context) error {
	return util.UntilCanceled(ctx, s.log, "sync devices", s.SyncInterval, s.wakeup, func() error {
		s.bAPI.PollInterrupts()
		succeeded, err := s.syncAll(ctx)
		if err != nil && succeeded == 0 {
			// Nothing reachable, back off
			return err
		}
		if err != nil {
			s.log.Debug().Err(err).Msg("Some devices failed to sync")
		}
		return nil
	})
}

// onInterrupt returns the handler for interrupts of the device with given ID.
// It only schedules a sync, the handler can be invoked from any goroutine.
func (s *service) onInterrupt(id string) InterruptHandler {
	counter := s.interrupts[id]
	return func() {
		atomic.AddUint64(counter, 1)
		s.onActive()
		s.scheduleSync()
	}
}

func (s *service) scheduleSync() {
	select {
	case s.wakeup <- struct{}{}:
	default:
		// Sync already pending
	}
}

// onActive is called when a device change is activated.
func (s *service) onActive() {
	atomic.AddUint32(&s.activeCount, 1)
}

// runActiveNotify updates the blinking status when a device has become active
func (s *service) runActiveNotify(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / 10)
	defer ticker.Stop()
	lastActiveCount := uint32(0)
	idle := 0
	for {
		select {
		case <-ctx.Done():
			// Context canceled
			return nil
		case <-ticker.C:
			if n := atomic.LoadUint32(&s.activeCount); n != lastActiveCount {
				lastActiveCount = n
				s.bAPI.BlinkRedLED(time.Second / 10)
				idle = 0
			} else if idle < 20 {
				idle++
			} else {
				idle = 0
				s.bAPI.SetRedLED(false)
			}
		}
	}
}

// Close brings all devices back to a safe state.
// All pins are turned into inputs.
func (s *service) Close(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var ae aerr.AggregateError
	for _, id := range s.sortedIDs() {
		d, found := s.configuredDevices[id]
		if !found {
			continue
		}
		for pin := 0; pin < d.PinCount(); pin++ {
			d.SetDirection(Pin(pin), PinModeInput)
		}
		if err := d.Sync(ctx); err != nil {
			ae.Add(errors.Wrapf(err, "device '%s'", id))
		}
	}
	return ae.AsError()
}

// Do calls the given function with exclusive access to the device.
func (s *service) Do(id string, fn func(Device) error) error {
	s.mutex.Lock()
	d, found := s.devices[id]
	if !found {
		s.mutex.Unlock()
		return errors.Wrapf(DeviceNotFoundError, "'%s'", id)
	}
	err := fn(d)
	s.mutex.Unlock()
	s.onActive()
	s.scheduleSync()
	return err
}

// Get a list of configured device IDs
func (s *service) GetConfiguredDeviceIDs() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	result := lo.Keys(s.configuredDevices)
	sort.Strings(result)
	return result
}

// Get a list of unconfigured device IDs
func (s *service) GetUnconfiguredDeviceIDs() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return lo.Filter(s.sortedIDs(), func(id string, _ int) bool {
		_, found := s.configuredDevices[id]
		return !found
	})
}

// Status returns the status of the device with given ID.
func (s *service) Status(id string) (DeviceStatus, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, found := s.devices[id]; !found {
		return DeviceStatus{}, false
	}
	return s.status(id), true
}

// Statuses returns the status of all devices, sorted by ID.
func (s *service) Statuses() []DeviceStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return lo.Map(s.sortedIDs(), func(id string, _ int) DeviceStatus {
		return s.status(id)
	})
}

// status builds the status of a device.
// Caller must hold the mutex.
func (s *service) status(id string) DeviceStatus {
	d := s.devices[id]
	c := s.configs[id]
	_, configured := s.configuredDevices[id]
	result := DeviceStatus{
		ID:         id,
		Type:       string(c.Type),
		Address:    c.Address,
		Configured: configured,
		Interrupts: atomic.LoadUint64(s.interrupts[id]),
		LastSync:   s.lastSync[id],
	}
	if err := d.Err(); err != nil {
		result.Error = err.Error()
	}
	for pin := 0; pin < d.PinCount(); pin += pinsPerPort {
		result.Ports = append(result.Ports, fmt.Sprintf("0x%02x", d.ReadPort(Pin(pin))))
	}
	return result
}

// DiscoverAddresses returns the addresses that respond on the I2C bus.
func (s *service) DiscoverAddresses() []string {
	if s.bus == nil {
		return nil
	}
	return lo.Map(s.bus.DetectSlaveAddresses(), func(addr byte, _ int) string {
		return fmt.Sprintf("0x%02x", addr)
	})
}
