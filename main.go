//    Copyright 2017 Ewout Prangsma
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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/ioexpander/model"
	"github.com/binkynet/ioexpander/pkg/bridge"
	"github.com/binkynet/ioexpander/pkg/devices"
	"github.com/binkynet/ioexpander/pkg/devices/devicetest"
	"github.com/binkynet/ioexpander/pkg/environment"
	"github.com/binkynet/ioexpander/pkg/logging"
	"github.com/binkynet/ioexpander/pkg/server"
)

const (
	projectName       = "BinkyNet IO Expander"
	defaultServerPort = 7130
	defaultSCLPin     = 3
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var levelFlag string
	var logFile string
	var configPath string
	var serverHost string
	var serverPort int
	var bridgeName string
	var i2cBus string
	var sclPin int
	var syncInterval time.Duration

	pflag.StringVarP(&levelFlag, "level", "l", "debug", "Set log level")
	pflag.StringVar(&logFile, "log-file", "", "Append JSON log lines to this file")
	pflag.StringVarP(&configPath, "config", "c", "ioexpander.json", "Path of the device configuration file")
	pflag.StringVarP(&bridgeName, "bridge", "b", string(environment.BridgeTypeAuto), "Type of bridge to use (auto|rpi|virtual)")
	pflag.StringVar(&i2cBus, "i2c-bus", bridge.DefaultRaspberryPiI2CBus, "Location of the I2C bus")
	pflag.IntVar(&sclPin, "i2c-scl-pin", defaultSCLPin, "GPIO pin of the I2C clock, used to recover a stuck bus (-1 to disable)")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the HTTP server will listen on")
	pflag.IntVar(&serverPort, "port", defaultServerPort, "Port the HTTP server will listen on")
	pflag.DurationVar(&syncInterval, "sync-interval", devices.DefaultSyncInterval, "Time between periodic device syncs")
	pflag.Parse()

	logger, logCloser, err := logging.New(logging.Config{
		Level: levelFlag,
		File:  logFile,
	})
	if err != nil {
		Exitf("Failed to initialize logging: %v\n", err)
	}
	defer logCloser.Close()

	conf, err := model.LoadConfiguration(configPath)
	if err != nil {
		Exitf("Failed to load configuration: %v\n", err)
	}

	bridgeType, err := environment.ParseBridgeType(bridgeName)
	if err != nil {
		Exitf("%v (auto|rpi|virtual)\n", err)
	}
	if bridgeType == environment.BridgeTypeAuto {
		bridgeType = environment.AutoDetectBridgeType(logger)
	}
	var br bridge.API
	switch bridgeType {
	case environment.BridgeTypeRaspberryPi:
		br, err = bridge.NewRaspberryPiBridge(i2cBus, sclPin)
		if err != nil {
			Exitf("Failed to initialize Raspberry Pi Bridge: %v\n", err)
		}
	default:
		br = newSimulatedBridge(conf, logger)
	}
	defer br.Close()

	bus, err := br.I2CBus()
	if err != nil {
		Exitf("Failed to open I2C bus: %v\n", err)
	}

	svc, err := devices.NewService(devices.Config{
		SyncInterval: syncInterval,
	}, conf.Devices, br, bus, logger)
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}
	logger.Info().Strs("addresses", svc.DiscoverAddresses()).Msg("Discovered I2C addresses")

	httpServer, err := server.New(server.Config{
		Host:     serverHost,
		HTTPPort: serverPort,
	}, logger, svc)
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	if err := svc.Configure(ctx); err != nil {
		logger.Warn().Err(err).Msg("Not all devices are configured")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return httpServer.Run(gctx) })
	runErr := g.Wait()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()
	if err := svc.Close(closeCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to bring devices to a safe state")
	}
	if runErr != nil {
		Exitf("Service run failed: %#v", runErr)
	}
}

// newSimulatedBridge creates a virtual bridge with a simulated chip
// for every configured I2C device and shift register chain.
func newSimulatedBridge(conf model.LocalConfiguration, log zerolog.Logger) bridge.API {
	vb := bridge.NewVirtualBridge()
	for _, d := range conf.Devices {
		if d.Type == model.HWDeviceTypeShiftRegister {
			if c := d.ShiftInput; c != nil {
				devicetest.NewSimShiftInput(vb, c.DataPin, c.ClockPin, c.LatchPin, c.GetDevices())
			}
			if c := d.ShiftOutput; c != nil {
				devicetest.NewSimShiftOutput(vb, c.DataPin, c.ClockPin, c.LatchPin, c.GetDevices())
			}
			log.Info().Str("device-id", d.ID).Msg("Simulating shift register")
			continue
		}
		address, err := devices.ParseAddress(d.Address)
		if err != nil {
			continue
		}
		switch d.Type {
		case model.HWDeviceTypePCF8574:
			vb.AttachI2CDevice(address, devicetest.NewSimPCF8574())
		case model.HWDeviceTypeMCP23008:
			vb.AttachI2CDevice(address, devicetest.NewSimMCP23008())
		case model.HWDeviceTypeMCP23017:
			vb.AttachI2CDevice(address, devicetest.NewSimMCP23017())
		default:
			continue
		}
		log.Info().Str("device-id", d.ID).Str("address", d.Address).Msg("Simulating device")
	}
	return vb
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
