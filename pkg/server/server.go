// Copyright 2023 Ewout Prangsma
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

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/binkynet/ioexpander/model"
	"github.com/binkynet/ioexpander/pkg/devices"
)

// Config for the HTTP server.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	HTTPPort int
}

// Service is the part of the device service exposed over HTTP.
type Service interface {
	// Statuses returns the status of all devices, sorted by ID.
	Statuses() []devices.DeviceStatus
	// Status returns the status of the device with given ID.
	Status(id string) (devices.DeviceStatus, bool)
	// Do calls the given function with exclusive access to the device.
	Do(id string, fn func(devices.Device) error) error
	// DiscoverAddresses returns the addresses that respond on the I2C bus.
	DiscoverAddresses() []string
}

// Server runs the HTTP server for the service.
type Server struct {
	Config
	log     zerolog.Logger
	service Service
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, service Service) (*Server, error) {
	return &Server{
		Config:  cfg,
		log:     log,
		service: service,
	}, nil
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	log := s.log
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on address %s", httpAddr)
	}
	httpSrv := http.Server{
		Handler: s.router(),
	}

	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to serve HTTP server")
		}
		log.Debug().Str("address", httpAddr).Msg("Done Serving HTTP")
	}()

	// Wait until context closed
	<-ctx.Done()

	log.Info().Msg("Closing server")
	httpSrv.Shutdown(context.Background())
	return nil
}

// router builds the HTTP routes.
func (s *Server) router() *echo.Echo {
	r := echo.New()
	r.HideBanner = true
	r.HidePort = true
	r.GET("/health", echo.WrapHandler(http.HandlerFunc(healthHandler)))
	r.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	r.GET("/debug/pprof/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	r.GET("/v1/bus", s.handleGetBus)
	r.GET("/v1/devices", s.handleGetDevices)
	r.GET("/v1/devices/:id", s.handleGetDevice)
	r.PUT("/v1/devices/:id/pins/:pin", s.handlePutPin)
	r.DELETE("/v1/devices/:id/error", s.handleClearError)
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "OK")
}

// deviceResponse adds human readable fields to a device status.
type deviceResponse struct {
	devices.DeviceStatus
	LastSyncAgo string `json:"last_sync_ago"`
}

func newDeviceResponse(status devices.DeviceStatus) deviceResponse {
	ago := "never"
	if !status.LastSync.IsZero() {
		ago = humanize.Time(status.LastSync)
	}
	return deviceResponse{
		DeviceStatus: status,
		LastSyncAgo:  ago,
	}
}

func (s *Server) handleGetBus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{
		"addresses": s.service.DiscoverAddresses(),
	})
}

func (s *Server) handleGetDevices(c echo.Context) error {
	statuses := s.service.Statuses()
	result := make([]deviceResponse, 0, len(statuses))
	for _, status := range statuses {
		result = append(result, newDeviceResponse(status))
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetDevice(c echo.Context) error {
	status, found := s.service.Status(c.Param("id"))
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("device '%s' not found", c.Param("id")))
	}
	return c.JSON(http.StatusOK, newDeviceResponse(status))
}

// pinRequest is the body of a PUT on a pin.
type pinRequest struct {
	// Optional new mode of the pin
	Mode model.PinMode `json:"mode,omitempty"`
	// Optional new value of the pin
	Value *bool `json:"value,omitempty"`
}

func (s *Server) handlePutPin(c echo.Context) error {
	id := c.Param("id")
	index, err := strconv.Atoi(c.Param("pin"))
	if err != nil || index < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pin")
	}
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	var mode devices.PinMode
	if req.Mode != "" {
		if mode, err = devices.ParsePinMode(req.Mode); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	err = s.service.Do(id, func(d devices.Device) error {
		if index >= d.PinCount() {
			return errors.Wrapf(devices.InvalidPinError, "pin %d out of range", index)
		}
		pin := devices.Pin(index)
		if req.Mode != "" {
			d.SetDirection(pin, mode)
		}
		if req.Value != nil {
			d.WriteValue(pin, *req.Value)
		}
		return nil
	})
	switch {
	case devices.IsDeviceNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case devices.IsInvalidPin(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	s.log.Debug().Str("device-id", id).Int("pin", index).Msg("Pin updated")
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleClearError(c echo.Context) error {
	err := s.service.Do(c.Param("id"), func(d devices.Device) error {
		d.ClearError()
		return nil
	})
	if devices.IsDeviceNotFound(err) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	} else if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
