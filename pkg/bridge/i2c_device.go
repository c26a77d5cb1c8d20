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

package bridge

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
)

// From /usr/include/linux/i2c-dev.h and /usr/include/linux/i2c.h
const (
	i2cSlave = 0x0703
	i2cFuncs = 0x0705
	i2cSmbus = 0x0720

	i2cSmbusRead  = 1
	i2cSmbusWrite = 0

	i2cFuncSmbusQuick         = 0x00010000
	i2cFuncSmbusReadByte      = 0x00020000
	i2cFuncSmbusWriteByte     = 0x00040000
	i2cFuncSmbusReadByteData  = 0x00080000
	i2cFuncSmbusWriteByteData = 0x00100000

	i2cSmbusQuick    = 0
	i2cSmbusByte     = 1
	i2cSmbusByteData = 2
)

type i2cSmbusIoctlData struct {
	readWrite byte
	command   byte
	size      uint32
	data      uintptr
}

// i2cDevice talks to a single address through the linux i2c-dev interface.
type i2cDevice struct {
	address uint8
	mutex   sync.Mutex
	file    *os.File
	funcs   uint64 // adapter functionality mask
}

// newI2CDevice opens the bus at the given location and selects the given address.
func newI2CDevice(location string, address uint8) (*i2cDevice, error) {
	d := &i2cDevice{
		address: address,
	}

	var err error
	if d.file, err = os.OpenFile(location, os.O_RDWR, os.ModeDevice); err != nil {
		return nil, err
	}
	if err := d.ioctl(i2cFuncs, uintptr(unsafe.Pointer(&d.funcs))); err != nil {
		d.file.Close()
		return nil, errors.Wrap(err, "querying functionality failed")
	}
	if err := d.ioctl(i2cSlave, uintptr(address)); err != nil {
		d.file.Close()
		return nil, errors.Wrapf(err, "setting address 0x%02x failed", address)
	}
	return d, nil
}

func (d *i2cDevice) ioctl(request, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, d.file.Fd(), request, arg); errno != 0 {
		return fmt.Errorf("ioctl 0x%x failed with syscall.Errno %v", request, errno)
	}
	return nil
}

func (d *i2cDevice) closeFile() error {
	return d.file.Close()
}

// DetectDevice sends an SMBus quick command to see if the address acknowledges.
func (d *i2cDevice) DetectDevice() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.funcs&i2cFuncSmbusQuick == 0 {
		return fmt.Errorf("SMBus quick not supported")
	}
	if err := d.smbusAccess(i2cSmbusWrite, 0, i2cSmbusQuick, 0); err != nil {
		return errors.Wrap(err, "quick failed")
	}
	return nil
}

// Read a byte from given register
func (d *i2cDevice) ReadByteReg(reg uint8) (uint8, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.funcs&i2cFuncSmbusReadByteData == 0 {
		return 0, fmt.Errorf("SMBus read byte data not supported")
	}
	var data uint8
	if err := d.smbusAccess(i2cSmbusRead, reg, i2cSmbusByteData, uintptr(unsafe.Pointer(&data))); err != nil {
		return 0, errors.Wrapf(err, "readByteData[0x%0x](0x%0x) failed", d.address, reg)
	}
	return data, nil
}

// Write a byte to given register
func (d *i2cDevice) WriteByteReg(reg uint8, val uint8) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.funcs&i2cFuncSmbusWriteByteData == 0 {
		return fmt.Errorf("SMBus write byte data not supported")
	}
	data := val
	if err := d.smbusAccess(i2cSmbusWrite, reg, i2cSmbusByteData, uintptr(unsafe.Pointer(&data))); err != nil {
		return errors.Wrapf(err, "writeByteData[0x%0x](0x%0x, 0x%0x) failed", d.address, reg, val)
	}
	return nil
}

// Read a byte from device
func (d *i2cDevice) ReadByte() (byte, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.funcs&i2cFuncSmbusReadByte == 0 {
		return 0, fmt.Errorf("SMBus read byte not supported")
	}
	var data uint8
	if err := d.smbusAccess(i2cSmbusRead, 0, i2cSmbusByte, uintptr(unsafe.Pointer(&data))); err != nil {
		return 0, errors.Wrapf(err, "readByte[0x%0x] failed", d.address)
	}
	return data, nil
}

// Write a byte to device
func (d *i2cDevice) WriteByte(val byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.funcs&i2cFuncSmbusWriteByte == 0 {
		return fmt.Errorf("SMBus write byte not supported")
	}
	if err := d.smbusAccess(i2cSmbusWrite, val, i2cSmbusByte, 0); err != nil {
		return errors.Wrapf(err, "writeByte[0x%0x](0x%0x) failed", d.address, val)
	}
	return nil
}

// Read a block of data directly from the device (/dev/...)
func (d *i2cDevice) ReadDevice(data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	n, err := d.file.Read(data)
	if err != nil {
		return errors.Wrapf(err, "read[0x%0x] failed", d.address)
	}
	if n != len(data) {
		return fmt.Errorf("expected to read %d bytes, actual read bytes is %d", len(data), n)
	}
	return nil
}

// Write a block of data directly to the device (/dev/...)
func (d *i2cDevice) WriteDevice(data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	n, err := d.file.Write(data)
	if err != nil {
		return errors.Wrapf(err, "write[0x%0x] failed", d.address)
	}
	if n != len(data) {
		return fmt.Errorf("expected to write %d bytes, actual written bytes is %d", len(data), n)
	}
	return nil
}

func (d *i2cDevice) smbusAccess(readWrite byte, command byte, size uint32, data uintptr) error {
	smbus := &i2cSmbusIoctlData{
		readWrite: readWrite,
		command:   command,
		size:      size,
		data:      data,
	}
	return d.ioctl(i2cSmbus, uintptr(unsafe.Pointer(smbus)))
}
