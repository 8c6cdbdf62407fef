//go:build !linux

package iface

import (
	"errors"
	"net/netip"
)

type tapDevice struct{}

func newTap(name string, ip netip.Prefix) (*tapDevice, error) {
	return nil, errors.ErrUnsupported
}

func (t *tapDevice) Read(b []byte) (int, error)             { return -1, errors.ErrUnsupported }
func (t *tapDevice) Write(b []byte) (int, error)            { return -1, errors.ErrUnsupported }
func (t *tapDevice) Close() error                           { return errors.ErrUnsupported }
func (t *tapDevice) MTU() (int, error)                      { return -1, errors.ErrUnsupported }
func (t *tapDevice) HardwareAddress6() (hw [6]byte, err error) { return hw, errors.ErrUnsupported }
func (t *tapDevice) IPMask() (netip.Prefix, error)          { return netip.Prefix{}, errors.ErrUnsupported }

type bridgeDevice struct{}

func newBridge(name string) (*bridgeDevice, error) {
	return nil, errors.ErrUnsupported
}

func (b *bridgeDevice) Read(frame []byte) (int, error)         { return -1, errors.ErrUnsupported }
func (b *bridgeDevice) Write(frame []byte) (int, error)        { return -1, errors.ErrUnsupported }
func (b *bridgeDevice) Close() error                           { return errors.ErrUnsupported }
func (b *bridgeDevice) MTU() (int, error)                      { return -1, errors.ErrUnsupported }
func (b *bridgeDevice) HardwareAddress6() (hw [6]byte, err error) { return hw, errors.ErrUnsupported }
func (b *bridgeDevice) IPMask() (netip.Prefix, error)          { return netip.Prefix{}, errors.ErrUnsupported }
