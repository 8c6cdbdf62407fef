// Package iface provides the default-interface/MAC discovery helper and the
// raw Ethernet-framing channel the scan engine treats as an external
// collaborator: opening either a TUN/TAP device or an AF_PACKET socket
// bound to a real NIC, and yielding whole Ethernet frames on Read/Write.
package iface

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/soypat/badscan/ethernet"
)

// rawDevice is satisfied by both tapDevice and bridgeDevice.
type rawDevice interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
	HardwareAddress6() ([6]byte, error)
	MTU() (int, error)
	IPMask() (netip.Prefix, error)
}

// Interface is the raw channel + interface adapter external collaborator:
// it owns a TUN/TAP device or a bound raw socket, knows its own hardware
// address and IPv4 address, and frames outbound payloads in Ethernet.
type Interface struct {
	dev        rawDevice
	name       string
	hw         [6]byte
	addr       netip.Addr
	mtu        int
	gatewayHW  [6]byte
	haveGWHW   bool
}

// Open opens name as a raw channel. Names starting with "tap" (or empty)
// open a TUN/TAP device; anything else is treated as the name of an
// existing NIC to bridge to via a raw AF_PACKET socket.
func Open(name string) (*Interface, error) {
	if name == "" {
		name = "tap0"
	}
	var dev rawDevice
	var err error
	if strings.HasPrefix(name, "tap") {
		dev, err = newTap(name, netip.Prefix{})
	} else {
		dev, err = newBridge(name)
	}
	if err != nil {
		return nil, fmt.Errorf("iface: opening %q: %w", name, err)
	}
	hw, err := dev.HardwareAddress6()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("iface: reading hardware address of %q: %w", name, err)
	}
	mtu, err := dev.MTU()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("iface: reading MTU of %q: %w", name, err)
	}
	prefix, err := dev.IPMask()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("iface: reading IPv4 address of %q: %w", name, err)
	}
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		dev.Close()
		return nil, errors.New("iface: no usable IPv4 address on interface")
	}
	iface := &Interface{
		dev:  dev,
		name: name,
		hw:   hw,
		addr: prefix.Addr(),
		mtu:  mtu,
	}
	gwMAC, ok := discoverGatewayMAC()
	if ok {
		iface.gatewayHW = gwMAC
		iface.haveGWHW = true
	}
	return iface, nil
}

// HardwareAddr returns the interface's own MAC address.
func (ifc *Interface) HardwareAddr() [6]byte { return ifc.hw }

// GatewayHardwareAddr returns the default gateway's MAC address, if it could
// be resolved from the host's ARP cache. When ok is false, outbound frames
// are sent unwrapped (see WriteEthernet).
func (ifc *Interface) GatewayHardwareAddr() (hw [6]byte, ok bool) {
	return ifc.gatewayHW, ifc.haveGWHW
}

// SourceAddr returns the interface's IPv4 address.
func (ifc *Interface) SourceAddr() netip.Addr { return ifc.addr }

// MTU returns the interface's maximum transmission unit.
func (ifc *Interface) MTU() int { return ifc.mtu }

// Read reads one raw frame from the channel.
func (ifc *Interface) Read(b []byte) (int, error) { return ifc.dev.Read(b) }

// Close releases the underlying device.
func (ifc *Interface) Close() error { return ifc.dev.Close() }

// WriteEthernet wraps payload (an already-built L3 datagram) in an Ethernet
// header addressed to the gateway MAC when known, else transmits payload
// unwrapped, matching the external raw-channel contract.
func (ifc *Interface) WriteEthernet(payload []byte, ethertype ethernet.Type) (int, error) {
	if !ifc.haveGWHW {
		return ifc.dev.Write(payload)
	}
	buf := make([]byte, 14+len(payload))
	efrm, err := ethernet.NewFrame(buf)
	if err != nil {
		return 0, err
	}
	*efrm.DestinationHardwareAddr() = ifc.gatewayHW
	*efrm.SourceHardwareAddr() = ifc.hw
	efrm.SetEtherType(ethertype)
	copy(efrm.Payload(), payload)
	return ifc.dev.Write(buf)
}

// discoverGatewayMAC reads the Linux default-route table and the ARP cache
// to resolve the default gateway's hardware address without implementing
// ARP resolution ourselves; returns ok=false if either is unavailable
// (non-Linux host, no default route, or no cached ARP entry yet).
func discoverGatewayMAC() (hw [6]byte, ok bool) {
	gw, ok := defaultGatewayIP()
	if !ok {
		return hw, false
	}
	return arpLookup(gw)
}

func defaultGatewayIP() (netip.Addr, bool) {
	data, err := os.ReadFile("/proc/net/route")
	if err != nil {
		return netip.Addr{}, false
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		destHex, gwHex := fields[1], fields[2]
		if destHex != "00000000" {
			continue // not the default route
		}
		gwLE, err := strconv.ParseUint(gwHex, 16, 32)
		if err != nil {
			continue
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(gwLE))
		return netip.AddrFrom4(b), true
	}
	return netip.Addr{}, false
}

func arpLookup(gw netip.Addr) (hw [6]byte, ok bool) {
	data, err := os.ReadFile("/proc/net/arp")
	if err != nil {
		return hw, false
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil || addr != gw {
			continue
		}
		mac, err := parseMAC(fields[3])
		if err != nil {
			continue
		}
		return mac, true
	}
	return hw, false
}

func parseMAC(s string) (hw [6]byte, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return hw, fmt.Errorf("iface: malformed MAC %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return hw, err
		}
		hw[i] = byte(v)
	}
	return hw, nil
}
