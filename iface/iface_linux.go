//go:build linux

package iface

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net"
	"net/netip"
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/unix"
)

const safamilyHW6 = 1

// ifreq mirrors struct ifreq from <net/if.h>, adapted from the teacher's
// internal/tap.go. The Data field covers whichever union member an ioctl
// needs (flags, sockaddr, mtu).
type ifreq struct {
	Name [unix.IFNAMSIZ]byte
	Data [64]byte
}

func makeifreq(name string) ifreq {
	var ifr ifreq
	copy(ifr.Name[:], name)
	return ifr
}

func (ifr *ifreq) setFlags(flags uint16) {
	*(*uint16)(unsafe.Pointer(&ifr.Data[0])) = flags
}

func (ifr *ifreq) ptr() unsafe.Pointer { return unsafe.Pointer(ifr) }

// ioctl issues request against fd, upgraded from the teacher's raw
// syscall.Syscall(syscall.SYS_IOCTL, ...) to the unix package equivalent.
func ioctl(fd int, request uintptr, argp unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(argp))
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}

// tapDevice opens /dev/net/tun in TAP mode.
type tapDevice struct {
	fd   int
	name string
}

func newTap(name string, ip netip.Prefix) (*tapDevice, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, fmt.Errorf("iface: interface name %q too long", name)
	}
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening /dev/net/tun: %w", err)
	}
	ifr := makeifreq(name)
	ifr.setFlags(uint16(unix.IFF_TAP | unix.IFF_NO_PI))
	if err := ioctl(fd, unix.TUNSETIFF, ifr.ptr()); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("TUNSETIFF: %w", err)
	}
	if ip.IsValid() {
		if err := exec.Command("ip", "link", "set", "dev", name, "up").Run(); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("ip link set up: %w", err)
		}
		if err := exec.Command("ip", "addr", "add", ip.String(), "dev", name).Run(); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("ip addr add: %w", err)
		}
	}
	return &tapDevice{fd: fd, name: name}, nil
}

func (t *tapDevice) Read(b []byte) (int, error)  { return unix.Read(t.fd, b) }
func (t *tapDevice) Write(b []byte) (int, error) { return unix.Write(t.fd, b) }
func (t *tapDevice) Close() error                { return unix.Close(t.fd) }

func (t *tapDevice) sock() (int, error) {
	return unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_IP)
}

func (t *tapDevice) MTU() (int, error) {
	sock, err := t.sock()
	if err != nil {
		return 0, err
	}
	defer unix.Close(sock)
	return getSocketMTU(sock, t.name)
}

func (t *tapDevice) HardwareAddress6() (hw [6]byte, err error) {
	sock, err := t.sock()
	if err != nil {
		return hw, err
	}
	defer unix.Close(sock)
	return getSocketHW(sock, t.name)
}

func (t *tapDevice) IPMask() (netip.Prefix, error) {
	sock, err := t.sock()
	if err != nil {
		return netip.Prefix{}, err
	}
	defer unix.Close(sock)
	return getSocketMask(sock, t.name)
}

// bridgeDevice bridges to an existing NIC via a raw AF_PACKET socket.
type bridgeDevice struct {
	fd   int
	name string
}

func newBridge(name string) (*bridgeDevice, error) {
	nic, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrLinklayer{Protocol: proto, Ifindex: nic.Index}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &bridgeDevice{fd: fd, name: nic.Name}, nil
}

func (b *bridgeDevice) Read(frame []byte) (int, error)  { return unix.Read(b.fd, frame) }
func (b *bridgeDevice) Write(frame []byte) (int, error) { return unix.Write(b.fd, frame) }
func (b *bridgeDevice) Close() error                    { return unix.Close(b.fd) }

func (b *bridgeDevice) MTU() (int, error)                  { return getSocketMTU(b.fd, b.name) }
func (b *bridgeDevice) HardwareAddress6() ([6]byte, error) { return getSocketHW(b.fd, b.name) }
func (b *bridgeDevice) IPMask() (netip.Prefix, error)      { return getSocketMask(b.fd, b.name) }

func getSocketMTU(sockfd int, ifaceName string) (int, error) {
	ifr := makeifreq(ifaceName)
	if err := ioctl(sockfd, unix.SIOCGIFMTU, ifr.ptr()); err != nil {
		return 0, err
	}
	mtu := *(*int32)(unsafe.Pointer(&ifr.Data[0]))
	return int(mtu), nil
}

func getSocketHW(sockfd int, ifaceName string) (hw [6]byte, err error) {
	ifr := makeifreq(ifaceName)
	if err := ioctl(sockfd, unix.SIOCGIFHWADDR, ifr.ptr()); err != nil {
		return hw, err
	}
	family := *(*uint16)(unsafe.Pointer(&ifr.Data[0]))
	if family != safamilyHW6 {
		return hw, fmt.Errorf("iface: expecting sa_family=1, got %d", family)
	}
	copy(hw[:], ifr.Data[2:])
	return hw, nil
}

func getSocketMask(sockfd int, ifaceName string) (netip.Prefix, error) {
	addrp, err := getSocketIP(sockfd, ifaceName)
	if err != nil {
		return netip.Prefix{}, err
	}
	ifr := makeifreq(ifaceName)
	if err := ioctl(sockfd, unix.SIOCGIFNETMASK, ifr.ptr()); err != nil {
		return netip.Prefix{}, err
	}
	mask := binary.BigEndian.Uint32(ifr.Data[4:8])
	return netip.PrefixFrom(addrp.Addr(), bits.OnesCount32(mask)), nil
}

func getSocketIP(sockfd int, ifaceName string) (addrp netip.AddrPort, err error) {
	ifr := makeifreq(ifaceName)
	if err := ioctl(sockfd, unix.SIOCGIFADDR, ifr.ptr()); err != nil {
		return netip.AddrPort{}, err
	}
	family := *(*uint16)(unsafe.Pointer(&ifr.Data[0]))
	port := *(*uint16)(unsafe.Pointer(&ifr.Data[2]))
	if family != unix.AF_INET {
		return addrp, fmt.Errorf("iface: unsupported sa_family=%d", family)
	}
	addr, _ := netip.AddrFromSlice(ifr.Data[4:8])
	return netip.AddrPortFrom(addr, port), nil
}

func htons(i int) uint16 { return uint16(i<<8)&0xff00 | uint16(i)>>8 }
