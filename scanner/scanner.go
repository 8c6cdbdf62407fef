// Package scanner implements the stateless transmit/receive engine (C4,
// C5): two goroutines per scanner instance, one building and sending
// probes, one decoding inbound frames and re-validating them against the
// cookie recomputed from the reply's apparent source. No per-target
// state survives between the two; the cookie is the only thing that
// ties a reply back to a probe.
package scanner

import (
	"log/slog"
	"net/netip"

	"github.com/soypat/badscan/ethernet"
	"github.com/soypat/badscan/internal"
)

// sourcePort is the fixed UDP/TCP source port every outbound probe uses,
// matching the original udpscanner.rs/tcpscanner.rs's hard-coded 61000.
const sourcePort uint16 = 61000

// rawInterface is the subset of iface.Interface the scanners need,
// narrowed to an interface so tests can substitute an in-memory fake
// instead of opening a real TUN/TAP device or AF_PACKET socket.
type rawInterface interface {
	Read(b []byte) (int, error)
	WriteEthernet(payload []byte, ethertype ethernet.Type) (int, error)
	HardwareAddr() [6]byte
	SourceAddr() netip.Addr
}

type logger struct{ log *slog.Logger }

func (l logger) warn(msg string, attrs ...slog.Attr)  { internal.LogAttrs(l.log, slog.LevelWarn, msg, attrs...) }
func (l logger) error(msg string, attrs ...slog.Attr) { internal.LogAttrs(l.log, slog.LevelError, msg, attrs...) }
func (l logger) info(msg string, attrs ...slog.Attr)  { internal.LogAttrs(l.log, slog.LevelInfo, msg, attrs...) }

func newLogger(l *slog.Logger) logger {
	if l == nil {
		l = slog.Default()
	}
	return logger{l}
}

// recvBufSize bounds a single inbound Ethernet frame read. 2048 comfortably
// covers a standard 1500-byte MTU plus the 14/18-byte Ethernet header.
const recvBufSize = 2048

// sendQueueDepth bounds the MPSC send channel. The original is an
// unbounded std::sync::mpsc; a large buffered channel gives the same
// practical behaviour (scan() essentially never blocks) without an
// unbounded goroutine-fed queue.
const sendQueueDepth = 1024
