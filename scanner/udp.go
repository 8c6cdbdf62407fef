package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/soypat/badscan"
	"github.com/soypat/badscan/cookie"
	"github.com/soypat/badscan/ethernet"
	"github.com/soypat/badscan/fingerprint"
	"github.com/soypat/badscan/internal"
	"github.com/soypat/badscan/ipv4"
	"github.com/soypat/badscan/protocol"
	"github.com/soypat/badscan/udp"
)

// UDPScanner drives the stateless UDP probe/reply loop (C4): a send
// goroutine frames queued protocol payloads into UDP-over-IPv4 and hands
// them to the raw channel; a receive goroutine decodes inbound frames,
// recomputes the cookie for the apparent source, and dispatches to the
// protocol plug-in.
type UDPScanner struct {
	ifc      rawInterface
	sourceIP netip.Addr
	seed     int64
	startMS  int64

	mu   sync.RWMutex
	proto protocol.UDPProtocol
	fp    *fingerprint.Fingerprint

	send   chan badscan.SendItem
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    logger
}

// NewUDPScanner builds a UDPScanner bound to ifc and immediately spawns
// its send and receive goroutines. ctx governs their lifetime: cancelling
// it (or calling Close) stops the send goroutine; the receive goroutine
// exits once ifc's underlying Read starts erroring, which happens when
// the caller closes ifc.
func NewUDPScanner(ctx context.Context, ifc rawInterface, proto protocol.UDPProtocol, fp *fingerprint.Fingerprint, seed int64, l *slog.Logger) *UDPScanner {
	cctx, cancel := context.WithCancel(ctx)
	s := &UDPScanner{
		ifc:      ifc,
		sourceIP: ifc.SourceAddr(),
		seed:     seed,
		startMS:  time.Now().UnixMilli(),
		proto:    proto,
		fp:       fp,
		send:     make(chan badscan.SendItem, sendQueueDepth),
		cancel:   cancel,
		log:      newLogger(l),
	}
	s.wg.Add(2)
	go s.sendWorker(cctx)
	go s.recvWorker(cctx)
	return s
}

// Close stops the send goroutine and waits for both goroutines to exit.
// The caller is still responsible for closing the underlying interface so
// the receive goroutine's blocking Read unblocks.
func (s *UDPScanner) Close() {
	s.cancel()
	s.wg.Wait()
}

// Scan computes the cookie for target, asks the protocol plug-in for its
// initial probe bytes, and enqueues them for transmission. It never
// blocks: when the send queue is full the probe is dropped and an error
// is returned.
func (s *UDPScanner) Scan(target badscan.Target) error {
	c := cookie.Compute(target, s.seed, s.startMS)
	s.mu.RLock()
	payload := s.proto.InitialPacket(target, c)
	s.mu.RUnlock()
	return s.enqueue(target, payload)
}

func (s *UDPScanner) enqueue(dest badscan.Target, payload []byte) error {
	select {
	case s.send <- badscan.SendItem{Dest: dest, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("scanner: udp send queue full, dropping packet to %s", dest)
	}
}

func (s *UDPScanner) sendWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.transmit(item); err != nil {
				dst4 := item.Dest.IP.Unmap().As4()
				s.log.error("udp: transmit failed", slog.String("err", err.Error()), internal.SlogAddr4("dest", &dst4), slog.Int("port", int(item.Dest.Port)))
			}
		}
	}
}

// transmit wraps payload in UDP then IPv4 per spec.md §4.4: source port
// fixed at 61000, DF set, identification 1, TTL from the fingerprint.
func (s *UDPScanner) transmit(item badscan.SendItem) error {
	s.mu.RLock()
	ttl := s.fp.InitialTTL
	s.mu.RUnlock()

	total := 20 + 8 + len(item.Payload)
	buf := make([]byte, total)

	ifrm, err := ipv4.NewFrame(buf)
	if err != nil {
		return err
	}
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(total))
	ifrm.SetID(1)
	ifrm.SetFlags(0x4000) // DF
	ifrm.SetTTL(ttl)
	ifrm.SetProtocol(ipv4.IPProtoUDP)
	src4 := s.sourceIP.Unmap().As4()
	dst4 := item.Dest.IP.Unmap().As4()
	*ifrm.SourceAddr() = src4
	*ifrm.DestinationAddr() = dst4
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	ufrm, err := udp.NewFrame(ifrm.Payload())
	if err != nil {
		return err
	}
	ufrm.SetSourcePort(sourcePort)
	ufrm.SetDestinationPort(item.Dest.Port)
	ufrm.SetLength(uint16(8 + len(item.Payload)))
	copy(ufrm.Payload(), item.Payload)
	ufrm.SetCRC(ufrm.CalculateIPv4Checksum(ifrm))

	_, err = s.ifc.WriteEthernet(buf, ethernet.TypeIPv4)
	return err
}

func (s *UDPScanner) recvWorker(ctx context.Context) {
	defer s.wg.Done()
	buf := make([]byte, recvBufSize)
	localHW := s.ifc.HardwareAddr()
	s.log.info("udp: receive loop started", internal.SlogAddr6("hw", &localHW))
	for {
		n, err := s.ifc.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.error("udp: read failed", slog.String("err", err.Error()))
			return
		}
		s.handleFrame(buf[:n], localHW)
	}
}

func (s *UDPScanner) handleFrame(frame []byte, localHW [6]byte) {
	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		return
	}
	if *efrm.DestinationHardwareAddr() != localHW {
		return // not addressed to us
	}
	ipPayload := efrm.Payload()
	ifrm, err := ipv4.NewFrame(ipPayload)
	if err != nil {
		return
	}
	if err := ifrm.ValidateSize(); err != nil {
		return
	}
	if ifrm.Protocol() != ipv4.IPProtoUDP {
		s.log.warn("udp: unexpected ip protocol in udp receive loop", slog.String("proto", ifrm.Protocol().String()), internal.SlogAddr4("src", ifrm.SourceAddr()))
		return
	}
	ufrm, err := udp.NewFrame(ifrm.Payload())
	if err != nil {
		return
	}
	if err := ufrm.ValidateSize(); err != nil {
		return
	}

	source := badscan.Target{IP: netip.AddrFrom4(*ifrm.SourceAddr()), Port: ufrm.SourcePort()}
	c := cookie.Compute(source, s.seed, s.startMS)

	s.mu.RLock()
	proto := s.proto
	s.mu.RUnlock()

	payload := append([]byte(nil), ufrm.Payload()...)
	proto.HandlePacket(func(b []byte) {
		if err := s.enqueue(source, b); err != nil {
			s.log.warn("udp: follow-up packet dropped", slog.String("err", err.Error()))
		}
	}, source, c, payload)
}
