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
	"github.com/soypat/badscan/tcp"
)

// TCPScanner drives the shadow TCP handshake (C5): Scan builds SYNs from
// the fingerprint's SYN template and a send goroutine forwards them to
// the raw channel, while a receive goroutine
// reacts to whatever segment comes back purely from its flags and the
// cookie correspondence, with no memory of having sent the SYN in the
// first place.
type TCPScanner struct {
	ifc      rawInterface
	sourceIP netip.Addr
	seed     int64
	startMS  int64

	mu    sync.RWMutex
	proto protocol.TCPProtocol
	fp    *fingerprint.Fingerprint

	send   chan badscan.SendItem
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    logger
}

// NewTCPScanner builds a TCPScanner bound to ifc and spawns its send and
// receive goroutines. See UDPScanner's constructor doc for the shutdown
// contract; it is identical here.
func NewTCPScanner(ctx context.Context, ifc rawInterface, proto protocol.TCPProtocol, fp *fingerprint.Fingerprint, seed int64, l *slog.Logger) *TCPScanner {
	cctx, cancel := context.WithCancel(ctx)
	s := &TCPScanner{
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
func (s *TCPScanner) Close() {
	s.cancel()
	s.wg.Wait()
}

// Scan builds the initial SYN: sequence number equal to the target's
// cookie, empty payload, fingerprint options attached. Source port is
// fixed at 61000 like the UDP scanner's.
func (s *TCPScanner) Scan(target badscan.Target) error {
	c := cookie.Compute(target, s.seed, s.startMS)
	src := badscan.Target{IP: s.sourceIP, Port: sourcePort}
	s.mu.RLock()
	syn := s.fp.SYN()(src, target, c, 0, nil)
	s.mu.RUnlock()
	return s.enqueue(target, syn)
}

func (s *TCPScanner) enqueue(dest badscan.Target, packet []byte) error {
	select {
	case s.send <- badscan.SendItem{Dest: dest, Payload: packet}:
		return nil
	default:
		return fmt.Errorf("scanner: tcp send queue full, dropping packet to %s", dest)
	}
}

// sendWorker forwards already-rendered IPv4+TCP frames straight to the
// raw channel: the fingerprint package's Renderer builds both layers in
// one pass (it needs per-segment source/destination at the IP layer too,
// since the shadow handshake swaps them on every reply), so there is no
// separate L3-framing step left for this worker to perform, unlike the
// UDP scanner's where the protocol plug-in only ever hands back an L4
// payload.
func (s *TCPScanner) sendWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-s.send:
			if !ok {
				return
			}
			if _, err := s.ifc.WriteEthernet(item.Payload, ethernet.TypeIPv4); err != nil {
				dst4 := item.Dest.IP.Unmap().As4()
				s.log.error("tcp: transmit failed", slog.String("err", err.Error()), internal.SlogAddr4("dest", &dst4), slog.Int("port", int(item.Dest.Port)))
			}
		}
	}
}

func (s *TCPScanner) recvWorker(ctx context.Context) {
	defer s.wg.Done()
	buf := make([]byte, recvBufSize)
	localHW := s.ifc.HardwareAddr()
	s.log.info("tcp: receive loop started", internal.SlogAddr6("hw", &localHW))
	for {
		n, err := s.ifc.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.error("tcp: read failed", slog.String("err", err.Error()))
			return
		}
		s.handleFrame(buf[:n], localHW)
	}
}

func (s *TCPScanner) handleFrame(frame []byte, localHW [6]byte) {
	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		return
	}
	if *efrm.DestinationHardwareAddr() != localHW {
		return
	}
	ipPayload := efrm.Payload()
	ifrm, err := ipv4.NewFrame(ipPayload)
	if err != nil {
		return
	}
	if err := ifrm.ValidateSize(); err != nil {
		return
	}
	if ifrm.Protocol() != ipv4.IPProtoTCP {
		s.log.warn("tcp: unexpected ip protocol in tcp receive loop", slog.String("proto", ifrm.Protocol().String()), internal.SlogAddr4("src", ifrm.SourceAddr()))
		return
	}
	tfrm, err := tcp.NewFrame(ifrm.Payload())
	if err != nil {
		return
	}
	if err := tfrm.ValidateSize(); err != nil {
		return
	}

	remote := badscan.Target{IP: netip.AddrFrom4(*ifrm.SourceAddr()), Port: tfrm.SourcePort()}
	// The outbound source socket for any reply we send is the arriving
	// segment's own destination (us); the outbound destination is the
	// arriving segment's source (remote). See spec.md §4.5.
	local := badscan.Target{IP: netip.AddrFrom4(*ifrm.DestinationAddr()), Port: tfrm.DestinationPort()}
	c := cookie.Compute(remote, s.seed, s.startMS)
	_, flags := tfrm.OffsetAndFlags()
	seq, ack := tfrm.Seq(), tfrm.Ack()
	payload := tfrm.Payload()

	action, outSeq, outAck := classifyTCPReply(c, flags, seq, ack, len(payload))

	s.mu.RLock()
	fp := s.fp
	proto := s.proto
	s.mu.RUnlock()

	switch action {
	case actionRST:
		s.log.warn("tcp: cookie mismatch on SYN-ACK, sending RST", slog.String("remote", remote.String()))
		rst := fp.RST()(local, remote, outSeq, outAck, nil)
		s.enqueueLogged(remote, rst)
	case actionACKHandshake:
		ackPkt := fp.ACK()(local, remote, outSeq, outAck, nil)
		s.enqueueLogged(remote, ackPkt)
		if data, ok := proto.InitialPacket(remote); ok {
			psh := fp.PSH()(local, remote, outSeq, outAck, data)
			s.enqueueLogged(remote, psh)
		}
	case actionACKData:
		ackPkt := fp.ACK()(local, remote, outSeq, outAck, nil)
		s.enqueueLogged(remote, ackPkt)
	case actionRSTSeen:
		s.log.info("tcp: RST received", slog.String("remote", remote.String()))
	default:
		s.log.warn("tcp: unknown flag combination", slog.String("flags", flags.String()), slog.String("remote", remote.String()))
	}
}

func (s *TCPScanner) enqueueLogged(dest badscan.Target, packet []byte) {
	if err := s.enqueue(dest, packet); err != nil {
		s.log.warn("tcp: reply dropped", slog.String("err", err.Error()))
	}
}

// tcpReplyAction identifies which reaction the per-reply state table
// (spec.md §4.5) prescribes for an inbound segment.
type tcpReplyAction int

const (
	actionUnknown tcpReplyAction = iota
	actionRST
	actionACKHandshake
	actionACKData
	actionRSTSeen
)

// classifyTCPReply implements the per-reply dispatch table verbatim from
// spec.md §4.5, decoupled from any I/O so it can be exercised directly in
// tests. outSeq/outAck are the sequence/acknowledgement numbers to stamp
// on whatever reply action prescribes (ignored for actionRSTSeen and
// actionUnknown).
func classifyTCPReply(cookie uint32, flags tcp.Flags, seq, ack uint32, payloadLen int) (action tcpReplyAction, outSeq, outAck uint32) {
	isSYNACK := flags&tcp.FlagSYN != 0 && flags&tcp.FlagACK != 0
	switch {
	case isSYNACK:
		if ack != cookie+1 {
			return actionRST, ack, seq + 1
		}
		return actionACKHandshake, ack, seq + 1
	case payloadLen > 0:
		return actionACKData, ack, seq + uint32(payloadLen)
	case flags&tcp.FlagRST != 0:
		return actionRSTSeen, 0, 0
	default:
		return actionUnknown, 0, 0
	}
}
