// Package fingerprint builds the pre-rendered TCP segment templates that
// give outbound probes the wire appearance of a specific OS/device, so a
// target's firewall or stack sees a plausible peer instead of a scanner.
package fingerprint

import (
	"fmt"

	"github.com/soypat/badscan"
	"github.com/soypat/badscan/ipv4"
	"github.com/soypat/badscan/tcp"
)

// Profile names a supported OS/device fingerprint.
type Profile string

// ProfileNintendo3DS matches the p0f signature
// *:64:0:1360:32768,0:mss,nop,nop,sok:df,id+:0
const ProfileNintendo3DS Profile = "Nintendo 3DS"

// Renderer builds one complete IPv4+TCP segment addressed src->dst,
// carrying seq/ack and payload, stamped with the fingerprint's flags,
// window, options and initial TTL. Returned bytes are a fresh IPv4 packet
// ready for the send channel.
type Renderer func(src, dst badscan.Target, seq, ack uint32, payload []byte) []byte

// Fingerprint holds the fixed TCP header fields a profile renders into
// every outbound segment: initial TTL, MSS, window and TLV-encoded
// options. Safe for concurrent use once built; nothing mutates it after
// New returns.
type Fingerprint struct {
	profile    Profile
	InitialTTL uint8
	MSS        uint16
	Window     uint16
	Options    []byte
}

// New builds the Fingerprint for profile. ProfileNintendo3DS is currently
// the only supported profile.
func New(profile Profile) (*Fingerprint, error) {
	switch profile {
	case ProfileNintendo3DS:
		return nintendo3DS(), nil
	default:
		return nil, fmt.Errorf("fingerprint: unsupported profile %q", profile)
	}
}

func nintendo3DS() *Fingerprint {
	var codec tcp.OptionCodec
	opts := make([]byte, 0, 8)

	mss := make([]byte, 4)
	n, err := codec.PutOption16(mss, tcp.OptMaxSegmentSize, 1360)
	if err != nil {
		panic(err) // fixed-size buffer, cannot fail
	}
	opts = append(opts, mss[:n]...)
	opts = append(opts, byte(tcp.OptNop), byte(tcp.OptNop))

	sackPermitted := make([]byte, 2)
	n, err = codec.PutOption(sackPermitted, tcp.OptSACKPermitted)
	if err != nil {
		panic(err)
	}
	opts = append(opts, sackPermitted[:n]...)

	return &Fingerprint{
		profile:    ProfileNintendo3DS,
		InitialTTL: 64,
		MSS:        1360,
		Window:     32768,
		Options:    opts,
	}
}

// Name returns the profile name this Fingerprint was built from.
func (fp *Fingerprint) Name() string { return string(fp.profile) }

// SYN returns the renderer for an initial SYN segment, options included.
func (fp *Fingerprint) SYN() Renderer { return fp.renderer(tcp.FlagSYN, true) }

// ACK returns the renderer for a bare ACK segment (no options), used to
// complete the shadow handshake.
func (fp *Fingerprint) ACK() Renderer { return fp.renderer(tcp.FlagACK, false) }

// RST returns the renderer for a RST+ACK segment, which the TCP scanner
// sends to abort the handshake when a SYN-ACK fails the cookie check.
func (fp *Fingerprint) RST() Renderer { return fp.renderer(tcp.FlagRST|tcp.FlagACK, false) }

// PSH returns the renderer for a data-carrying PSH+ACK segment.
func (fp *Fingerprint) PSH() Renderer { return fp.renderer(tcp.FlagPSH|tcp.FlagACK, false) }

// renderer closes over fp's fixed fields; withOptions controls whether the
// fingerprint's TCP options are attached (only the opening SYN carries
// them, matching a real handshake: options only mean anything on SYN).
func (fp *Fingerprint) renderer(flags tcp.Flags, withOptions bool) Renderer {
	return func(src, dst badscan.Target, seq, ack uint32, payload []byte) []byte {
		optLen := 0
		if withOptions {
			optLen = len(fp.Options)
		}
		// round option bytes up to a 4-byte boundary per RFC 9293 data offset units.
		padded := (optLen + 3) &^ 3
		tcpHeaderLen := 20 + padded
		total := 20 + tcpHeaderLen + len(payload)

		buf := make([]byte, total)
		ifrm, _ := ipv4.NewFrame(buf)
		ifrm.SetVersionAndIHL(4, 5)
		ifrm.SetTotalLength(uint16(total))
		ifrm.SetTTL(fp.InitialTTL)
		ifrm.SetFlags(ipv4.Flags(0x4000)) // DF, matching the Nintendo 3DS p0f signature's "df"
		ifrm.SetProtocol(ipv4.IPProtoTCP)
		srcIP := src.IP.Unmap().As4()
		dstIP := dst.IP.Unmap().As4()
		*ifrm.SourceAddr() = srcIP
		*ifrm.DestinationAddr() = dstIP
		ifrm.SetCRC(ifrm.CalculateHeaderCRC())

		tfrm, _ := tcp.NewFrame(ifrm.Payload())
		tfrm.SetSourcePort(src.Port)
		tfrm.SetDestinationPort(dst.Port)
		tfrm.SetSeq(seq)
		tfrm.SetAck(ack)
		tfrm.SetOffsetAndFlags(uint8(tcpHeaderLen/4), flags)
		tfrm.SetWindowSize(fp.Window)
		if withOptions {
			copy(tfrm.Options(), fp.Options)
		}
		copy(tfrm.Payload(), payload)
		tfrm.SetCRC(tfrm.CalculateIPv4Checksum(ifrm))
		return buf
	}
}
