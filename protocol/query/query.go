// Package query implements the Minecraft Query (GameSpot GS4) protocol:
// a two-step challenge/response exchange over UDP, port 25565. Wire
// format grounded on the original protocols/query.rs reference.
package query

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/soypat/badscan"
	"github.com/soypat/badscan/internal"
)

var (
	magic          = [2]byte{0xFE, 0xFD}
	kvMarker       = [11]byte{0x73, 0x70, 0x6C, 0x69, 0x74, 0x6E, 0x75, 0x6D, 0x00, 0x80, 0x00}
	playersMarker  = [10]byte{0x01, 0x70, 0x6C, 0x61, 0x79, 0x65, 0x72, 0x5F, 0x00, 0x00}
)

const (
	intentionHandshake = 0x09
	intentionStat      = 0x00
)

// PartialResponse is the reply to a non-fullstat stat request.
type PartialResponse struct {
	MOTD        string
	GameType    string
	Map         string
	NumPlayers  string
	MaxPlayers  string
	HostIP      string
	HostPort    uint16
}

// FullResponse is the reply to a fullstat stat request.
type FullResponse struct {
	KV      map[string]string
	Players []string
}

// Response is exactly one of Partial or Full, matching the closed
// Partial/Full reply shape of the original QueryResponse enum.
type Response struct {
	Partial *PartialResponse
	Full    *FullResponse
}

type logger struct{ log *slog.Logger }

func (l logger) warn(msg string, attrs ...slog.Attr)  { internal.LogAttrs(l.log, slog.LevelWarn, msg, attrs...) }
func (l logger) error(msg string, attrs ...slog.Attr) { internal.LogAttrs(l.log, slog.LevelError, msg, attrs...) }

// Protocol implements protocol.UDPProtocol for Minecraft Query.
type Protocol struct {
	Fullstat bool
	OnReply  func(source badscan.Target, resp Response)
	log      logger
}

// New builds a Query protocol plug-in. onReply is invoked once per
// successfully parsed stat reply; fullstat selects the verbose K/V reply.
func New(fullstat bool, onReply func(source badscan.Target, resp Response), l *slog.Logger) *Protocol {
	if l == nil {
		l = slog.Default()
	}
	return &Protocol{Fullstat: fullstat, OnReply: onReply, log: logger{l}}
}

func (p *Protocol) Name() string       { return "Query" }
func (p *Protocol) DefaultPort() uint16 { return 25565 }

// sessionID derives the 4-byte session ID embedded in every Query packet
// from cookie, masked so every byte's high nibble is clear — the wire
// format requires this (the reference implementation ANDs with
// 0x0F0F0F0F before use).
func sessionID(cookie uint32) uint32 { return cookie & 0x0F0F0F0F }

// InitialPacket builds the handshake probe: FE FD 09 <id:4BE>.
func (p *Protocol) InitialPacket(target badscan.Target, cookie uint32) []byte {
	id := sessionID(cookie)
	buf := make([]byte, 7)
	buf[0], buf[1] = magic[0], magic[1]
	buf[2] = intentionHandshake
	putUint32BE(buf[3:7], id)
	return buf
}

// HandlePacket dispatches on the reply's intention byte: a challenge
// reply (0x09) triggers the follow-up stat request via sendBack; a stat
// reply (0x00) is parsed and handed to OnReply.
func (p *Protocol) HandlePacket(sendBack func([]byte), source badscan.Target, cookie uint32, packet []byte) {
	if len(packet) < 5 {
		return
	}
	id := sessionID(cookie)
	var gotID [4]byte
	copy(gotID[:], packet[1:5])
	if getUint32BE(gotID[:]) != id {
		p.log.warn("query: session id mismatch", slog.String("source", source.String()))
		return
	}

	switch packet[0] {
	case intentionHandshake:
		token, ok := parseChallengeToken(packet[5:])
		if !ok {
			return
		}
		follow := make([]byte, 11, 15)
		follow[0], follow[1] = magic[0], magic[1]
		follow[2] = intentionStat
		putUint32BE(follow[3:7], id)
		putUint32BE(follow[7:11], token)
		if p.Fullstat {
			follow = append(follow, 0, 0, 0, 0)
		}
		sendBack(follow)
	case intentionStat:
		resp, ok := parseStatResponse(packet, p.Fullstat, p.log)
		if !ok {
			return
		}
		if p.OnReply != nil {
			p.OnReply(source, resp)
		}
	default:
		p.log.warn("query: unknown intention byte", slog.Int("byte", int(packet[0])))
	}
}

// parseChallengeToken reads the ASCII-decimal challenge token terminated
// by a NUL byte, matching the digit-by-digit accumulation the reference
// implementation performs (it is not a plain base-10 ParseUint: a non-
// digit byte aborts the whole packet instead of stopping early).
func parseChallengeToken(rest []byte) (uint32, bool) {
	if len(rest) == 0 {
		return 0, false
	}
	var token uint32
	for i, b := range rest {
		if i == len(rest)-1 && b == 0 {
			break
		}
		if b < '0' || b > '9' {
			return 0, false
		}
		token = token*10 + uint32(b-'0')
	}
	return token, true
}

func parseStatResponse(packet []byte, fullstat bool, log logger) (Response, bool) {
	if fullstat {
		return parseFullStat(packet, log)
	}
	return parsePartialStat(packet)
}

func parsePartialStat(packet []byte) (Response, bool) {
	if len(packet) < 5 {
		return Response{}, false
	}
	r := byteReader{buf: packet[5:]}
	motd, ok := r.readCString()
	if !ok {
		return Response{}, false
	}
	gametype, ok := r.readCString()
	if !ok {
		return Response{}, false
	}
	mapName, ok := r.readCString()
	if !ok {
		return Response{}, false
	}
	numplayers, ok := r.readCString()
	if !ok {
		return Response{}, false
	}
	maxplayers, ok := r.readCString()
	if !ok {
		return Response{}, false
	}
	hostPort, ok := r.readUint16LE()
	if !ok {
		return Response{}, false
	}
	hostIP, ok := r.readCString()
	if !ok {
		return Response{}, false
	}
	return Response{Partial: &PartialResponse{
		MOTD:       motd,
		GameType:   gametype,
		Map:        mapName,
		NumPlayers: numplayers,
		MaxPlayers: maxplayers,
		HostIP:     hostIP,
		HostPort:   hostPort,
	}}, true
}

func parseFullStat(packet []byte, log logger) (Response, bool) {
	const minLen = 1 + 4 + 11 + 1 + 10
	if len(packet) < minLen {
		return Response{}, false
	}
	r := byteReader{buf: packet[5:]}
	var marker [11]byte
	if !r.readN(marker[:]) {
		return Response{}, false
	}
	if marker != kvMarker {
		log.warn("query: kv marker mismatch", slog.String("got", fmt.Sprintf("% X", marker[:])))
	}

	kv := make(map[string]string)
	for {
		key, ok := r.readCString()
		if !ok {
			return Response{}, false
		}
		if key == "" {
			break
		}
		value, ok := r.readCString()
		if !ok {
			return Response{}, false
		}
		kv[key] = value
	}

	var playerMarker [10]byte
	if !r.readN(playerMarker[:]) {
		return Response{}, false
	}
	if playerMarker != playersMarker {
		log.warn("query: players marker mismatch", slog.String("got", fmt.Sprintf("% X", playerMarker[:])))
	}

	var players []string
	for {
		name, ok := r.readCString()
		if !ok {
			return Response{}, false
		}
		if name == "" {
			break
		}
		players = append(players, name)
	}

	return Response{Full: &FullResponse{KV: kv, Players: players}}, true
}

// byteReader walks packet bytes the way the reference's io::Cursor does.
type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) readN(dst []byte) bool {
	if len(r.buf)-r.off < len(dst) {
		return false
	}
	copy(dst, r.buf[r.off:])
	r.off += len(dst)
	return true
}

func (r *byteReader) readCString() (string, bool) {
	var sb strings.Builder
	for {
		if r.off >= len(r.buf) {
			return "", false
		}
		b := r.buf[r.off]
		r.off++
		if b == 0 {
			return sb.String(), true
		}
		sb.WriteByte(b)
	}
}

func (r *byteReader) readUint16LE() (uint16, bool) {
	if len(r.buf)-r.off < 2 {
		return 0, false
	}
	v := uint16(r.buf[r.off]) | uint16(r.buf[r.off+1])<<8
	r.off += 2
	return v, true
}

func putUint32BE(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

func getUint32BE(src []byte) uint32 {
	return uint32(src[0])<<24 | uint32(src[1])<<16 | uint32(src[2])<<8 | uint32(src[3])
}
