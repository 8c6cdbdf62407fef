// Package raknet implements the RakNet Unconnected Ping/Pong exchange
// used by Bedrock-edition Minecraft servers, UDP port 19132. Wire format
// grounded on the original protocols/raknet.rs reference.
package raknet

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/soypat/badscan"
	"github.com/soypat/badscan/internal"
)

// magic is the fixed RakNet offline-message identifier embedded in every
// unconnected ping/pong.
var magic = [16]byte{
	0x00, 0xFF, 0xFF, 0x00, 0xFE, 0xFE, 0xFE, 0xFE,
	0xFD, 0xFD, 0xFD, 0xFD, 0x12, 0x34, 0x56, 0x78,
}

const (
	idUnconnectedPing = 0x01
	idUnconnectedPong = 0x1C
	// 1 (id) + 8 (timestamp) + 8 (guid) + 16 (magic) + 2 (string length) + 1 (non-empty string)
	minReplyLen = 1 + 8 + 8 + 16 + 2 + 1
)

// Response is the parsed semicolon-delimited RakNet server identifier
// string, split into its documented fields.
type Response struct {
	Edition      string
	MOTD         string
	ProtocolVer  int
	Version      string
	PlayerCount  int
	MaxPlayers   int
	GUID         uint64
	SubMOTD      string
	GameMode     string
	GameModeNum  int
	PortIPv4     uint16
	PortIPv6     uint16
	// Extra holds any trailing fields beyond the documented 12, rejoined
	// with ';'. Nil when the only remainder is one empty field (the
	// identifier ends with a ';' right after field 12). An identifier with
	// no ';' after field 12 yields a non-nil empty string.
	Extra *string
}

type logger struct{ log *slog.Logger }

func (l logger) warn(msg string, attrs ...slog.Attr) { internal.LogAttrs(l.log, slog.LevelWarn, msg, attrs...) }

// Protocol implements protocol.UDPProtocol for RakNet Unconnected Ping.
type Protocol struct {
	OnReply func(source badscan.Target, resp Response)
	log     logger
}

// New builds a RakNet protocol plug-in. onReply is invoked once per
// successfully parsed pong.
func New(onReply func(source badscan.Target, resp Response), l *slog.Logger) *Protocol {
	if l == nil {
		l = slog.Default()
	}
	return &Protocol{OnReply: onReply, log: logger{l}}
}

func (p *Protocol) Name() string        { return "RakNet" }
func (p *Protocol) DefaultPort() uint16 { return 19132 }

// InitialPacket builds the unconnected ping, embedding cookie twice in
// the 8-byte "timestamp" field so the echoed pong self-authenticates.
func (p *Protocol) InitialPacket(target badscan.Target, cookie uint32) []byte {
	buf := make([]byte, 1+8+16+8)
	buf[0] = idUnconnectedPing
	binary.BigEndian.PutUint32(buf[1:5], cookie)
	binary.BigEndian.PutUint32(buf[5:9], cookie)
	copy(buf[9:25], magic[:])
	// trailing 8 zero bytes stand in for our own GUID.
	return buf
}

// HandlePacket validates and parses an unconnected pong.
func (p *Protocol) HandlePacket(sendBack func([]byte), source badscan.Target, cookie uint32, packet []byte) {
	if len(packet) < minReplyLen {
		return
	}
	if packet[0] != idUnconnectedPong {
		return
	}
	timestamp := binary.BigEndian.Uint64(packet[1:9])
	lo := uint32(timestamp)
	hi := uint32(timestamp >> 32)
	if lo != cookie || hi != cookie {
		p.log.warn("raknet: cookie mismatch", slog.String("source", source.String()))
		return
	}
	guid := binary.BigEndian.Uint64(packet[9:17])
	var gotMagic [16]byte
	copy(gotMagic[:], packet[17:33])
	if gotMagic != magic {
		p.log.warn("raknet: bad magic", slog.String("source", source.String()))
		return
	}
	serverIDLen := binary.BigEndian.Uint16(packet[33:35])
	if len(packet[35:]) < int(serverIDLen) {
		return
	}
	serverIDBytes := packet[35 : 35+int(serverIDLen)]
	if !utf8.Valid(serverIDBytes) {
		return
	}
	serverID := string(serverIDBytes)

	resp, ok := parseServerID(guid, serverID)
	if !ok {
		return
	}
	if p.OnReply != nil {
		p.OnReply(source, resp)
	}
}

// parseServerID splits the ';'-delimited server identifier string into
// its 12 documented fields, verifying the embedded GUID field matches
// guid (the binary GUID read from the pong header).
func parseServerID(guid uint64, serverID string) (Response, bool) {
	parts := strings.Split(serverID, ";")
	if len(parts) < 12 {
		return Response{}, false
	}
	protocolVer, err := strconv.Atoi(parts[2])
	if err != nil {
		return Response{}, false
	}
	playerCount, err := strconv.Atoi(parts[4])
	if err != nil {
		return Response{}, false
	}
	maxPlayers, err := strconv.Atoi(parts[5])
	if err != nil {
		return Response{}, false
	}
	if parts[6] != fmt.Sprintf("%d", guid) {
		return Response{}, false
	}
	gameModeNum, err := strconv.Atoi(parts[9])
	if err != nil {
		return Response{}, false
	}
	portIPv4, err := strconv.ParseUint(parts[10], 10, 16)
	if err != nil {
		return Response{}, false
	}
	portIPv6, err := strconv.ParseUint(parts[11], 10, 16)
	if err != nil {
		return Response{}, false
	}
	var extra *string
	if rest := parts[12:]; !(len(rest) == 1 && rest[0] == "") {
		joined := strings.Join(rest, ";")
		extra = &joined
	}

	return Response{
		Edition:     parts[0],
		MOTD:        parts[1],
		ProtocolVer: protocolVer,
		Version:     parts[3],
		PlayerCount: playerCount,
		MaxPlayers:  maxPlayers,
		GUID:        guid,
		SubMOTD:     parts[7],
		GameMode:    parts[8],
		GameModeNum: gameModeNum,
		PortIPv4:    uint16(portIPv4),
		PortIPv6:    uint16(portIPv6),
		Extra:       extra,
	}, true
}
