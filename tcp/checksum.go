package tcp

import (
	"github.com/soypat/badscan/internal/crc"
	"github.com/soypat/badscan/ipv4"
)

// CalculateIPv4Checksum computes the TCP checksum over the pseudo-header
// derived from ifrm plus this segment's header, options and payload. The
// CRC field itself (bytes 16:18) is skipped, mirroring the udp package's
// analogous helper; the caller is expected to have zeroed it beforehand.
func (tfrm Frame) CalculateIPv4Checksum(ifrm ipv4.Frame) uint16 {
	var c crc.CRC791
	ifrm.CRCWriteTCPPseudo(&c)
	c.WriteEven(tfrm.buf[0:4])   // source port, destination port
	c.AddUint32(tfrm.Seq())
	c.AddUint32(tfrm.Ack())
	c.WriteEven(tfrm.buf[12:16]) // data offset + flags, window size
	c.AddUint16(tfrm.UrgentPtr())
	c.WriteEven(tfrm.Options())
	return crc.NeverZero(c.PayloadSum16(tfrm.Payload()))
}
