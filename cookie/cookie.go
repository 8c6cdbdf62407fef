// Package cookie computes the stateless authentication token that lets
// the scan engine validate a reply without keeping per-target state: the
// cookie is a pure function of the 4-tuple (target IP, target port, scan
// seed, scan start time), recomputed identically on send and on receive.
package cookie

import (
	"encoding/binary"

	"github.com/soypat/badscan"
	"golang.org/x/crypto/blake2b"
)

// domain distinguishes this mixing from any other blake2b user in the
// process; arbitrary but fixed so Compute stays reproducible across runs.
var domain = [8]byte{'b', 'a', 'd', 's', 'c', 'a', 'n', '1'}

// Compute returns the deterministic cookie for target under seed and
// startMS (the scan's start time in Unix milliseconds). Two calls with
// identical arguments always return the same value; there is no secret
// or expiry, since the whole point is recomputing it from a reply alone.
//
// Grounded on the rotate-xor-add mixing idiom the teacher uses for its
// SYN cookie hash, but built on blake2b.Sum256 instead of hand-rolled
// rounds: truncated to 32 bits, which is all the wire format needs.
func Compute(target badscan.Target, seed int64, startMS int64) uint32 {
	var buf [8 + 4 + 2 + 8 + 8]byte
	copy(buf[0:8], domain[:])
	ip4 := target.IP.Unmap().As4()
	copy(buf[8:12], ip4[:])
	binary.LittleEndian.PutUint16(buf[12:14], target.Port)
	binary.LittleEndian.PutUint64(buf[14:22], uint64(seed))
	binary.LittleEndian.PutUint64(buf[22:30], uint64(startMS))

	sum := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint32(sum[0:4])
}
