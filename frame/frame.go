// Package frame implements the length-prefixed frame header this
// module's TCP substrate attaches to every payload (spec.md §4.11): a
// 4-byte little-endian length ahead of the payload. Grounded on the
// length-prefix encode/decode idiom in the teacher's (now-removed)
// protocol/ttheader/encode.go and decode.go — reading a uint32 length
// header and validating bounds before trusting the payload — reduced
// from TTHeader's full header (magic/flags/seqid/transforms) to the
// spec's plain `len:u32 little-endian | payload` wire format.
//
// Buffering, and the one-byte-at-a-time resync walk spec.md §4.11 calls
// for, both live in tcp.Particle, driven off bufiox.Reader's
// Peek/Skip/Next: this package only encodes and validates header bytes,
// it does not own a buffer of its own.
package frame

import (
	"encoding/binary"

	"github.com/particlenet/particle/xerr"
)

// HeaderSize is the length-prefix width: 4 bytes, little-endian.
const HeaderSize = 4

// Mode selects how a dispatched payload view is delivered.
type Mode int

const (
	// ZeroCopy dispatches a view directly into the bufiox reader's
	// buffer. The view is valid only for the duration of the callback
	// that receives it — copy it if it needs to outlive the call.
	ZeroCopy Mode = iota
	// CopyOnDispatch copies every payload into a freshly obtained buffer
	// (via xbytes) before dispatch, so the callback may retain it beyond
	// its own return — the caller is responsible for releasing it with
	// xbytes.Put if it wants the buffer recycled.
	CopyOnDispatch
)

// EncodeHeader writes n's length prefix into hdr. hdr must have length
// at least HeaderSize.
func EncodeHeader(hdr []byte, n int) {
	binary.LittleEndian.PutUint32(hdr, uint32(n))
}

// DecodeHeader validates and returns the payload length encoded in hdr.
// A length that is "≤ 0 or greater than a configured maximum" (spec.md
// §4.11) is reported as an error rather than panicking — the caller
// resyncs by walking the stream one byte at a time until a valid header
// reappears.
func DecodeHeader(hdr []byte, maxFrame int) (int, error) {
	n := int32(binary.LittleEndian.Uint32(hdr))
	if n <= 0 || int(n) > maxFrame {
		return 0, xerr.New(xerr.KindProtocol, "frame.DecodeHeader: invalid length")
	}
	return int(n), nil
}
