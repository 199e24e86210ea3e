package capture

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Decoder turns a raw frame into a code. Frames without a code are not errors.
type Decoder interface {
	Decode(frame []byte) (string, bool)
}

// LineDecoder treats each line from a hand scanner as a frame
type LineDecoder struct {
	// Prefix is a symbology identifier the scanner prepends, e.g. "]Q1".
	Prefix string
}

func (d LineDecoder) Decode(frame []byte) (string, bool) {
	frame = bytes.TrimSpace(frame)
	if d.Prefix != "" {
		frame = bytes.TrimPrefix(frame, []byte(d.Prefix))
	}
	if len(frame) == 0 || !utf8.Valid(frame) {
		return "", false
	}
	return strings.TrimSpace(string(frame)), true
}
