package subtitle

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeTrack converts raw subtitle bytes into UTF-8 text. UTF-16 tracks
// carrying a byte order mark are transcoded and a UTF-8 BOM is stripped.
// Anything that does not decode to valid text fails with ErrMalformedTrack;
// content-level oddities are left for the parser's tolerance policy.
func DecodeTrack(raw []byte) (string, error) {
	if hasUTF16BOM(raw) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedTrack, err)
		}
		return string(out), nil
	}
	text := bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(text) || bytes.IndexByte(text, 0) >= 0 {
		return "", ErrMalformedTrack
	}
	return string(text), nil
}

func hasUTF16BOM(raw []byte) bool {
	if len(raw) < 2 {
		return false
	}
	return (raw[0] == 0xFF && raw[1] == 0xFE) || (raw[0] == 0xFE && raw[1] == 0xFF)
}
