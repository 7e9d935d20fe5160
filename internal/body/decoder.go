package body

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// defaultCharset is used when the event carries no encoding hint.
const defaultCharset = "utf-8"

// ReadText reads all available bytes from r and converts them to text.
//
// When r implements io.Seeker the current offset is recorded, the stream is
// rewound and read from the start, and it is rewound again only if the
// original offset was the start. A stream whose cursor already moved past the
// origin is left at its end so the request body the host is still sending is
// not corrupted. Non-seekable readers are read from their current position.
//
// Failures never surface: read errors keep the bytes read so far and charset
// problems fall back to the raw bytes. A nil reader yields "".
func ReadText(r io.Reader, charset string) string {
	if r == nil {
		return ""
	}

	seeker, seekable := r.(io.Seeker)
	var prevOffset int64 = -1
	if seekable {
		offset, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			seekable = false
		} else {
			prevOffset = offset
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				seekable = false
			}
		}
	}

	raw, _ := io.ReadAll(r) //nolint:errcheck // Partial reads are decoded as-is

	if seekable && prevOffset == 0 {
		_, _ = seeker.Seek(0, io.SeekStart) //nolint:errcheck // Best effort rewind
	}

	return convertToText(raw, charset)
}

// convertToText decodes raw with the named charset.
// Unknown charsets and decoder errors return the raw bytes unchanged.
func convertToText(raw []byte, charset string) string {
	if len(raw) == 0 {
		return ""
	}

	name := strings.TrimSpace(charset)
	if name == "" {
		name = defaultCharset
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(raw)
	}
	if canonical, err := htmlindex.Name(enc); err == nil && canonical == defaultCharset {
		return string(raw)
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
