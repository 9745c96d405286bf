package chatdb

import (
	"bytes"
	"unicode/utf8"
)

// attributedBody extraction.
//
// Later macOS versions stop populating the plain text column for some
// messages and store the content only as an NSArchiver "streamtyped"
// archive of an NSAttributedString. There is no schema flag: a row may have
// either, both, or neither. Extraction is an ordered chain of total
// decoders, each returning (text, ok); composing them left to right keeps a
// future third encoding additive.

// streamtypedHeader opens every NSArchiver blob we care about.
var streamtypedHeader = []byte("streamtyped")

// nsStringToken marks the NSString class entry inside the archive. The
// string payload follows shortly after it.
var nsStringToken = []byte("NSString")

// stringMarker is the typedstream type code for an inline string value.
const stringMarker = 0x2B // '+'

// extractText resolves a row's text across both encodings. It never fails:
// attachment-only rows legitimately have no recoverable text.
func extractText(plain string, blob []byte) (string, bool) {
	if plain != "" {
		return plain, true
	}
	if s, ok := decodeStreamtyped(blob); ok {
		return s, true
	}
	if s, ok := scanArchiveText(blob); ok {
		return s, true
	}
	return "", false
}

// decodeStreamtyped walks a well-formed streamtyped archive: verify the
// header, locate the NSString class entry, skip the five bytes of type
// information that follow it, then read the length-prefixed UTF-8 payload.
// Lengths under 0x80 are a single byte; longer strings are flagged with
// 0x81 followed by a two-byte little-endian length.
func decodeStreamtyped(blob []byte) (string, bool) {
	if !bytes.Contains(blob, streamtypedHeader) {
		return "", false
	}
	idx := bytes.Index(blob, nsStringToken)
	if idx < 0 {
		return "", false
	}

	// Class entry is followed by: version byte, class-end marker, object
	// marker, type tag, '+' string marker.
	pos := idx + len(nsStringToken) + 5
	if pos >= len(blob) {
		return "", false
	}

	length, pos, ok := readArchiveLength(blob, pos)
	if !ok || pos+length > len(blob) {
		return "", false
	}

	payload := blob[pos : pos+length]
	if !utf8.Valid(payload) || len(payload) == 0 {
		return "", false
	}
	return string(payload), true
}

// readArchiveLength reads the typedstream length prefix at pos. Returns the
// payload length and the position just past the prefix.
func readArchiveLength(blob []byte, pos int) (int, int, bool) {
	if pos >= len(blob) {
		return 0, 0, false
	}
	b := blob[pos]
	if b == 0x81 {
		if pos+3 > len(blob) {
			return 0, 0, false
		}
		return int(blob[pos+1]) | int(blob[pos+2])<<8, pos + 3, true
	}
	if b == 0x82 {
		if pos+5 > len(blob) {
			return 0, 0, false
		}
		n := int(blob[pos+1]) | int(blob[pos+2])<<8 | int(blob[pos+3])<<16 | int(blob[pos+4])<<24
		return n, pos + 5, true
	}
	return int(b), pos + 1, true
}

// scanArchiveText is the fallback for corrupt or foreign archives: find the
// '+' string-type marker, skip its length prefix, and take the UTF-8 run
// that follows until a control byte terminates it. Lossier than the
// structured walk but tolerant of layout drift.
func scanArchiveText(blob []byte) (string, bool) {
	idx := bytes.IndexByte(blob, stringMarker)
	if idx < 0 || idx+1 >= len(blob) {
		return "", false
	}

	_, pos, ok := readArchiveLength(blob, idx+1)
	if !ok {
		return "", false
	}

	end := pos
	for end < len(blob) {
		r, size := utf8.DecodeRune(blob[end:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		if r < 0x20 && r != '\n' && r != '\t' {
			break
		}
		end += size
	}

	if end <= pos {
		return "", false
	}
	return string(blob[pos:end]), true
}
