package infer

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported in analysis results.
const (
	EncodingUTF8      = "utf-8"
	EncodingUTF8BOM   = "utf-8-sig"
	EncodingLatin1    = "latin-1"
	EncodingCP1252    = "cp1252"
	EncodingISO8859_1 = "iso-8859-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EncodingCandidates is the fixed detection order.
var EncodingCandidates = []string{
	EncodingUTF8,
	EncodingUTF8BOM,
	EncodingLatin1,
	EncodingCP1252,
	EncodingISO8859_1,
}

// cp1252Undefined are the bytes Windows-1252 leaves unassigned.
var cp1252Undefined = [256]bool{0x81: true, 0x8D: true, 0x8F: true, 0x90: true, 0x9D: true}

// DetectEncoding returns the first candidate that decodes all of data.
//
// A UTF-8 BOM does not change the answer: BOM-prefixed UTF-8 is still valid
// UTF-8, so "utf-8" is reported and callers strip the BOM themselves. Latin-1
// accepts every byte, so the utf-8 fallback at the end is only reached for
// encodings added to EncodingCandidates later.
func DetectEncoding(data []byte) string {
	for _, name := range EncodingCandidates {
		if decodes(data, name) {
			return name
		}
	}
	return EncodingUTF8
}

// DetectFileEncoding reads path fully and runs DetectEncoding over it.
func DetectFileEncoding(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DetectEncoding(data), nil
}

// Decode converts data from the named encoding into a Go string.
//
// "utf-8-sig" drops a leading BOM; "utf-8" keeps it so callers can report it.
// Invalid input for a strict encoding is an error rather than replacement
// characters.
func Decode(data []byte, name string) (string, error) {
	canon, err := CanonicalEncoding(name)
	if err != nil {
		return "", err
	}
	if !decodes(data, canon) {
		return "", fmt.Errorf("decode %s: invalid byte sequence", canon)
	}

	switch canon {
	case EncodingUTF8:
		return string(data), nil
	case EncodingUTF8BOM:
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}

	out, _, err := transform.Bytes(decoderFor(canon).NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", canon, err)
	}
	return string(out), nil
}

// CanonicalEncoding maps user-supplied spellings ("UTF8", "latin1",
// "windows-1252") onto the candidate names.
func CanonicalEncoding(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	switch n {
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "utf-8-sig", "utf8-sig", "utf-8-bom":
		return EncodingUTF8BOM, nil
	case "latin-1", "latin1", "l1":
		return EncodingLatin1, nil
	case "cp1252", "windows-1252":
		return EncodingCP1252, nil
	case "iso-8859-1", "iso8859-1":
		return EncodingISO8859_1, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
}

func decodes(data []byte, name string) bool {
	switch name {
	case EncodingUTF8, EncodingUTF8BOM:
		return utf8.Valid(data)
	case EncodingLatin1, EncodingISO8859_1:
		return true
	case EncodingCP1252:
		for _, b := range data {
			if cp1252Undefined[b] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func decoderFor(name string) encoding.Encoding {
	switch name {
	case EncodingCP1252:
		return charmap.Windows1252
	case EncodingLatin1, EncodingISO8859_1:
		return charmap.ISO8859_1
	default:
		return unicode.UTF8
	}
}
