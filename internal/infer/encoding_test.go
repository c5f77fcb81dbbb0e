package infer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"ascii", []byte("a,b\n1,2\n"), EncodingUTF8},
		{"utf-8", []byte("Göteborg,Malmö\n"), EncodingUTF8},
		{"utf-8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, "a,b\n"...), EncodingUTF8},
		{"latin-1", []byte{'G', 0xF6, 't', 'e', 'b', 'o', 'r', 'g'}, EncodingLatin1},
		{"empty", nil, EncodingUTF8},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectEncoding(tt.data))
		})
	}
}

func TestDetectFileEncoding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "latin.csv")
	require.NoError(t, os.WriteFile(path, []byte{'n', 'a', 'm', 'e', '\n', 'M', 'a', 'l', 'm', 0xF6, '\n'}, 0o644))

	enc, err := DetectFileEncoding(path)
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, enc)

	_, err = DetectFileEncoding(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	bom := append([]byte{0xEF, 0xBB, 0xBF}, "Name\n"...)

	s, err := Decode(bom, "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "\ufeffName\n", s)

	s, err = Decode(bom, "utf-8-sig")
	require.NoError(t, err)
	assert.Equal(t, "Name\n", s)

	s, err = Decode([]byte{'M', 'a', 'l', 'm', 0xF6}, "latin-1")
	require.NoError(t, err)
	assert.Equal(t, "Malmö", s)

	s, err = Decode([]byte{0x80, '5'}, "windows-1252")
	require.NoError(t, err)
	assert.Equal(t, "€5", s)

	_, err = Decode([]byte{0xF6}, "utf-8")
	require.Error(t, err)

	_, err = Decode([]byte{0x81}, "cp1252")
	require.Error(t, err)

	_, err = Decode([]byte("x"), "ebcdic")
	require.Error(t, err)
}

func TestCanonicalEncoding(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"UTF8":         EncodingUTF8,
		"utf_8":        EncodingUTF8,
		"utf-8-sig":    EncodingUTF8BOM,
		"Latin1":       EncodingLatin1,
		"windows-1252": EncodingCP1252,
		"ISO-8859-1":   EncodingISO8859_1,
	} {
		got, err := CanonicalEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
