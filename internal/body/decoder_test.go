package body

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// TestReadText tests reading upload streams with and without seeking.
func TestReadText(t *testing.T) {
	t.Parallel()

	t.Run("nil reader yields empty text", func(t *testing.T) {
		t.Parallel()
		if got := ReadText(nil, ""); got != "" {
			t.Errorf("expected empty text, got %q", got)
		}
	})

	t.Run("seekable stream at origin is rewound after reading", func(t *testing.T) {
		t.Parallel()

		r := bytes.NewReader([]byte("url=https%3A%2F%2Fexample.com"))
		got := ReadText(r, "")
		if got != "url=https%3A%2F%2Fexample.com" {
			t.Errorf("unexpected text %q", got)
		}

		offset, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			t.Fatalf("seek failed: %v", err)
		}
		if offset != 0 {
			t.Errorf("expected stream rewound to 0, got offset %d", offset)
		}
	})

	t.Run("seekable stream past origin is read in full and left at end", func(t *testing.T) {
		t.Parallel()

		payload := []byte("a=1&b=2")
		r := bytes.NewReader(payload)
		if _, err := r.Seek(3, io.SeekStart); err != nil {
			t.Fatalf("seek failed: %v", err)
		}

		got := ReadText(r, "")
		if got != "a=1&b=2" {
			t.Errorf("expected full payload, got %q", got)
		}

		offset, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			t.Fatalf("seek failed: %v", err)
		}
		if offset != int64(len(payload)) {
			t.Errorf("expected stream left at end (%d), got %d", len(payload), offset)
		}
	})

	t.Run("fully consumed seekable stream is still readable", func(t *testing.T) {
		t.Parallel()

		r := bytes.NewReader([]byte("x=1"))
		_, _ = io.ReadAll(r)

		if got := ReadText(r, ""); got != "x=1" {
			t.Errorf("expected %q, got %q", "x=1", got)
		}
	})

	t.Run("non-seekable stream reads from current position", func(t *testing.T) {
		t.Parallel()

		r := io.MultiReader(strings.NewReader("skip"), strings.NewReader("&keep=1"))
		buf := make([]byte, 4)
		if _, err := io.ReadFull(r, buf); err != nil {
			t.Fatalf("read failed: %v", err)
		}

		if got := ReadText(r, ""); got != "&keep=1" {
			t.Errorf("expected remaining bytes, got %q", got)
		}
	})

	t.Run("read error keeps partial bytes", func(t *testing.T) {
		t.Parallel()

		r := io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(errors.New("boom")))
		if got := ReadText(r, ""); got != "abc" {
			t.Errorf("expected partial text, got %q", got)
		}
	})
}

// TestConvertToText tests best-effort charset conversion.
func TestConvertToText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     []byte
		charset string
		want    string
	}{
		{
			name: "utf-8 default",
			raw:  []byte("caf\xc3\xa9"),
			want: "café",
		},
		{
			name:    "windows-1252 is converted",
			raw:     []byte("caf\xe9"),
			charset: "windows-1252",
			want:    "café",
		},
		{
			name:    "iso-8859-1 label resolves to windows-1252",
			raw:     []byte("caf\xe9"),
			charset: "ISO-8859-1",
			want:    "café",
		},
		{
			name:    "unknown charset falls back to raw bytes",
			raw:     []byte("caf\xe9"),
			charset: "x-no-such-charset",
			want:    "caf\xe9",
		},
		{
			name: "invalid utf-8 is kept as raw bytes",
			raw:  []byte{0xff, 0xfe, 'a'},
			want: "\xff\xfea",
		},
		{
			name: "empty input",
			raw:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := convertToText(tt.raw, tt.charset); got != tt.want {
				t.Errorf("convertToText() = %q, want %q", got, tt.want)
			}
		})
	}
}
