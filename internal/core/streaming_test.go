package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("Date,Treatment Type")...),
			expected: "Date,Treatment Type",
		},
		{
			name:     "file without BOM",
			input:    []byte("Date,Treatment Type"),
			expected: "Date,Treatment Type",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
		{
			name:     "shorter than BOM",
			input:    []byte("ab"),
			expected: "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBOMSkippingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    string
		wantErr bool
	}{
		{name: "ascii", input: []byte("hello"), want: "hello"},
		{name: "multibyte", input: []byte("café ✨"), want: "café ✨"},
		{name: "strips BOM", input: append([]byte{0xEF, 0xBB, 0xBF}, 'x'), want: "x"},
		{name: "invalid byte", input: []byte{'h', 'e', 0x80, 'l', 'o'}, wantErr: true},
		{name: "truncated sequence", input: []byte{'a', 0xE2, 0x9C}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(tt.input)
			if tt.wantErr {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Fatalf("DecodeText() error = %v, want *ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeText_ReportsOffset(t *testing.T) {
	_, err := DecodeText([]byte{'a', 'b', 0xFF})
	if err == nil || !strings.Contains(err.Error(), "byte 2") {
		t.Errorf("error = %v, want offset 2", err)
	}
}

func TestReadText(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		text, n, err := ReadText(strings.NewReader("abc"), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "abc" || n != 3 {
			t.Errorf("got (%q, %d), want (\"abc\", 3)", text, n)
		}
	})

	t.Run("exactly at limit", func(t *testing.T) {
		if _, _, err := ReadText(strings.NewReader("abcd"), 4); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		_, _, err := ReadText(strings.NewReader("abcde"), 4)
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("error = %v, want ErrFileTooLarge", err)
		}
	})

	t.Run("no limit", func(t *testing.T) {
		input := strings.Repeat("x", 1<<16)
		text, _, err := ReadText(strings.NewReader(input), 0)
		if err != nil || len(text) != len(input) {
			t.Errorf("got len %d err %v", len(text), err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := ReadText(strings.NewReader(""), 10)
		if !errors.Is(err, ErrEmptyFile) {
			t.Errorf("error = %v, want ErrEmptyFile", err)
		}
	})

	t.Run("BOM only counts as empty", func(t *testing.T) {
		_, _, err := ReadText(bytes.NewReader([]byte{0xEF, 0xBB, 0xBF}), 10)
		if !errors.Is(err, ErrEmptyFile) {
			t.Errorf("error = %v, want ErrEmptyFile", err)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, _, err := ReadText(bytes.NewReader([]byte{0xC3, 0x28}), 10)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("error = %v, want *ParseError", err)
		}
	})
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	reader := NewCountingReader(strings.NewReader(input))

	buf := make([]byte, 100)
	totalRead := 0
	for {
		n, err := reader.Read(buf)
		totalRead += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if totalRead != len(input) {
		t.Errorf("total read = %d, want %d", totalRead, len(input))
	}
	if reader.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(input))
	}
}
