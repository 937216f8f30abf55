package core

// streaming.go prepares uploaded bytes for the CSV tokenizer.
//
//   - BOMSkippingReader: removes the UTF-8 BOM (0xEF 0xBB 0xBF) spreadsheet
//     programs add on Windows
//   - CountingReader: tracks bytes read for logging and size limits
//   - DecodeText / ReadText: reject input that is not valid UTF-8
//
// Unlike a lossy sanitizer, invalid bytes are an error here: importing a
// journal with silently replaced characters would corrupt reflections.

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const utf8BOM = "\ufeff"

// ErrFileTooLarge is returned by ReadText when the input exceeds its limit.
var ErrFileTooLarge = errors.New("file too large")

// ErrEmptyFile is returned by ReadText when the input has no bytes at all.
var ErrEmptyFile = errors.New("empty file")

// DecodeText converts raw bytes to text, dropping a leading BOM.
// Returns *ParseError when data is not valid UTF-8.
func DecodeText(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if !utf8.Valid(data) {
		return "", &ParseError{Reason: fmt.Sprintf("invalid UTF-8 near byte %d", firstInvalidByte(data))}
	}
	return string(data), nil
}

// firstInvalidByte returns the offset of the first invalid UTF-8 sequence.
func firstInvalidByte(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(data)
}

// ReadText reads at most limit bytes from r (no limit when limit <= 0),
// strips a BOM and validates UTF-8.
func ReadText(r io.Reader, limit int64) (string, int64, error) {
	counter := NewCountingReader(NewBOMSkippingReader(r))

	var src io.Reader = counter
	if limit > 0 {
		// Read one byte past the limit to detect oversize input.
		src = io.LimitReader(counter, limit+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return "", counter.BytesRead, fmt.Errorf("read input: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", counter.BytesRead, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
	}
	if len(data) == 0 {
		return "", 0, ErrEmptyFile
	}

	text, err := DecodeText(data)
	return text, counter.BytesRead, err
}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	pending    []byte // bytes read during the BOM check that were not a BOM
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		var buf [3]byte
		n, err := io.ReadFull(r.reader, buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if !(n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF) {
			r.pending = append(r.pending, buf[:n]...)
		}
		if err == io.EOF && len(r.pending) == 0 {
			return 0, io.EOF
		}
	}

	if len(r.pending) > 0 {
		copied := copy(p, r.pending)
		r.pending = r.pending[copied:]
		return copied, nil
	}

	return r.reader.Read(p)
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
