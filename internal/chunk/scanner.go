// Package chunk reads station;temperature lines in bulk and tokenizes them
// without allocating.
//
// data:
//
//	Tamale;27.5
//	Bergen;9.6
//	Lodwar;37.1
//	Whitehorse;-3.8
//	Ouarzazate;19.1
package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/miku/stationagg/internal/fixed"
)

const (
	// DefaultBufferSize is the size of a single bulk read buffer.
	DefaultBufferSize = 1 << 20
	// DefaultMaxLineLen fits 100 UTF-8 characters plus ";-99.9".
	DefaultMaxLineLen = 512

	maxEmptyReads = 100
)

// Options configure a Scanner. Zero values select the defaults.
type Options struct {
	BufferSize int
	MaxLineLen int
	// Buffer is used instead of allocating when it is large enough. The
	// caller must not touch it while the Scanner is in use.
	Buffer []byte
}

// Record is a single tokenized line. Name aliases the Scanner buffer and is
// only valid until the next call to Scan.
type Record struct {
	Name []byte
	Hash uint64
	Temp fixed.Temp
}

// Scanner is a single pass reader of records, similar to bufio.Scanner.
//
// The buffer holds three regions: consumed bytes before pos, complete lines
// in [pos, limit) and a leftover partial line in [limit, end).
type Scanner struct {
	r       io.Reader
	buf     []byte
	pos     int
	limit   int // one past the last '\n' in buf[:end], the safe limit
	end     int
	base    int64 // input offset of buf[0]
	eof     bool
	maxLine int
	refills int
	rec     Record
	err     error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader, opts Options) *Scanner {
	if opts.MaxLineLen <= 0 {
		opts.MaxLineLen = DefaultMaxLineLen
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	// A line never spans more than two refills.
	size := max(opts.BufferSize, 2*opts.MaxLineLen)
	buf := opts.Buffer
	if len(buf) < size {
		buf = make([]byte, size)
	}
	return &Scanner{r: r, buf: buf, maxLine: opts.MaxLineLen}
}

// Scan advances to the next record. It returns false at the end of the input
// or on the first error, which Err reports.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	if s.pos >= s.limit && !s.fill() {
		return false
	}
	if err := s.scanLine(); err != nil {
		s.err = err
		return false
	}
	return true
}

// Record returns the record found by the last successful Scan.
func (s *Scanner) Record() Record { return s.rec }

// Err returns the first non-EOF error.
func (s *Scanner) Err() error { return s.err }

// Offset returns the number of input bytes consumed so far.
func (s *Scanner) Offset() int64 { return s.base + int64(s.pos) }

// Buffer returns the buffer in use, for handing it to the next Scanner once
// this one is done.
func (s *Scanner) Buffer() []byte { return s.buf }

// Refills returns the number of reads issued.
func (s *Scanner) Refills() int { return s.refills }

// fill moves the leftover to the front of the buffer and reads until the
// buffer contains at least one complete line.
func (s *Scanner) fill() bool {
	if s.pos > 0 {
		s.end = copy(s.buf, s.buf[s.pos:s.end])
		s.base += int64(s.pos)
		s.pos, s.limit = 0, 0
	}
	for empty := 0; ; {
		if s.eof {
			if s.end == 0 {
				return false
			}
			// Final line without a trailing newline.
			s.limit = s.end
			return true
		}
		if s.end == len(s.buf) {
			s.err = s.recordError(s.buf[:s.end], ErrLineTooLong)
			return false
		}
		n, err := s.r.Read(s.buf[s.end:])
		s.end += n
		s.refills++
		switch {
		case err == io.EOF:
			s.eof = true
		case err != nil:
			s.err = fmt.Errorf("%w: read at offset %d: %w", ErrIO, s.base+int64(s.end), err)
			return false
		case n == 0:
			if empty++; empty >= maxEmptyReads {
				s.err = fmt.Errorf("%w: %w", ErrIO, io.ErrNoProgress)
				return false
			}
		}
		if i := bytes.LastIndexByte(s.buf[:s.end], '\n'); i >= 0 {
			s.limit = i + 1
			return true
		}
	}
}

// scanLine tokenizes the line at pos. The separator is searched a word at a
// time while the name hash is accumulated; fewer than eight remaining bytes
// fall back to a byte loop that produces the same hash.
func (s *Scanner) scanLine() error {
	line := s.buf[s.pos:s.limit]
	h := offset64
	sep := -1
	i := 0
	for ; i+8 <= len(line); i += 8 {
		w := binary.LittleEndian.Uint64(line[i:])
		k := indexDelim(w)
		if k == 8 {
			h = mix(h, w)
			continue
		}
		if line[i+k] != ';' {
			return s.recordError(line, ErrMissingSeparator)
		}
		if k > 0 {
			h = mix(h, w&(1<<(8*uint(k))-1))
		}
		sep = i + k
		break
	}
	if sep < 0 {
		var w uint64
		for k := 0; i+k < len(line); k++ {
			c := line[i+k]
			if c == ';' {
				sep = i + k
				break
			}
			if c == '\n' {
				break
			}
			w |= uint64(c) << (8 * k)
		}
		if sep < 0 {
			return s.recordError(line, ErrMissingSeparator)
		}
		if sep > i {
			h = mix(h, w)
		}
	}
	if sep == 0 {
		return s.recordError(line, ErrEmptyName)
	}

	num := line[sep+1:]
	next := len(line)
	if nl := bytes.IndexByte(num, '\n'); nl >= 0 {
		num = num[:nl]
		next = sep + 1 + nl + 1
	}
	if sep+1+len(num) > s.maxLine {
		return s.recordError(line, ErrLineTooLong)
	}
	t, err := fixed.Parse(num)
	if err != nil {
		return s.recordError(line, err)
	}
	s.rec = Record{Name: line[:sep], Hash: finish(h), Temp: t}
	s.pos += next
	return nil
}

func (s *Scanner) recordError(line []byte, cause error) error {
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > s.maxLine {
		line = line[:s.maxLine]
	}
	return &RecordError{Offset: s.Offset(), Line: string(line), Err: cause}
}
