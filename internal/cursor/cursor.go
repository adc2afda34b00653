package cursor

import (
	"bytes"
	"errors"
)

var ErrLineTooLong = errors.New("line is too long")

// Cursor accumulates bytes fed from the socket and lets the parsers consume
// them line by line or by length. Everything returned by the reading methods
// stays valid only until the next Feed call.
type Cursor struct {
	data    []byte
	offset  int
	maxLine int
}

// New returns a cursor which refuses to keep more than maxLine bytes without
// a line terminator once ReadLine was called. Zero disables the check.
func New(maxLine int) *Cursor {
	return &Cursor{maxLine: maxLine}
}

// Feed appends a copy of data.
func (c *Cursor) Feed(data []byte) {
	if len(data) == 0 {
		return
	}

	if c.offset == len(c.data) {
		c.data = c.data[:0]
		c.offset = 0
	} else if c.offset > 0 && c.offset >= cap(c.data)/2 {
		n := copy(c.data, c.data[c.offset:])
		c.data = c.data[:n]
		c.offset = 0
	}

	c.data = append(c.data, data...)
}

// ReadLine consumes bytes through the next LF and returns the line without
// its terminator. A trailing CR is stripped as well.
func (c *Cursor) ReadLine() (line []byte, ok bool, err error) {
	pending := c.data[c.offset:]
	lf := bytes.IndexByte(pending, '\n')
	if lf == -1 {
		if c.maxLine > 0 && len(pending) > c.maxLine {
			return nil, false, ErrLineTooLong
		}

		return nil, false, nil
	}

	line = pending[:lf]
	c.offset += lf + 1
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	if c.maxLine > 0 && len(line) > c.maxLine {
		return nil, false, ErrLineTooLong
	}

	return line, true, nil
}

// Read consumes exactly n bytes. If fewer are buffered, nothing is consumed.
func (c *Cursor) Read(n int) ([]byte, bool) {
	if c.Len() < n {
		return nil, false
	}

	data := c.data[c.offset : c.offset+n]
	c.offset += n

	return data, true
}

// Next consumes up to n bytes.
func (c *Cursor) Next(n int) []byte {
	if l := c.Len(); n > l {
		n = l
	}

	data := c.data[c.offset : c.offset+n]
	c.offset += n

	return data
}

// ReadAll consumes everything buffered.
func (c *Cursor) ReadAll() []byte {
	return c.Next(c.Len())
}

// Bytes returns buffered bytes without consuming them.
func (c *Cursor) Bytes() []byte {
	return c.data[c.offset:]
}

func (c *Cursor) Discard(n int) {
	c.Next(n)
}

func (c *Cursor) Len() int {
	return len(c.data) - c.offset
}

func (c *Cursor) Reset() {
	c.data = c.data[:0]
	c.offset = 0
}
