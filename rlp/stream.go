// Package rlp implements the Recursive Length Prefix encoding used by the
// canonical header and trie node formats. Decoding treats its input as
// untrusted: every declared length is range-checked before use and
// non-canonical encodings are rejected rather than normalised.
package rlp

import "math/big"

// Kind represents the type of an RLP value.
type Kind int

const (
	Byte   Kind = iota // single byte in [0x00, 0x7f]
	String             // RLP string (including empty string)
	List               // RLP list
)

// Stream provides sequential access to RLP-encoded data. List/ListEnd scope
// reads to the current list; Bytes/Uint64/BigInt read one item each.
type Stream struct {
	data  []byte
	pos   int
	stack []int // exclusive end positions of open lists
}

// NewStream creates a stream over the given encoded bytes.
func NewStream(data []byte) *Stream {
	return &Stream{data: data}
}

// limit returns the current read boundary.
func (s *Stream) limit() int {
	if len(s.stack) > 0 {
		return s.stack[len(s.stack)-1]
	}
	return len(s.data)
}

// readItem reads one complete RLP item and returns its kind and payload.
// For single bytes in [0x00, 0x7f] the payload is the byte itself.
func (s *Stream) readItem() (Kind, []byte, error) {
	lim := s.limit()
	if s.pos >= lim {
		return 0, nil, ErrEOL
	}
	prefix := s.data[s.pos]

	switch {
	case prefix <= 0x7f:
		payload := s.data[s.pos : s.pos+1]
		s.pos++
		return Byte, payload, nil

	case prefix <= 0xb7:
		// Short string: 0-55 bytes.
		size := int(prefix - 0x80)
		start := s.pos + 1
		if start+size > lim {
			return 0, nil, ErrTruncated
		}
		if size == 1 && s.data[start] <= 0x7f {
			return 0, nil, ErrCanonSize
		}
		s.pos = start + size
		return String, s.data[start : start+size], nil

	case prefix <= 0xbf:
		// Long string.
		payload, err := s.readLongPayload(prefix-0xb7, lim)
		if err != nil {
			return 0, nil, err
		}
		return String, payload, nil

	case prefix <= 0xf7:
		// Short list.
		size := int(prefix - 0xc0)
		start := s.pos + 1
		if start+size > lim {
			return 0, nil, ErrTruncated
		}
		s.pos = start + size
		return List, s.data[start : start+size], nil

	default:
		// Long list.
		payload, err := s.readLongPayload(prefix-0xf7, lim)
		if err != nil {
			return 0, nil, err
		}
		return List, payload, nil
	}
}

// readLongPayload reads the payload of a long-form string or list whose
// size field occupies lenOfLen bytes after the prefix at s.pos.
func (s *Stream) readLongPayload(lenOfLen byte, lim int) ([]byte, error) {
	n := int(lenOfLen)
	if s.pos+1+n > lim {
		return nil, ErrTruncated
	}
	sizeBytes := s.data[s.pos+1 : s.pos+1+n]
	if sizeBytes[0] == 0 {
		return nil, ErrCanonInt
	}
	size, ok := toSize(sizeBytes)
	if !ok {
		return nil, ErrUint64Range
	}
	if size <= 55 {
		return nil, ErrNonCanonicalSize
	}
	start := s.pos + 1 + n
	if start+size > lim || start+size < start {
		return nil, ErrTruncated
	}
	s.pos = start + size
	return s.data[start : start+size], nil
}

// Bytes reads an RLP string value and returns its payload.
func (s *Stream) Bytes() ([]byte, error) {
	kind, payload, err := s.readItem()
	if err != nil {
		return nil, err
	}
	if kind == List {
		return nil, ErrExpectedString
	}
	return payload, nil
}

// Uint64 reads an RLP-encoded unsigned integer.
func (s *Stream) Uint64() (uint64, error) {
	b, err := s.Bytes()
	if err != nil {
		return 0, err
	}
	switch {
	case len(b) == 0:
		return 0, nil
	case len(b) > 8:
		return 0, ErrUint64Range
	case len(b) > 1 && b[0] == 0:
		return 0, ErrCanonInt
	}
	var val uint64
	for _, x := range b {
		val = val<<8 | uint64(x)
	}
	return val, nil
}

// BigInt reads an RLP-encoded big integer.
func (s *Stream) BigInt() (*big.Int, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	if len(b) > 1 && b[0] == 0 {
		return nil, ErrCanonInt
	}
	return new(big.Int).SetBytes(b), nil
}

// List enters the next RLP list. Subsequent reads are scoped to the list
// until ListEnd is called. Returns the payload size in bytes.
func (s *Stream) List() (int, error) {
	saved := s.pos
	kind, payload, err := s.readItem()
	if err != nil {
		return 0, err
	}
	if kind != List {
		s.pos = saved
		return 0, ErrExpectedList
	}
	// Rewind into the payload: readItem advanced past the whole item.
	end := s.pos
	s.pos = end - len(payload)
	s.stack = append(s.stack, end)
	return len(payload), nil
}

// ListEnd leaves the current list, verifying all items have been read.
func (s *Stream) ListEnd() error {
	if len(s.stack) == 0 {
		return ErrExpectedList
	}
	end := s.stack[len(s.stack)-1]
	if s.pos != end {
		return ErrEOL
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// AtListEnd reports whether all items of the current list have been read.
func (s *Stream) AtListEnd() bool {
	return s.pos >= s.limit()
}

// toSize converts big-endian size bytes to an int, rejecting overflow.
func toSize(b []byte) (int, bool) {
	if len(b) > 8 {
		return 0, false
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	if v > uint64(int(^uint(0)>>1)) {
		return 0, false
	}
	return int(v), true
}

// SplitList splits a top-level RLP list into its raw element encodings.
// String elements are returned as their payload; nested lists are returned
// as their full encoding (header included) so callers can recurse into
// embedded structures, the form trie node decoding relies on.
func SplitList(data []byte) ([][]byte, error) {
	s := NewStream(data)
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var elems [][]byte
	for !s.AtListEnd() {
		start := s.pos
		kind, payload, err := s.readItem()
		if err != nil {
			return nil, err
		}
		if kind == List {
			elems = append(elems, s.data[start:s.pos])
		} else {
			elems = append(elems, payload)
		}
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return elems, nil
}
