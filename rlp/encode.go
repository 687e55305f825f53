package rlp

import "math/big"

// AppendString appends the RLP encoding of a byte string to buf.
func AppendString(buf []byte, data []byte) []byte {
	n := len(data)
	if n == 1 && data[0] <= 0x7f {
		return append(buf, data[0])
	}
	if n <= 55 {
		buf = append(buf, 0x80+byte(n))
		return append(buf, data...)
	}
	lenBytes := putUintBigEndian(uint64(n))
	buf = append(buf, 0xb7+byte(len(lenBytes)))
	buf = append(buf, lenBytes...)
	return append(buf, data...)
}

// AppendUint64 appends the RLP encoding of an unsigned integer to buf.
// Integers are encoded as big-endian byte strings with no leading zeros;
// zero encodes as the empty string.
func AppendUint64(buf []byte, u uint64) []byte {
	if u == 0 {
		return append(buf, 0x80)
	}
	if u < 128 {
		return append(buf, byte(u))
	}
	return AppendString(buf, putUintBigEndian(u))
}

// AppendBigInt appends the RLP encoding of a non-negative big integer to buf.
// A nil value encodes as zero.
func AppendBigInt(buf []byte, i *big.Int) []byte {
	if i == nil || i.Sign() == 0 {
		return append(buf, 0x80)
	}
	return AppendString(buf, i.Bytes())
}

// EncodeString returns the RLP encoding of a byte string.
func EncodeString(data []byte) []byte {
	return AppendString(nil, data)
}

// EncodeUint64 returns the RLP encoding of an unsigned integer.
func EncodeUint64(u uint64) []byte {
	return AppendUint64(nil, u)
}

// WrapList wraps an already-encoded RLP payload in a list header.
func WrapList(payload []byte) []byte {
	n := len(payload)
	if n <= 55 {
		buf := make([]byte, 1, 1+n)
		buf[0] = 0xc0 + byte(n)
		return append(buf, payload...)
	}
	lenBytes := putUintBigEndian(uint64(n))
	buf := make([]byte, 0, 1+len(lenBytes)+n)
	buf = append(buf, 0xf7+byte(len(lenBytes)))
	buf = append(buf, lenBytes...)
	return append(buf, payload...)
}

// EncodeList encodes a list of byte strings as an RLP list.
func EncodeList(items ...[]byte) []byte {
	var payload []byte
	for _, item := range items {
		payload = AppendString(payload, item)
	}
	return WrapList(payload)
}

// putUintBigEndian encodes u as big-endian with no leading zeros.
func putUintBigEndian(u uint64) []byte {
	b := make([]byte, 0, 8)
	for shift := 56; shift >= 0; shift -= 8 {
		if byte(u>>shift) != 0 || len(b) > 0 {
			b = append(b, byte(u>>shift))
		}
	}
	return b
}
