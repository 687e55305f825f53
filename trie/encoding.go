package trie

// Hex-prefix (HP) encoding as specified in the Ethereum Yellow Paper,
// Appendix C. Nibble sequences are encoded with a prefix carrying the parity
// of the sequence length and a terminator flag distinguishing leaf keys from
// extension keys. Hex nibbles use 0x0-0xf for data and 0x10 (the terminator)
// to mark the end of a leaf key.

const terminatorNibble = 16

// hexToCompact converts a hex nibble sequence (with possible terminator) to
// compact (hex-prefix) encoding. The high nibble of the first byte carries
// the leaf flag (0x20) and the odd-length flag (0x10); for odd lengths the
// low nibble of the first byte holds the first data nibble.
func hexToCompact(hex []byte) []byte {
	terminator := byte(0)
	if hasTerm(hex) {
		terminator = 1
		hex = hex[:len(hex)-1]
	}
	buf := make([]byte, len(hex)/2+1)
	buf[0] = terminator << 5
	if len(hex)&1 == 1 {
		buf[0] |= 1 << 4
		buf[0] |= hex[0]
		hex = hex[1:]
	}
	packNibbles(hex, buf[1:])
	return buf
}

// compactToHex converts compact (hex-prefix) encoded bytes back to a hex
// nibble sequence, re-appending the terminator for leaf keys.
func compactToHex(compact []byte) []byte {
	if len(compact) == 0 {
		return compact
	}
	base := keybytesToHex(compact)
	// keybytesToHex appends a terminator nibble; HP carries its own flag.
	base = base[:len(base)-1]
	// Chop the flags nibble, plus the padding nibble for even lengths.
	chop := 2 - base[0]&1
	if base[0]&2 != 0 {
		// Leaf: restore the terminator.
		result := make([]byte, len(base)-int(chop)+1)
		copy(result, base[chop:])
		result[len(result)-1] = terminatorNibble
		return result
	}
	return base[chop:]
}

// keybytesToHex converts a raw byte key to hex nibbles with a trailing
// terminator nibble.
func keybytesToHex(str []byte) []byte {
	l := len(str)*2 + 1
	nibbles := make([]byte, l)
	for i, b := range str {
		nibbles[i*2] = b / 16
		nibbles[i*2+1] = b % 16
	}
	nibbles[l-1] = terminatorNibble
	return nibbles
}

// packNibbles packs pairs of nibbles into bytes.
func packNibbles(nibbles []byte, bytes []byte) {
	for bi, ni := 0, 0; ni < len(nibbles); bi, ni = bi+1, ni+2 {
		bytes[bi] = nibbles[ni]<<4 | nibbles[ni+1]
	}
}

// prefixLen returns the length of the common prefix of a and b.
func prefixLen(a, b []byte) int {
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	for i := 0; i < length; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return length
}

// hasTerm reports whether the hex nibble sequence ends with the terminator.
func hasTerm(s []byte) bool {
	return len(s) > 0 && s[len(s)-1] == terminatorNibble
}

// keysEqual compares two nibble sequences.
func keysEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
