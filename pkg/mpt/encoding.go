package mpt

// Trie keys are manipulated as sequences of nibbles, one byte per nibble,
// most significant nibble first. On disk leaf and extension nodes carry
// their key section in compact (hex-prefix) form: the first byte holds the
// leaf flag and the odd-length flag, an odd first nibble shares that byte
// and the remaining nibbles are packed two per byte.

// toNibbles unpacks key bytes into nibbles.
func toNibbles(key []byte) []byte {
	result := make([]byte, len(key)*2)
	for i, b := range key {
		result[i*2] = b >> 4
		result[i*2+1] = b & 0x0F
	}
	return result
}

// fromNibbles packs an even-length nibble sequence back into key bytes.
func fromNibbles(nibbles []byte) []byte {
	result := make([]byte, len(nibbles)/2)
	for i := range result {
		result[i] = nibbles[i*2]<<4 | nibbles[i*2+1]
	}
	return result
}

// nibblesToCompact encodes nibbles in hex-prefix form. The leaf flag
// distinguishes leaf keys from extension keys.
func nibblesToCompact(nibbles []byte, leaf bool) []byte {
	var flag byte
	if leaf {
		flag = 0x20
	}
	if len(nibbles)%2 != 0 {
		result := make([]byte, len(nibbles)/2+1)
		result[0] = flag | 0x10 | nibbles[0]
		nibbles = nibbles[1:]
		for i := 0; i < len(nibbles); i += 2 {
			result[i/2+1] = nibbles[i]<<4 | nibbles[i+1]
		}
		return result
	}
	result := make([]byte, len(nibbles)/2+1)
	result[0] = flag
	for i := 0; i < len(nibbles); i += 2 {
		result[i/2+1] = nibbles[i]<<4 | nibbles[i+1]
	}
	return result
}

// compactToNibbles decodes a hex-prefix key section, returning the nibbles
// and whether the leaf flag was set.
func compactToNibbles(compact []byte) ([]byte, bool) {
	if len(compact) == 0 {
		return nil, false
	}
	leaf := compact[0]&0x20 != 0
	nibbles := toNibbles(compact)
	if compact[0]&0x10 != 0 {
		return nibbles[1:], leaf
	}
	return nibbles[2:], leaf
}

// commonPrefix returns the length of the common prefix of a and b.
func commonPrefix(a, b []byte) int {
	var i int
	for i = 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			break
		}
	}
	return i
}
