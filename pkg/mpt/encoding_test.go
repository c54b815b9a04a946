package mpt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToNibbles(t *testing.T) {
	testCases := []struct {
		key      []byte
		expected []byte
	}{
		{[]byte{}, []byte{}},
		{[]byte{0x12}, []byte{0x01, 0x02}},
		{[]byte{0xAB, 0xCD}, []byte{0x0A, 0x0B, 0x0C, 0x0D}},
		{[]byte{0x00, 0xF0}, []byte{0x00, 0x00, 0x0F, 0x00}},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, toNibbles(tc.key))
		require.Equal(t, tc.key, fromNibbles(tc.expected))
	}
}

func TestNibblesToCompact(t *testing.T) {
	testCases := []struct {
		nibbles  []byte
		leaf     bool
		expected []byte
	}{
		{[]byte{}, false, []byte{0x00}},
		{[]byte{}, true, []byte{0x20}},
		{[]byte{0x01, 0x02, 0x03, 0x04, 0x05}, false, []byte{0x11, 0x23, 0x45}},
		{[]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}, false, []byte{0x00, 0x01, 0x23, 0x45}},
		{[]byte{0x0F, 0x01, 0x0C, 0x0B, 0x08}, true, []byte{0x3F, 0x1C, 0xB8}},
		{[]byte{0x0F, 0x01, 0x0C, 0x0B, 0x08, 0x00}, true, []byte{0x20, 0xF1, 0xCB, 0x80}},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, nibblesToCompact(tc.nibbles, tc.leaf))

		nibbles, leaf := compactToNibbles(tc.expected)
		require.Equal(t, tc.leaf, leaf)
		if len(tc.nibbles) == 0 {
			require.Empty(t, nibbles)
		} else {
			require.Equal(t, tc.nibbles, nibbles)
		}
	}
}

func TestCompactRoundTrip(t *testing.T) {
	for length := 0; length < 16; length++ {
		nibbles := make([]byte, length)
		for i := range nibbles {
			nibbles[i] = byte(i+length) % 16
		}
		for _, leaf := range []bool{false, true} {
			got, gotLeaf := compactToNibbles(nibblesToCompact(nibbles, leaf))
			require.Equal(t, leaf, gotLeaf)
			if length == 0 {
				require.Empty(t, got)
			} else {
				require.Equal(t, nibbles, got)
			}
		}
	}
}

func TestCommonPrefix(t *testing.T) {
	require.Equal(t, 0, commonPrefix(nil, nil))
	require.Equal(t, 0, commonPrefix([]byte{1}, []byte{2}))
	require.Equal(t, 2, commonPrefix([]byte{1, 2, 3}, []byte{1, 2, 4}))
	require.Equal(t, 2, commonPrefix([]byte{1, 2}, []byte{1, 2, 4}))
	require.Equal(t, 3, commonPrefix([]byte{1, 2, 3}, []byte{1, 2, 3}))
}
