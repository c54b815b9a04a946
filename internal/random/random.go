// Package random contains deterministic test data helpers.
package random

import (
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
)

// Bytes returns a pseudo-random byte slice of the specified length
// produced by the given source.
func Bytes(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	r.Read(b)
	return b
}

// Hash returns a pseudo-random hash.
func Hash(r *rand.Rand) common.Hash {
	return common.BytesToHash(Bytes(r, common.HashLength))
}

// Address returns a pseudo-random address.
func Address(r *rand.Rand) common.Address {
	return common.BytesToAddress(Bytes(r, common.AddressLength))
}
