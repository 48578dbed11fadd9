package sdruntime

import (
	"crypto/rand"
	"encoding/binary"
)

// DefaultSeed is the fixed seed used for every generation unless a caller
// overrides it. A fixed seed makes identical requests reproduce the same
// image, which matters when a practitioner re-runs a simulation.
const DefaultSeed int64 = 42

// ResolveSeed returns the seed to use for a generation: negative values
// request a random seed, everything else passes through unchanged.
func ResolveSeed(seed int64) int64 {
	if seed < 0 {
		return RandomSeed()
	}
	return seed
}

// RandomSeed generates a non-negative random seed using crypto/rand.
func RandomSeed() int64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// crypto/rand failing is effectively impossible; falling back to
		// the default keeps generation working instead of panicking.
		return DefaultSeed
	}

	seed := int64(binary.LittleEndian.Uint64(buf[:]))
	if seed < 0 {
		seed = -seed
	}
	if seed < 0 { // -MinInt64 stays negative
		seed = 0
	}
	return seed
}
