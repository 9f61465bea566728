// Package randutil centralises RNG construction so every shuffle draws
// from the same, well-seeded source family.
package randutil

import (
	crand "crypto/rand"
	"encoding/binary"
	rand "math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// NewSeeded returns a *rand.Rand seeded deterministically from seed. The
// helper derives the two 64-bit PCG seeds the same way everywhere so that
// replayed hands shuffle identically.
func NewSeeded(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// New returns a *rand.Rand seeded from the OS entropy pool. This is the
// source live tables deal from.
func New() *rand.Rand {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("randutil: entropy read failed: " + err.Error())
	}
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(b[:8]),
		binary.LittleEndian.Uint64(b[8:]),
	))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
