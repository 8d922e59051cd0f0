package datamodel

import (
	"encoding/binary"
	"math"

	"golang.org/x/crypto/chacha20"
)

// All randomness in the simulator (node placement, waypoint selection,
// message seeding) flows through a single chacha20 keystream, keyed from the
// configured seed.  A fixed seed therefore reproduces a run on a given
// platform; bit-identical cross-platform runs are not promised.

var key [32]byte
var nonce [12]byte
var stream *chacha20.Cipher

func Seed(seed int64) {
	key = [32]byte{}
	nonce = [12]byte{}
	binary.LittleEndian.PutUint64(key[0:], uint64(seed))

	var err error
	stream, err = chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err)
	}
}

func next64() uint64 {
	if stream == nil {
		Seed(0)
	}
	var buf [8]byte
	stream.XORKeyStream(buf[:], buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

func Float32() float32 {
	return float32(next64()&math.MaxUint32) / math.MaxUint32
}

func Float64() float64 {
	return float64(next64()) / math.MaxUint64
}

func Int() int64 {
	return int64(next64() & (1<<63 - 1))
}

func Intn(m int64) int64 {

	if m <= 0 { //a case when no randomness is needed
		return 0
	}
	return Int() % m
}

func Perm(n int) []int {
	// Create a slice of integers from 0 to n-1
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i
	}

	// Shuffle the slice using chacha20 as the PRNG
	for i := n - 1; i > 0; i-- {
		j := Intn(int64(i + 1))
		indexes[i], indexes[j] = indexes[j], indexes[i]
	}

	return indexes
}
