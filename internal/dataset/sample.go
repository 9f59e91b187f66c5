package dataset

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Sample picks n items without replacement. The selection depends only on
// seed, so the same seed string always yields the same sample.
func Sample[T any](items []T, seed string, n int) ([]T, error) {
	if n < 0 || n > len(items) {
		return nil, fmt.Errorf("sample size %d out of range [0, %d]", n, len(items))
	}

	sum := sha256.Sum256([]byte(seed))
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])))

	pool := make([]T, len(items))
	copy(pool, items)
	// partial Fisher-Yates: the first n slots end up holding the sample
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n], nil
}
