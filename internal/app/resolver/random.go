package resolver

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Random is the randomness a Resolver consumes: one float for the success
// roll, integers for the reward draw.
type Random interface {
	Float64() float64
	Intn(n int) int
}

// lockedRand makes a *rand.Rand safe for concurrent resolutions.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a goroutine-safe source seeded with seed.
// The same seed replays the same rolls.
func NewRandom(seed int64) Random {
	//nolint:gosec // G404: math/rand is fine for loot rolls
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}

// NewSeed generates a high-entropy seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
