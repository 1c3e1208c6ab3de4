// Package rng provides the injectable randomness source used for bag
// shuffles and play success rolls. Nothing in the engine touches the
// ambient global generator, so seeded sources give reproducible runs.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Source supplies the two kinds of randomness the engine needs.
type Source interface {
	// Shuffle permutes n elements using the provided swap function.
	Shuffle(n int, swap func(i, j int))
	// Roll100 returns a uniform value in [0,100).
	Roll100() int
}

type mathSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a Source backed by math/rand with the given seed.
func NewSeeded(seed int64) Source {
	return &mathSource{r: rand.New(rand.NewSource(seed))}
}

// New returns a Source seeded from crypto/rand. Falls back to a fixed
// seed only if the system entropy source fails.
func New() Source {
	seed, err := NewSeed()
	if err != nil {
		seed = 1
	}
	return NewSeeded(seed)
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func (s *mathSource) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Shuffle(n, swap)
}

func (s *mathSource) Roll100() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(100)
}

// Scripted is a deterministic Source for tests: rolls are served from a
// queue and shuffles leave order unchanged. When the queue runs dry,
// Roll100 returns 99 (a guaranteed failure against any mastery below 100).
type Scripted struct {
	mu    sync.Mutex
	rolls []int
}

// NewScripted returns a Scripted source preloaded with the given rolls.
func NewScripted(rolls ...int) *Scripted {
	return &Scripted{rolls: rolls}
}

// Shuffle is a no-op; scripted sources preserve insertion order.
func (s *Scripted) Shuffle(n int, swap func(i, j int)) {}

// Roll100 pops the next scripted roll.
func (s *Scripted) Roll100() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rolls) == 0 {
		return 99
	}
	roll := s.rolls[0]
	s.rolls = s.rolls[1:]
	return roll
}

// Push appends rolls to the script.
func (s *Scripted) Push(rolls ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolls = append(s.rolls, rolls...)
}
