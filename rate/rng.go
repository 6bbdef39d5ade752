package rate

import (
	"hash/fnv"
	"math/rand"
)

// RunKey uniquely identifies a reproducible estimation run. Two runs with
// the same RunKey and identical configuration produce identical parameter
// draws.
type RunKey int64

// RNG subsystem names. Each stage draws from its own stream, so adding
// draws to one stage never shifts the sequence seen by another.
const (
	SubsystemSource = "source"
	SubsystemLens   = "lens"
	SubsystemImage  = "image"
	SubsystemSNR    = "snr"
)

// PartitionedRNG hands out deterministically seeded random streams per
// subsystem, derived as masterSeed XOR fnv1a64(name). The same name always
// returns the same cached *rand.Rand. Not safe for concurrent use.
type PartitionedRNG struct {
	key        RunKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a RunKey.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the deterministically seeded RNG for the named
// subsystem. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.DerivedSeed(name)))
	p.subsystems[name] = rng
	return rng
}

// DerivedSeed exposes the seed a subsystem's stream starts from, for
// callers that spawn their own generators (the image solver derives one
// per worker).
func (p *PartitionedRNG) DerivedSeed(name string) int64 {
	return int64(p.key) ^ fnv1a64(name)
}

// Key returns the RunKey this PartitionedRNG was created from.
func (p *PartitionedRNG) Key() RunKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
