package synth

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// GenerationKey names a reproducible generation run: the same key and count always
// yield the same records.
type GenerationKey int64

// NewGenerationKey wraps a CLI or test seed.
func NewGenerationKey(seed int64) GenerationKey {
	return GenerationKey(seed)
}

const (
	// SubsystemProfile draws the latent quality of each generated company.
	// Uses the master seed directly.
	SubsystemProfile = "profile"

	// SubsystemLabels picks the human-entered spelling of enum values.
	SubsystemLabels = "labels"
)

// SubsystemPillar returns the subsystem name for one pillar's fields.
func SubsystemPillar(pillar string) string {
	return fmt.Sprintf("pillar_%s", pillar)
}

// PartitionedRNG hands out one independent stream per subsystem, so adding a field to one
// pillar does not shift the values drawn for the others. The profile stream is seeded with
// the key itself; every other stream with key XOR fnv1a64(name). Not safe for concurrent use.
type PartitionedRNG struct {
	key        GenerationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a GenerationKey.
func NewPartitionedRNG(key GenerationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the stream for name, creating it on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if stream, ok := p.subsystems[name]; ok {
		return stream
	}
	seed := int64(p.key)
	if name != SubsystemProfile {
		seed ^= fnv1a64(name)
	}
	stream := rand.New(rand.NewSource(seed))
	p.subsystems[name] = stream
	return stream
}

// Key returns the run's key.
func (p *PartitionedRNG) Key() GenerationKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
