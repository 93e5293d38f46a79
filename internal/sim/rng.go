package sim

// PRNG is a deterministic uniform [0,1) generator seeded from a 32-bit
// integer. The algorithm is Mulberry32, chosen (per the design notes) for
// being tiny, fast, and bit-exact across implementations that do the
// arithmetic on unsigned 32-bit words with wraparound — which is exactly
// what Go's uint32 gives us for free. Two PRNGs constructed with the same
// seed produce the same infinite sequence of draws (P9).
type PRNG struct {
	state uint32
}

// NewPRNG seeds a generator. A non-32-bit seed is coerced by truncation,
// matching the "fails only via misuse" contract in §4.A.
func NewPRNG(seed int64) *PRNG {
	return &PRNG{state: uint32(seed)}
}

// Float64 returns the next value in [0, 1).
func (p *PRNG) Float64() float64 {
	p.state += 0x6D2B79F5
	t := p.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}
