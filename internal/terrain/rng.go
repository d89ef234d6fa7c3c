package terrain

// RNG is a small xorshift generator. Equal seeds give equal sequences on every
// platform, which keeps generated workloads reproducible.
type RNG struct {
	state uint64
}

func NewRNG(seed int64) *RNG {
	state := uint64(seed)
	if state == 0 {
		state = 0x9e3779b97f4a7c15
	}
	return &RNG{state: state}
}

func (r *RNG) Next() uint64 {
	r.state ^= r.state << 7
	r.state ^= r.state >> 9
	r.state ^= r.state << 8
	return r.state
}

// Intn returns a value in [0, n). It returns 0 when n is not positive.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}
