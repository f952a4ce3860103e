package history

import "CryptoSentinel/internal/model"

// ring is a fixed-capacity FIFO of samples. Once full, each push overwrites
// the oldest entry.
type ring struct {
	buf   []model.Sample
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.Sample, capacity)}
}

func (r *ring) push(s model.Sample) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) len() int { return r.size }

// at returns the i-th oldest sample.
func (r *ring) at(i int) model.Sample {
	return r.buf[(r.start+i)%len(r.buf)]
}

func (r *ring) prices() []float64 {
	out := make([]float64, r.size)
	for i := range out {
		out[i] = r.at(i).Price
	}
	return out
}

func (r *ring) volumes() []float64 {
	out := make([]float64, r.size)
	for i := range out {
		out[i] = r.at(i).Volume
	}
	return out
}
