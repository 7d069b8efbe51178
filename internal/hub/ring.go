package hub

import "github.com/crimson-sun/fluidity/internal/model"

// ring keeps the most recent packets up to a fixed capacity.
type ring struct {
	buf   []model.Packet
	start int
	n     int
}

func newRing(size int) *ring {
	return &ring{buf: make([]model.Packet, size)}
}

func (r *ring) push(p model.Packet) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

// snapshot returns the packets oldest first.
func (r *ring) snapshot() []model.Packet {
	out := make([]model.Packet, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *ring) len() int { return r.n }
