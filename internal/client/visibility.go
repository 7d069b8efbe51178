package client

import "sort"

// Visibility is the result of ComputeVisible: either every packet, or an
// explicit set of sequences.
type Visibility struct {
	all bool
	set map[uint64]struct{}
}

// All is the visibility when no filter is active.
func All() Visibility { return Visibility{all: true} }

func only(set map[uint64]struct{}) Visibility { return Visibility{set: set} }

// IsAll reports whether no filter restricts visibility.
func (v Visibility) IsAll() bool { return v.all }

// Contains reports whether seq is visible.
func (v Visibility) Contains(seq uint64) bool {
	if v.all {
		return true
	}
	_, ok := v.set[seq]
	return ok
}

// Len returns the size of an explicit set; it is 0 for All.
func (v Visibility) Len() int { return len(v.set) }

// Sequences returns the explicit set in ascending order, nil for All.
func (v Visibility) Sequences() []uint64 {
	if v.all {
		return nil
	}
	out := make([]uint64, 0, len(v.set))
	for s := range v.set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
