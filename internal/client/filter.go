package client

import (
	"sort"
	"strings"
	"sync"

	"github.com/crimson-sun/fluidity/internal/model"
)

// Dimension is one of the two axes packets can be filtered on.
type Dimension int

const (
	DimSite Dimension = iota
	DimCollector
)

func (d Dimension) String() string {
	if d == DimCollector {
		return "collector"
	}
	return "site"
}

// Stats summarize the current filter state for display.
type Stats struct {
	Visible int `json:"visible"`
	Filters int `json:"filters"`
}

type seqSet map[uint64]struct{}

// Filter indexes packets by site and collector and computes which
// sequences the active filters leave visible. Indices only grow.
type Filter struct {
	mu               sync.Mutex
	siteIndex        map[string]seqSet
	collectorIndex   map[string]seqSet
	activeSites      map[string]struct{}
	activeCollectors map[string]struct{}
	known            seqSet
}

// NewFilter returns a Filter with no packets and no active filters.
func NewFilter() *Filter {
	return &Filter{
		siteIndex:        make(map[string]seqSet),
		collectorIndex:   make(map[string]seqSet),
		activeSites:      make(map[string]struct{}),
		activeCollectors: make(map[string]struct{}),
		known:            make(seqSet),
	}
}

// Index records p under its site and collector. Indexing the same packet
// twice changes nothing.
func (f *Filter) Index(p model.Packet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	add(f.siteIndex, p.Site, p.Sequence)
	add(f.collectorIndex, p.CollectorID, p.Sequence)
	f.known[p.Sequence] = struct{}{}
}

func add(index map[string]seqSet, key string, seq uint64) {
	s, ok := index[key]
	if !ok {
		s = make(seqSet)
		index[key] = s
	}
	s[seq] = struct{}{}
}

// ToggleSite flips the site filter and reports whether it is now active.
func (f *Filter) ToggleSite(site string) bool {
	return f.toggle(f.activeSites, site)
}

// ToggleCollector flips the collector filter and reports whether it is now active.
func (f *Filter) ToggleCollector(collector string) bool {
	return f.toggle(f.activeCollectors, collector)
}

func (f *Filter) toggle(active map[string]struct{}, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := active[key]; ok {
		delete(active, key)
		return false
	}
	active[key] = struct{}{}
	return true
}

// Set activates or clears one filter.
func (f *Filter) Set(dim Dimension, identity string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := f.activeSites
	if dim == DimCollector {
		active = f.activeCollectors
	}
	if on {
		active[identity] = struct{}{}
	} else {
		delete(active, identity)
	}
}

// Apply handles a filter link id such as "filter-site-north" or
// "clear-collector-gauge1". It reports whether the id was recognized.
func (f *Filter) Apply(id string) bool {
	dim, identity, on, ok := ParseFilterID(id)
	if !ok {
		return false
	}
	f.Set(dim, identity, on)
	return true
}

// ComputeVisible recomputes visibility from the indices and active filters.
func (f *Filter) ComputeVisible() Visibility {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computeLocked()
}

func (f *Filter) computeLocked() Visibility {
	sites := union(f.siteIndex, f.activeSites)
	collectors := union(f.collectorIndex, f.activeCollectors)

	switch {
	case len(f.activeSites) > 0 && len(f.activeCollectors) > 0:
		both := make(seqSet)
		for seq := range collectors {
			if _, ok := sites[seq]; ok {
				both[seq] = struct{}{}
			}
		}
		return only(both)
	case len(f.activeSites) > 0:
		return only(sites)
	case len(f.activeCollectors) > 0:
		return only(collectors)
	default:
		return All()
	}
}

func union(index map[string]seqSet, active map[string]struct{}) seqSet {
	out := make(seqSet)
	for key := range active {
		for seq := range index[key] {
			out[seq] = struct{}{}
		}
	}
	return out
}

// Visible reports whether seq passes the active filters.
func (f *Filter) Visible(seq uint64) bool {
	return f.ComputeVisible().Contains(seq)
}

// Stats returns the visible packet count and the number of active filters.
// With no active filter every known packet is visible.
func (f *Filter) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.computeLocked()
	s := Stats{Filters: len(f.activeSites) + len(f.activeCollectors)}
	if v.IsAll() {
		s.Visible = len(f.known)
	} else {
		s.Visible = v.Len()
	}
	return s
}

// Sites returns every indexed site, sorted.
func (f *Filter) Sites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return keys(f.siteIndex)
}

// Collectors returns every indexed collector, sorted.
func (f *Filter) Collectors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return keys(f.collectorIndex)
}

func keys(index map[string]seqSet) []string {
	out := make([]string, 0, len(index))
	for k := range index {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FilterID returns the link id that activates (on) or clears a filter.
func FilterID(dim Dimension, identity string, on bool) string {
	verb := "clear"
	if on {
		verb = "filter"
	}
	return verb + "-" + dim.String() + "-" + identity
}

// ParseFilterID splits a link id of the form
// "{filter|clear}-{site|collector}-<identity>".
func ParseFilterID(id string) (dim Dimension, identity string, on bool, ok bool) {
	verb, rest, found := strings.Cut(id, "-")
	if !found {
		return 0, "", false, false
	}
	switch verb {
	case "filter":
		on = true
	case "clear":
	default:
		return 0, "", false, false
	}
	kind, identity, found := strings.Cut(rest, "-")
	if !found || identity == "" {
		return 0, "", false, false
	}
	switch kind {
	case "site":
		dim = DimSite
	case "collector":
		dim = DimCollector
	default:
		return 0, "", false, false
	}
	return dim, identity, on, true
}
