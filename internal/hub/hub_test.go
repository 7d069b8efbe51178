package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/fluidity/internal/metric"
	"github.com/crimson-sun/fluidity/internal/model"
)

func pkt(seq uint64) model.Packet {
	return model.Packet{Sequence: seq, Site: "north", CollectorID: "gauge1"}
}

func seqs(ps []model.Packet) []uint64 {
	out := make([]uint64, len(ps))
	for i, p := range ps {
		out[i] = p.Sequence
	}
	return out
}

func TestHubBroadcast(t *testing.T) {
	h := New()
	s1 := h.Subscribe()
	s2 := h.Subscribe()
	assert.NotEqual(t, s1.ID, s2.ID)
	_, err := uuid.Parse(s1.ID)
	assert.NoError(t, err)

	h.Deliver(pkt(1))

	for _, s := range []*Session{s1, s2} {
		select {
		case p := <-s.C:
			assert.Equal(t, uint64(1), p.Sequence)
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestHistoryThenLive(t *testing.T) {
	h := New()
	h.Deliver(pkt(5))
	h.Deliver(pkt(7))

	s := h.Subscribe()
	assert.Equal(t, []uint64{5, 7}, seqs(s.History))

	h.Deliver(pkt(8))
	assert.Equal(t, uint64(8), (<-s.C).Sequence)

	hist, ok := h.HistoryFor(s.ID)
	require.True(t, ok)
	assert.Equal(t, []uint64{5, 7}, seqs(hist))
	assert.Equal(t, []uint64{5, 7, 8}, seqs(h.History()))
}

func TestHistoryBounded(t *testing.T) {
	h := New(WithHistorySize(3))
	for i := uint64(1); i <= 5; i++ {
		h.Deliver(pkt(i))
	}
	assert.Equal(t, []uint64{3, 4, 5}, seqs(h.History()))
}

func TestNoGapOrOverlapUnderConcurrency(t *testing.T) {
	h := New(WithHistorySize(10000))
	const n = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= n; i++ {
			h.Deliver(pkt(i))
		}
	}()

	time.Sleep(time.Millisecond)
	s := h.Subscribe()
	wg.Wait()
	h.Unsubscribe(s.ID)

	got := seqs(s.History)
	for p := range s.C {
		got = append(got, p.Sequence)
	}
	require.Len(t, got, n)
	for i, seq := range got {
		assert.Equal(t, uint64(i+1), seq)
	}
}

func TestSlowConsumerDrops(t *testing.T) {
	m := metric.New()
	h := New(WithBuffer(2), WithMetrics(m))
	_ = h.Subscribe()

	for i := uint64(1); i <= 5; i++ {
		h.Deliver(pkt(i))
	}
	assert.Equal(t, int64(3), h.Dropped())
	assert.Equal(t, float64(3), testutil.ToFloat64(m.HubDropped))
}

func TestUnsubscribe(t *testing.T) {
	m := metric.New()
	h := New(WithMetrics(m))
	s := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Subscribers))

	h.Unsubscribe(s.ID)
	h.Unsubscribe(s.ID)
	assert.Equal(t, 0, h.Subscribers())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Subscribers))

	_, ok := <-s.C
	assert.False(t, ok)
	_, ok = h.HistoryFor(s.ID)
	assert.False(t, ok)
}

func TestClose(t *testing.T) {
	h := New()
	s := h.Subscribe()
	h.Close()
	h.Close()

	_, ok := <-s.C
	assert.False(t, ok)

	h.Deliver(pkt(1))
	assert.Empty(t, h.History())

	late := h.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
}
