package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crimson-sun/fluidity/internal/model"
)

type mockOutput struct {
	mu      sync.Mutex
	packets []model.Packet
	closed  bool
	err     error         // if set, Write returns this
	delay   time.Duration // if >0, Write sleeps first
}

func (m *mockOutput) Write(_ context.Context, p model.Packet) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	m.packets = append(m.packets, p)
	m.mu.Unlock()
	return m.err
}

func (m *mockOutput) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockOutput) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packets)
}

func testPacket(seq uint64) model.Packet {
	return model.Packet{Sequence: seq, Site: "north", CollectorID: "gauge1"}
}

func TestPacketsFlowThroughInOrder(t *testing.T) {
	inner := &mockOutput{}
	a := New(inner, WithBufferSize(16))

	for i := uint64(1); i <= 10; i++ {
		if err := a.Write(context.Background(), testPacket(i)); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if inner.count() != 10 {
		t.Fatalf("got %d packets, want 10", inner.count())
	}
	for i, p := range inner.packets {
		if p.Sequence != uint64(i+1) {
			t.Fatalf("packet %d has seq %d, order not preserved", i, p.Sequence)
		}
	}
	if !inner.closed {
		t.Error("inner output not closed")
	}
}

func TestBackpressureBlocks(t *testing.T) {
	inner := &mockOutput{delay: 50 * time.Millisecond}
	a := New(inner, WithBufferSize(1))

	a.Write(context.Background(), testPacket(1))

	done := make(chan struct{})
	go func() {
		a.Write(context.Background(), testPacket(2))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Write blocked indefinitely (expected eventual unblock via drain)")
	}

	a.Close()
}

func TestDropOnFull(t *testing.T) {
	inner := &mockOutput{delay: 100 * time.Millisecond}
	a := New(inner, WithBufferSize(1), WithDropOnFull())

	for i := uint64(1); i <= 20; i++ {
		a.Write(context.Background(), testPacket(i))
	}

	a.Close()

	if inner.count() == 20 {
		t.Error("expected some packets to be dropped in drop-on-full mode")
	}
	if inner.count() == 0 {
		t.Error("expected at least some packets to be delivered")
	}
}

func TestErrorCallbackInvoked(t *testing.T) {
	inner := &mockOutput{err: errors.New("connection refused")}
	var errorCount atomic.Int64
	a := New(inner, WithBufferSize(16), WithOnError(func(err error) {
		errorCount.Add(1)
	}))

	for i := uint64(1); i <= 5; i++ {
		a.Write(context.Background(), testPacket(i))
	}
	a.Close()

	if errorCount.Load() != 5 {
		t.Errorf("error callback called %d times, want 5", errorCount.Load())
	}
}

func TestWriteAfterClose(t *testing.T) {
	a := New(&mockOutput{}, WithBufferSize(4))
	a.Close()

	if err := a.Write(context.Background(), testPacket(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write after Close = %v, want ErrClosed", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestNoGoroutineLeakAfterClose(t *testing.T) {
	a := New(&mockOutput{}, WithBufferSize(16))
	a.Write(context.Background(), testPacket(1))
	a.Close()

	select {
	case <-a.done:
	case <-time.After(time.Second):
		t.Fatal("drain goroutine did not exit after Close")
	}
}
