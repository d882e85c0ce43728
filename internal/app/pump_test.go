package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/five82/logsift/internal/record"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventsOf(lines ...string) chan record.Event {
	ch := make(chan record.Event, len(lines))
	for _, line := range lines {
		ch <- record.Event{Record: record.New(line)}
	}
	return ch
}

func TestPump_FlushesOnCapAndClose(t *testing.T) {
	events := eventsOf("1", "2", "3", "4", "5", "6", "7")
	close(events)

	p := NewPump(PumpOptions{IdleWait: time.Hour, RecordWait: time.Hour, MaxBatch: 3, Logger: quietLogger()})
	var sizes []int
	if err := p.Run(context.Background(), events, func(batch []record.Event) {
		sizes = append(sizes, len(batch))
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(sizes) != 3 || sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Fatalf("batch sizes = %v, want [3 3 1]", sizes)
	}
}

func TestPump_FlushesAfterRecordWait(t *testing.T) {
	events := eventsOf("a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPump(PumpOptions{IdleWait: time.Hour, RecordWait: 5 * time.Millisecond, Logger: quietLogger()})
	got := make(chan int, 1)
	go func() {
		_ = p.Run(ctx, events, func(batch []record.Event) { got <- len(batch) })
	}()

	select {
	case n := <-got:
		if n != 2 {
			t.Fatalf("batch size = %d, want 2", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no batch delivered while the source stayed open")
	}
}

func TestPump_KeypressDoesNotBlock(t *testing.T) {
	p := NewPump(PumpOptions{})
	for i := 0; i < 10; i++ {
		p.Keypress()
	}
	if p.opts.MaxBatch != defaultMaxBatch || p.opts.IdleWait != defaultIdleWait {
		t.Fatalf("defaults not applied: %+v", p.opts)
	}
}

func TestPump_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPump(PumpOptions{Logger: quietLogger()})
	err := p.Run(ctx, make(chan record.Event), func([]record.Event) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

func TestMerge_ClosesAfterAllSources(t *testing.T) {
	a := eventsOf("a1", "a2")
	b := eventsOf("b1")
	close(a)
	close(b)

	count := 0
	for range merge(context.Background(), a, b) {
		count++
	}
	if count != 3 {
		t.Fatalf("merged %d events, want 3", count)
	}
}
