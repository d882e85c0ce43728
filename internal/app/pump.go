package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/logsift/internal/record"
)

const (
	defaultIdleWait   = 60 * time.Second
	defaultKeyWait    = 10 * time.Millisecond
	defaultRecordWait = 100 * time.Millisecond
	defaultMaxBatch   = 100
)

// PumpOptions tune how records from background sources are batched before
// they reach the UI.
type PumpOptions struct {
	IdleWait   time.Duration // wait while nothing is pending
	KeyWait    time.Duration // wait after a keypress
	RecordWait time.Duration // wait after a record arrives
	MaxBatch   int
	Logger     *slog.Logger
}

// Pump batches record events so the UI redraws once per burst instead of
// once per line. A pending keypress shortens the wait so typing stays
// responsive while a busy source is streaming.
type Pump struct {
	opts PumpOptions
	keys chan struct{}
}

// NewPump returns a pump with defaults for any zero option.
func NewPump(opts PumpOptions) *Pump {
	if opts.IdleWait <= 0 {
		opts.IdleWait = defaultIdleWait
	}
	if opts.KeyWait <= 0 {
		opts.KeyWait = defaultKeyWait
	}
	if opts.RecordWait <= 0 {
		opts.RecordWait = defaultRecordWait
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = defaultMaxBatch
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pump{opts: opts, keys: make(chan struct{}, 1)}
}

// Keypress tells the pump the user is typing. It never blocks.
func (p *Pump) Keypress() {
	select {
	case p.keys <- struct{}{}:
	default:
	}
}

// Run reads events until the channel closes or ctx is done, handing batches
// to sink. Pending events are flushed before Run returns on a closed
// channel.
func (p *Pump) Run(ctx context.Context, events <-chan record.Event, sink func([]record.Event)) error {
	timer := time.NewTimer(p.opts.IdleWait)
	defer timer.Stop()

	var batch []record.Event
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.opts.Logger.Debug("flush records", "count", len(batch))
		sink(batch)
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, ev)
			if len(batch) >= p.opts.MaxBatch {
				flush()
				timer.Reset(p.opts.IdleWait)
				continue
			}
			if len(batch) == 1 {
				timer.Reset(p.opts.RecordWait)
			}
		case <-p.keys:
			timer.Reset(p.opts.KeyWait)
		case <-timer.C:
			flush()
			timer.Reset(p.opts.IdleWait)
		}
	}
}

// merge fans several event channels into one that closes after all of them
// have closed.
func merge(ctx context.Context, sources ...<-chan record.Event) <-chan record.Event {
	out := make(chan record.Event)
	done := make(chan struct{}, len(sources))
	for _, src := range sources {
		go func(src <-chan record.Event) {
			defer func() { done <- struct{}{} }()
			for ev := range src {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	go func() {
		for range sources {
			<-done
		}
		close(out)
	}()
	return out
}
