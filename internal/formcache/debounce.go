package formcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/logging"
)

// DefaultDelay is the debounce window when none is configured.
const DefaultDelay = 750 * time.Millisecond

const writeTimeout = 5 * time.Second

// Writer persists one form draft.
type Writer interface {
	SaveFormData(ctx context.Context, formID string, data map[string]any) bool
}

// Debouncer coalesces rapid edits of a form into one write. Each form has
// its own window; only the last snapshot submitted in a window is written,
// when the window closes.
type Debouncer struct {
	writer Writer
	delay  time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	pending  map[string]*pendingWrite
	seq      uint64
	stopped  bool
	inFlight sync.WaitGroup
}

type pendingWrite struct {
	seq   uint64
	data  map[string]any
	timer *time.Timer
}

func NewDebouncer(writer Writer, delay time.Duration, logger *zap.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		writer:  writer,
		delay:   delay,
		logger:  logging.OrNop(logger),
		pending: make(map[string]*pendingWrite),
	}
}

// Submit schedules data as the draft of formID, superseding any snapshot
// still waiting for the same form. It reports false once the debouncer is
// stopped.
func (d *Debouncer) Submit(formID string, data map[string]any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	if prev, ok := d.pending[formID]; ok {
		prev.timer.Stop()
	}

	d.seq++
	p := &pendingWrite{seq: d.seq, data: data}
	seq := d.seq
	p.timer = time.AfterFunc(d.delay, func() { d.fire(formID, seq) })
	d.pending[formID] = p
	return true
}

// Pending reports whether a snapshot of formID is waiting to be written.
func (d *Debouncer) Pending(formID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[formID]
	return ok
}

func (d *Debouncer) fire(formID string, seq uint64) {
	d.mu.Lock()
	p, ok := d.pending[formID]
	if !ok || p.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.pending, formID)
	d.inFlight.Add(1)
	d.mu.Unlock()

	defer d.inFlight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	d.write(ctx, formID, p.data)
}

// FlushForm writes the pending snapshot of formID now, if there is one.
func (d *Debouncer) FlushForm(ctx context.Context, formID string) bool {
	d.mu.Lock()
	p, ok := d.pending[formID]
	if ok {
		p.timer.Stop()
		delete(d.pending, formID)
	}
	d.mu.Unlock()

	if !ok {
		return true
	}
	return d.write(ctx, formID, p.data)
}

// Flush writes every pending snapshot now.
func (d *Debouncer) Flush(ctx context.Context) {
	d.mu.Lock()
	drained := d.pending
	d.pending = make(map[string]*pendingWrite)
	for _, p := range drained {
		p.timer.Stop()
	}
	d.mu.Unlock()

	for formID, p := range drained {
		d.write(ctx, formID, p.data)
	}
}

// Stop flushes pending snapshots, waits for writes already running and
// rejects further submissions.
func (d *Debouncer) Stop(ctx context.Context) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.Flush(ctx)
	d.inFlight.Wait()
}

func (d *Debouncer) write(ctx context.Context, formID string, data map[string]any) bool {
	if !d.writer.SaveFormData(ctx, formID, data) {
		d.logger.Warn("debounced form write failed", zap.String("form_id", formID))
		return false
	}
	return true
}
