package syncdoc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MergeError reports a push that kept failing past the failure threshold.
// Local state is never discarded: the pusher keeps retrying on the next
// debounce window regardless.
type MergeError struct {
	Attempts int
	Err      error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("sync push failed %d times: %v", e.Attempts, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// ErrSyncInFlight is returned by SyncNow when a push is already running.
var ErrSyncInFlight = errors.New("sync already in flight")

// PushFunc uploads the local document and returns the server's merged
// result. The HTTP client behind it is the caller's concern.
type PushFunc func(ctx context.Context, local Document) (Document, error)

// PusherConfig configures a Pusher. Zero values get sane defaults.
type PusherConfig struct {
	// Debounce is how long after the last local change a push fires.
	Debounce time.Duration
	// FailureThreshold is how many consecutive failed pushes pass silently
	// before OnError is called.
	FailureThreshold int
	// OnError surfaces exhausted retries to the application. Optional.
	OnError func(error)
}

// Pusher keeps the server copy of a user's document eventually consistent
// with local state. Local mutations coalesce into one push per debounce
// window; a change arriving while a push is in flight extends the window
// instead of firing a concurrent request, so at most one push runs at a
// time. Until a push succeeds, the local document remains the source of
// truth.
type Pusher struct {
	mu       sync.Mutex
	doc      Document
	dirty    bool
	inFlight bool
	failures int
	closed   bool
	timer    *time.Timer

	debounce  time.Duration
	threshold int
	onError   func(error)
	push      PushFunc
}

// NewPusher creates a Pusher seeded with the given local document.
func NewPusher(initial Document, push PushFunc, cfg PusherConfig) *Pusher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	return &Pusher{
		doc:       initial.Clone(),
		debounce:  cfg.Debounce,
		threshold: cfg.FailureThreshold,
		onError:   cfg.OnError,
		push:      push,
	}
}

// Local returns a snapshot of the current local document.
func (p *Pusher) Local() Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Clone()
}

// Update applies a local mutation and schedules a debounced push.
func (p *Pusher) Update(mutate func(*Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mutate(&p.doc)
	p.dirty = true
	if p.inFlight || p.closed {
		// flush re-arms once the in-flight push returns.
		return
	}
	p.armLocked()
}

// SyncNow pushes immediately, bypassing the debounce. Used on sign-in to
// reconcile pre-existing local state with whatever the server already has.
func (p *Pusher) SyncNow(ctx context.Context) (Document, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return Document{}, ErrSyncInFlight
	}
	p.inFlight = true
	p.dirty = false
	snapshot := p.doc.Clone()
	p.mu.Unlock()

	merged, err := p.push(ctx, snapshot)
	p.settle(merged, err)
	if err != nil {
		return Document{}, err
	}
	return merged, nil
}

// Close stops the debounce timer. A final SyncNow is the caller's choice.
func (p *Pusher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
	}
}

func (p *Pusher) armLocked() {
	if p.timer == nil {
		p.timer = time.AfterFunc(p.debounce, p.flush)
		return
	}
	p.timer.Reset(p.debounce)
}

func (p *Pusher) flush() {
	p.mu.Lock()
	if p.inFlight || p.closed {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.dirty = false
	snapshot := p.doc.Clone()
	p.mu.Unlock()

	merged, err := p.push(context.Background(), snapshot)
	p.settle(merged, err)
}

// settle folds a push result back into local state and decides whether
// another window is needed.
func (p *Pusher) settle(merged Document, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false

	if err != nil {
		p.failures++
		// Failed pushes keep local state authoritative and retry on the
		// next window; they are never dropped.
		p.dirty = true
		if p.failures >= p.threshold && p.onError != nil {
			p.onError(&MergeError{Attempts: p.failures, Err: err})
		}
		if !p.closed {
			p.armLocked()
		}
		return
	}

	p.failures = 0
	// Current local state takes precedence over the returned merge, so a
	// mutation that landed mid-push is not rolled back; it goes out on the
	// next window.
	p.doc = Merge(merged, p.doc)
	if p.dirty && !p.closed {
		p.armLocked()
	}
}
