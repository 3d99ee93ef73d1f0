package syncdoc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushRecorder struct {
	mu     sync.Mutex
	calls  []Document
	result Document
	err    error
}

func (r *pushRecorder) push(ctx context.Context, local Document) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, local)
	if r.err != nil {
		return Document{}, r.err
	}
	return Merge(local, r.result), nil
}

func (r *pushRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *pushRecorder) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func TestPusherCoalescesRapidChanges(t *testing.T) {
	rec := &pushRecorder{}
	p := NewPusher(Document{}, rec.push, PusherConfig{Debounce: 30 * time.Millisecond})
	defer p.Close()

	for i := 0; i < 10; i++ {
		p.Update(func(d *Document) {
			if d.Progress == nil {
				d.Progress = map[string]float64{}
			}
			d.Progress["ep1"] = float64(i)
		})
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.callCount(), "rapid successive changes collapse into one push")
	assert.Equal(t, float64(9), p.Local().Progress["ep1"])
}

func TestPusherRetriesFailedPush(t *testing.T) {
	rec := &pushRecorder{}
	rec.setErr(errors.New("server unavailable"))

	var surfaced error
	var mu sync.Mutex
	p := NewPusher(Document{}, rec.push, PusherConfig{
		Debounce:         15 * time.Millisecond,
		FailureThreshold: 2,
		OnError: func(err error) {
			mu.Lock()
			surfaced = err
			mu.Unlock()
		},
	})
	defer p.Close()

	p.Update(func(d *Document) {
		d.Favorites.Podcasts = []string{"a"}
	})

	time.Sleep(80 * time.Millisecond)
	assert.GreaterOrEqual(t, rec.callCount(), 2, "failed pushes retry on the next window")
	assert.Equal(t, []string{"a"}, p.Local().Favorites.Podcasts, "local state survives failures")

	mu.Lock()
	require.Error(t, surfaced)
	mu.Unlock()
	var me *MergeError
	assert.ErrorAs(t, surfaced, &me)

	// Once the server recovers, the retry drains the dirty state.
	rec.setErr(nil)
	time.Sleep(80 * time.Millisecond)
	p.Close()
	assert.Equal(t, []string{"a"}, p.Local().Favorites.Podcasts)
}

func TestPusherSyncNow(t *testing.T) {
	rec := &pushRecorder{result: Document{Favorites: Favorites{Podcasts: []string{"server-pod"}}}}
	p := NewPusher(Document{Favorites: Favorites{Podcasts: []string{"local-pod"}}}, rec.push, PusherConfig{})
	defer p.Close()

	merged, err := p.SyncNow(context.Background())
	require.NoError(t, err)

	assert.Contains(t, merged.Favorites.Podcasts, "local-pod")
	assert.Contains(t, merged.Favorites.Podcasts, "server-pod")
	assert.Contains(t, p.Local().Favorites.Podcasts, "server-pod", "sign-in merge lands locally")
	assert.Equal(t, 1, rec.callCount())
}

func TestPusherChangeDuringFlightExtendsWindow(t *testing.T) {
	block := make(chan struct{})
	var calls int
	var mu sync.Mutex
	push := func(ctx context.Context, local Document) (Document, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			<-block
		}
		return local, nil
	}

	p := NewPusher(Document{}, push, PusherConfig{Debounce: 10 * time.Millisecond})
	defer p.Close()

	p.Update(func(d *Document) { d.Favorites.Episodes = []string{"e1"} })
	time.Sleep(30 * time.Millisecond) // first push is now blocked in flight

	p.Update(func(d *Document) { d.Favorites.Episodes = append(d.Favorites.Episodes, "e2") })
	mu.Lock()
	assert.Equal(t, 1, calls, "no concurrent second push while one is in flight")
	mu.Unlock()

	close(block)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 2, calls, "the deferred change pushes after the first completes")
	mu.Unlock()
	assert.Equal(t, []string{"e1", "e2"}, p.Local().Favorites.Episodes)
}
