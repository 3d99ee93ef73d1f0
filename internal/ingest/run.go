package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"podcastdir/internal/db"
	"podcastdir/internal/feed"
	"podcastdir/internal/fetch"
	"podcastdir/internal/registry"
)

// Status is the state of one feed's cycle within a run.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusFetching    Status = "FETCHING"
	StatusParsing     Status = "PARSING"
	StatusReconciling Status = "RECONCILING"
	StatusDone        Status = "DONE"
	StatusSkipped     Status = "SKIPPED"
	StatusFailed      Status = "FAILED"
)

// validTransitions is the per-feed state machine. Failure isolation depends
// on every feed ending in exactly one terminal state, so transitions are
// checked rather than assumed.
var validTransitions = map[Status][]Status{
	StatusPending:     {StatusFetching, StatusSkipped},
	StatusFetching:    {StatusParsing, StatusSkipped, StatusFailed},
	StatusParsing:     {StatusReconciling, StatusFailed},
	StatusReconciling: {StatusDone, StatusFailed},
}

// Terminal reports whether a status ends the cycle.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusSkipped || s == StatusFailed
}

// Cycle records the outcome of one feed within a run.
type Cycle struct {
	Feed      registry.Feed
	Status    Status
	Unchanged bool
	Err       error
	Inserted  int
	Updated   int
}

func (c *Cycle) transition(next Status) {
	for _, allowed := range validTransitions[c.Status] {
		if next == allowed {
			c.Status = next
			return
		}
	}
	panic(fmt.Sprintf("invalid feed cycle transition %s -> %s", c.Status, next))
}

func (c *Cycle) fail(err error) {
	c.Err = err
	c.transition(StatusFailed)
}

// Summary is the externally observable result of a run. A run that finished
// with failed feeds is still a successful run; failures are reported here,
// not as a process exit code.
type Summary struct {
	Total           int
	Processed       int
	Skipped         int
	Failed          int
	NewEpisodes     int
	UpdatedEpisodes int
}

func (s *Summary) String() string {
	return fmt.Sprintf("processed=%d skipped=%d failed=%d new_episodes=%d updated_episodes=%d",
		s.Processed, s.Skipped, s.Failed, s.NewEpisodes, s.UpdatedEpisodes)
}

// Options configures a run.
type Options struct {
	// Concurrency is the worker pool size; each worker runs one feed's full
	// cycle before taking the next.
	Concurrency  int
	FetchTimeout time.Duration
	MaxFeedBytes int64

	// DailyOnly restricts the run to feeds with the daily cadence flag.
	DailyOnly bool
	// ActiveOnly skips known feeds whose newest stored episode is older than
	// ActiveDays. A long-silent feed is treated as complete; feeds never
	// ingested before are always fetched.
	ActiveOnly bool
	ActiveDays int
	// Force ignores stored validators and re-fetches every feed in full.
	Force bool
	// ForceWindow re-fetches without validators any feed whose last attempt
	// is this recent; a very fresh last_refreshed usually means the previous
	// run was interrupted mid-feed.
	ForceWindow time.Duration

	// PerOriginSlots caps concurrent fetches against one host and
	// PerOriginInterval spaces them out, so a publisher hosting many feeds
	// is never hammered.
	PerOriginSlots    int
	PerOriginInterval time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Concurrency < 1 {
		out.Concurrency = 1
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = 20 * time.Second
	}
	if out.MaxFeedBytes <= 0 {
		out.MaxFeedBytes = 10 << 20
	}
	if out.ForceWindow <= 0 {
		out.ForceWindow = 10 * time.Minute
	}
	if out.ActiveDays < 1 {
		out.ActiveDays = 60
	}
	if out.PerOriginSlots < 1 {
		out.PerOriginSlots = 2
	}
	if out.PerOriginInterval <= 0 {
		out.PerOriginInterval = 500 * time.Millisecond
	}
	return out
}

// originLimiter bounds in-flight fetches per origin host and enforces a
// minimum interval between them.
type originLimiter struct {
	mu       sync.Mutex
	origins  map[string]*origin
	slots    int
	interval time.Duration
}

type origin struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

func newOriginLimiter(slots int, interval time.Duration) *originLimiter {
	return &originLimiter{
		origins:  make(map[string]*origin),
		slots:    slots,
		interval: interval,
	}
}

func (l *originLimiter) get(host string) *origin {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.origins[host]
	if !ok {
		o = &origin{
			sem:     make(chan struct{}, l.slots),
			limiter: rate.NewLimiter(rate.Every(l.interval), 1),
		}
		l.origins[host] = o
	}
	return o
}

func (l *originLimiter) acquire(ctx context.Context, host string) error {
	o := l.get(host)
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := o.limiter.Wait(ctx); err != nil {
		<-o.sem
		return err
	}
	return nil
}

func (l *originLimiter) release(host string) {
	<-l.get(host).sem
}

func originHost(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Host
}

// Runner executes ingestion runs. Feeds are independent; the only shared
// resources are the database pool and per-origin HTTP budgets.
type Runner struct {
	opts    Options
	fetcher *fetch.Fetcher
	limiter *originLimiter
	logger  *logrus.Logger
}

func NewRunner(opts Options, logger *logrus.Logger) *Runner {
	opts = (&opts).withDefaults()
	return &Runner{
		opts:    opts,
		fetcher: fetch.New(opts.FetchTimeout, opts.MaxFeedBytes),
		limiter: newOriginLimiter(opts.PerOriginSlots, opts.PerOriginInterval),
		logger:  logger,
	}
}

// Run processes every feed to a terminal state through a bounded worker
// pool. Cancelling the context stops dispatching new feeds; in-flight
// cycles finish (their transaction commits or rolls back, never half of
// either). Returns the summary and ctx.Err if the run was cut short.
func (r *Runner) Run(ctx context.Context, feeds []registry.Feed) (*Summary, error) {
	summary := &Summary{Total: len(feeds)}
	if len(feeds) == 0 {
		return summary, nil
	}

	r.logger.WithFields(logrus.Fields{
		"feeds":       len(feeds),
		"concurrency": r.opts.Concurrency,
		"daily_only":  r.opts.DailyOnly,
	}).Info("Starting ingestion run")

	feedCh := make(chan registry.Feed)
	cycleCh := make(chan *Cycle, len(feeds))

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range feedCh {
				cycleCh <- r.runFeed(ctx, f)
			}
		}()
	}

	go func() {
		defer close(feedCh)
		for _, f := range feeds {
			select {
			case feedCh <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(cycleCh)
	}()

	for c := range cycleCh {
		switch c.Status {
		case StatusDone:
			summary.Processed++
			summary.NewEpisodes += c.Inserted
			summary.UpdatedEpisodes += c.Updated
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			summary.Failed++
		}
	}

	r.logger.WithField("summary", summary.String()).Info("Ingestion run finished")
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// runFeed drives a single feed through the state machine. Every error path
// ends in Failed for this feed alone; nothing here aborts the run.
func (r *Runner) runFeed(ctx context.Context, f registry.Feed) *Cycle {
	c := &Cycle{Feed: f, Status: StatusPending}
	log := r.logger.WithField("feed_url", f.URL)

	if r.opts.DailyOnly && !f.Daily {
		c.transition(StatusSkipped)
		return c
	}

	c.transition(StatusFetching)

	var etag, lastModified string
	if !r.opts.Force {
		state, err := db.GetFetchState(f.URL)
		if err != nil {
			c.fail(err)
			log.WithError(err).Error("Failed to read fetch state")
			return c
		}
		if state != nil {
			if r.opts.ActiveOnly {
				latest, err := db.LatestEpisodePubDate(state.ID)
				if err != nil {
					c.fail(err)
					log.WithError(err).Error("Failed to read newest episode date")
					return c
				}
				if latest != nil && time.Since(*latest) > time.Duration(r.opts.ActiveDays)*24*time.Hour {
					log.Debug("Newest episode is stale, treating feed as complete")
					c.transition(StatusSkipped)
					return c
				}
			}
			interrupted := state.LastRefreshed != nil && time.Since(*state.LastRefreshed) < r.opts.ForceWindow
			if interrupted {
				log.Debug("Last attempt was very recent, re-fetching without validators")
			} else {
				if state.ETag != nil {
					etag = *state.ETag
				}
				if state.LastModified != nil {
					lastModified = *state.LastModified
				}
			}
		}
	}

	host := originHost(f.URL)
	if err := r.limiter.acquire(ctx, host); err != nil {
		c.fail(err)
		return c
	}
	res, err := r.fetcher.Fetch(ctx, f.URL, etag, lastModified)
	r.limiter.release(host)

	if err != nil {
		c.fail(err)
		var fe *fetch.Error
		if errors.As(err, &fe) && fe.Transient {
			log.WithError(err).Warn("Transient fetch failure, feed will retry next run")
		} else {
			log.WithError(err).Error("Permanent fetch failure")
		}
		return c
	}

	if res.NotModified {
		// Unchanged feed: no parse, no episode writes, but the attempt is
		// still recorded.
		if err := db.TouchLastRefreshed(f.URL); err != nil {
			c.fail(err)
			return c
		}
		c.Unchanged = true
		c.transition(StatusSkipped)
		return c
	}

	c.transition(StatusParsing)
	meta, episodes, err := feed.Parse(res.Body, f.Genre, log)
	if err != nil {
		c.fail(err)
		log.WithError(err).Error("Feed failed to parse")
		return c
	}

	c.transition(StatusReconciling)
	result, err := ReconcileFeed(f.URL, meta, episodes, res.ETag, res.LastModified)
	if err != nil {
		c.fail(err)
		log.WithError(err).Error("Reconcile transaction failed")
		return c
	}

	c.Inserted = result.Inserted
	c.Updated = result.Updated
	c.transition(StatusDone)
	log.WithFields(logrus.Fields{"inserted": c.Inserted, "updated": c.Updated}).Info("Feed reconciled")
	return c
}
