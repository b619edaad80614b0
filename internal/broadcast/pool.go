package broadcast

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/rileyhilliard/boincwatch/internal/logger"
	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
)

const (
	// DefaultInterval is the pause between two polls of the same loader.
	DefaultInterval = time.Second
	// DefaultQueueSize is the number of snapshots a consumer may fall behind
	// before new ones are dropped for it.
	DefaultQueueSize = 5
)

// ErrDetached is returned by Queue.Get once the queue has been detached.
var ErrDetached = stderrors.New("queue detached")

// Loader produces one snapshot per call.
type Loader struct {
	Name string
	Load func(ctx context.Context) (*guirpc.SimpleGuiInfo, error)
}

// ClientLoader polls c.
func ClientLoader(c *guirpc.Client) Loader {
	return Loader{Name: c.HostInfo().Name, Load: c.Poll}
}

// Observer is told about every poll outcome and consumer change. Calls may
// happen while the pool lock is held and must not block.
type Observer interface {
	PollSucceeded(source string, took time.Duration)
	PollFailed(source string, took time.Duration, err error)
	SnapshotDropped(source string)
	ConsumersChanged(n int)
}

type nopObserver struct{}

func (nopObserver) PollSucceeded(string, time.Duration)    {}
func (nopObserver) PollFailed(string, time.Duration, error) {}
func (nopObserver) SnapshotDropped(string)                  {}
func (nopObserver) ConsumersChanged(int)                    {}

// Queue is one consumer's bounded view of the snapshot stream.
type Queue struct {
	id string
	ch chan *guirpc.SimpleGuiInfo
}

// ID identifies the queue in logs.
func (q *Queue) ID() string {
	return q.id
}

// C exposes the receive side for use in select. It is closed on Detach.
func (q *Queue) C() <-chan *guirpc.SimpleGuiInfo {
	return q.ch
}

// Len returns the number of snapshots waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Get blocks until a snapshot is available, ctx is done, or the queue is
// detached. Snapshots buffered before Detach are still returned first.
func (q *Queue) Get(ctx context.Context) (*guirpc.SimpleGuiInfo, error) {
	select {
	case snap, ok := <-q.ch:
		if !ok {
			return nil, ErrDetached
		}
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pool runs one polling loop per loader and broadcasts the results.
type Pool struct {
	loaders   []Loader
	interval  time.Duration
	queueSize int
	log       logger.Logger
	observer  Observer

	mu     sync.Mutex
	queues map[*Queue]struct{}

	stopped   *latch
	listening *latch
	wg        sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithInterval sets the pause between polls. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithQueueSize sets the per-consumer queue capacity. Values below 1 are ignored.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithLogger sets the pool's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithObserver reports poll outcomes to o.
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.observer = o
		}
	}
}

// New creates a stopped pool with no consumers.
func New(loaders []Loader, opts ...Option) *Pool {
	p := &Pool{
		loaders:   loaders,
		interval:  DefaultInterval,
		queueSize: DefaultQueueSize,
		log:       logger.NewEnvLogger("[pool]"),
		observer:  nopObserver{},
		queues:    make(map[*Queue]struct{}),
		stopped:   newLatch(),
		listening: newLatch(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sources returns the loader names in configuration order.
func (p *Pool) Sources() []string {
	names := make([]string, len(p.loaders))
	for i, l := range p.loaders {
		names[i] = l.Name
	}
	return names
}

// Listeners returns the number of attached queues.
func (p *Pool) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues)
}

// Attach registers a new consumer. The first consumer wakes the loops.
func (p *Pool) Attach() *Queue {
	q := &Queue{
		id: uuid.NewString(),
		ch: make(chan *guirpc.SimpleGuiInfo, p.queueSize),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues[q] = struct{}{}
	if len(p.queues) == 1 {
		p.listening.Set()
	}
	p.observer.ConsumersChanged(len(p.queues))
	p.log.Debug("consumer %s attached (%d total)", q.id, len(p.queues))
	return q
}

// Detach unregisters q and closes it. Detaching twice is a no-op. When the
// last consumer leaves the loops go idle after their current poll.
func (p *Pool) Detach(q *Queue) {
	if q == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.queues[q]; !ok {
		return
	}
	delete(p.queues, q)
	close(q.ch)
	if len(p.queues) == 0 {
		p.listening.Clear()
	}
	p.observer.ConsumersChanged(len(p.queues))
	p.log.Debug("consumer %s detached (%d left)", q.id, len(p.queues))
}

// Start launches one loop per loader. Cancelling ctx stops the loops and
// cancels any load in flight. Calling Start on a running pool starts a
// second set of loops.
func (p *Pool) Start(ctx context.Context) {
	p.stopped.Clear()
	for _, l := range p.loaders {
		p.wg.Add(1)
		go p.run(ctx, l)
	}
	p.log.Debug("started %d loops, interval %s", len(p.loaders), p.interval)
}

// Stop asks every loop to exit and waits for them. A load already in flight
// finishes first; no loader is called after Stop returns.
func (p *Pool) Stop() {
	p.stopped.Set()
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, l Loader) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopped.Wait():
			return
		case <-ctx.Done():
			return
		case <-p.listening.Wait():
		}
		// Stop and a consumer may become ready together; stop wins.
		if p.stopped.IsSet() || ctx.Err() != nil {
			return
		}

		start := time.Now()
		snap, err := load(ctx, l)
		took := time.Since(start)

		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			p.observer.PollFailed(l.Name, took, err)
			p.log.Warn("poll of %s failed: %s", l.Name, errors.Summary(err))
		case snap == nil:
			p.observer.PollFailed(l.Name, took, nil)
			p.log.Warn("poll of %s returned no snapshot", l.Name)
		default:
			p.observer.PollSucceeded(l.Name, took)
			p.publish(l.Name, snap)
		}

		if !p.sleep(ctx) {
			return
		}
	}
}

// load calls l.Load, turning a panic into an error so one broken loader
// cannot take down the other loops.
func load(ctx context.Context, l Loader) (snap *guirpc.SimpleGuiInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, fmt.Errorf("loader panicked: %v", r)
		}
	}()
	return l.Load(ctx)
}

// publish pushes snap to every attached queue without blocking.
func (p *Pool) publish(source string, snap *guirpc.SimpleGuiInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for q := range p.queues {
		select {
		case q.ch <- snap:
		default:
			p.observer.SnapshotDropped(source)
			p.log.Debug("queue %s full, dropped snapshot from %s", q.id, source)
		}
	}
}

// sleep waits one interval and reports false if the loop should exit instead.
func (p *Pool) sleep(ctx context.Context) bool {
	t := time.NewTimer(p.interval)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-p.stopped.Wait():
		return false
	case <-ctx.Done():
		return false
	}
}
