// Package sender delivers outbound Telegram calls off the update goroutine.
//
// Calls are sharded into lanes by chat id. A lane runs its calls one at a
// time in enqueue order, so a chat sees its messages in the order handlers
// produced them while different chats are served in parallel.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/rabiesbot/core/logger"
	"github.com/m3rciful/rabiesbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the lane of the key stays full for EnqueueWait.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

const component = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the buffer of each lane.
	QueueSize int
	// Workers is the number of lanes.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single call, flood waits included.
	MaxDuration time.Duration
	// EnqueueWait bounds how long Enqueue waits for room on a full lane.
	EnqueueWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	if o.EnqueueWait <= 0 {
		o.EnqueueWait = 5 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs outbound calls on per-chat lanes with bounded retries.
type Dispatcher struct {
	opts  Options
	lanes []chan job

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts the lanes. Zero options take defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, lanes: make([]chan job, opts.Workers)}
	d.wg.Add(len(d.lanes))
	for i := range d.lanes {
		d.lanes[i] = make(chan job, opts.QueueSize)
		go d.drain(d.lanes[i])
	}
	return d
}

// Enqueue schedules run on the lane owned by key, normally the chat id.
// On a full lane it waits for room, bounded by ctx and EnqueueWait, so calls
// of one key are never reordered.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	lane := d.lane(key)
	j := job{ctx: ctx, action: action, endpoint: endpoint, run: run}
	select {
	case lane <- j:
		return nil
	default:
	}

	wait := time.NewTimer(d.opts.EnqueueWait)
	defer wait.Stop()
	select {
	case lane <- j:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrQueueFull, ctx.Err())
	case <-wait.C:
		return ErrQueueFull
	}
}

func (d *Dispatcher) lane(key int64) chan job {
	return d.lanes[uint64(key)%uint64(len(d.lanes))]
}

// ErrorCount returns the number of calls that finally failed.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting calls and waits until queued ones are done.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, l := range d.lanes {
			close(l)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) drain(lane <-chan job) {
	defer d.wg.Done()
	for j := range lane {
		if err := d.deliver(j); err != nil {
			d.errs.Add(1)
		}
	}
}

// deliver runs j until it succeeds, fails in a way that could duplicate the
// message on resend, or runs out of attempts or time.
func (d *Dispatcher) deliver(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			logger.Debug(j.ctx, component, "send.success", j.attrs(
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", logger.RoundMS(time.Since(start))),
			)...)
			return nil
		}
		if !netutil.Retryable(err) || attempt == attempts {
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait, ok := netutil.RetryAfter(err); ok {
			delay = wait
		}
		logger.Debug(j.ctx, component, "send.retry", j.attrs(
			slog.Int("attempt", attempt),
			slog.String("error_kind", string(netutil.Classify(err))),
			slog.Duration("delay", delay),
		)...)
		if !sleep(ctx, delay) {
			err = errors.Join(err, ctx.Err())
			break
		}
	}

	logger.Error(j.ctx, component, "send.fail", j.attrs(
		slog.String("error", RedactToken(err.Error())),
		slog.String("error_kind", string(netutil.Classify(err))),
		slog.Duration("elapsed", logger.RoundMS(time.Since(start))),
	)...)
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if chatID := logger.ChatIDFrom(j.ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	return append(attrs, extra...)
}

// RedactToken masks bot tokens embedded in API URLs.
func RedactToken(msg string) string {
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}
