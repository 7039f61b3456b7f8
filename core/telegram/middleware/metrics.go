package middleware

import (
	"sync/atomic"
	"time"

	tghelpers "github.com/m3rciful/rabiesbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Stats are process-wide update and delivery counters.
type Stats struct {
	Since     time.Time
	Updates   int64
	Callbacks int64
	Failures  int64
	Messages  int64
	Edits     int64
}

var counters = struct {
	since     atomic.Pointer[time.Time]
	updates   atomic.Int64
	callbacks atomic.Int64
	failures  atomic.Int64
	messages  atomic.Int64
	edits     atomic.Int64
}{}

func init() {
	now := time.Now()
	counters.since.Store(&now)
}

// MessageMetricsMiddleware tracks what each update queued for delivery and
// folds the result into the process-wide Stats.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		out := tghelpers.TrackOutbound(c)
		err := next(c)

		counters.updates.Add(1)
		if c.Callback() != nil {
			counters.callbacks.Add(1)
		}
		if err != nil {
			counters.failures.Add(1)
		}
		counters.messages.Add(int64(out.Messages))
		counters.edits.Add(int64(out.Edits))
		return err
	}
}

// Snapshot returns the current counters.
func Snapshot() Stats {
	return Stats{
		Since:     *counters.since.Load(),
		Updates:   counters.updates.Load(),
		Callbacks: counters.callbacks.Load(),
		Failures:  counters.failures.Load(),
		Messages:  counters.messages.Load(),
		Edits:     counters.edits.Load(),
	}
}
