// Package notify delivers user notifications off the caller's goroutine.
package notify

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/beeep"
)

// DefaultQueueSize is used when the configured size is not positive.
const DefaultQueueSize = 30

// Notice is one notification.
type Notice struct {
	Title   string
	Message string
	OK      bool
}

// Backend shows a notice. Backends are tried in order until one succeeds.
type Backend interface {
	Name() string
	Send(n Notice) error
}

// Desktop shows native desktop notifications.
type Desktop struct{}

func (Desktop) Name() string { return "desktop" }

func (Desktop) Send(n Notice) error {
	return beeep.Notify(n.Title, n.Message, "")
}

// Log writes notices to the structured log. It never fails, so it is the
// usual last backend.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Send(n Notice) error {
	if n.OK {
		slog.Info("Notification", "title", n.Title, "message", n.Message)
	} else {
		slog.Warn("Notification", "title", n.Title, "message", n.Message)
	}
	return nil
}

// Queue is a bounded notification queue drained by a single worker. When
// full, the oldest pending notice is dropped.
type Queue struct {
	ch       chan Notice
	backends []Backend
	enabled  atomic.Bool
	closed   atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	dropped  atomic.Int64
}

// New starts a queue. Without backends it falls back to Desktop then Log.
func New(size int, backends ...Backend) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if len(backends) == 0 {
		backends = []Backend{Desktop{}, Log{}}
	}

	q := &Queue{
		ch:       make(chan Notice, size),
		backends: backends,
		done:     make(chan struct{}),
	}
	q.enabled.Store(true)

	q.wg.Add(1)
	go q.run()
	return q
}

// SetEnabled switches delivery on or off. Disabled notices are discarded.
func (q *Queue) SetEnabled(on bool) {
	q.enabled.Store(on)
}

// Dropped reports how many notices were discarded because the queue was full.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Notify enqueues a notice and returns immediately.
func (q *Queue) Notify(title, message string, ok bool) {
	if q.closed.Load() || !q.enabled.Load() {
		return
	}
	n := Notice{Title: title, Message: message, OK: ok}

	for attempt := 0; attempt < 2; attempt++ {
		select {
		case q.ch <- n:
			return
		default:
		}
		select {
		case old := <-q.ch:
			q.dropped.Add(1)
			slog.Debug("Notification queue full, dropped oldest", "message", old.Message)
		default:
		}
	}
	q.dropped.Add(1)
	slog.Debug("Notification queue full, dropped notice", "message", n.Message)
}

// Close delivers what is pending and stops the worker.
func (q *Queue) Close() {
	if q.closed.Swap(true) {
		return
	}
	close(q.done)
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case n := <-q.ch:
			q.deliver(n)
		case <-q.done:
			for {
				select {
				case n := <-q.ch:
					q.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) deliver(n Notice) {
	var errs []error
	for _, b := range q.backends {
		err := b.Send(n)
		if err == nil {
			return
		}
		slog.Debug("Notification backend failed, trying next", "backend", b.Name(), "error", err)
		errs = append(errs, err)
	}
	slog.Warn("All notification backends failed", "message", n.Message, "error", errors.Join(errs...))
}
