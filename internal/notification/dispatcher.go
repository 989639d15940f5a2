package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"repdayAPI/internal/metrics"
)

const (
	DeliveryTimeout = 5 * time.Second
	enqueueTimeout  = time.Second
)

// Dispatcher delivers nudges on a small worker pool so that request
// handlers never wait on a messaging channel. Failures are logged and
// counted, never returned.
type Dispatcher struct {
	notifier Notifier
	logger   *log.Logger
	workers  int
	jobQueue chan NudgeMessage
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(notifier Notifier, logger *log.Logger, workers, queueSize int) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger,
		workers:  workers,
		jobQueue: make(chan NudgeMessage, queueSize),
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.jobQueue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg NudgeMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), DeliveryTimeout)
	defer cancel()

	err := d.notifier.Notify(ctx, msg)
	if err == nil {
		return
	}

	for _, e := range flatten(err) {
		channel := d.notifier.Channel()
		var ce *ChannelError
		if errors.As(e, &ce) {
			channel = ce.Channel
		}
		metrics.NudgeDeliveryFailures.WithLabelValues(channel).Inc()
		d.logger.Warn("nudge delivery failed", "channel", channel, "challenge_id", msg.ChallengeID, "to_user_id", msg.ToUserID, "err", e)
	}
}

func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// Dispatch queues msg for delivery. It drops the message when the queue stays
// full or the dispatcher is stopped.
func (d *Dispatcher) Dispatch(msg NudgeMessage) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dispatcher stopped, dropping nudge", "challenge_id", msg.ChallengeID)
		return
	}

	select {
	case d.jobQueue <- msg:
	case <-time.After(enqueueTimeout):
		metrics.NudgeDeliveryFailures.WithLabelValues("queue").Inc()
		d.logger.Warn("nudge queue full, dropping nudge", "challenge_id", msg.ChallengeID)
	}
}

// Stop drains queued deliveries and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobQueue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
