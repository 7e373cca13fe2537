package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sender performs one delivery attempt to an already normalized address
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type message struct {
	to   string
	body string
}

// Relay queues messages and sends them from a fixed pool of workers. Failed
// deliveries are logged and never retried.
type Relay struct {
	sender      Sender
	log         *zap.Logger
	countryCode string
	timeout     time.Duration
	workers     int

	queue chan message
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Option configures a Relay
type Option func(*Relay)

func WithCountryCode(code string) Option {
	return func(r *Relay) {
		if code != "" {
			r.countryCode = code
		}
	}
}

func WithWorkers(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queue = make(chan message, n)
		}
	}
}

// WithTimeout bounds each delivery attempt
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRelay starts the worker pool
func NewRelay(sender Sender, log *zap.Logger, opts ...Option) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Relay{
		sender:      sender,
		log:         log.Named("notify"),
		countryCode: DefaultCountryCode,
		timeout:     10 * time.Second,
		workers:     4,
		queue:       make(chan message, 256),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Notify normalizes phone and queues body for delivery. It never blocks on
// delivery and never reports failure to the caller.
func (r *Relay) Notify(ctx context.Context, phone, body string) {
	if phone == "" {
		r.log.Debug("skipping notification, no phone number")
		return
	}
	to, err := FormatPhoneNumber(phone, r.countryCode)
	if err != nil {
		r.log.Warn("skipping notification", zap.String("phone", phone), zap.Error(err))
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn("relay closed, dropping notification", zap.String("to", to))
		return
	}

	select {
	case r.queue <- message{to: to, body: body}:
	default:
		r.log.Warn("notification queue full, dropping message", zap.String("to", to))
	}
}

// Close stops accepting messages and waits for queued ones to be attempted
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Relay) worker() {
	defer r.wg.Done()
	for msg := range r.queue {
		r.deliver(msg)
	}
}

func (r *Relay) deliver(msg message) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("notification sender panicked", zap.Any("panic", rec), zap.String("to", msg.to))
		}
	}()

	if err := r.sender.Send(ctx, msg.to, msg.body); err != nil {
		r.log.Warn("notification delivery failed", zap.String("to", msg.to), zap.Error(err))
		return
	}
	r.log.Debug("notification sent", zap.String("to", msg.to))
}

// Nop discards every notification
type Nop struct{}

func (Nop) Notify(context.Context, string, string) {}
