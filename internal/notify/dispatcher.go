package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	defaultWorkers        = 2
	defaultBuffer         = 256
	defaultPublishTimeout = 10 * time.Second
	deadLetterTimeout     = 5 * time.Second
)

var ErrDispatcherClosed = errors.New("notify: dispatcher closed")

type DispatcherOptions struct {
	Workers        int
	Buffer         int
	Retry          RetryPolicy
	PublishTimeout time.Duration
	DeadLetters    DeadLetterStore
	Logger         *zap.Logger
	Clock          func() time.Time
	IDGenerator    func() string
}

// Dispatcher desacopla el envío de notificaciones del ciclo request/response.
// Los handlers llaman Enqueue (nunca bloquea); un pool de workers publica con reintentos
// y lo que agota los intentos termina en el dead-letter store.
type Dispatcher struct {
	publisher   Publisher
	jobs        chan Notification
	workers     int
	retry       RetryPolicy
	timeout     time.Duration
	deadLetters DeadLetterStore
	logger      *zap.Logger
	clock       func() time.Time
	newID       func() string

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	delivered    metric.Int64Counter
	deadLettered metric.Int64Counter
}

func NewDispatcher(publisher Publisher, opts DispatcherOptions) (*Dispatcher, error) {
	if publisher == nil {
		return nil, errors.New("notify: publisher is required")
	}
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	if opts.Buffer < 1 {
		opts.Buffer = defaultBuffer
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = func() string { return ulid.Make().String() }
	}

	meter := otel.Meter("agriconecta-api/notify")
	delivered, _ := meter.Int64Counter("notifications_delivered_total")
	deadLettered, _ := meter.Int64Counter("notifications_dead_lettered_total")

	return &Dispatcher{
		publisher:    publisher,
		jobs:         make(chan Notification, opts.Buffer),
		workers:      opts.Workers,
		retry:        opts.Retry.withDefaults(),
		timeout:      opts.PublishTimeout,
		deadLetters:  opts.DeadLetters,
		logger:       opts.Logger.With(zap.String("component", "notify.dispatcher")),
		clock:        opts.Clock,
		newID:        opts.IDGenerator,
		delivered:    delivered,
		deadLettered: deadLettered,
	}, nil
}

// Start lanza los workers. Llamarlo más de una vez no tiene efecto.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Enqueue hands the notification to the workers without blocking.
// It returns false when the dispatcher is closed or the buffer is full; in the latter case the
// notification is dead-lettered right away.
func (d *Dispatcher) Enqueue(n Notification) bool {
	if n.ID == "" {
		n.ID = d.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.clock().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped, dispatcher closed",
			zap.String("notification_id", n.ID), zap.String("order_id", n.OrderID))
		return false
	}

	select {
	case d.jobs <- n:
		return true
	default:
		d.logger.Error("notification queue full",
			zap.String("notification_id", n.ID), zap.String("order_id", n.OrderID))
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deadLetter(n, 0, errors.New("queue full"))
		}()
		return false
	}
}

// Shutdown deja de aceptar trabajos y espera a que se vacíe la cola o expire ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		// Sin workers: lo pendiente va directo al dead-letter.
		for n := range d.jobs {
			d.deadLetter(n, 0, ErrDispatcherClosed)
		}
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.jobs {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	logger := d.logger.With(
		zap.String("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("order_id", n.OrderID),
	)

	attempts, err := d.retry.Do(context.Background(), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		pErr := d.publisher.Publish(ctx, n)
		if pErr != nil {
			logger.Warn("notification publish failed", zap.Error(pErr))
		}
		return pErr
	})
	if err != nil {
		d.deadLetter(n, attempts, err)
		return
	}
	d.delivered.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", string(n.Kind))))
	logger.Debug("notification delivered", zap.Int("attempts", attempts))
}

func (d *Dispatcher) deadLetter(n Notification, attempts int, cause error) {
	d.deadLettered.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", string(n.Kind))))
	d.logger.Error("notification dead-lettered",
		zap.String("notification_id", n.ID),
		zap.String("order_id", n.OrderID),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
	if d.deadLetters == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deadLetterTimeout)
	defer cancel()
	err := d.deadLetters.Save(ctx, DeadLetter{
		Notification: n,
		Attempts:     attempts,
		LastError:    cause.Error(),
		FailedAt:     d.clock().UTC(),
	})
	if err != nil {
		d.logger.Error("dead-letter store failed", zap.String("notification_id", n.ID), zap.Error(err))
	}
}
