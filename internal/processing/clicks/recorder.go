package clicks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/events"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("click recorder is closed")

var (
	clicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicks_recorded_total",
			Help: "Click events handled by the recorder, by outcome",
		},
		[]string{"result"},
	)

	clickQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clicks_queue_depth",
			Help: "Click events waiting to be written to the sink",
		},
	)
)

// Sink is where click events end up: a collection, a topic or a webhook.
type Sink interface {
	Save(ctx context.Context, ev events.ClickRecorded) error
}

type Options struct {
	QueueSize   int
	Workers     int
	SaveTimeout time.Duration
}

type queued struct {
	ev   events.ClickRecorded
	span trace.SpanContext
}

// Recorder hands click events to a Sink off the request path. When the queue
// is full the event is dropped and counted.
type Recorder struct {
	sink        Sink
	queue       chan queued
	saveTimeout time.Duration

	mu     sync.RWMutex
	closed bool

	wg       sync.WaitGroup
	stopOnce sync.Once

	dropped atomic.Int64
	failed  atomic.Int64
}

func NewRecorder(sink Sink, opts Options) *Recorder {
	const (
		defaultQueueSize   = 10_000
		defaultWorkers     = 4
		defaultSaveTimeout = 2 * time.Second
	)

	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}

	r := &Recorder{
		sink:        sink,
		queue:       make(chan queued, opts.QueueSize),
		saveTimeout: opts.SaveTimeout,
	}

	r.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go r.worker()
	}
	return r
}

// Record never blocks. The request context is only used for its trace.
func (r *Recorder) Record(ctx context.Context, ev events.ClickRecorded) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop()
		return
	}

	select {
	case r.queue <- queued{ev: ev, span: trace.SpanContextFromContext(ctx)}:
		clickQueueDepth.Inc()
	default:
		r.drop()
	}
}

func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

func (r *Recorder) Failed() int64 { return r.failed.Load() }

// Shutdown stops accepting events and waits for the queue to drain.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) drop() {
	r.dropped.Add(1)
	clicksTotal.WithLabelValues("dropped").Inc()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for item := range r.queue {
		clickQueueDepth.Dec()
		r.save(item)
	}
}

func (r *Recorder) save(item queued) {
	ctx := trace.ContextWithSpanContext(context.Background(), item.span)
	ctx, cancel := context.WithTimeout(ctx, r.saveTimeout)
	defer cancel()

	if err := r.sink.Save(ctx, item.ev); err != nil {
		r.failed.Add(1)
		clicksTotal.WithLabelValues("failed").Inc()
		logger.Warn("failed to save click event",
			zap.Error(err),
			zap.String("event_id", item.ev.EventID),
			zap.Uint64("link_id", item.ev.LinkID),
		)
		return
	}
	clicksTotal.WithLabelValues("saved").Inc()
}
