package feed

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gitter-badger/ashaw-notes/pkg/kafka"
	"github.com/gitter-badger/ashaw-notes/pkg/metrics"
	"github.com/gitter-badger/ashaw-notes/pkg/resilience"
)

// producer is the slice of the Kafka producer the publisher needs.
type producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	producer producer
	breaker  *resilience.CircuitBreaker
	eventCh  chan Event
	metrics  *metrics.Metrics
	logger   *slog.Logger
	done     chan struct{}
}

func NewPublisher(p producer, bufferSize int, m *metrics.Metrics) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Publisher{
		producer: p,
		// A broker outage trips the breaker so the drain loop drops
		// events immediately instead of waiting out the producer
		// timeout for each one.
		breaker: resilience.NewCircuitBreaker("feed-kafka", resilience.CircuitBreakerConfig{}),
		eventCh: make(chan Event, bufferSize),
		metrics: m,
		logger:  slog.Default().With("component", "feed-publisher"),
		done:    make(chan struct{}),
	}
}

func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case event, ok := <-p.eventCh:
				if !ok {
					return
				}
				p.send(ctx, event)
			case <-ctx.Done():
				p.drainRemaining()
				return
			}
		}
	}()
	p.logger.Info("feed publisher started", "buffer_size", cap(p.eventCh))
}

// Publish enqueues an event without blocking. Events are dropped when the
// buffer is full.
func (p *Publisher) Publish(event Event) {
	select {
	case p.eventCh <- event:
	default:
		p.metrics.FeedEventsDropped.Inc()
		p.logger.Warn("feed event dropped (buffer full)", "type", event.Type)
	}
}

func (p *Publisher) Close() {
	close(p.eventCh)
	<-p.done
}

func (p *Publisher) send(ctx context.Context, event Event) {
	err := p.breaker.Execute(func() error {
		// Partition by note timestamp so events for one note stay ordered.
		return p.producer.Publish(ctx, kafka.Event{
			Key:   strconv.FormatInt(event.Timestamp, 10),
			Value: event,
		})
	})
	if err != nil {
		p.metrics.FeedEventsDropped.Inc()
		if errors.Is(err, resilience.ErrCircuitOpen) {
			p.logger.Debug("feed event dropped (circuit open)", "type", event.Type)
			return
		}
		p.logger.Error("failed to publish feed event", "type", event.Type, "error", err)
		return
	}
	p.metrics.FeedEventsPublished.Inc()
}

func (p *Publisher) drainRemaining() {
	for {
		select {
		case event, ok := <-p.eventCh:
			if !ok {
				return
			}
			p.send(context.Background(), event)
		default:
			return
		}
	}
}
