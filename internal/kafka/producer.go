package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-bookstore-checkout/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer is a fire-and-forget publisher. Publish never blocks: messages go
// through a bounded inbox to a single goroutine that hands them to an async
// kafka-go writer. Delivery outcomes are only logged and counted.
type Producer struct {
	w     messageWriter
	topic string
	log   *zap.Logger

	mu      sync.RWMutex
	closed  bool
	inbox   chan kafka.Message
	closeCh chan struct{}
	once    sync.Once
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	p := newProducer(nil, topic, buf, log)
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same key -> same partition -> per-key order
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion:   p.completion,
	}
	return p
}

func newProducer(w messageWriter, topic string, buf int, log *zap.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		topic:   topic,
		log:     log.With(zap.String("topic", topic)),
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the delivery loop until Close is called or ctx is cancelled.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.Close()
	}()
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.failed([]kafka.Message{m}, err)
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Error("kafka writer close", zap.Error(err))
		}
	}()
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped(key, "producer closed")
		return
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
	default:
		p.dropped(key, "inbox full")
	}
}

// Close stops accepting messages; the loop flushes what is queued and exits.
func (p *Producer) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

func (p *Producer) WaitClosed() { <-p.closeCh }

func (p *Producer) completion(msgs []kafka.Message, err error) {
	if err != nil {
		p.failed(msgs, err)
		return
	}
	for _, m := range msgs {
		metrics.EventsPublished.WithLabelValues(p.topic, "delivered").Inc()
		p.log.Info("event delivered",
			zap.ByteString("key", m.Key),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
	}
}

func (p *Producer) failed(msgs []kafka.Message, err error) {
	for _, m := range msgs {
		metrics.EventsPublished.WithLabelValues(p.topic, "failed").Inc()
		p.log.Error("event delivery failed", zap.ByteString("key", m.Key), zap.Error(err))
	}
}

func (p *Producer) dropped(key []byte, reason string) {
	metrics.EventsPublished.WithLabelValues(p.topic, "dropped").Inc()
	p.log.Error("event dropped", zap.ByteString("key", key), zap.String("reason", reason))
}
