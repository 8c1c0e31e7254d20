package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	log     *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
	})
	return newConsumer(r, workers, log.With(zap.String("topic", topic), zap.String("group", group)))
}

func newConsumer(r messageReader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log}
}

// Start fetches messages and hands each partition to a fixed worker, so
// commits per partition only move forward. A commit for offset N also covers
// everything before N, therefore the first handler failure stops the
// consumer and Start returns that error; after a restart the group resumes
// from the last committed offset and the failed message is read again.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		failOnce sync.Once
		failErr  error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			failErr = err
			stop()
		})
	}

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 1)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if runCtx.Err() != nil {
					continue // stopping: leave the rest uncommitted
				}
				if err := h(runCtx, m); err != nil {
					c.log.Error("handler failed, stopping consumer",
						zap.Int("worker", id),
						zap.Int("partition", m.Partition),
						zap.Int64("offset", m.Offset),
						zap.Error(err),
					)
					fail(fmt.Errorf("partition %d offset %d: %w", m.Partition, m.Offset, err))
					continue
				}
				// the message is handled; do not lose its commit to shutdown
				if err := c.r.CommitMessages(context.WithoutCancel(runCtx), m); err != nil {
					c.log.Error("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
					fail(fmt.Errorf("commit partition %d offset %d: %w", m.Partition, m.Offset, err))
				}
			}
		}(i, queues[i])
	}

	fetchErr := c.dispatch(runCtx, queues)
	for _, q := range queues {
		close(q)
	}
	wg.Wait()

	if failErr != nil {
		return failErr
	}
	return fetchErr
}

func (c *Consumer) dispatch(ctx context.Context, queues []chan kafka.Message) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case queues[m.Partition%len(queues)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}
