package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
)

// Publisher writes a batch of events to the broker.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig sizes the collector's buffer.
type CollectorConfig struct {
	BatchSize     int
	MaxBuffer     int
	FlushInterval time.Duration
	Metrics       *metrics.Metrics
}

// Collector buffers scan events and publishes them in batches, when the
// batch fills or after FlushInterval. Track never blocks; events beyond
// MaxBuffer are dropped.
type Collector struct {
	publisher     Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	maxBuffer     int
	flushInterval time.Duration
	kick          chan struct{}
	metrics       *metrics.Metrics
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector creates a Collector publishing through p.
func NewCollector(p Publisher, cfg CollectorConfig) *Collector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxBuffer < cfg.BatchSize {
		cfg.MaxBuffer = cfg.BatchSize * 10
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     p,
		buffer:        make([]kafka.Event, 0, cfg.BatchSize),
		batchSize:     cfg.BatchSize,
		maxBuffer:     cfg.MaxBuffer,
		flushInterval: cfg.FlushInterval,
		kick:          make(chan struct{}, 1),
		metrics:       cfg.Metrics,
		logger:        slog.Default().With("component", "activity-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop. It returns immediately; the
// loop runs until ctx is cancelled and then flushes once more.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-c.kick:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("activity collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track queues event for publishing.
func (c *Collector) Track(event ScanEvent) {
	c.mu.Lock()
	if len(c.buffer) >= c.maxBuffer {
		c.mu.Unlock()
		c.count("dropped", 1)
		c.logger.Warn("activity event dropped (buffer full)", "type", event.Type)
		return
	}
	c.buffer = append(c.buffer, kafka.Event{Key: string(event.Type), Value: event, RequestID: event.RequestID})
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()
	c.count("queued", 1)

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop to finish after its context is cancelled.
func (c *Collector) Close() {
	<-c.done
}

// BufferLen returns the current number of buffered events.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.count("failed", len(batch))
		c.logger.Error("activity flush failed", "batch_size", len(batch), "error", err)
		// Re-queue ahead of newer events, keeping at most maxBuffer.
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if len(c.buffer) > c.maxBuffer {
			dropped := len(c.buffer) - c.maxBuffer
			c.buffer = c.buffer[:c.maxBuffer]
			c.count("dropped", dropped)
			c.logger.Warn("activity buffer overflow, events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return
	}
	c.count("published", len(batch))
	c.logger.Debug("activity batch flushed", "events", len(batch))
}

func (c *Collector) count(outcome string, n int) {
	if c.metrics != nil {
		c.metrics.ActivityEventsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}
