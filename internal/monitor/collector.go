package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/metrics"
)

// Snapshot is the state observed by a single collection
type Snapshot struct {
	CollectedAt     time.Time `json:"collected_at"`
	StreamMessages  uint64    `json:"stream_messages"`
	StreamBytes     uint64    `json:"stream_bytes"`
	StreamConsumers int       `json:"stream_consumers"`
	CPUPercent      float64   `json:"cpu_percent"`
	MemoryPercent   float64   `json:"memory_percent"`
}

// Collector periodically samples the task stream and the host and exports the
// values as prometheus gauges
type Collector struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	stream   string
	interval time.Duration

	mu   sync.RWMutex
	last *Snapshot

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new collector for stream
func NewCollector(js nats.JetStreamContext, stream string, interval time.Duration, logger *zap.Logger) *Collector {
	return &Collector{
		logger:   logger.Named("collector"),
		js:       js,
		stream:   stream,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs a first collection and then collects every interval until ctx is
// done or Stop is called
func (c *Collector) Start(ctx context.Context) error {
	if c.interval <= 0 {
		return fmt.Errorf("collection interval must be positive, got %s", c.interval)
	}

	c.logger.Info("Starting collector",
		zap.String("stream", c.stream),
		zap.Duration("interval", c.interval))

	if _, err := c.Collect(ctx); err != nil {
		c.logger.Warn("Initial collection failed", zap.Error(err))
	}

	go c.collectLoop(ctx)
	return nil
}

// Stop stops the collection loop
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping collector")
		close(c.stop)
	})
}

func (c *Collector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			if _, err := c.Collect(ctx); err != nil {
				c.logger.Error("Failed to collect metrics", zap.Error(err))
			}
		}
	}
}

// Collect samples the stream and the host once. Host sampling failures are
// logged and leave the host fields at zero.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	info, err := c.js.StreamInfo(c.stream, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("stream %s does not exist: %w", c.stream, err)
		}
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	snapshot := &Snapshot{
		CollectedAt:     time.Now(),
		StreamMessages:  info.State.Msgs,
		StreamBytes:     info.State.Bytes,
		StreamConsumers: info.State.Consumers,
	}

	// zero interval compares against the previous call instead of blocking
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		c.logger.Debug("Failed to get CPU usage", zap.Error(err))
	} else if len(percents) > 0 {
		snapshot.CPUPercent = percents[0]
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		c.logger.Debug("Failed to get memory usage", zap.Error(err))
	} else {
		snapshot.MemoryPercent = memInfo.UsedPercent
	}

	metrics.TaskStreamMessages.Set(float64(snapshot.StreamMessages))
	metrics.TaskStreamConsumers.Set(float64(snapshot.StreamConsumers))
	metrics.HostCPUPercent.Set(snapshot.CPUPercent)
	metrics.HostMemoryPercent.Set(snapshot.MemoryPercent)

	c.mu.Lock()
	c.last = snapshot
	c.mu.Unlock()

	c.logger.Debug("Metrics collected",
		zap.Uint64("stream_messages", snapshot.StreamMessages),
		zap.Int("stream_consumers", snapshot.StreamConsumers),
		zap.Float64("cpu_percent", snapshot.CPUPercent),
		zap.Float64("memory_percent", snapshot.MemoryPercent))

	return snapshot, nil
}

// Last returns a copy of the most recent snapshot, or nil before the first collection
func (c *Collector) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.last == nil {
		return nil
	}
	snapshot := *c.last
	return &snapshot
}
