package worker

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"biolink/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultRetryInterval is how often a worker re-reads its own pending messages
	DefaultRetryInterval = 30 * time.Second
)

// Manager orchestrates worker goroutines that consume from Redis Streams.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	logger      zerolog.Logger
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	retryEvery  time.Duration
	stream      string
	group       string

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount   int           // Number of worker goroutines
	BatchSize     int64         // Messages per read
	BlockTimeout  time.Duration // Block time for XREADGROUP
	RetryInterval time.Duration // How often failed messages are retried
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:   DefaultWorkerCount,
		BatchSize:     DefaultBatchSize,
		BlockTimeout:  DefaultBlockTimeout,
		RetryInterval: DefaultRetryInterval,
	}
}

// NewManager creates a new worker manager.
func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig, logger zerolog.Logger) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		logger:      logger.With().Str("component", "manager").Logger(),
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		retryEvery:  cfg.RetryInterval,
		stream:      queue.StreamViews,
		group:       queue.ConsumerGroupViews,
	}
}

// Start begins the worker goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group); err != nil {
		m.cancel()
		return err
	}

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(workerID))
	}

	m.logger.Info().
		Int("workers", m.workerCount).
		Str("stream", m.stream).
		Str("group", m.group).
		Msg("workers started")
	return nil
}

// Stop gracefully shuts down all workers.
// Blocks until all workers have finished.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Info().Msg("all workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	log := m.logger.With().Int("worker", workerID).Str("consumer", consumerName).Logger()

	// Crash recovery: messages this consumer read but never acknowledged
	m.processPending(log, consumerName)
	lastRetry := time.Now()

	for {
		select {
		case <-m.ctx.Done():
			log.Debug().Msg("shutting down")
			return
		default:
			m.processMessages(log, consumerName)
		}

		if time.Since(lastRetry) >= m.retryEvery {
			m.processPending(log, consumerName)
			lastRetry = time.Now()
		}
	}
}

// processPending re-handles messages this consumer left unacknowledged.
func (m *Manager) processPending(log zerolog.Logger, consumerName string) {
	pending, err := m.consumer.Pending(m.ctx, m.stream, m.group)
	if err != nil {
		if m.ctx.Err() == nil {
			log.Error().Err(err).Msg("pending count failed")
		}
		return
	}
	if pending == 0 {
		return
	}

	messages, err := m.consumer.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("read pending failed")
		return
	}
	if len(messages) == 0 {
		return
	}

	log.Info().Int("count", len(messages)).Msg("processing pending messages")
	m.handleMessages(log, messages)
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(log zerolog.Logger, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("read failed")
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second): // back off on error
		}
		return
	}

	if len(messages) == 0 {
		return
	}
	m.handleMessages(log, messages)
}

// handleMessages processes a batch and acknowledges the ones that succeeded.
// Failed messages stay pending until the next processPending pass.
func (m *Manager) handleMessages(log zerolog.Logger, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			log.Warn().Err(err).Str("msg_id", msg.ID).Msg("leaving message pending")
			continue
		}

		if err := m.consumer.Ack(m.ctx, m.stream, m.group, msg.ID); err != nil {
			log.Error().Err(err).Str("msg_id", msg.ID).Msg("ack failed")
		}
	}
}

// consumerNameForWorker generates a consumer name unique across hosts.
func consumerNameForWorker(workerID int) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return host + "-worker-" + strconv.Itoa(workerID)
}
