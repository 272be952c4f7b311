package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/infra/config"
)

const clientID = "authz-core"

// Producer publishes authorization change events through a Sarama AsyncProducer.
// Delivery failures are logged and counted; they never block callers.
type Producer struct {
	async  sarama.AsyncProducer
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	failed uint64

	drained chan struct{}
}

// NewProducer dials the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	async, err := sarama.NewAsyncProducer(cfg.Brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := newProducer(async, cfg, logger)
	p.logger.Info("kafka producer ready",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return p, nil
}

// producerConfig waits for the full ISR: downstream caches invalidate on
// every event, so a lost message leaves a stale entry behind.
func producerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V3_5_0_0
	c.ClientID = clientID

	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Idempotent = true
	c.Net.MaxOpenRequests = 1
	c.Producer.Partitioner = sarama.NewHashPartitioner
	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Flush.Frequency = 100 * time.Millisecond
	c.Producer.Retry.Max = 5
	c.Producer.Return.Errors = true

	c.Metadata.Retry.Max = 3
	c.Metadata.Retry.Backoff = 250 * time.Millisecond
	return c
}

func newProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		async:   async,
		prefix:  strings.TrimSuffix(cfg.TopicPrefix, "."),
		logger:  logger,
		drained: make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

// drainErrors runs until the async producer closes its error channel.
func (p *Producer) drainErrors() {
	defer close(p.drained)
	for perr := range p.async.Errors() {
		if perr == nil {
			continue
		}
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()

		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
		}
		p.logger.Error("kafka delivery failed", zap.String("topic", topic), zap.Error(perr.Err))
	}
}

// Send enqueues msg or gives up when ctx ends first.
func (p *Producer) Send(ctx context.Context, msg *sarama.ProducerMessage) error {
	select {
	case p.async.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailedDeliveries reports how many messages the broker rejected so far.
func (p *Producer) FailedDeliveries() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Close flushes buffered messages and waits for the error drain to finish.
func (p *Producer) Close() error {
	err := p.async.Close()
	<-p.drained
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	p.logger.Info("kafka producer closed")
	return nil
}

// TopicName prefixes eventType with the configured topic prefix once.
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" || strings.HasPrefix(eventType, p.prefix+".") {
		return eventType
	}
	return p.prefix + "." + eventType
}
