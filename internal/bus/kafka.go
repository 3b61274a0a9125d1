// Package bus wraps the Kafka topics that make up the fraud-pipeline's
// message bus: the two input topics (transactions, customerProfiles), the
// analyst-feedback input, and the three output topics.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/configs"
)

// Producer publishes keyed JSON values to Kafka topics.
type Producer struct {
	client sarama.Client
	sync   sarama.SyncProducer
}

// NewProducer creates a producer configured for the commit-interval-bound
// ack behaviour spec §5 describes ("Kafka I/O blocks on acks"). It keeps the
// underlying client around so HealthCheck can probe broker connectivity.
func NewProducer(cfg configs.BusConfig) (*Producer, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Return.Successes = true
	sc.Producer.Flush.Frequency = cfg.CommitInterval
	sc.Version = sarama.V3_0_0_0

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	sp, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &Producer{client: client, sync: sp}, nil
}

// HealthCheck refreshes broker metadata, confirming the bus is reachable.
func (p *Producer) HealthCheck() error {
	if err := p.client.RefreshMetadata(); err != nil {
		return fmt.Errorf("kafka bus unreachable: %w", err)
	}
	return nil
}

// Publish marshals value as JSON and produces it to topic keyed by key.
func (p *Producer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message for topic %s: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	log.Debug().
		Str("topic", topic).
		Str("key", key).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("message published")

	return nil
}

// Close closes the underlying producer and its client.
func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		p.client.Close()
		return err
	}
	return p.client.Close()
}

// Message is one decoded record delivered to a RecordHandler.
type Message struct {
	Key   string
	Value []byte
}

// RecordHandler processes one message from a claim. Returning an error does
// not stop consumption — per spec §7 (MalformedEvent), the caller is
// expected to log and skip rather than block the partition.
type RecordHandler func(ctx context.Context, msg Message) error

// Consumer wraps a sarama consumer group consuming one or more topics,
// dispatching each record to a RecordHandler and marking it processed
// afterward — mirroring the teacher's AnalyticsPipelineHandler shape in
// cmd/kafka-worker/main.go, generalized to an injectable handler.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler RecordHandler
}

// NewConsumer connects to Kafka with retry, matching the teacher's
// connect-with-backoff loop.
func NewConsumer(cfg configs.BusConfig, topics []string, handler RecordHandler) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true
	sc.Version = sarama.V3_0_0_0

	var group sarama.ConsumerGroup
	var err error
	for attempt := 0; attempt < 30; attempt++ {
		group, err = sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, sc)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("failed to connect to Kafka, retrying")
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group after retries: %w", err)
	}

	return &Consumer{group: group, topics: topics, handler: handler}, nil
}

// Run drives the consumer group until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	h := &groupHandler{handler: c.handler}
	for {
		if err := c.group.Consume(ctx, c.topics, h); err != nil {
			log.Error().Err(err).Strs("topics", c.topics).Msg("error from consumer group")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close closes the underlying consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handler RecordHandler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			msg := Message{Key: string(message.Key), Value: message.Value}
			if err := h.handler(session.Context(), msg); err != nil {
				log.Error().Err(err).Str("topic", message.Topic).Str("key", msg.Key).Msg("record handler failed, skipping")
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
