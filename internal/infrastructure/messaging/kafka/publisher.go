// Package kafka emits domain events for downstream consumers (search tuning,
// analytics, audit). Publishing is fire-and-forget from the request path's
// point of view: a broker outage degrades to a logged warning, never a
// failed request.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// TopicQueryUnderstood carries one event per completed extraction.
const TopicQueryUnderstood = "query.understood.v1"

// QueryUnderstoodEvent is the wire payload for TopicQueryUnderstood.
type QueryUnderstoodEvent struct {
	EventID         string            `json:"event_id"`
	OccurredAt      time.Time         `json:"occurred_at"`
	NormalizedQuery string            `json:"normalized_query"`
	ConfigVersion   string            `json:"config_version"`
	Entities        []query.Entity    `json:"entities"`
	Gate            query.GateOutcome `json:"gate"`
	DurationMs      int64             `json:"duration_ms"`
}

// Config holds connection and delivery settings for the publisher.
type Config struct {
	Brokers      []string      `json:"brokers" yaml:"brokers" mapstructure:"brokers"`
	Acks         string        `json:"acks" yaml:"acks" mapstructure:"acks"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout" mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`

	SASLEnabled   bool   `json:"sasl_enabled" yaml:"sasl_enabled" mapstructure:"sasl_enabled"`
	SASLMechanism string `json:"sasl_mechanism" yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"`
	SASLUsername  string `json:"sasl_username" yaml:"sasl_username" mapstructure:"sasl_username"`
	SASLPassword  string `json:"sasl_password" yaml:"sasl_password" mapstructure:"sasl_password"`
}

// DefaultConfig returns settings for a local single-broker cluster.
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		Acks:         "one",
		MaxRetries:   3,
		BatchTimeout: 200 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes QueryUnderstoodEvents to Kafka. It is safe for concurrent
// use and counts sent/failed messages for introspection.
type Publisher struct {
	writer writerInterface
	logger logging.Logger
	closed atomic.Bool

	sent   atomic.Int64
	failed atomic.Int64
}

// NewPublisher builds a Publisher against the configured brokers.
func NewPublisher(cfg *Config, logger logging.Logger) (*Publisher, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "kafka brokers required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	transport := &kafkago.Transport{DialTimeout: 10 * time.Second}
	if cfg.SASLEnabled {
		mech, err := saslMechanism(cfg)
		if err != nil {
			return nil, err
		}
		transport.SASL = mech
	}

	var acks kafkago.RequiredAcks
	switch cfg.Acks {
	case "none":
		acks = kafkago.RequireNone
	case "all":
		acks = kafkago.RequireAll
	default:
		acks = kafkago.RequireOne
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Balancer:     &kafkago.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: acks,
		Transport:    transport,
	}
	return &Publisher{writer: writer, logger: logger}, nil
}

// newPublisherWithWriter is the test seam.
func newPublisherWithWriter(w writerInterface, logger logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{writer: w, logger: logger}
}

func saslMechanism(cfg *Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.SASLUsername, Password: cfg.SASLPassword}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid, "unsupported SASL mechanism: "+cfg.SASLMechanism)
	}
}

// PublishUnderstood derives a QueryUnderstoodEvent from a finished result and
// writes it, keyed by normalized query so replays of the same query land on
// one partition.
func (p *Publisher) PublishUnderstood(ctx context.Context, res *query.Result) error {
	if p.closed.Load() {
		return errors.New(errors.ErrCodePublishFailed, "publisher closed")
	}

	event := QueryUnderstoodEvent{
		EventID:         uuid.NewString(),
		OccurredAt:      time.Now().UTC(),
		NormalizedQuery: res.NormalizedQuery,
		ConfigVersion:   res.ConfigVersion,
		Entities:        res.Entities,
		Gate:            res.Gate,
		DurationMs:      totalDurationMs(res),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal understood event")
	}

	msg := kafkago.Message{
		Topic: TopicQueryUnderstood,
		Key:   []byte(res.NormalizedQuery),
		Value: value,
		Time:  event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodePublishFailed, "write understood event")
	}

	p.sent.Add(1)
	p.logger.Debug("published understood event",
		logging.String("event_id", event.EventID),
		logging.String("config_version", event.ConfigVersion),
		logging.Int("entities", len(event.Entities)),
	)
	return nil
}

// PublishUnderstoodAsync publishes without blocking the caller; failures are
// logged.
func (p *Publisher) PublishUnderstoodAsync(res *query.Result) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.PublishUnderstood(ctx, res); err != nil {
			p.logger.Warn("async event publish failed", logging.Err(err))
		}
	}()
}

// Sent reports the number of successfully written events.
func (p *Publisher) Sent() int64 { return p.sent.Load() }

// Failed reports the number of failed writes.
func (p *Publisher) Failed() int64 { return p.failed.Load() }

// Close flushes and closes the underlying writer. Idempotent.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka publisher closed", logging.Int64("sent", p.sent.Load()))
	return err
}

func totalDurationMs(res *query.Result) int64 {
	var total time.Duration
	for _, t := range res.Timings {
		total += t.Duration
	}
	return total.Milliseconds()
}
