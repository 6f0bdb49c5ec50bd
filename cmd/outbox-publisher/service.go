package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/config"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	"github.com/angelmondragon/commission-engine/pkg/logger"
	"github.com/angelmondragon/commission-engine/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

const (
	parkedUndeliverable = "undeliverable"
	parkedAttempts      = "attempts_exhausted"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// Resume reopens an ordering key after a failed publish.
	Resume(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type topicPublisherFactory func(topic string) topicPublisher

// PublisherParams wires the commission event relay.
type PublisherParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           dbClient
	PubSub       pubSubClient
	Repository   outboxRepository
	Registry     registryResolver
	TopicFactory topicPublisherFactory
}

// Publisher relays commission outbox rows to Pub/Sub. Messages carry the
// payment or batch id as ordering key so one aggregate's lifecycle arrives
// in the order it was recorded.
type Publisher struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	pubsub      pubSubClient
	registry    registryResolver
	newTopic    topicPublisherFactory
	batchSize   int
	maxAttempts int
	poll        time.Duration

	mu     sync.Mutex
	topics map[string]topicPublisher
}

type deliveryOutcome int

const (
	delivered deliveryOutcome = iota
	retryLater
	parked
)

type drainStats struct {
	delivered int
	retried   int
	parked    int
	held      int
}

func (d drainStats) empty() bool {
	return d.delivered+d.retried+d.parked+d.held == 0
}

func NewPublisher(params PublisherParams) (*Publisher, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	factory := params.TopicFactory
	if factory == nil {
		factory = func(topic string) topicPublisher {
			handle := params.PubSub.Publisher(topic)
			if handle == nil {
				return nil
			}
			handle.EnableMessageOrdering = true
			return &gcpTopic{Publisher: handle}
		}
	}

	out := params.Config.Outbox
	batch := out.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := out.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	attempts := out.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	return &Publisher{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		pubsub:      params.PubSub,
		registry:    params.Registry,
		newTopic:    factory,
		batchSize:   batch,
		maxAttempts: attempts,
		poll:        time.Duration(pollMs) * time.Millisecond,
		topics:      map[string]topicPublisher{},
	}, nil
}

// Run drains the outbox until ctx is cancelled, backing off while the
// database or Pub/Sub keep failing.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.stopTopics()

	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := p.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("commission topic ping failed: %w", err)
	}

	backoff := p.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := p.drain(ctx)
		if err != nil {
			p.logg.Error(ctx, "commission event drain failed", err)
			backoff = nextBackoff(backoff, p.poll, maxBackoff)
			if err := sleepCtx(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = p.poll

		if !stats.empty() {
			p.logg.Info(p.logg.WithFields(ctx, map[string]any{
				"delivered": stats.delivered,
				"retried":   stats.retried,
				"parked":    stats.parked,
				"held_back": stats.held,
			}), "commission events drained")
		}
		// a full batch of deliveries means more rows are probably waiting
		if stats.delivered+stats.parked == p.batchSize {
			continue
		}
		if err := sleepCtx(ctx, withJitter(p.poll)); err != nil {
			return err
		}
	}
}

// drain claims one batch of rows and delivers them inside a single
// transaction. Once a row fails, later rows for the same payment or batch are
// held back so subscribers never see them out of order.
func (p *Publisher) drain(ctx context.Context) (drainStats, error) {
	var stats drainStats
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := p.repo.FetchUnpublishedForPublish(tx, p.batchSize, p.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch commission events: %w", err)
		}

		blocked := map[uuid.UUID]bool{}
		for _, row := range rows {
			if blocked[row.AggregateID] {
				stats.held++
				continue
			}
			outcome, err := p.deliver(ctx, tx, row)
			if err != nil {
				return err
			}
			switch outcome {
			case delivered:
				stats.delivered++
			case retryLater:
				stats.retried++
				blocked[row.AggregateID] = true
			case parked:
				stats.parked++
			}
		}
		return nil
	})
	return stats, err
}

func (p *Publisher) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (deliveryOutcome, error) {
	logCtx := p.logg.WithFields(ctx, rowFields(row))

	resolved, err := p.registry.Resolve(row)
	if err != nil {
		return parked, p.park(logCtx, tx, row, parkedUndeliverable, err)
	}
	logCtx = p.logg.WithFields(logCtx, map[string]any{
		"organizer_id": resolved.OrganizerID,
		"event_id":     resolved.Envelope.EventID,
		"topic":        resolved.Descriptor.Topic,
	})

	if err := p.publish(ctx, row, resolved); err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			return parked, p.park(logCtx, tx, row, parkedUndeliverable, err)
		}
		if row.AttemptCount+1 >= p.maxAttempts {
			return parked, p.park(logCtx, tx, row, parkedAttempts, fmt.Errorf("gave up after %d attempts: %w", p.maxAttempts, err))
		}
		p.logg.Warn(p.logg.WithField(logCtx, "error", err.Error()), "commission event publish failed, will retry")
		if markErr := p.repo.MarkFailedTx(tx, row.ID, err); markErr != nil {
			return retryLater, fmt.Errorf("record failed attempt for %s: %w", row.ID, markErr)
		}
		return retryLater, nil
	}

	if err := p.repo.MarkPublishedTx(tx, row.ID); err != nil {
		return delivered, fmt.Errorf("mark %s published: %w", row.ID, err)
	}
	p.logg.Info(logCtx, "commission event published")
	return delivered, nil
}

// park leaves the row in place with attempt_count at the ceiling. The fetch
// query skips it and the retention job deletes it later.
func (p *Publisher) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason string, cause error) error {
	p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
		"parked_reason": reason,
		"error":         cause.Error(),
	}), "commission event parked")
	if err := p.repo.MarkTerminalTx(tx, row.ID, cause, p.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := p.topic(resolved.Descriptor.Topic)
	if topic == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", resolved.Descriptor.Topic))
	}

	msg := commissionMessage(row, resolved)
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := topic.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", resolved.Descriptor.Topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		topic.Resume(msg.OrderingKey)
		return err
	}
	return nil
}

func (p *Publisher) topic(name string) topicPublisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	if handle, ok := p.topics[name]; ok {
		return handle
	}
	handle := p.newTopic(name)
	if handle != nil {
		p.topics[name] = handle
	}
	return handle
}

func (p *Publisher) stopTopics() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, handle := range p.topics {
		handle.Stop()
		delete(p.topics, name)
	}
}

// commissionMessage carries the stored envelope untouched. Attributes let
// subscribers filter by organizer and event type without decoding the body.
func commissionMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"organizer_id":   resolved.OrganizerID,
		"schema_version": strconv.Itoa(resolved.Envelope.Version),
		"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	return &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  attrs,
		OrderingKey: row.AggregateID.String(),
	}
}

func rowFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    string(row.EventType),
		"attempt_count": row.AttemptCount,
	}
	switch row.AggregateType {
	case enums.AggregatePayoutBatch:
		fields["batch_id"] = row.AggregateID.String()
	default:
		fields["payment_id"] = row.AggregateID.String()
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < max {
		return next
	}
	return max
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

type gcpTopic struct {
	*gcppubsub.Publisher
}

func (t *gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.Publisher.Publish(ctx, msg)
}

func (t *gcpTopic) Resume(orderingKey string) {
	if orderingKey != "" {
		t.Publisher.ResumePublish(orderingKey)
	}
}
