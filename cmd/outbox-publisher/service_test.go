package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commission-engine/pkg/config"
	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
	"github.com/angelmondragon/commission-engine/pkg/logger"
	"github.com/angelmondragon/commission-engine/pkg/outbox"
	"github.com/angelmondragon/commission-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/commission-engine/pkg/outbox/registry"
)

const testTopic = "commission-events"

func commissionEvent(t *testing.T, eventID string, attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCommissionPaid,
		AggregateType: enums.AggregateCommissionPayment,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, eventID),
		AttemptCount:  attempts,
	}
}

func resolvedCommission() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         testTopic,
			AggregateType: enums.AggregateCommissionPayment,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.CommissionPaidEvent{},
	}
}

func TestDrainContinuesWithOtherPaymentsAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			commissionEvent(t, "event-one", 0),
			commissionEvent(t, "event-two", 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	relay := newTestPublisher(t, repo, pub, &fakeRegistry{resolved: resolvedCommission()}, nil)

	stats, err := relay.drain(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if stats.delivered != 1 || stats.retried != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected two publish attempts, got %d", len(pub.messages))
	}
	if got := pub.messages[1].Attributes["event_type"]; got != string(enums.EventCommissionPaid) {
		t.Fatalf("unexpected event_type attribute %q", got)
	}
}

func TestDrainParksUndeliverableEvents(t *testing.T) {
	event := commissionEvent(t, "nonretryable", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	relay := newTestPublisher(t, repo, &fakePublisher{}, reg, nil)

	stats, err := relay.drain(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if stats.parked != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row parked as terminal, got %v", repo.terminal)
	}
	if repo.terminalAttempts != 5 {
		t.Fatalf("expected terminal attempts 5, got %d", repo.terminalAttempts)
	}
	if len(repo.published) != 0 {
		t.Fatalf("non-retryable row must not be published")
	}
}

func TestDrainParksWhenAttemptsExhausted(t *testing.T) {
	event := commissionEvent(t, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	relay := newTestPublisher(t, repo, pub, &fakeRegistry{resolved: resolvedCommission()}, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row parked after max attempts, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal row should not also be marked failed")
	}
}

func TestDrainIdle(t *testing.T) {
	relay := newTestPublisher(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, nil)
	stats, err := relay.drain(context.Background())
	if err != nil || !stats.empty() {
		t.Fatalf("expected idle drain, got %+v err=%v", stats, err)
	}
}

func TestDrainHoldsBackLaterEventsOfFailedPayment(t *testing.T) {
	created := commissionEvent(t, "created", 0)
	paid := commissionEvent(t, "paid", 0)
	paid.AggregateID = created.AggregateID
	other := commissionEvent(t, "other", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{created, paid, other}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("unavailable")},
			fakePublishResult{},
		},
	}
	relay := newTestPublisher(t, repo, pub, &fakeRegistry{resolved: resolvedCommission()}, &config.OutboxConfig{
		BatchSize:      3,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	})

	stats, err := relay.drain(context.Background())
	if err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if stats.retried != 1 || stats.held != 1 || stats.delivered != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(pub.messages) != 2 {
		t.Fatalf("held back event must not be published, got %d publishes", len(pub.messages))
	}
	if pub.messages[1].OrderingKey != other.AggregateID.String() {
		t.Fatalf("expected the other payment to be published second")
	}
	if len(pub.resumed) != 1 || pub.resumed[0] != created.AggregateID.String() {
		t.Fatalf("expected failed ordering key to be resumed, got %v", pub.resumed)
	}
	if len(repo.published) != 1 || repo.published[0] != other.ID {
		t.Fatalf("unexpected published rows %v", repo.published)
	}
}

func TestCommissionMessageAttributes(t *testing.T) {
	row := commissionEvent(t, "evt-1", 0)
	resolved := resolvedCommission()
	resolved.Envelope.Version = 1
	resolved.OrganizerID = "org-9"

	msg := commissionMessage(row, resolved)

	if msg.OrderingKey != row.AggregateID.String() {
		t.Fatalf("ordering key should be the payment id, got %q", msg.OrderingKey)
	}
	want := map[string]string{
		"event_type":     string(enums.EventCommissionPaid),
		"aggregate_type": string(enums.AggregateCommissionPayment),
		"organizer_id":   "org-9",
		"schema_version": "1",
	}
	for key, value := range want {
		if got := msg.Attributes[key]; got != value {
			t.Fatalf("attribute %s: expected %q, got %q", key, value, got)
		}
	}
	if string(msg.Data) != string(row.Payload) {
		t.Fatalf("payload must be relayed unchanged")
	}
}

func TestRowFieldsNameTheAggregate(t *testing.T) {
	row := commissionEvent(t, "evt", 2)
	if _, ok := rowFields(row)["payment_id"]; !ok {
		t.Fatalf("expected payment_id for commission rows")
	}
	row.AggregateType = enums.AggregatePayoutBatch
	if _, ok := rowFields(row)["batch_id"]; !ok {
		t.Fatalf("expected batch_id for batch rows")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("unexpected first backoff %v", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap, got %v", got)
	}
}

func newTestPublisher(t *testing.T, repo outboxRepository, pub topicPublisher, reg registryResolver, outboxCfgOverride *config.OutboxConfig) *Publisher {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
		PubSub: config.PubSubConfig{CommissionTopic: testTopic},
	}
	logg := logger.New(logger.Options{
		ServiceName: "commission-relay-test",
		Output:      io.Discard,
	})
	relay, err := NewPublisher(PublisherParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: repo,
		Registry:   reg,
		TopicFactory: func(topic string) topicPublisher {
			if topic != testTopic {
				t.Fatalf("unexpected topic %q", topic)
			}
			return pub
		},
	})
	if err != nil {
		t.Fatalf("failed to construct publisher: %v", err)
	}
	return relay
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events           []models.OutboxEvent
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = terminalAttempts
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	resumed  []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func (f *fakePublisher) Resume(orderingKey string) {
	f.resumed = append(f.resumed, orderingKey)
}

func (f *fakePublisher) Stop() {}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	resolved.OrganizerID = "org-1"
	return &resolved, f.err
}
