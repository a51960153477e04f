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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/pkg/config"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	"github.com/hermagulator/shopbot/pkg/logger"
	"github.com/hermagulator/shopbot/pkg/outbox"
)

type stubDB struct{}

func (stubDB) Ping(context.Context) error {
	return nil
}

func (stubDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (s *stubRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return s.events, nil
}

func (s *stubRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	s.terminal = append(s.terminal, id)
	return nil
}

type stubDLQ struct {
	entries []models.OutboxDLQ
}

func (s *stubDLQ) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	s.entries = append(s.entries, entry)
	return nil
}

type stubResult struct {
	err error
}

func (r stubResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}

type stubPublisher struct {
	err      error
	messages []*gcppubsub.Message
}

func (p *stubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	return stubResult{err: p.err}
}

func newTestService(t *testing.T, repo *stubRepo, dlq *stubDLQ, pub *stubPublisher) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Config:        &config.Config{},
		Logger:        logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:            stubDB{},
		Publisher:     pub,
		Repository:    repo,
		DLQRepository: dlq,
	})
	require.NoError(t, err)
	return svc
}

func outboxEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()

	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"orderId":"abc"}`),
	})
	require.NoError(t, err)

	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.NewString(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func TestProcessBatchPublishes(t *testing.T) {
	repo := &stubRepo{events: []models.OutboxEvent{outboxEvent(t, 0)}}
	dlq := &stubDLQ{}
	pub := &stubPublisher{}
	svc := newTestService(t, repo, dlq, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Len(t, repo.published, 1)
	assert.Empty(t, repo.failed)
	assert.Empty(t, dlq.entries)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, string(enums.EventOrderCreated), pub.messages[0].Attributes["event_type"])
}

func TestProcessBatchEmpty(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubDLQ{}, &stubPublisher{})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessBatchMarksFailedOnPublishError(t *testing.T) {
	event := outboxEvent(t, 0)
	repo := &stubRepo{events: []models.OutboxEvent{event}}
	dlq := &stubDLQ{}
	svc := newTestService(t, repo, dlq, &stubPublisher{err: errors.New("topic unavailable")})

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.failed)
	assert.Empty(t, repo.published)
	assert.Empty(t, dlq.entries)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := outboxEvent(t, defaultMaxAttempts-1)
	repo := &stubRepo{events: []models.OutboxEvent{event}}
	dlq := &stubDLQ{}
	svc := newTestService(t, repo, dlq, &stubPublisher{err: errors.New("topic unavailable")})

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, dlqReasonMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Equal(t, event.ID, dlq.entries[0].EventID)
}

func TestProcessBatchDeadLettersMalformedPayload(t *testing.T) {
	event := outboxEvent(t, 0)
	event.Payload = json.RawMessage(`{not json`)
	repo := &stubRepo{events: []models.OutboxEvent{event}}
	dlq := &stubDLQ{}
	pub := &stubPublisher{}
	svc := newTestService(t, repo, dlq, pub)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pub.messages)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, dlqReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestNextBackoffCapped(t *testing.T) {
	base := 500 * time.Millisecond
	current := base
	for range 10 {
		current = nextBackoff(current, base, maxBackoff)
	}
	assert.Equal(t, maxBackoff, current)
}
