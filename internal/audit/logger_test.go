package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/events"
	"github.com/adpilot/backend/internal/models"
)

type fakeStore struct {
	saved []models.AuditEvent
	err   error
}

func (f *fakeStore) Log(_ context.Context, e *models.AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *e)
	return nil
}

type fakePublisher struct {
	streams []string
	events  []events.Event
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, stream string, ev events.Event) error {
	f.streams = append(f.streams, stream)
	f.events = append(f.events, ev)
	return f.err
}

func TestLoggerRecord(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	l := NewLogger(store, pub, zap.NewNop())

	project := uuid.New()
	entity := uuid.New()
	err := l.Record(context.Background(), models.AuditEvent{
		EventType:     models.EventStateTransition,
		Source:        models.SourceUI,
		ProjectID:     &project,
		EntityType:    models.EntityAsset,
		EntityID:      entity,
		PreviousState: models.StrPtr("APPROVED"),
		NewState:      models.StrPtr("READY_FOR_LAUNCH"),
	})
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.NotEqual(t, uuid.Nil, saved.EventID)
	assert.False(t, saved.Timestamp.IsZero())

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.StreamAudit, pub.streams[0])
	ev := pub.events[0]
	assert.Equal(t, events.EventAuditRecorded, ev.Type)
	assert.Equal(t, project.String(), ev.ProjectID)
	assert.Equal(t, "READY_FOR_LAUNCH", ev.Payload["new_state"])
	assert.NotContains(t, ev.Payload, "reason")
}

func TestLoggerDefaultsSource(t *testing.T) {
	store := &fakeStore{}
	l := NewLogger(store, nil, zap.NewNop())

	require.NoError(t, l.Record(context.Background(), models.AuditEvent{
		EventType:  models.EventSkipped,
		EntityType: models.EntityCampaign,
		EntityID:   uuid.New(),
	}))
	assert.Equal(t, models.SourceSystem, store.saved[0].Source)
}

func TestLoggerStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	pub := &fakePublisher{}
	l := NewLogger(store, pub, zap.NewNop())

	err := l.Record(context.Background(), models.AuditEvent{EventType: models.EventGuardBlocked, EntityID: uuid.New()})
	assert.Error(t, err)
	assert.Empty(t, pub.events, "nothing is broadcast for an event that was not persisted")
}

func TestLoggerPublishFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("redis down")}
	l := NewLogger(store, pub, zap.NewNop())

	err := l.Record(context.Background(), models.AuditEvent{EventType: models.EventActionExecuted, EntityID: uuid.New()})
	assert.NoError(t, err)
	assert.Len(t, store.saved, 1)
}

func TestMemoryOfType(t *testing.T) {
	m := &Memory{}
	ctx := context.Background()
	_ = m.Record(ctx, models.AuditEvent{EventType: models.EventSkipped})
	_ = m.Record(ctx, models.AuditEvent{EventType: models.EventGuardBlocked})
	_ = m.Record(ctx, models.AuditEvent{EventType: models.EventSkipped})

	assert.Len(t, m.OfType(models.EventSkipped), 2)
	assert.Len(t, m.OfType(models.EventGuardBlocked), 1)
	assert.Empty(t, m.OfType(models.EventActionFailed))
}
