package consumers

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/stockledger/pkg/actor"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/logger"
	"github.com/medflow/stockledger/pkg/messaging"
)

type fakeCache struct {
	users map[string]*actor.UserCache
}

func (f *fakeCache) Set(_ context.Context, user *actor.UserCache) error {
	u := *user
	f.users[user.UserID] = &u
	return nil
}

func (f *fakeCache) Get(_ context.Context, userID string) (*actor.UserCache, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, errors.NotFound("user")
	}
	copied := *u
	return &copied, nil
}

func (f *fakeCache) Delete(_ context.Context, userID string) error {
	delete(f.users, userID)
	return nil
}

func newTestConsumer() (*UserEventConsumer, *fakeCache) {
	cache := &fakeCache{users: map[string]*actor.UserCache{}}
	return newUserEventConsumer(cache, logger.NewWithWriter(io.Discard, "test")), cache
}

func event(t *testing.T, eventType string, data any) *messaging.Event {
	t.Helper()
	e, err := messaging.NewEvent(eventType, "user-service", "", data)
	require.NoError(t, err)
	return e
}

func TestUserEvents_CreateUpdateDelete(t *testing.T) {
	c, cache := newTestConsumer()
	ctx := context.Background()

	err := c.handleUserCreated(ctx, event(t, messaging.EventUserCreated, messaging.UserCreatedEvent{
		UserID: "u-1", FirstName: "Ana", LastName: "Cruz", Email: "ana@example.com", RoleName: "pharmacist",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Ana Cruz", cache.users["u-1"].FullName())

	err = c.handleUserUpdated(ctx, event(t, messaging.EventUserUpdated, messaging.UserUpdatedEvent{
		UserID: "u-1",
		Fields: map[string]any{
			"last_name": map[string]any{"from": "Cruz", "to": "Reyes"},
			"phone":     map[string]any{"from": "1", "to": "2"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Ana Reyes", cache.users["u-1"].FullName())
	assert.Equal(t, "pharmacist", cache.users["u-1"].RoleName)

	err = c.handleUserDeleted(ctx, event(t, messaging.EventUserDeleted, messaging.UserDeletedEvent{UserID: "u-1"}))
	require.NoError(t, err)
	assert.Empty(t, cache.users)
}

func TestUserEvents_UpdateForUnknownUserIsIgnored(t *testing.T) {
	c, cache := newTestConsumer()

	err := c.handleUserUpdated(context.Background(), event(t, messaging.EventUserUpdated, messaging.UserUpdatedEvent{
		UserID: "ghost",
		Fields: map[string]any{"first_name": map[string]any{"to": "Casper"}},
	}))

	require.NoError(t, err)
	assert.Empty(t, cache.users)
}

func TestUserEvents_MalformedPayload(t *testing.T) {
	c, _ := newTestConsumer()

	err := c.handleUserCreated(context.Background(), &messaging.Event{Data: []byte(`"not an object"`)})
	assert.Error(t, err)
}
