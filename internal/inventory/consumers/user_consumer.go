// Package consumers keeps local read models in step with events from other
// services.
package consumers

import (
	"context"

	"github.com/medflow/stockledger/pkg/actor"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/logger"
	"github.com/medflow/stockledger/pkg/messaging"
)

const userEventsQueue = "inventory-service.user-events"

// UserCache is the store behind transaction actor names.
type UserCache interface {
	Set(ctx context.Context, user *actor.UserCache) error
	Get(ctx context.Context, userID string) (*actor.UserCache, error)
	Delete(ctx context.Context, userID string) error
}

// UserEventConsumer consumes user events
type UserEventConsumer struct {
	consumer *messaging.Consumer
	cache    UserCache
	logger   *logger.Logger
}

// NewUserEventConsumer creates a new user event consumer
func NewUserEventConsumer(rmq *messaging.RabbitMQ, cache UserCache, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, userEventsQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	c := newUserEventConsumer(cache, log)
	c.consumer = consumer

	consumer.RegisterHandler(messaging.EventUserCreated, c.handleUserCreated)
	consumer.RegisterHandler(messaging.EventUserUpdated, c.handleUserUpdated)
	consumer.RegisterHandler(messaging.EventUserDeleted, c.handleUserDeleted)

	return c, nil
}

func newUserEventConsumer(cache UserCache, log *logger.Logger) *UserEventConsumer {
	return &UserEventConsumer{
		cache:  cache,
		logger: log.WithComponent("user-consumer"),
	}
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *UserEventConsumer) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Str("name", data.FullName()).
		Msg("received user created event")

	return c.cache.Set(ctx, &actor.UserCache{
		UserID:    data.UserID,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     data.Email,
		RoleName:  data.RoleName,
	})
}

// handleUserUpdated applies the changed fields to the cached copy. Updates
// for users never seen are ignored; the next created event fills them in.
func (c *UserEventConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user updated event")

	existing, err := c.cache.Get(ctx, data.UserID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	fields := map[string]*string{
		"first_name": &existing.FirstName,
		"last_name":  &existing.LastName,
		"email":      &existing.Email,
		"role_name":  &existing.RoleName,
	}
	for field, target := range fields {
		if v, ok := data.ChangedTo(field); ok {
			*target = v
		}
	}

	return c.cache.Set(ctx, existing)
}

func (c *UserEventConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	return c.cache.Delete(ctx, data.UserID)
}
