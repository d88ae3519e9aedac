package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/lib/pq"

	"github.com/medflow/stockledger/pkg/actor"
	"github.com/medflow/stockledger/pkg/database"
	"github.com/medflow/stockledger/pkg/errors"
)

// UserCacheRepository keeps the display data of users seen on user events,
// so transaction reads can show who recorded them.
type UserCacheRepository struct {
	db *database.DB
}

// NewUserCacheRepository creates a new user cache repository
func NewUserCacheRepository(db *database.DB) *UserCacheRepository {
	return &UserCacheRepository{db: db}
}

// Set creates or updates a cached user
func (r *UserCacheRepository) Set(ctx context.Context, user *actor.UserCache) error {
	query := `
		INSERT INTO user_cache (user_id, first_name, last_name, email, role_name, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET first_name = $2, last_name = $3, email = NULLIF($4, ''), role_name = NULLIF($5, ''), updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, user.UserID, user.FirstName, user.LastName, user.Email, user.RoleName)
	if err != nil {
		return mapErr(err, "upsert cached user")
	}
	return nil
}

// Get gets a cached user by ID
func (r *UserCacheRepository) Get(ctx context.Context, userID string) (*actor.UserCache, error) {
	var user actor.UserCache
	query := `
		SELECT user_id, first_name, last_name, COALESCE(email, '') AS email, COALESCE(role_name, '') AS role_name
		FROM user_cache WHERE user_id = $1
	`
	if err := r.db.GetContext(ctx, &user, query, userID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("user")
		}
		return nil, mapErr(err, "get cached user")
	}
	return &user, nil
}

// Names resolves display names for the given user IDs. Unknown IDs are absent
// from the result.
func (r *UserCacheRepository) Names(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	var users []actor.UserCache
	query := `
		SELECT user_id, first_name, last_name, COALESCE(email, '') AS email, COALESCE(role_name, '') AS role_name
		FROM user_cache WHERE user_id = ANY($1)
	`
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(userIDs)); err != nil {
		return nil, mapErr(err, "resolve user names")
	}

	for i := range users {
		names[users[i].UserID] = users[i].FullName()
	}
	return names, nil
}

// Delete deletes a cached user
func (r *UserCacheRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_cache WHERE user_id = $1`, userID)
	if err != nil {
		return mapErr(err, "delete cached user")
	}
	return nil
}
