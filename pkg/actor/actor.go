// Package actor identifies who performs an inventory action.
//
// The gateway authenticates the caller and forwards an opaque user ID; the
// service stores that ID as created_by on items, batches and dispensing
// transactions and renders names from a local copy of the user directory.
package actor

import (
	"context"
	"fmt"
	"strings"
)

// Actor is the authenticated user behind a request.
type Actor struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	RoleName  string `json:"role_name,omitempty"`
}

// FullName joins first and last name; empty for a nil actor
func (a *Actor) FullName() string {
	if a == nil {
		return ""
	}
	return joinName(a.FirstName, a.LastName)
}

// String is used in log lines
func (a *Actor) String() string {
	switch {
	case a == nil:
		return "anonymous"
	case a.Email == "":
		return a.ID
	default:
		return fmt.Sprintf("%s (%s)", a.FullName(), a.Email)
	}
}

type contextKey struct{}

// WithActor returns a copy of ctx carrying a
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the request's actor, or nil for anonymous reads and
// background work.
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(contextKey{}).(*Actor)
	return a
}

// IDFromContext returns the actor's ID, or "" when there is none
func IDFromContext(ctx context.Context) string {
	if a := FromContext(ctx); a != nil {
		return a.ID
	}
	return ""
}

// UserCache is the local copy of a user, kept current by user events.
type UserCache struct {
	UserID    string `json:"user_id" db:"user_id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	RoleName  string `json:"role_name" db:"role_name"`
}

func (uc *UserCache) FullName() string {
	if uc == nil {
		return ""
	}
	return joinName(uc.FirstName, uc.LastName)
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
