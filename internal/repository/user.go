package repository

import (
	"context"

	"conduit-api/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// UsernameTaken reports whether another user (not exceptID) owns username.
	UsernameTaken(ctx context.Context, username, exceptID string) (bool, error)
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	Update(ctx context.Context, id string, changes domain.UserChanges) (*domain.User, error)
}

// RelationshipRepository stores follower→followee edges. Each call changes both sides of
// an edge at once.
type RelationshipRepository interface {
	Init(ctx context.Context) error
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	// Following lists the ids userID follows, oldest edge first.
	Following(ctx context.Context, userID string) ([]string, error)
}
