package service

import (
	"context"

	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
)

// profiles resolves author profiles relative to a viewer, memoising per request so a page
// of articles by the same author costs one lookup.
type profiles struct {
	users     repository.UserRepository
	relations repository.RelationshipRepository
	seen      map[string]domain.Profile
}

func newProfiles(users repository.UserRepository, relations repository.RelationshipRepository) *profiles {
	return &profiles{
		users:     users,
		relations: relations,
		seen:      make(map[string]domain.Profile),
	}
}

func (p *profiles) of(ctx context.Context, viewerID, userID string) (domain.Profile, error) {
	if prof, ok := p.seen[userID]; ok {
		return prof, nil
	}
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	prof, err := p.forUser(ctx, viewerID, user)
	if err != nil {
		return domain.Profile{}, err
	}
	p.seen[userID] = prof
	return prof, nil
}

func (p *profiles) forUser(ctx context.Context, viewerID string, user *domain.User) (domain.Profile, error) {
	following := false
	if viewerID != "" && viewerID != user.ID {
		var err error
		following, err = p.relations.IsFollowing(ctx, viewerID, user.ID)
		if err != nil {
			return domain.Profile{}, err
		}
	}
	return domain.ProfileOf(user, following), nil
}
