package service

import (
	"context"
	"strings"

	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
	"conduit-api/internal/validate"
)

type profileTarget struct {
	Username string `json:"username" validate:"notblank"`
}

// ProfileService reads profiles and manages follow relationships.
type ProfileService interface {
	Get(ctx context.Context, viewerID, username string) (domain.Profile, error)
	Follow(ctx context.Context, actorID, username string) (domain.Profile, error)
	Unfollow(ctx context.Context, actorID, username string) (domain.Profile, error)
}

type profileService struct {
	users     repository.UserRepository
	relations repository.RelationshipRepository
}

func NewProfileService(users repository.UserRepository, relations repository.RelationshipRepository) ProfileService {
	return &profileService{
		users:     users,
		relations: relations,
	}
}

func (s *profileService) Get(ctx context.Context, viewerID, username string) (domain.Profile, error) {
	target, err := s.target(ctx, username)
	if err != nil {
		return domain.Profile{}, err
	}
	return newProfiles(s.users, s.relations).forUser(ctx, viewerID, target)
}

func (s *profileService) Follow(ctx context.Context, actorID, username string) (domain.Profile, error) {
	target, err := s.mutableTarget(ctx, actorID, username)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := s.relations.Follow(ctx, actorID, target.ID); err != nil {
		return domain.Profile{}, err
	}
	return domain.ProfileOf(target, true), nil
}

func (s *profileService) Unfollow(ctx context.Context, actorID, username string) (domain.Profile, error) {
	target, err := s.mutableTarget(ctx, actorID, username)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := s.relations.Unfollow(ctx, actorID, target.ID); err != nil {
		return domain.Profile{}, err
	}
	return domain.ProfileOf(target, false), nil
}

func (s *profileService) target(ctx context.Context, username string) (*domain.User, error) {
	in := profileTarget{Username: strings.TrimSpace(username)}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// mutableTarget resolves the followee and rejects self-follows before anything changes.
func (s *profileService) mutableTarget(ctx context.Context, actorID, username string) (*domain.User, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	target, err := s.target(ctx, username)
	if err != nil {
		return nil, err
	}
	if target.ID == actorID {
		return nil, domain.Validation("cannot follow yourself")
	}
	return target, nil
}
