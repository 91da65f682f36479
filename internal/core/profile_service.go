package core

import (
	"context"

	"lawly.io/sow-wizard/internal/store"
)

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
	SetWelcomeSeen(ctx context.Context, userID string) (*store.Profile, error)
}

// ProfileService gates the one-time welcome screen. The flag only ever moves to true.
type ProfileService struct {
	profiles ProfileStore
}

func NewProfileService(profiles ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) GetProfile(ctx context.Context, owner string) (*store.Profile, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}
	profile, err := s.profiles.GetProfile(ctx, owner)
	if err != nil {
		return nil, storeError("get profile", err)
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	return profile, nil
}

func (s *ProfileService) SetWelcomeSeen(ctx context.Context, owner string) (*store.Profile, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}
	profile, err := s.profiles.SetWelcomeSeen(ctx, owner)
	if err != nil {
		return nil, storeError("set welcome seen", err)
	}
	return profile, nil
}
