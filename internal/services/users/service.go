// Package users manages principals and the Discord account link.
package users

import (
	"context"
	"errors"

	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/domain/user"
	"github.com/taskhive/taskhive/internal/storage"
	"github.com/taskhive/taskhive/pkg/logger"
)

// Service reads principals and manages the Discord link.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperr.NotFound("user", id)
		}
		return user.User{}, err
	}
	return u, nil
}

// ResolveDiscord maps a Discord account to its linked tracker user.
func (s *Service) ResolveDiscord(ctx context.Context, discordID string) (user.User, error) {
	u, err := s.store.GetUserByDiscordID(ctx, discordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperr.NotFound("linked user", discordID)
		}
		return user.User{}, err
	}
	return u, nil
}

// LinkDiscord attaches a Discord account to a tracker user. A Discord id
// already linked to someone else is a conflict.
func (s *Service) LinkDiscord(ctx context.Context, userID, discordID string) (user.User, error) {
	if discordID == "" {
		return user.User{}, apperr.Validation("discord_id", "discord_id is required")
	}
	if existing, err := s.store.GetUserByDiscordID(ctx, discordID); err == nil && existing.ID != userID {
		return user.User{}, apperr.Conflict("discord account already linked")
	}

	u, err := s.Get(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	u.DiscordID = discordID
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", userID).Info("discord account linked")
	return updated, nil
}
