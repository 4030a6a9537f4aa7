// Package invites implements the admin invitation flow: admins mint
// single-use codes, new users redeem them.
package invites

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/domain/invite"
	"github.com/taskhive/taskhive/internal/domain/user"
	"github.com/taskhive/taskhive/internal/storage"
	"github.com/taskhive/taskhive/pkg/logger"
)

// Service manages invitations.
type Service struct {
	users storage.UserStore
	store storage.InviteStore
	log   *logger.Logger
}

// New constructs an invitation service.
func New(users storage.UserStore, store storage.InviteStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("invites")
	}
	return &Service{users: users, store: store, log: log}
}

// Create mints a new invitation code. Admin-only.
func (s *Service) Create(ctx context.Context, callerID, email string) (invite.Invitation, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return invite.Invitation{}, err
	}

	inv := invite.Invitation{
		Code:        uuid.NewString(),
		Email:       strings.TrimSpace(email),
		CreatedByID: callerID,
	}
	created, err := s.store.CreateInvite(ctx, inv)
	if err != nil {
		return invite.Invitation{}, err
	}
	s.log.WithField("invite_id", created.ID).WithField("created_by", callerID).Info("invitation created")
	return created, nil
}

// List returns all invitations. Admin-only.
func (s *Service) List(ctx context.Context, callerID string) ([]invite.Invitation, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	return s.store.ListInvites(ctx)
}

// Revoke voids an unused invitation. Admin-only.
func (s *Service) Revoke(ctx context.Context, callerID, code string) (invite.Invitation, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return invite.Invitation{}, err
	}
	inv, err := s.store.GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return invite.Invitation{}, apperr.NotFound("invitation", code)
		}
		return invite.Invitation{}, err
	}
	if inv.UsedByID != "" {
		return invite.Invitation{}, apperr.Conflict("invitation already used")
	}
	inv.Revoked = true
	return s.store.UpdateInvite(ctx, inv)
}

// Accept redeems an invitation and creates the new user. The invitation's
// email, when set, is carried onto the account.
func (s *Service) Accept(ctx context.Context, code, name string) (user.User, error) {
	inv, err := s.store.GetInviteByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperr.NotFound("invitation", code)
		}
		return user.User{}, err
	}
	if !inv.Usable() {
		return user.User{}, apperr.Conflict("invitation is no longer valid")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return user.User{}, apperr.Validation("name", "name is required")
	}

	created, err := s.users.CreateUser(ctx, user.User{Name: name, Email: inv.Email})
	if err != nil {
		return user.User{}, err
	}

	inv.UsedByID = created.ID
	inv.UsedAt = created.CreatedAt
	if _, err := s.store.UpdateInvite(ctx, inv); err != nil {
		return user.User{}, err
	}
	s.log.WithField("invite_id", inv.ID).WithField("user_id", created.ID).Info("invitation accepted")
	return created, nil
}

func (s *Service) requireAdmin(ctx context.Context, callerID string) error {
	caller, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Permission("unknown principal")
		}
		return err
	}
	if !caller.IsAdmin {
		return apperr.Permission("admin access required")
	}
	return nil
}
