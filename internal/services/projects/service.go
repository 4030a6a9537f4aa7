// Package projects implements project CRUD and membership management. Every
// mutation runs the authorization gate before touching storage.
package projects

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/domain/activity"
	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/storage"
	"github.com/taskhive/taskhive/pkg/logger"
)

// Service manages projects and their membership.
type Service struct {
	users    storage.UserStore
	store    storage.ProjectStore
	activity storage.ActivityStore
	checker  *authz.Checker
	log      *logger.Logger
}

// New constructs a project service.
func New(users storage.UserStore, store storage.ProjectStore, activityStore storage.ActivityStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("projects")
	}
	return &Service{
		users:    users,
		store:    store,
		activity: activityStore,
		checker:  authz.NewChecker(store, store),
		log:      log,
	}
}

// Checker exposes the authorization gate for collaborators (tasks service,
// HTTP layer).
func (s *Service) Checker() *authz.Checker { return s.checker }

// CreateInput carries the caller-supplied fields for project creation.
type CreateInput struct {
	Name        string
	Description string
	Color       string
}

// Create makes the caller the owner of a new project. An unset color is
// drawn from the fixed palette; is_personal always starts false.
func (s *Service) Create(ctx context.Context, callerID string, in CreateInput) (project.Project, error) {
	p := project.Project{
		OwnerID:     callerID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Color:       strings.TrimSpace(in.Color),
		IsPersonal:  false,
	}
	if err := validateFields(p); err != nil {
		return project.Project{}, err
	}
	if p.Color == "" {
		p.Color = project.Palette[rand.Intn(len(project.Palette))]
	}

	created, err := s.store.CreateProject(ctx, p)
	if err != nil {
		return project.Project{}, translate(err, "project", p.Name)
	}

	s.logActivity(ctx, created.ID, callerID, "project.created", created.ID, created.Name)
	s.log.WithField("project_id", created.ID).WithField("owner_id", callerID).Info("project created")
	return created, nil
}

// Get returns a project to a member or its owner.
func (s *Service) Get(ctx context.Context, callerID, id string) (project.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return project.Project{}, translate(err, "project", id)
	}
	if !s.checker.IsMember(ctx, callerID, id) {
		return project.Project{}, apperr.Permission("not a member of this project")
	}
	return p, nil
}

// List returns the projects the caller owns or belongs to.
func (s *Service) List(ctx context.Context, callerID string) ([]project.Project, error) {
	return s.store.ListProjects(ctx, callerID)
}

// UpdateInput carries optional field changes; nil means unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Color       *string
}

// Update applies field changes. Owner-only.
func (s *Service) Update(ctx context.Context, callerID, id string, in UpdateInput) (project.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return project.Project{}, translate(err, "project", id)
	}
	if p.OwnerID != callerID {
		return project.Project{}, apperr.Permission("only the project owner may update it")
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Color != nil {
		p.Color = strings.TrimSpace(*in.Color)
	}
	if err := validateFields(p); err != nil {
		return project.Project{}, err
	}

	updated, err := s.store.UpdateProject(ctx, p)
	if err != nil {
		return project.Project{}, translate(err, "project", id)
	}
	s.logActivity(ctx, id, callerID, "project.updated", id, updated.Name)
	return updated, nil
}

// Delete removes a project and cascades to its tasks and membership rows.
// Owner-only.
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return translate(err, "project", id)
	}
	if p.OwnerID != callerID {
		return apperr.Permission("only the project owner may delete it")
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return translate(err, "project", id)
	}
	s.log.WithField("project_id", id).WithField("owner_id", callerID).Info("project deleted")
	return nil
}

// AddMember adds a user to the project's member set. Owner-only. Adding the
// owner is a no-op: ownership already implies membership.
func (s *Service) AddMember(ctx context.Context, callerID, projectID, userID string) error {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return translate(err, "project", projectID)
	}
	if p.OwnerID != callerID {
		return apperr.Permission("only the project owner may manage membership")
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return translate(err, "user", userID)
	}
	if userID == p.OwnerID {
		return nil
	}
	if err := s.store.AddProjectMember(ctx, projectID, userID); err != nil {
		return translate(err, "project", projectID)
	}
	s.logActivity(ctx, projectID, callerID, "member.added", userID, "")
	return nil
}

// RemoveMember removes a user from the member set. Owner-only. Tasks already
// assigned to the removed user keep their assignee; reassignment is the
// owner's call.
func (s *Service) RemoveMember(ctx context.Context, callerID, projectID, userID string) error {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return translate(err, "project", projectID)
	}
	if p.OwnerID != callerID {
		return apperr.Permission("only the project owner may manage membership")
	}
	if err := s.store.RemoveProjectMember(ctx, projectID, userID); err != nil {
		return translate(err, "project", projectID)
	}
	s.logActivity(ctx, projectID, callerID, "member.removed", userID, "")
	return nil
}

// Activity returns the recent activity feed for members and the owner.
func (s *Service) Activity(ctx context.Context, callerID, projectID string, limit int) ([]activity.Entry, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, translate(err, "project", projectID)
	}
	if !s.checker.IsMember(ctx, callerID, projectID) {
		return nil, apperr.Permission("not a member of this project")
	}
	return s.activity.ListActivity(ctx, projectID, limit)
}

func (s *Service) logActivity(ctx context.Context, projectID, actorID, action, entityID, detail string) {
	if s.activity == nil {
		return
	}
	_, err := s.activity.LogActivity(ctx, activity.Entry{
		ProjectID:  projectID,
		ActorID:    actorID,
		Action:     action,
		EntityType: "project",
		EntityID:   entityID,
		Detail:     detail,
	})
	if err != nil {
		s.log.WithError(err).Warn("record activity")
	}
}

func validateFields(p project.Project) error {
	if p.Name == "" {
		return apperr.Validation("name", "name is required")
	}
	if len(p.Name) > project.NameMax {
		return apperr.Validation("name", fmt.Sprintf("name exceeds %d characters", project.NameMax))
	}
	if len(p.Description) > project.DescriptionMax {
		return apperr.Validation("description", fmt.Sprintf("description exceeds %d characters", project.DescriptionMax))
	}
	if p.Color != "" && !project.ColorPattern.MatchString(p.Color) {
		return apperr.Validation("color", "color must be a hex value like #336699")
	}
	return nil
}

func translate(err error, entity, id string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(entity, id)
	case errors.Is(err, storage.ErrDuplicateName):
		return apperr.Conflict("project name already in use")
	default:
		return err
	}
}
