// Package tasks implements task CRUD. Every mutation loads the target, runs
// the membership gate, validates fields, re-checks cross-entity invariants
// and only then persists.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/domain/activity"
	"github.com/taskhive/taskhive/internal/domain/task"
	"github.com/taskhive/taskhive/internal/storage"
	"github.com/taskhive/taskhive/pkg/logger"
)

// assigneeNotMemberMsg is the stable validation message for an assignee
// outside the project.
const assigneeNotMemberMsg = "Assigned user is not a member of this project"

// Service manages tasks within projects.
type Service struct {
	projects storage.ProjectStore
	store    storage.TaskStore
	activity storage.ActivityStore
	checker  *authz.Checker
	log      *logger.Logger
}

// New constructs a task service sharing the project store's membership view.
func New(projects storage.ProjectStore, store storage.TaskStore, activityStore storage.ActivityStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tasks")
	}
	return &Service{
		projects: projects,
		store:    store,
		activity: activityStore,
		checker:  authz.NewChecker(projects, projects),
		log:      log,
	}
}

// CreateInput carries the caller-supplied fields for task creation.
type CreateInput struct {
	ProjectID    string
	Name         string
	Description  string
	Status       string
	Priority     string
	AssignedToID string
	DueDate      string
}

// Create adds a task to a project the caller belongs to. Unspecified status
// and priority default to pending and none.
func (s *Service) Create(ctx context.Context, callerID string, in CreateInput) (task.Task, error) {
	if _, err := s.projects.GetProject(ctx, in.ProjectID); err != nil {
		return task.Task{}, translate(err, "project", in.ProjectID)
	}
	if !s.checker.IsMember(ctx, callerID, in.ProjectID) {
		return task.Task{}, apperr.Permission("not a member of this project")
	}

	t := task.Task{
		ProjectID:    in.ProjectID,
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Status:       task.Status(strings.TrimSpace(in.Status)),
		Priority:     task.Priority(strings.TrimSpace(in.Priority)),
		AssignedToID: strings.TrimSpace(in.AssignedToID),
		CreatedByID:  callerID,
	}
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	if t.Priority == "" {
		t.Priority = task.PriorityNone
	}

	due, err := parseDueDate(in.DueDate)
	if err != nil {
		return task.Task{}, err
	}
	t.DueDate = due

	if err := validateFields(t); err != nil {
		return task.Task{}, err
	}
	if err := s.checkAssignee(ctx, t.AssignedToID, t.ProjectID); err != nil {
		return task.Task{}, err
	}

	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return task.Task{}, translate(err, "task", "")
	}

	s.logActivity(ctx, created.ProjectID, callerID, "task.created", created.ID, created.Name)
	s.log.WithField("task_id", created.ID).WithField("project_id", created.ProjectID).Info("task created")
	return created, nil
}

// Get returns a task to members of its project.
func (s *Service) Get(ctx context.Context, callerID, id string) (task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return task.Task{}, translate(err, "task", id)
	}
	if !s.checker.IsMember(ctx, callerID, t.ProjectID) {
		return task.Task{}, apperr.Permission("not a member of this project")
	}
	return t, nil
}

// List returns a project's tasks to its members.
func (s *Service) List(ctx context.Context, callerID, projectID string) ([]task.Task, error) {
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, translate(err, "project", projectID)
	}
	if !s.checker.IsMember(ctx, callerID, projectID) {
		return nil, apperr.Permission("not a member of this project")
	}
	return s.store.ListTasks(ctx, projectID)
}

// ListAssignedTo returns the caller's assigned tasks across projects.
func (s *Service) ListAssignedTo(ctx context.Context, callerID string) ([]task.Task, error) {
	return s.store.ListTasksAssignedTo(ctx, callerID)
}

// UpdateInput carries optional field changes; nil means unchanged.
type UpdateInput struct {
	ProjectID    *string
	Name         *string
	Description  *string
	Status       *string
	Priority     *string
	AssignedToID *string
	DueDate      *string
}

// Update applies field changes to a task. The caller must be a member of the
// task's current project, and of the target project when moving the task.
// Assignee and target-project changes re-run the membership invariant before
// anything is persisted.
func (s *Service) Update(ctx context.Context, callerID, id string, in UpdateInput) (task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return task.Task{}, translate(err, "task", id)
	}
	if !s.checker.IsMember(ctx, callerID, t.ProjectID) {
		return task.Task{}, apperr.Permission("not a member of this project")
	}

	if in.ProjectID != nil && *in.ProjectID != t.ProjectID {
		target := strings.TrimSpace(*in.ProjectID)
		if _, err := s.projects.GetProject(ctx, target); err != nil {
			return task.Task{}, translate(err, "project", target)
		}
		if !s.checker.IsMember(ctx, callerID, target) {
			return task.Task{}, apperr.Permission("not a member of the target project")
		}
		t.ProjectID = target
	}
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		t.Status = task.Status(strings.TrimSpace(*in.Status))
	}
	if in.Priority != nil {
		t.Priority = task.Priority(strings.TrimSpace(*in.Priority))
	}
	if in.AssignedToID != nil {
		t.AssignedToID = strings.TrimSpace(*in.AssignedToID)
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return task.Task{}, err
		}
		t.DueDate = due
	}

	if err := validateFields(t); err != nil {
		return task.Task{}, err
	}
	// Re-check even when only the project changed: the old assignee may not
	// belong to the new project.
	if err := s.checkAssignee(ctx, t.AssignedToID, t.ProjectID); err != nil {
		return task.Task{}, err
	}

	updated, err := s.store.UpdateTask(ctx, t)
	if err != nil {
		return task.Task{}, translate(err, "task", id)
	}
	s.logActivity(ctx, updated.ProjectID, callerID, "task.updated", updated.ID, updated.Name)
	return updated, nil
}

// Complete marks a task completed. Convenience for the Discord surface.
func (s *Service) Complete(ctx context.Context, callerID, id string) (task.Task, error) {
	status := string(task.StatusCompleted)
	return s.Update(ctx, callerID, id, UpdateInput{Status: &status})
}

// Delete removes a task. Any member of its project may delete it.
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return translate(err, "task", id)
	}
	if !s.checker.IsMember(ctx, callerID, t.ProjectID) {
		return apperr.Permission("not a member of this project")
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return translate(err, "task", id)
	}
	s.logActivity(ctx, t.ProjectID, callerID, "task.deleted", t.ID, t.Name)
	return nil
}

// checkAssignee enforces the cross-entity invariant: a non-empty assignee
// must be a member or owner of the task's project.
func (s *Service) checkAssignee(ctx context.Context, assigneeID, projectID string) error {
	if assigneeID == "" {
		return nil
	}
	if !s.checker.IsMember(ctx, assigneeID, projectID) {
		return apperr.Validation("assigned_to_id", assigneeNotMemberMsg)
	}
	return nil
}

func (s *Service) logActivity(ctx context.Context, projectID, actorID, action, entityID, detail string) {
	if s.activity == nil {
		return
	}
	_, err := s.activity.LogActivity(ctx, activity.Entry{
		ProjectID:  projectID,
		ActorID:    actorID,
		Action:     action,
		EntityType: "task",
		EntityID:   entityID,
		Detail:     detail,
	})
	if err != nil {
		s.log.WithError(err).Warn("record activity")
	}
}

func validateFields(t task.Task) error {
	if t.Name == "" {
		return apperr.Validation("name", "name is required")
	}
	if len(t.Name) > task.NameMax {
		return apperr.Validation("name", fmt.Sprintf("name exceeds %d characters", task.NameMax))
	}
	if len(t.Description) > task.DescriptionMax {
		return apperr.Validation("description", fmt.Sprintf("description exceeds %d characters", task.DescriptionMax))
	}
	if !t.Status.Valid() {
		return apperr.Validation("status", fmt.Sprintf("unknown status %q", t.Status))
	}
	if !t.Priority.Valid() {
		return apperr.Validation("priority", fmt.Sprintf("unknown priority %q", t.Priority))
	}
	return nil
}

// parseDueDate accepts RFC3339 timestamps or bare dates; empty clears the
// due date.
func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, apperr.Validation("due_date", "due_date must be RFC3339 or YYYY-MM-DD")
}

func translate(err error, entity, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}
