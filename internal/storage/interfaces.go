// Package storage defines the persistence interfaces consumed by the
// business-logic services. Implementations live in the memory, postgres and
// file subpackages; backend selection happens once at startup.
package storage

import (
	"context"

	"github.com/taskhive/taskhive/internal/domain/activity"
	"github.com/taskhive/taskhive/internal/domain/invite"
	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/domain/task"
	"github.com/taskhive/taskhive/internal/domain/user"
)

// ErrNotFound is returned by stores when the requested entity is absent.
// Services translate it to a typed NotFound condition.
type notFoundError string

func (e notFoundError) Error() string { return string(e) }

// ErrNotFound is the sentinel absence error shared by all backends.
const ErrNotFound = notFoundError("entity not found")

type duplicateError string

func (e duplicateError) Error() string { return string(e) }

// ErrDuplicateName signals a per-owner project name collision. Services
// translate it to a Conflict condition.
const ErrDuplicateName = duplicateError("duplicate name")

// UserStore persists principals.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByDiscordID(ctx context.Context, discordID string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// ProjectStore persists projects and their membership relation.
type ProjectStore interface {
	CreateProject(ctx context.Context, p project.Project) (project.Project, error)
	UpdateProject(ctx context.Context, p project.Project) (project.Project, error)
	GetProject(ctx context.Context, id string) (project.Project, error)
	ListProjects(ctx context.Context, userID string) ([]project.Project, error)
	// DeleteProject removes the project, its membership rows and its tasks.
	DeleteProject(ctx context.Context, id string) error

	AddProjectMember(ctx context.Context, projectID, userID string) error
	RemoveProjectMember(ctx context.Context, projectID, userID string) error
	// ListMembers returns member user ids, owner excluded. Satisfies
	// authz.MembershipSource.
	ListMembers(ctx context.Context, projectID string) ([]string, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, id string) (task.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]task.Task, error)
	ListTasksAssignedTo(ctx context.Context, userID string) ([]task.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// InviteStore persists invitation codes.
type InviteStore interface {
	CreateInvite(ctx context.Context, inv invite.Invitation) (invite.Invitation, error)
	UpdateInvite(ctx context.Context, inv invite.Invitation) (invite.Invitation, error)
	GetInviteByCode(ctx context.Context, code string) (invite.Invitation, error)
	ListInvites(ctx context.Context) ([]invite.Invitation, error)
}

// ActivityStore appends and reads the per-project activity feed.
type ActivityStore interface {
	LogActivity(ctx context.Context, e activity.Entry) (activity.Entry, error)
	ListActivity(ctx context.Context, projectID string, limit int) ([]activity.Entry, error)
}
