// Package app composes the storage backends and domain services into a
// running application. Business logic lives in internal/services; this
// package only wires it.
package app

import (
	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/services/invites"
	"github.com/taskhive/taskhive/internal/services/projects"
	"github.com/taskhive/taskhive/internal/services/tasks"
	"github.com/taskhive/taskhive/internal/services/users"
	"github.com/taskhive/taskhive/internal/storage"
	"github.com/taskhive/taskhive/internal/storage/memory"
	"github.com/taskhive/taskhive/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Projects storage.ProjectStore
	Tasks    storage.TaskStore
	Invites  storage.InviteStore
	Activity storage.ActivityStore
}

// Application ties the domain services together.
type Application struct {
	log *logger.Logger

	Users    *users.Service
	Projects *projects.Service
	Tasks    *tasks.Service
	Invites  *invites.Service
	Authz    *authz.Checker
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Projects == nil {
		stores.Projects = mem
	}
	if stores.Tasks == nil {
		stores.Tasks = mem
	}
	if stores.Invites == nil {
		stores.Invites = mem
	}
	if stores.Activity == nil {
		stores.Activity = mem
	}

	projectService := projects.New(stores.Users, stores.Projects, stores.Activity, log)

	return &Application{
		log:      log,
		Users:    users.New(stores.Users, log),
		Projects: projectService,
		Tasks:    tasks.New(stores.Projects, stores.Tasks, stores.Activity, log),
		Invites:  invites.New(stores.Users, stores.Invites, log),
		Authz:    projectService.Checker(),
	}
}
