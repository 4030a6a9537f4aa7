// Package authz implements the single authorization gate used by every task
// mutation and project-level read.
package authz

import (
	"context"

	"github.com/taskhive/taskhive/internal/domain/project"
)

// ProjectSource resolves a project by id.
type ProjectSource interface {
	GetProject(ctx context.Context, id string) (project.Project, error)
}

// MembershipSource lists the member user ids of a project, owner excluded.
// Each storage backend implements it once, so callers never branch on how
// membership is stored.
type MembershipSource interface {
	ListMembers(ctx context.Context, projectID string) ([]string, error)
}

// Checker answers membership questions. Results must not be cached across
// requests; membership can change between calls.
type Checker struct {
	projects ProjectSource
	members  MembershipSource
}

// NewChecker builds a checker over the given sources.
func NewChecker(projects ProjectSource, members MembershipSource) *Checker {
	return &Checker{projects: projects, members: members}
}

// IsMember reports whether userID may act on projectID's tasks. Unknown
// projects and lookup errors grant no access.
func (c *Checker) IsMember(ctx context.Context, userID, projectID string) bool {
	proj, err := c.projects.GetProject(ctx, projectID)
	if err != nil {
		return false
	}
	if proj.OwnerID == userID {
		return true
	}
	members, err := c.members.ListMembers(ctx, projectID)
	if err != nil {
		return false
	}
	for _, m := range members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsOwner reports whether userID owns projectID. Used for project update,
// delete and membership management, which are owner-only.
func (c *Checker) IsOwner(ctx context.Context, userID, projectID string) bool {
	proj, err := c.projects.GetProject(ctx, projectID)
	if err != nil {
		return false
	}
	return proj.OwnerID == userID
}
