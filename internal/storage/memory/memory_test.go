package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/domain/user"
	"github.com/taskhive/taskhive/internal/storage"
)

func TestDiscordIndexFollowsUpdates(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, user.User{Name: "alice", DiscordID: "d-1"})
	require.NoError(t, err)

	got, err := s.GetUserByDiscordID(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	u.DiscordID = "d-2"
	_, err = s.UpdateUser(ctx, u)
	require.NoError(t, err)

	_, err = s.GetUserByDiscordID(ctx, "d-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	got, err = s.GetUserByDiscordID(ctx, "d-2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestListProjectsCoversOwnedAndJoined(t *testing.T) {
	ctx := context.Background()
	s := New()

	owned, err := s.CreateProject(ctx, project.Project{OwnerID: "alice", Name: "mine", Color: "#336699"})
	require.NoError(t, err)
	joined, err := s.CreateProject(ctx, project.Project{OwnerID: "bob", Name: "theirs", Color: "#336699"})
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, project.Project{OwnerID: "bob", Name: "hidden", Color: "#336699"})
	require.NoError(t, err)

	require.NoError(t, s.AddProjectMember(ctx, joined.ID, "alice"))

	list, err := s.ListProjects(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)

	ids := []string{list[0].ID, list[1].ID}
	assert.Contains(t, ids, owned.ID)
	assert.Contains(t, ids, joined.ID)
}

func TestReturnedProjectsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	p, err := s.CreateProject(ctx, project.Project{OwnerID: "alice", Name: "mine", Color: "#336699"})
	require.NoError(t, err)
	require.NoError(t, s.AddProjectMember(ctx, p.ID, "bob"))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 1)

	// Mutating the returned slice must not leak into the store.
	got.Members[0] = "mallory"
	again, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, again.Members)
}

func TestAddProjectMemberIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	p, err := s.CreateProject(ctx, project.Project{OwnerID: "alice", Name: "mine", Color: "#336699"})
	require.NoError(t, err)

	require.NoError(t, s.AddProjectMember(ctx, p.ID, "bob"))
	require.NoError(t, s.AddProjectMember(ctx, p.ID, "bob"))

	members, err := s.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, members)
}
