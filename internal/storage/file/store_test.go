package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/domain/task"
	"github.com/taskhive/taskhive/internal/domain/user"
	"github.com/taskhive/taskhive/internal/storage"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "taskhive.json")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestOpenOnMissingFileStartsEmpty(t *testing.T) {
	s, path := tempStore(t)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing written until the first mutation")
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := tempStore(t)

	u, err := s.CreateUser(ctx, user.User{Name: "alice"})
	require.NoError(t, err)

	p, err := s.CreateProject(ctx, project.Project{OwnerID: u.ID, Name: "release", Color: "#336699"})
	require.NoError(t, err)
	require.NoError(t, s.AddProjectMember(ctx, p.ID, "member-1"))

	created, err := s.CreateTask(ctx, task.Task{
		ProjectID: p.ID, Name: "ship", Status: task.StatusPending, Priority: task.PriorityNone, CreatedByID: u.ID,
	})
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)

	gotUser, err := reopened.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", gotUser.Name)

	gotProject, err := reopened.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"member-1"}, gotProject.Members)

	gotTask, err := reopened.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ship", gotTask.Name)
}

func TestDuplicateProjectNamePerOwner(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(t)

	owner, err := s.CreateUser(ctx, user.User{Name: "alice"})
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, user.User{Name: "bob"})
	require.NoError(t, err)

	_, err = s.CreateProject(ctx, project.Project{OwnerID: owner.ID, Name: "Release", Color: "#336699"})
	require.NoError(t, err)

	_, err = s.CreateProject(ctx, project.Project{OwnerID: owner.ID, Name: "release", Color: "#336699"})
	assert.ErrorIs(t, err, storage.ErrDuplicateName)

	_, err = s.CreateProject(ctx, project.Project{OwnerID: other.ID, Name: "release", Color: "#336699"})
	assert.NoError(t, err)
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	s, path := tempStore(t)

	owner, err := s.CreateUser(ctx, user.User{Name: "alice"})
	require.NoError(t, err)
	p, err := s.CreateProject(ctx, project.Project{OwnerID: owner.ID, Name: "release", Color: "#336699"})
	require.NoError(t, err)
	require.NoError(t, s.AddProjectMember(ctx, p.ID, "member-1"))
	created, err := s.CreateTask(ctx, task.Task{
		ProjectID: p.ID, Name: "t", Status: task.StatusPending, Priority: task.PriorityNone, CreatedByID: owner.ID,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetTask(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	reopened, err := Open(path)
	require.NoError(t, err)
	_, err = reopened.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound, "cascade is persisted")
}

func TestGetMissingEntities(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(t)

	_, err := s.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetProject(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetTask(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetInviteByCode(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
