package tasks

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/domain/task"
	"github.com/taskhive/taskhive/internal/domain/user"
	"github.com/taskhive/taskhive/internal/services/projects"
	"github.com/taskhive/taskhive/internal/storage/memory"
)

// fixture creates owner A, member B, outsider C and a project owned by A
// with B as member.
type fixture struct {
	store    *memory.Store
	tasks    *Service
	projects *projects.Service
	owner    user.User
	member   user.User
	outsider user.User
	project  project.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	owner, err := store.CreateUser(ctx, user.User{Name: "alice"})
	require.NoError(t, err)
	member, err := store.CreateUser(ctx, user.User{Name: "bob"})
	require.NoError(t, err)
	outsider, err := store.CreateUser(ctx, user.User{Name: "carol"})
	require.NoError(t, err)

	projectSvc := projects.New(store, store, store, nil)
	proj, err := projectSvc.Create(ctx, owner.ID, projects.CreateInput{Name: "release"})
	require.NoError(t, err)
	require.NoError(t, projectSvc.AddMember(ctx, owner.ID, proj.ID, member.ID))

	return &fixture{
		store:    store,
		tasks:    New(store, store, store, nil),
		projects: projectSvc,
		owner:    owner,
		member:   member,
		outsider: outsider,
		project:  proj,
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{
		ProjectID: f.project.ID,
		Name:      "ship it",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, task.StatusPending, created.Status)
	assert.Equal(t, task.PriorityNone, created.Priority)
	assert.Equal(t, f.owner.ID, created.CreatedByID)
	assert.True(t, created.DueDate.IsZero())
}

func TestCreateRejectsNonMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tasks.Create(ctx, f.outsider.ID, CreateInput{
		ProjectID: f.project.ID,
		Name:      "sneaky",
	})
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
}

func TestCreateRejectsUnknownProject(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasks.Create(context.Background(), f.owner.ID, CreateInput{
		ProjectID: "nope",
		Name:      "orphan",
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateNameLengthBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	atLimit := strings.Repeat("x", task.NameMax)
	_, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{ProjectID: f.project.ID, Name: atLimit})
	assert.NoError(t, err, "a %d-char name is valid", task.NameMax)

	_, err = f.tasks.Create(ctx, f.owner.ID, CreateInput{ProjectID: f.project.ID, Name: atLimit + "x"})
	e := apperr.Get(err)
	require.NotNil(t, e)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "name", e.Field)
}

func TestCreateRejectsInvalidEnums(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{ProjectID: f.project.ID, Name: "t", Status: "done"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.tasks.Create(ctx, f.owner.ID, CreateInput{ProjectID: f.project.ID, Name: "t", Priority: "urgent"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDueDateParsing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{
		ProjectID: f.project.ID, Name: "dated", DueDate: "2026-09-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", created.DueDate.Format("2006-01-02"))

	_, err = f.tasks.Create(ctx, f.owner.ID, CreateInput{
		ProjectID: f.project.ID, Name: "dated", DueDate: "next tuesday",
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Empty string on update clears the date.
	empty := ""
	cleared, err := f.tasks.Update(ctx, f.owner.ID, created.ID, UpdateInput{DueDate: &empty})
	require.NoError(t, err)
	assert.True(t, cleared.DueDate.IsZero())
}

// Assignment invariant: owner A, member B, outsider C.
func TestAssigneeMustBeProjectMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Assigning to the outsider fails with the stable message.
	_, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{
		ProjectID:    f.project.ID,
		Name:         "review",
		AssignedToID: f.outsider.ID,
	})
	e := apperr.Get(err)
	require.NotNil(t, e)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "assigned_to_id", e.Field)
	assert.Equal(t, "Assigned user is not a member of this project", e.Message)

	// The member and the owner are both valid assignees.
	created, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{
		ProjectID:    f.project.ID,
		Name:         "review",
		AssignedToID: f.member.ID,
	})
	require.NoError(t, err)

	ownerID := f.owner.ID
	_, err = f.tasks.Update(ctx, f.member.ID, created.ID, UpdateInput{AssignedToID: &ownerID})
	assert.NoError(t, err)
}

func TestMoveRechecksAssigneeAgainstTargetProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Second project owned by A without B.
	second, err := f.projects.Create(ctx, f.owner.ID, projects.CreateInput{Name: "other"})
	require.NoError(t, err)

	created, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{
		ProjectID:    f.project.ID,
		Name:         "migrating",
		AssignedToID: f.member.ID,
	})
	require.NoError(t, err)

	// Moving the task alone must fail: the assignee is not in the target.
	_, err = f.tasks.Update(ctx, f.owner.ID, created.ID, UpdateInput{ProjectID: &second.ID})
	e := apperr.Get(err)
	require.NotNil(t, e)
	assert.Equal(t, apperr.KindValidation, e.Kind)

	// Clearing the assignee in the same update makes the move legal.
	empty := ""
	moved, err := f.tasks.Update(ctx, f.owner.ID, created.ID, UpdateInput{
		ProjectID:    &second.ID,
		AssignedToID: &empty,
	})
	require.NoError(t, err)
	assert.Equal(t, second.ID, moved.ProjectID)
}

func TestMoveRequiresTargetMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Project owned by the member; the owner of the first project is outside it.
	theirs, err := f.projects.Create(ctx, f.member.ID, projects.CreateInput{Name: "private"})
	require.NoError(t, err)

	created, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{ProjectID: f.project.ID, Name: "t"})
	require.NoError(t, err)

	_, err = f.tasks.Update(ctx, f.owner.ID, created.ID, UpdateInput{ProjectID: &theirs.ID})
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
}

func TestAnyMemberMayDeleteTaskButNotProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{ProjectID: f.project.ID, Name: "t"})
	require.NoError(t, err)

	// B cannot delete the project...
	err = f.projects.Delete(ctx, f.member.ID, f.project.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	// ...but may delete a task in it.
	require.NoError(t, f.tasks.Delete(ctx, f.member.ID, created.ID))

	_, err = f.tasks.Get(ctx, f.owner.ID, created.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOutsiderCannotReadOrMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{ProjectID: f.project.ID, Name: "t"})
	require.NoError(t, err)

	_, err = f.tasks.Get(ctx, f.outsider.ID, created.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	_, err = f.tasks.List(ctx, f.outsider.ID, f.project.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	name := "renamed"
	_, err = f.tasks.Update(ctx, f.outsider.ID, created.ID, UpdateInput{Name: &name})
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	err = f.tasks.Delete(ctx, f.outsider.ID, created.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
}

func TestCompleteSetsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.tasks.Create(ctx, f.member.ID, CreateInput{ProjectID: f.project.ID, Name: "t"})
	require.NoError(t, err)

	done, err := f.tasks.Complete(ctx, f.member.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, done.Status)
}

func TestListAssignedToSpansProjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second, err := f.projects.Create(ctx, f.owner.ID, projects.CreateInput{Name: "other"})
	require.NoError(t, err)

	for _, pid := range []string{f.project.ID, second.ID} {
		_, err := f.tasks.Create(ctx, f.owner.ID, CreateInput{
			ProjectID:    pid,
			Name:         "mine",
			AssignedToID: f.owner.ID,
		})
		require.NoError(t, err)
	}

	assigned, err := f.tasks.ListAssignedTo(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, assigned, 2)
}
