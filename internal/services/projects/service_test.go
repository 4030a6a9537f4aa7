package projects

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/domain/user"
	"github.com/taskhive/taskhive/internal/storage/memory"
)

func setup(t *testing.T) (*Service, *memory.Store, user.User, user.User) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	owner, err := store.CreateUser(ctx, user.User{Name: "alice"})
	require.NoError(t, err)
	other, err := store.CreateUser(ctx, user.User{Name: "bob"})
	require.NoError(t, err)

	return New(store, store, store, nil), store, owner, other
}

func TestCreateAssignsPaletteColor(t *testing.T) {
	svc, _, owner, _ := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner.ID, CreateInput{Name: "release"})
	require.NoError(t, err)

	assert.Equal(t, owner.ID, created.OwnerID)
	assert.False(t, created.IsPersonal)
	assert.Contains(t, project.Palette, created.Color)
}

func TestCreateValidatesColor(t *testing.T) {
	svc, _, owner, _ := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner.ID, CreateInput{Name: "ok", Color: "#A1b2C3"})
	require.NoError(t, err)
	assert.Equal(t, "#A1b2C3", created.Color)

	for _, bad := range []string{"red", "#12345", "#1234567", "123456#"} {
		_, err := svc.Create(ctx, owner.ID, CreateInput{Name: "bad " + bad, Color: bad})
		e := apperr.Get(err)
		require.NotNil(t, e, "color %q", bad)
		assert.Equal(t, "color", e.Field)
	}
}

func TestCreateNameBounds(t *testing.T) {
	svc, _, owner, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner.ID, CreateInput{Name: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Create(ctx, owner.ID, CreateInput{Name: strings.Repeat("x", project.NameMax+1)})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDuplicateNamePerOwnerConflicts(t *testing.T) {
	svc, _, owner, other := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner.ID, CreateInput{Name: "Release"})
	require.NoError(t, err)

	// Case-insensitive duplicate for the same owner.
	_, err = svc.Create(ctx, owner.ID, CreateInput{Name: "release"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// A different owner may reuse the name.
	_, err = svc.Create(ctx, other.ID, CreateInput{Name: "Release"})
	assert.NoError(t, err)
}

func TestUpdateIsOwnerOnly(t *testing.T) {
	svc, _, owner, other := setup(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner.ID, CreateInput{Name: "release"})
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, owner.ID, proj.ID, other.ID))

	name := "renamed"
	_, err = svc.Update(ctx, other.ID, proj.ID, UpdateInput{Name: &name})
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err), "members cannot update")

	updated, err := svc.Update(ctx, owner.ID, proj.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
}

func TestMembershipManagementIsOwnerOnly(t *testing.T) {
	svc, store, owner, other := setup(t)
	ctx := context.Background()

	third, err := store.CreateUser(ctx, user.User{Name: "carol"})
	require.NoError(t, err)

	proj, err := svc.Create(ctx, owner.ID, CreateInput{Name: "release"})
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, owner.ID, proj.ID, other.ID))

	err = svc.AddMember(ctx, other.ID, proj.ID, third.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	err = svc.RemoveMember(ctx, other.ID, proj.ID, other.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	require.NoError(t, svc.RemoveMember(ctx, owner.ID, proj.ID, other.ID))
	_, err = svc.Get(ctx, other.ID, proj.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err), "removed member loses access")
}

func TestAddMemberValidatesUser(t *testing.T) {
	svc, _, owner, _ := setup(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner.ID, CreateInput{Name: "release"})
	require.NoError(t, err)

	err = svc.AddMember(ctx, owner.ID, proj.ID, "ghost")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// Adding the owner is a harmless no-op.
	assert.NoError(t, svc.AddMember(ctx, owner.ID, proj.ID, owner.ID))
	members, err := svc.store.ListMembers(ctx, proj.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestDeleteCascades(t *testing.T) {
	svc, store, owner, other := setup(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner.ID, CreateInput{Name: "release"})
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, owner.ID, proj.ID, other.ID))

	err = svc.Delete(ctx, other.ID, proj.ID)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	require.NoError(t, svc.Delete(ctx, owner.ID, proj.ID))

	_, err = store.GetProject(ctx, proj.ID)
	assert.Error(t, err)
	_, err = store.ListMembers(ctx, proj.ID)
	assert.Error(t, err, "membership rows are gone with the project")
}

func TestActivityFeedIsMemberOnly(t *testing.T) {
	svc, _, owner, other := setup(t)
	ctx := context.Background()

	proj, err := svc.Create(ctx, owner.ID, CreateInput{Name: "release"})
	require.NoError(t, err)

	_, err = svc.Activity(ctx, other.ID, proj.ID, 10)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	require.NoError(t, svc.AddMember(ctx, owner.ID, proj.ID, other.ID))
	entries, err := svc.Activity(ctx, other.ID, proj.ID, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "creation and membership changes are recorded")
}
