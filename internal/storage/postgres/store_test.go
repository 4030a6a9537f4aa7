package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/domain/task"
	"github.com/taskhive/taskhive/internal/storage"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db), mock
}

func TestCreateProjectTranslatesUniqueViolation(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO th_projects`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateProject(context.Background(), project.Project{
		OwnerID: "owner", Name: "dup", Color: "#336699",
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateName)
}

func TestGetProjectNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`SELECT id, owner_id, name, description, color, is_personal, created_at, updated_at\s+FROM th_projects`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetProject(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetProjectInlinesMembers(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM th_projects`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_id", "name", "description", "color", "is_personal", "created_at", "updated_at",
		}).AddRow("p1", "owner", "release", "", "#336699", false, now, now))

	mock.ExpectQuery(`SELECT user_id FROM th_project_members`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("m1").AddRow("m2"))

	p, err := store.GetProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, p.Members)
}

func TestDeleteProjectCascadesInTransaction(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM th_tasks WHERE project_id`).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM th_project_members WHERE project_id`).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM th_activity WHERE project_id`).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`DELETE FROM th_projects WHERE id`).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, store.DeleteProject(context.Background(), "p1"))
}

func TestDeleteProjectRollsBackWhenMissing(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM th_tasks WHERE project_id`).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM th_project_members WHERE project_id`).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM th_activity WHERE project_id`).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM th_projects WHERE id`).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.DeleteProject(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteTaskNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM th_tasks WHERE id`).
		WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteTask(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListTasksScansNullableColumns(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "project_id", "name", "description", "status", "priority",
		"assigned_to_id", "due_date", "created_by_id", "created_at", "updated_at",
	}).
		AddRow("t1", "p1", "with nulls", "", "pending", "none", nil, nil, "u1", now, now).
		AddRow("t2", "p1", "with values", "d", "in-progress", "high", "u2", now, "u1", now, now)

	mock.ExpectQuery(`SELECT .+ FROM th_tasks`).
		WithArgs("p1").
		WillReturnRows(rows)

	list, err := store.ListTasks(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Empty(t, list[0].AssignedToID)
	assert.True(t, list[0].DueDate.IsZero())
	assert.Equal(t, "u2", list[1].AssignedToID)
	assert.Equal(t, task.PriorityHigh, list[1].Priority)
}

func TestTranslateErrPassesUnknownErrorsThrough(t *testing.T) {
	sentinel := errors.New("connection reset")
	assert.ErrorIs(t, translateErr(sentinel), sentinel)
	assert.NoError(t, translateErr(nil))
}
