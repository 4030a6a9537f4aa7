package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/taskhive/taskhive/internal/domain/activity"
	"github.com/taskhive/taskhive/internal/domain/invite"
	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/domain/task"
	"github.com/taskhive/taskhive/internal/domain/user"
	"github.com/taskhive/taskhive/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProjectStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.InviteStore = (*Store)(nil)
var _ storage.ActivityStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return storage.ErrDuplicateName
	}
	return err
}

// --- UserStore ----------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	metadataJSON, err := json.Marshal(u.Metadata)
	if err != nil {
		return user.User{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO th_users (id, name, email, discord_id, is_admin, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Name, u.Email, toNullString(u.DiscordID), u.IsAdmin, metadataJSON, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, translateErr(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(u.Metadata)
	if err != nil {
		return user.User{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE th_users
		SET name = $2, email = $3, discord_id = $4, is_admin = $5, metadata = $6, updated_at = $7
		WHERE id = $1
	`, u.ID, u.Name, u.Email, toNullString(u.DiscordID), u.IsAdmin, metadataJSON, u.UpdatedAt)
	if err != nil {
		return user.User{}, translateErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

const userColumns = `id, name, email, discord_id, is_admin, metadata, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (user.User, error) {
	var (
		u           user.User
		discordID   sql.NullString
		metadataRaw []byte
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &discordID, &u.IsAdmin, &metadataRaw, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, translateErr(err)
	}
	u.DiscordID = discordID.String
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &u.Metadata)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM th_users WHERE id = $1
	`, id))
}

func (s *Store) GetUserByDiscordID(ctx context.Context, discordID string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM th_users WHERE discord_id = $1
	`, discordID))
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM th_users ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// --- ProjectStore ---------------------------------------------------------------

func (s *Store) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Members = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO th_projects (id, owner_id, name, description, color, is_personal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.OwnerID, p.Name, p.Description, p.Color, p.IsPersonal, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return project.Project{}, translateErr(err)
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	existing, err := s.GetProject(ctx, p.ID)
	if err != nil {
		return project.Project{}, err
	}

	p.OwnerID = existing.OwnerID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE th_projects
		SET name = $2, description = $3, color = $4, is_personal = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Color, p.IsPersonal, p.UpdatedAt)
	if err != nil {
		return project.Project{}, translateErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return project.Project{}, storage.ErrNotFound
	}
	p.Members = existing.Members
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (project.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, color, is_personal, created_at, updated_at
		FROM th_projects
		WHERE id = $1
	`, id)

	var p project.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Color, &p.IsPersonal, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return project.Project{}, translateErr(err)
	}

	members, err := s.ListMembers(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	p.Members = members
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, userID string) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.id, p.owner_id, p.name, p.description, p.color, p.is_personal, p.created_at, p.updated_at
		FROM th_projects p
		LEFT JOIN th_project_members m ON m.project_id = p.id
		WHERE $1 = '' OR p.owner_id = $1 OR m.user_id = $1
		ORDER BY p.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []project.Project
	for rows.Next() {
		var p project.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Color, &p.IsPersonal, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM th_tasks WHERE project_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM th_project_members WHERE project_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM th_activity WHERE project_id = $1`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM th_projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) AddProjectMember(ctx context.Context, projectID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO th_project_members (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, projectID, userID)
	return translateErr(err)
}

func (s *Store) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM th_project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	return err
}

func (s *Store) ListMembers(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM th_project_members WHERE project_id = $1 ORDER BY user_id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

// --- TaskStore ------------------------------------------------------------------

const taskColumns = `id, project_id, name, description, status, priority, assigned_to_id, due_date, created_by_id, created_at, updated_at`

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO th_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, t.ID, t.ProjectID, t.Name, t.Description, t.Status, t.Priority,
		toNullString(t.AssignedToID), toNullTime(t.DueDate), t.CreatedByID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Task{}, translateErr(err)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	existing, err := s.GetTask(ctx, t.ID)
	if err != nil {
		return task.Task{}, err
	}
	t.CreatedByID = existing.CreatedByID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE th_tasks
		SET project_id = $2, name = $3, description = $4, status = $5, priority = $6,
		    assigned_to_id = $7, due_date = $8, updated_at = $9
		WHERE id = $1
	`, t.ID, t.ProjectID, t.Name, t.Description, t.Status, t.Priority,
		toNullString(t.AssignedToID), toNullTime(t.DueDate), t.UpdatedAt)
	if err != nil {
		return task.Task{}, translateErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return task.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func scanTask(row interface{ Scan(...any) error }) (task.Task, error) {
	var (
		t          task.Task
		assignedTo sql.NullString
		dueDate    sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Description, &t.Status, &t.Priority,
		&assignedTo, &dueDate, &t.CreatedByID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return task.Task{}, translateErr(err)
	}
	t.AssignedToID = assignedTo.String
	if dueDate.Valid {
		t.DueDate = dueDate.Time.UTC()
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM th_tasks WHERE id = $1
	`, id))
}

func (s *Store) ListTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM th_tasks
		WHERE $1 = '' OR project_id = $1
		ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *Store) ListTasksAssignedTo(ctx context.Context, userID string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM th_tasks
		WHERE assigned_to_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]task.Task, error) {
	var result []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM th_tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- InviteStore ----------------------------------------------------------------

func (s *Store) CreateInvite(ctx context.Context, inv invite.Invitation) (invite.Invitation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO th_invites (id, code, email, created_by_id, used_by_id, used_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, inv.ID, inv.Code, inv.Email, inv.CreatedByID, toNullString(inv.UsedByID), toNullTime(inv.UsedAt), inv.Revoked, inv.CreatedAt)
	if err != nil {
		return invite.Invitation{}, translateErr(err)
	}
	return inv, nil
}

func (s *Store) UpdateInvite(ctx context.Context, inv invite.Invitation) (invite.Invitation, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE th_invites
		SET used_by_id = $2, used_at = $3, revoked = $4
		WHERE id = $1
	`, inv.ID, toNullString(inv.UsedByID), toNullTime(inv.UsedAt), inv.Revoked)
	if err != nil {
		return invite.Invitation{}, translateErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return invite.Invitation{}, storage.ErrNotFound
	}
	return inv, nil
}

func (s *Store) GetInviteByCode(ctx context.Context, code string) (invite.Invitation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, email, created_by_id, used_by_id, used_at, revoked, created_at
		FROM th_invites
		WHERE code = $1
	`, code)

	var (
		inv      invite.Invitation
		usedByID sql.NullString
		usedAt   sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.Code, &inv.Email, &inv.CreatedByID, &usedByID, &usedAt, &inv.Revoked, &inv.CreatedAt); err != nil {
		return invite.Invitation{}, translateErr(err)
	}
	inv.UsedByID = usedByID.String
	if usedAt.Valid {
		inv.UsedAt = usedAt.Time.UTC()
	}
	return inv, nil
}

func (s *Store) ListInvites(ctx context.Context) ([]invite.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, email, created_by_id, used_by_id, used_at, revoked, created_at
		FROM th_invites
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []invite.Invitation
	for rows.Next() {
		var (
			inv      invite.Invitation
			usedByID sql.NullString
			usedAt   sql.NullTime
		)
		if err := rows.Scan(&inv.ID, &inv.Code, &inv.Email, &inv.CreatedByID, &usedByID, &usedAt, &inv.Revoked, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.UsedByID = usedByID.String
		if usedAt.Valid {
			inv.UsedAt = usedAt.Time.UTC()
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

// --- ActivityStore ----------------------------------------------------------------

func (s *Store) LogActivity(ctx context.Context, e activity.Entry) (activity.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO th_activity (id, project_id, actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.ProjectID, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Detail, e.CreatedAt)
	if err != nil {
		return activity.Entry{}, translateErr(err)
	}
	return e, nil
}

func (s *Store) ListActivity(ctx context.Context, projectID string, limit int) ([]activity.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, actor_id, action, entity_type, entity_id, detail, created_at
		FROM th_activity
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []activity.Entry
	for rows.Next() {
		var e activity.Entry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
