// Package file implements the storage interfaces on top of a single JSON
// document. It is the fallback backend when no database is configured.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive/internal/domain/activity"
	"github.com/taskhive/taskhive/internal/domain/invite"
	"github.com/taskhive/taskhive/internal/domain/project"
	"github.com/taskhive/taskhive/internal/domain/task"
	"github.com/taskhive/taskhive/internal/domain/user"
	"github.com/taskhive/taskhive/internal/storage"
)

// document is the on-disk shape. Membership is stored as an explicit
// relation, not inlined into projects, so every backend answers membership
// questions the same way.
type document struct {
	Users    []user.User         `json:"users"`
	Projects []project.Project   `json:"projects"`
	Members  map[string][]string `json:"members"`
	Tasks    []task.Task         `json:"tasks"`
	Invites  []invite.Invitation `json:"invites"`
	Activity []activity.Entry    `json:"activity"`
}

// Store persists all collections in one JSON file guarded by a process-level
// mutex. Writes go through a temp file and an atomic rename.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProjectStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.InviteStore = (*Store)(nil)
var _ storage.ActivityStore = (*Store)(nil)

// Open loads or initialises the store at path.
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Members: make(map[string][]string)}}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// first run
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(raw, &s.doc); err != nil {
			return nil, err
		}
		if s.doc.Members == nil {
			s.doc.Members = make(map[string][]string)
		}
	}
	return s, nil
}

// flushLocked writes the document to disk. Callers hold s.mu.
func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// --- UserStore ----------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.doc.Users = append(s.doc.Users, u)
	return u, s.flushLocked()
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.doc.Users {
		if existing.ID == u.ID {
			u.CreatedAt = existing.CreatedAt
			u.UpdatedAt = time.Now().UTC()
			s.doc.Users[i] = u
			return u, s.flushLocked()
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *Store) GetUserByDiscordID(_ context.Context, discordID string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.DiscordID != "" && u.DiscordID == discordID {
			return u, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]user.User, len(s.doc.Users))
	copy(out, s.doc.Users)
	return out, nil
}

// --- ProjectStore ---------------------------------------------------------------

func (s *Store) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.doc.Projects {
		if existing.OwnerID == p.OwnerID && strings.EqualFold(existing.Name, p.Name) {
			return project.Project{}, storage.ErrDuplicateName
		}
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Members = nil

	s.doc.Projects = append(s.doc.Projects, p)
	return p, s.flushLocked()
}

func (s *Store) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.doc.Projects {
		if existing.ID != p.ID {
			if existing.OwnerID == p.OwnerID && strings.EqualFold(existing.Name, p.Name) {
				return project.Project{}, storage.ErrDuplicateName
			}
			continue
		}
		p.OwnerID = existing.OwnerID
		p.CreatedAt = existing.CreatedAt
		p.UpdatedAt = time.Now().UTC()
		p.Members = nil
		s.doc.Projects[i] = p
		p.Members = append([]string(nil), s.doc.Members[p.ID]...)
		return p, s.flushLocked()
	}
	return project.Project{}, storage.ErrNotFound
}

func (s *Store) GetProject(_ context.Context, id string) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectLocked(id)
}

func (s *Store) projectLocked(id string) (project.Project, error) {
	for _, p := range s.doc.Projects {
		if p.ID == id {
			p.Members = append([]string(nil), s.doc.Members[id]...)
			return p, nil
		}
	}
	return project.Project{}, storage.ErrNotFound
}

func (s *Store) ListProjects(_ context.Context, userID string) ([]project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []project.Project
	for _, p := range s.doc.Projects {
		if userID != "" && p.OwnerID != userID && !contains(s.doc.Members[p.ID], userID) {
			continue
		}
		p.Members = append([]string(nil), s.doc.Members[p.ID]...)
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.doc.Projects {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return storage.ErrNotFound
	}
	s.doc.Projects = append(s.doc.Projects[:idx], s.doc.Projects[idx+1:]...)
	delete(s.doc.Members, id)

	kept := s.doc.Tasks[:0]
	for _, t := range s.doc.Tasks {
		if t.ProjectID != id {
			kept = append(kept, t)
		}
	}
	s.doc.Tasks = kept

	keptActivity := s.doc.Activity[:0]
	for _, e := range s.doc.Activity {
		if e.ProjectID != id {
			keptActivity = append(keptActivity, e)
		}
	}
	s.doc.Activity = keptActivity
	return s.flushLocked()
}

func (s *Store) AddProjectMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.projectLocked(projectID); err != nil {
		return err
	}
	if contains(s.doc.Members[projectID], userID) {
		return nil
	}
	s.doc.Members[projectID] = append(s.doc.Members[projectID], userID)
	sort.Strings(s.doc.Members[projectID])
	return s.flushLocked()
}

func (s *Store) RemoveProjectMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.projectLocked(projectID); err != nil {
		return err
	}
	members := s.doc.Members[projectID]
	for i, m := range members {
		if m == userID {
			s.doc.Members[projectID] = append(members[:i], members[i+1:]...)
			return s.flushLocked()
		}
	}
	return nil
}

func (s *Store) ListMembers(_ context.Context, projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.projectLocked(projectID); err != nil {
		return nil, err
	}
	return append([]string(nil), s.doc.Members[projectID]...), nil
}

// --- TaskStore ------------------------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.projectLocked(t.ProjectID); err != nil {
		return task.Task{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.doc.Tasks = append(s.doc.Tasks, t)
	return t, s.flushLocked()
}

func (s *Store) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.doc.Tasks {
		if existing.ID == t.ID {
			t.CreatedByID = existing.CreatedByID
			t.CreatedAt = existing.CreatedAt
			t.UpdatedAt = time.Now().UTC()
			s.doc.Tasks[i] = t
			return t, s.flushLocked()
		}
	}
	return task.Task{}, storage.ErrNotFound
}

func (s *Store) GetTask(_ context.Context, id string) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.doc.Tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return task.Task{}, storage.ErrNotFound
}

func (s *Store) ListTasks(_ context.Context, projectID string) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []task.Task
	for _, t := range s.doc.Tasks {
		if projectID == "" || t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListTasksAssignedTo(_ context.Context, userID string) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []task.Task
	for _, t := range s.doc.Tasks {
		if t.AssignedToID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.doc.Tasks {
		if t.ID == id {
			s.doc.Tasks = append(s.doc.Tasks[:i], s.doc.Tasks[i+1:]...)
			return s.flushLocked()
		}
	}
	return storage.ErrNotFound
}

// --- InviteStore ----------------------------------------------------------------

func (s *Store) CreateInvite(_ context.Context, inv invite.Invitation) (invite.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now().UTC()

	s.doc.Invites = append(s.doc.Invites, inv)
	return inv, s.flushLocked()
}

func (s *Store) UpdateInvite(_ context.Context, inv invite.Invitation) (invite.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.doc.Invites {
		if existing.ID == inv.ID {
			inv.Code = existing.Code
			inv.CreatedAt = existing.CreatedAt
			s.doc.Invites[i] = inv
			return inv, s.flushLocked()
		}
	}
	return invite.Invitation{}, storage.ErrNotFound
}

func (s *Store) GetInviteByCode(_ context.Context, code string) (invite.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.doc.Invites {
		if inv.Code == code {
			return inv, nil
		}
	}
	return invite.Invitation{}, storage.ErrNotFound
}

func (s *Store) ListInvites(_ context.Context) ([]invite.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]invite.Invitation, len(s.doc.Invites))
	copy(out, s.doc.Invites)
	return out, nil
}

// --- ActivityStore ----------------------------------------------------------------

func (s *Store) LogActivity(_ context.Context, e activity.Entry) (activity.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.doc.Activity = append(s.doc.Activity, e)
	return e, s.flushLocked()
}

func (s *Store) ListActivity(_ context.Context, projectID string, limit int) ([]activity.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []activity.Entry
	for _, e := range s.doc.Activity {
		if e.ProjectID == projectID {
			matched = append(matched, e)
		}
	}
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}
	return matched[len(matched)-limit:], nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
