package memory

import (
	"context"
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

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu             sync.RWMutex
	users          map[string]user.User
	usersByDiscord map[string]string
	projects       map[string]project.Project
	members        map[string]map[string]struct{}
	tasks          map[string]task.Task
	invites        map[string]invite.Invitation
	invitesByCode  map[string]string
	activity       map[string][]activity.Entry
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProjectStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.InviteStore = (*Store)(nil)
var _ storage.ActivityStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:          make(map[string]user.User),
		usersByDiscord: make(map[string]string),
		projects:       make(map[string]project.Project),
		members:        make(map[string]map[string]struct{}),
		tasks:          make(map[string]task.Task),
		invites:        make(map[string]invite.Invitation),
		invitesByCode:  make(map[string]string),
		activity:       make(map[string][]activity.Entry),
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, storage.ErrDuplicateName
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Metadata = cloneMap(u.Metadata)

	s.users[u.ID] = u
	if u.DiscordID != "" {
		s.usersByDiscord[u.DiscordID] = u.ID
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}

	if original.DiscordID != "" && original.DiscordID != u.DiscordID {
		delete(s.usersByDiscord, original.DiscordID)
	}
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.Metadata = cloneMap(u.Metadata)

	s.users[u.ID] = u
	if u.DiscordID != "" {
		s.usersByDiscord[u.DiscordID] = u.ID
	}
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByDiscordID(_ context.Context, discordID string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByDiscord[discordID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ProjectStore implementation -------------------------------------------------

func (s *Store) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.projects {
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

	s.projects[p.ID] = p
	s.members[p.ID] = make(map[string]struct{})
	return s.projectLocked(p.ID), nil
}

func (s *Store) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.projects[p.ID]
	if !ok {
		return project.Project{}, storage.ErrNotFound
	}
	for id, existing := range s.projects {
		if id != p.ID && existing.OwnerID == original.OwnerID && strings.EqualFold(existing.Name, p.Name) {
			return project.Project{}, storage.ErrDuplicateName
		}
	}

	// owner_id is immutable after creation
	p.OwnerID = original.OwnerID
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	p.Members = nil

	s.projects[p.ID] = p
	return s.projectLocked(p.ID), nil
}

func (s *Store) GetProject(_ context.Context, id string) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[id]; !ok {
		return project.Project{}, storage.ErrNotFound
	}
	return s.projectLocked(id), nil
}

func (s *Store) ListProjects(_ context.Context, userID string) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []project.Project
	for id, p := range s.projects {
		if userID != "" && p.OwnerID != userID {
			if _, ok := s.members[id][userID]; !ok {
				continue
			}
		}
		out = append(out, s.projectLocked(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.projects, id)
	delete(s.members, id)
	delete(s.activity, id)
	for tid, t := range s.tasks {
		if t.ProjectID == id {
			delete(s.tasks, tid)
		}
	}
	return nil
}

func (s *Store) AddProjectMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return storage.ErrNotFound
	}
	s.members[projectID][userID] = struct{}{}
	return nil
}

func (s *Store) RemoveProjectMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.members[projectID], userID)
	return nil
}

func (s *Store) ListMembers(_ context.Context, projectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, storage.ErrNotFound
	}
	return memberSliceLocked(s.members[projectID]), nil
}

// projectLocked returns a copy of the project with its member set inlined.
func (s *Store) projectLocked(id string) project.Project {
	p := s.projects[id]
	p.Members = memberSliceLocked(s.members[id])
	return p
}

func memberSliceLocked(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// TaskStore implementation ----------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[t.ProjectID]; !ok {
		return task.Task{}, storage.ErrNotFound
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tasks[t.ID]
	if !ok {
		return task.Task{}, storage.ErrNotFound
	}
	t.CreatedByID = original.CreatedByID
	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) GetTask(_ context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTasks(_ context.Context, projectID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []task.Task
	for _, t := range s.tasks {
		if projectID == "" || t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListTasksAssignedTo(_ context.Context, userID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []task.Task
	for _, t := range s.tasks {
		if t.AssignedToID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// InviteStore implementation --------------------------------------------------

func (s *Store) CreateInvite(_ context.Context, inv invite.Invitation) (invite.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now().UTC()

	s.invites[inv.ID] = inv
	s.invitesByCode[inv.Code] = inv.ID
	return inv, nil
}

func (s *Store) UpdateInvite(_ context.Context, inv invite.Invitation) (invite.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.invites[inv.ID]
	if !ok {
		return invite.Invitation{}, storage.ErrNotFound
	}
	inv.Code = original.Code
	inv.CreatedAt = original.CreatedAt

	s.invites[inv.ID] = inv
	return inv, nil
}

func (s *Store) GetInviteByCode(_ context.Context, code string) (invite.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.invitesByCode[code]
	if !ok {
		return invite.Invitation{}, storage.ErrNotFound
	}
	return s.invites[id], nil
}

func (s *Store) ListInvites(_ context.Context) ([]invite.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]invite.Invitation, 0, len(s.invites))
	for _, inv := range s.invites {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ActivityStore implementation ------------------------------------------------

func (s *Store) LogActivity(_ context.Context, e activity.Entry) (activity.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.activity[e.ProjectID] = append(s.activity[e.ProjectID], e)
	return e, nil
}

func (s *Store) ListActivity(_ context.Context, projectID string, limit int) ([]activity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.activity[projectID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]activity.Entry, limit)
	copy(out, entries[len(entries)-limit:])
	return out, nil
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
