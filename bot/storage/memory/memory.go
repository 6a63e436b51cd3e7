// Package memory is an in-process Store used in tests and for running the bot
// without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/goalbot/bot/model"
	"github.com/m3rciful/goalbot/bot/storage"
)

// Store keeps all rows in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	now func() time.Time

	nextID       int64
	participants map[int64]*model.Participant
	boards       map[int64]model.Board
	members      []model.Membership
	categories   map[int64]model.Category
	goals        map[int64]model.Goal
}

var _ storage.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		now:          time.Now,
		participants: make(map[int64]*model.Participant),
		boards:       make(map[int64]model.Board),
		categories:   make(map[int64]model.Category),
		goals:        make(map[int64]model.Goal),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) ByChatID(_ context.Context, chatID int64) (model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ChatID == chatID {
			return clone(*p), nil
		}
	}
	return model.Participant{}, storage.ErrNotFound
}

func (s *Store) Create(_ context.Context, p model.Participant) (model.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants {
		if existing.ChatID == p.ChatID {
			return clone(*existing), false, nil
		}
	}
	if code := p.Code(); code != "" && s.codeTaken(code, 0) {
		return model.Participant{}, false, storage.ErrConflict
	}
	p = clone(p)
	p.ID = s.id()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.participants[p.ID] = &p
	return clone(p), true, nil
}

func (s *Store) UpdateCode(_ context.Context, id int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok || p.UserID != nil {
		return storage.ErrNotFound
	}
	if s.codeTaken(code, id) {
		return storage.ErrConflict
	}
	p.VerificationCode = &code
	p.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpdateState(_ context.Context, id int64, state model.DialogState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.State = state
	p.UpdatedAt = s.now()
	return nil
}

func (s *Store) LinkByCode(_ context.Context, code string, userID int64) (model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == "" {
		return model.Participant{}, storage.ErrNotFound
	}
	for _, p := range s.participants {
		if p.Code() != code || p.UserID != nil {
			continue
		}
		uid := userID
		p.UserID = &uid
		p.State = model.StateConfirmed
		p.VerificationCode = nil
		p.UpdatedAt = s.now()
		return clone(*p), nil
	}
	return model.Participant{}, storage.ErrNotFound
}

func (s *Store) codeTaken(code string, except int64) bool {
	for id, p := range s.participants {
		if id != except && p.Code() == code {
			return true
		}
	}
	return false
}

func (s *Store) Roles(_ context.Context, userID int64) (map[int64]model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make(map[int64]model.Role)
	for _, m := range s.members {
		if m.UserID != userID || s.boards[m.BoardID].IsDeleted {
			continue
		}
		roles[m.BoardID] = m.Role
	}
	return roles, nil
}

func (s *Store) CategoriesForUser(_ context.Context, userID int64) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	boards := s.boardsOf(userID)
	var out []model.Category
	for _, c := range s.categories {
		if c.IsDeleted {
			continue
		}
		if _, ok := boards[c.BoardID]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ArchiveOverdue(_ context.Context, today time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today = storage.Day(today)
	var n int64
	for id, g := range s.goals {
		if g.Archived() || g.DueDate == nil || !g.DueDate.Before(today) {
			continue
		}
		g.Status = model.StatusArchived
		s.goals[id] = g
		n++
	}
	return n, nil
}

func (s *Store) GoalsForUser(_ context.Context, userID int64) ([]model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	boards := s.boardsOf(userID)
	var out []model.Goal
	for _, g := range s.goals {
		if g.Archived() {
			continue
		}
		if _, ok := boards[g.BoardID]; ok {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, g model.Goal) (model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[g.CategoryID]
	if !ok {
		return model.Goal{}, storage.ErrNotFound
	}
	g.ID = s.id()
	g.BoardID = c.BoardID
	if g.Status == 0 {
		g.Status = model.StatusToDo
	}
	if g.Priority == 0 {
		g.Priority = model.PriorityMedium
	}
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) ArchiveGoals(_ context.Context, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		g, ok := s.goals[id]
		if !ok || g.Archived() {
			continue
		}
		g.Status = model.StatusArchived
		s.goals[id] = g
		n++
	}
	return n, nil
}

func (s *Store) boardsOf(userID int64) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, m := range s.members {
		if m.UserID == userID && !s.boards[m.BoardID].IsDeleted {
			out[m.BoardID] = struct{}{}
		}
	}
	return out
}

func clone(p model.Participant) model.Participant {
	if p.UserID != nil {
		uid := *p.UserID
		p.UserID = &uid
	}
	if p.VerificationCode != nil {
		code := *p.VerificationCode
		p.VerificationCode = &code
	}
	return p
}
