package memory

import "github.com/m3rciful/goalbot/bot/model"

// AddBoard inserts a board and returns its id.
func (s *Store) AddBoard(title string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := model.Board{ID: s.id(), Title: title}
	s.boards[b.ID] = b
	return b.ID
}

// DeleteBoard soft-deletes a board.
func (s *Store) DeleteBoard(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.boards[id]
	b.IsDeleted = true
	s.boards[id] = b
}

// AddMember grants userID role on boardID.
func (s *Store) AddMember(boardID, userID int64, role model.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.members {
		if m.BoardID == boardID && m.UserID == userID {
			s.members[i].Role = role
			return
		}
	}
	s.members = append(s.members, model.Membership{BoardID: boardID, UserID: userID, Role: role})
}

// AddCategory inserts a category and returns its id.
func (s *Store) AddCategory(boardID, userID int64, title string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Category{ID: s.id(), BoardID: boardID, UserID: userID, Title: title}
	s.categories[c.ID] = c
	return c.ID
}

// DeleteCategory soft-deletes a category.
func (s *Store) DeleteCategory(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.categories[id]
	c.IsDeleted = true
	s.categories[id] = c
}

// AddGoal inserts g as is, filling the id and board from its category.
func (s *Store) AddGoal(g model.Goal) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id()
	g.BoardID = s.categories[g.CategoryID].BoardID
	if g.Status == 0 {
		g.Status = model.StatusToDo
	}
	s.goals[g.ID] = g
	return g.ID
}

// Goal returns a goal by id.
func (s *Store) Goal(id int64) (model.Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	return g, ok
}

// GoalCount returns the number of stored goals, archived included.
func (s *Store) GoalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.goals)
}

// ParticipantCount returns the number of stored participants.
func (s *Store) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}
