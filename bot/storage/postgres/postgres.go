// Package postgres implements storage.Store on the shared Postgres database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/goalbot/bot/model"
	"github.com/m3rciful/goalbot/bot/storage"
	"github.com/m3rciful/goalbot/core/database"
	"github.com/m3rciful/goalbot/core/logger"
)

const uniqueViolation = "23505"

// Store runs queries through sqlx.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New wraps db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const participantColumns = `id, chat_id, username, dialog_state, user_id, verification_code, created_at, updated_at`

func (s *Store) ByChatID(ctx context.Context, chatID int64) (model.Participant, error) {
	var p model.Participant
	err := s.db.GetContext(ctx, &p,
		`SELECT `+participantColumns+` FROM bot_participant WHERE chat_id = $1`, chatID)
	if err != nil {
		return model.Participant{}, mapErr("participant by chat", err)
	}
	return p, nil
}

func (s *Store) Create(ctx context.Context, p model.Participant) (model.Participant, bool, error) {
	var out model.Participant
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO bot_participant (chat_id, username, dialog_state, verification_code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO NOTHING
		RETURNING `+participantColumns,
		p.ChatID, p.Username, p.State, p.VerificationCode)
	if err == nil {
		return out, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Participant{}, false, mapErr("create participant", err)
	}
	// Another writer created the row between our lookup and insert.
	existing, err := s.ByChatID(ctx, p.ChatID)
	if err != nil {
		return model.Participant{}, false, err
	}
	return existing, false, nil
}

func (s *Store) UpdateCode(ctx context.Context, id int64, code string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bot_participant SET verification_code = $2, updated_at = now() WHERE id = $1 AND user_id IS NULL`, id, code)
	return affected("update code", res, err)
}

func (s *Store) UpdateState(ctx context.Context, id int64, state model.DialogState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bot_participant SET dialog_state = $2, updated_at = now() WHERE id = $1`, id, state)
	return affected("update state", res, err)
}

func (s *Store) LinkByCode(ctx context.Context, code string, userID int64) (model.Participant, error) {
	if code == "" {
		return model.Participant{}, storage.ErrNotFound
	}
	var out model.Participant
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var id int64
		if err := tx.GetContext(ctx, &id,
			`SELECT id FROM bot_participant WHERE verification_code = $1 AND user_id IS NULL FOR UPDATE`, code); err != nil {
			return mapErr("lock participant", err)
		}
		err := tx.GetContext(ctx, &out, `
			UPDATE bot_participant
			SET user_id = $2, dialog_state = $3, verification_code = NULL, updated_at = now()
			WHERE id = $1 AND user_id IS NULL
			RETURNING `+participantColumns,
			id, userID, model.StateConfirmed)
		return mapErr("link participant", err)
	})
	if err != nil {
		return model.Participant{}, err
	}
	return out, nil
}

func (s *Store) Roles(ctx context.Context, userID int64) (map[int64]model.Role, error) {
	var rows []model.Membership
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.board_id, p.user_id, p.role
		FROM goals_participant p
		JOIN goals_board b ON b.id = p.board_id
		WHERE p.user_id = $1 AND NOT b.is_deleted`, userID)
	if err != nil {
		return nil, mapErr("roles", err)
	}
	roles := make(map[int64]model.Role, len(rows))
	for _, m := range rows {
		roles[m.BoardID] = m.Role
	}
	return roles, nil
}

func (s *Store) CategoriesForUser(ctx context.Context, userID int64) ([]model.Category, error) {
	var out []model.Category
	err := s.db.SelectContext(ctx, &out, `
		SELECT c.id, c.board_id, c.user_id, c.title, c.is_deleted
		FROM goals_category c
		JOIN goals_participant p ON p.board_id = c.board_id AND p.user_id = $1
		JOIN goals_board b ON b.id = c.board_id
		WHERE NOT c.is_deleted AND NOT b.is_deleted
		ORDER BY c.id`, userID)
	if err != nil {
		return nil, mapErr("categories for user", err)
	}
	return out, nil
}

func (s *Store) ArchiveOverdue(ctx context.Context, today time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE goals_goal SET status = $1, updated = now()
		WHERE due_date < $2::date AND status < $1`, model.StatusArchived, dateParam(today))
	if err != nil {
		return 0, mapErr("archive overdue", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive overdue: %w", err)
	}
	if n > 0 {
		logger.DB.Info("overdue goals archived",
			slog.String("event", "goals.archive_overdue"),
			slog.Int64("count", n),
		)
	}
	return n, nil
}

func (s *Store) GoalsForUser(ctx context.Context, userID int64) ([]model.Goal, error) {
	var out []model.Goal
	err := s.db.SelectContext(ctx, &out, `
		SELECT g.id, g.category_id, c.board_id, g.user_id, g.title, g.description,
		       g.due_date, g.status, g.priority
		FROM goals_goal g
		JOIN goals_category c ON c.id = g.category_id
		JOIN goals_participant p ON p.board_id = c.board_id AND p.user_id = $1
		JOIN goals_board b ON b.id = c.board_id
		WHERE g.status < $2 AND NOT b.is_deleted
		ORDER BY g.id`, userID, model.StatusArchived)
	if err != nil {
		return nil, mapErr("goals for user", err)
	}
	return out, nil
}

func (s *Store) CreateGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	if g.Status == 0 {
		g.Status = model.StatusToDo
	}
	if g.Priority == 0 {
		g.Priority = model.PriorityMedium
	}
	err := s.db.GetContext(ctx, &g, `
		WITH inserted AS (
			INSERT INTO goals_goal (category_id, user_id, title, description, due_date, status, priority, created, updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			RETURNING id, category_id, user_id, title, description, due_date, status, priority
		)
		SELECT i.*, c.board_id FROM inserted i JOIN goals_category c ON c.id = i.category_id`,
		g.CategoryID, g.UserID, g.Title, g.Description, g.DueDate, g.Status, g.Priority)
	if err != nil {
		return model.Goal{}, mapErr("create goal", err)
	}
	return g, nil
}

func (s *Store) ArchiveGoals(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE goals_goal SET status = $1, updated = now()
		WHERE id = ANY($2) AND status < $1`, model.StatusArchived, pq.Array(ids))
	if err != nil {
		return 0, mapErr("archive goals", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive goals: %w", err)
	}
	return n, nil
}

// dateParam renders the calendar day of t so the comparison does not depend
// on the session time zone.
func dateParam(t time.Time) string {
	return storage.Day(t).Format(time.DateOnly)
}

func affected(op string, res sql.Result, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// mapErr translates driver errors into storage sentinels. A nil err stays nil.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %s: %w", op, pqErr.Constraint, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
