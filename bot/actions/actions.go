// Package actions implements what the bot does for each command and dialog
// step. Every action returns the reply text and persists any state change
// before returning.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m3rciful/goalbot/bot/model"
	"github.com/m3rciful/goalbot/bot/policy"
	"github.com/m3rciful/goalbot/bot/storage"
	"github.com/m3rciful/goalbot/bot/verify"
	"github.com/m3rciful/goalbot/core/logger"
	"github.com/m3rciful/goalbot/core/telegram/helpers"
	"github.com/m3rciful/goalbot/core/telegram/session"
)

// ErrNotLinked is returned by actions that need a linked account.
var ErrNotLinked = errors.New("actions: participant has no linked account")

const codeAttempts = 3

// Options tune a Library.
type Options struct {
	// WebHost prefixes goal links, for example https://goals.example.com.
	WebHost string
	Now     func() time.Time
	NewCode func() (string, error)
}

// Library holds the dependencies shared by all actions.
type Library struct {
	store    storage.Store
	policy   *policy.Policy
	sessions session.Store

	webHost string
	now     func() time.Time
	newCode func() (string, error)
}

// New builds a Library.
func New(store storage.Store, sessions session.Store, opts Options) *Library {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewCode == nil {
		opts.NewCode = verify.NewCode
	}
	return &Library{
		store:    store,
		policy:   policy.New(store),
		sessions: sessions,
		webHost:  strings.TrimRight(opts.WebHost, "/"),
		now:      opts.Now,
		newCode:  opts.NewCode,
	}
}

// Chat describes the sender of a first message.
type Chat struct {
	ChatID    int64
	Username  string
	FirstName string
}

// Register creates the participant for an unseen chat and greets it with a
// verification code. When another writer created the participant first,
// created is false and the reply is empty.
func (l *Library) Register(ctx context.Context, chat Chat) (p model.Participant, reply string, created bool, err error) {
	for attempt := 1; attempt <= codeAttempts; attempt++ {
		var code string
		code, err = l.newCode()
		if err != nil {
			return model.Participant{}, "", false, fmt.Errorf("register: %w", err)
		}
		p, created, err = l.store.Create(ctx, model.Participant{
			ChatID:           chat.ChatID,
			Username:         chat.Username,
			State:            model.StateAdded,
			VerificationCode: &code,
		})
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return model.Participant{}, "", false, fmt.Errorf("register: %w", err)
		}
		if !created {
			return p, "", false, nil
		}
		helpers.SummaryFrom(ctx).SetTransition("", string(model.StateAdded))
		helpers.SummaryFrom(ctx).SetOutcome("ok")
		logger.LogEvent(ctx, logger.Verify, slog.LevelInfo, "participant.created",
			slog.String("status", "ok"),
			slog.Int64("participant_id", p.ID),
		)
		name := chat.FirstName
		if name == "" {
			name = chat.Username
		}
		return p, fmt.Sprintf(textGreeting, name, code), true, nil
	}
	return model.Participant{}, "", false, fmt.Errorf("register: %w", err)
}

// Confirm issues a fresh verification code to an unlinked participant. A
// participant linked since it was loaded gets the confirmation text instead.
func (l *Library) Confirm(ctx context.Context, p model.Participant) (string, error) {
	var (
		code string
		err  error
	)
	for attempt := 1; attempt <= codeAttempts; attempt++ {
		code, err = l.newCode()
		if err != nil {
			return "", fmt.Errorf("confirm: %w", err)
		}
		err = l.store.UpdateCode(ctx, p.ID, code)
		if !errors.Is(err, storage.ErrConflict) {
			break
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		return l.alreadyLinked(ctx, p)
	}
	if err != nil {
		return "", fmt.Errorf("confirm: %w", err)
	}
	if p.State != model.StateAdded {
		if err := l.transition(ctx, p, model.StateAdded); err != nil {
			return "", err
		}
	}
	helpers.SummaryFrom(ctx).SetOutcome("ok")
	logger.LogEvent(ctx, logger.Verify, slog.LevelDebug, "code.reissued",
		slog.Int64("participant_id", p.ID),
	)
	return fmt.Sprintf(textConfirm, code), nil
}

func (l *Library) alreadyLinked(ctx context.Context, stale model.Participant) (string, error) {
	p, err := l.store.ByChatID(ctx, stale.ChatID)
	if err != nil {
		return "", fmt.Errorf("confirm: reload participant: %w", err)
	}
	if !p.Verified() {
		return "", fmt.Errorf("confirm: %w", storage.ErrNotFound)
	}
	if p.State == model.StateAdded {
		if err := l.transition(ctx, p, model.StateConfirmed); err != nil {
			return "", err
		}
	}
	helpers.SummaryFrom(ctx).SetOutcome("ok")
	return verify.TextAccountConfirmed, nil
}

// ListGoals archives overdue goals and lists the active goals the account can see.
func (l *Library) ListGoals(ctx context.Context, p model.Participant) (string, error) {
	goals, err := l.activeGoals(ctx, p, policy.Read)
	if err != nil {
		return "", err
	}
	helpers.SummaryFrom(ctx).SetOutcome("ok")
	return renderGoals(goals), nil
}

// ListCategories lists the categories the account may add goals to and
// moves the participant to wait_category when there is at least one.
func (l *Library) ListCategories(ctx context.Context, p model.Participant) (string, error) {
	cats, err := l.writableCategories(ctx, p)
	if err != nil {
		return "", err
	}
	if len(cats) == 0 {
		helpers.SummaryFrom(ctx).SetOutcome("rejected")
		return textNoCategories, nil
	}
	if err := l.transition(ctx, p, model.StateWaitCategory); err != nil {
		return "", err
	}
	helpers.SummaryFrom(ctx).SetOutcome("ok")
	return renderCategories(cats), nil
}

// SelectCategory remembers the category titled text and asks for a goal title.
// An unknown title leaves the state unchanged.
func (l *Library) SelectCategory(ctx context.Context, p model.Participant, text string) (string, error) {
	cats, err := l.writableCategories(ctx, p)
	if err != nil {
		return "", err
	}
	cat, ok := firstCategory(cats, text)
	if !ok {
		helpers.SummaryFrom(ctx).SetOutcome("rejected")
		return textCategoryInvalid, nil
	}
	if err := l.sessions.Set(ctx, p.ChatID, session.Selection{CategoryID: cat.ID, Title: cat.Title}); err != nil {
		return "", fmt.Errorf("select category: %w", err)
	}
	if err := l.transition(ctx, p, model.StateWaitTitle); err != nil {
		return "", err
	}
	helpers.SummaryFrom(ctx).SetOutcome("ok")
	return fmt.Sprintf(textCategorySaved, cat.Title), nil
}

// CreateGoal creates a goal titled text in the selected category.
func (l *Library) CreateGoal(ctx context.Context, p model.Participant, title string) (string, error) {
	userID, err := account(p)
	if err != nil {
		return "", err
	}
	switch {
	case strings.TrimSpace(title) == "":
		helpers.SummaryFrom(ctx).SetOutcome("rejected")
		return textEmptyTitle, nil
	case utf8.RuneCountInString(title) > model.MaxTitleLength:
		helpers.SummaryFrom(ctx).SetOutcome("rejected")
		return fmt.Sprintf(textTitleTooLong, model.MaxTitleLength), nil
	}

	sel, ok, err := l.sessions.Get(ctx, p.ChatID)
	if err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}
	var cat model.Category
	if ok {
		cats, err := l.writableCategories(ctx, p)
		if err != nil {
			return "", err
		}
		cat, ok = categoryByID(cats, sel.CategoryID)
	}
	if !ok {
		return l.reselect(ctx, p)
	}

	goal, err := l.store.CreateGoal(ctx, model.Goal{
		CategoryID: cat.ID,
		UserID:     userID,
		Title:      title,
	})
	if err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}
	if err := l.sessions.Delete(ctx, p.ChatID); err != nil {
		logger.LogEvent(ctx, logger.Session, slog.LevelWarn, "selection.delete_failed",
			slog.String("err", err.Error()),
		)
	}
	if err := l.transition(ctx, p, model.StateConfirmed); err != nil {
		return "", err
	}
	helpers.SummaryFrom(ctx).SetOutcome("ok")
	logger.LogEvent(ctx, logger.Goals, slog.LevelInfo, "goal.created",
		slog.String("status", "ok"),
		slog.Int64("goal_id", goal.ID),
		slog.Int64("category_id", cat.ID),
	)
	return fmt.Sprintf(textGoalCreated, l.GoalURL(goal.ID)), nil
}

// reselect recovers from a missing or stale selection by asking for the
// category again.
func (l *Library) reselect(ctx context.Context, p model.Participant) (string, error) {
	logger.LogEvent(ctx, logger.Goals, slog.LevelWarn, "selection.missing",
		slog.String("status", "skip"),
	)
	_ = l.sessions.Delete(ctx, p.ChatID)
	cats, err := l.writableCategories(ctx, p)
	if err != nil {
		return "", err
	}
	helpers.SummaryFrom(ctx).SetOutcome("rejected")
	if len(cats) == 0 {
		if err := l.transition(ctx, p, model.StateConfirmed); err != nil {
			return "", err
		}
		return textCategoryLost + textNoCategories, nil
	}
	if err := l.transition(ctx, p, model.StateWaitCategory); err != nil {
		return "", err
	}
	return textCategoryLost + renderCategories(cats), nil
}

// StartRemove lists the active goals and waits for the title to remove.
func (l *Library) StartRemove(ctx context.Context, p model.Participant) (string, error) {
	list, err := l.ListGoals(ctx, p)
	if err != nil {
		return "", err
	}
	if err := l.transition(ctx, p, model.StateRemoveGoal); err != nil {
		return "", err
	}
	return textRemovePrompt + list, nil
}

// RemoveGoal archives every writable active goal titled title.
// Without a match the state is unchanged.
func (l *Library) RemoveGoal(ctx context.Context, p model.Participant, title string) (string, error) {
	goals, err := l.activeGoals(ctx, p, policy.Write)
	if err != nil {
		return "", err
	}
	var ids []int64
	for _, g := range goals {
		if g.Title == title {
			ids = append(ids, g.ID)
		}
	}
	if len(ids) == 0 {
		helpers.SummaryFrom(ctx).SetOutcome("rejected")
		return fmt.Sprintf(textGoalNotFound, title), nil
	}
	n, err := l.store.ArchiveGoals(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("remove goal: %w", err)
	}
	if err := l.transition(ctx, p, model.StateConfirmed); err != nil {
		return "", err
	}
	helpers.SummaryFrom(ctx).SetOutcome("ok")
	logger.LogEvent(ctx, logger.Goals, slog.LevelInfo, "goal.archived",
		slog.String("status", "ok"),
		slog.Any("goal_ids", ids),
		slog.Int64("count", n),
	)
	return fmt.Sprintf(textGoalRemoved, title), nil
}

// Cancel returns to confirmed from any state and drops the selection.
func (l *Library) Cancel(ctx context.Context, p model.Participant) (string, error) {
	if err := l.sessions.Delete(ctx, p.ChatID); err != nil {
		return "", fmt.Errorf("cancel: %w", err)
	}
	if err := l.transition(ctx, p, model.StateConfirmed); err != nil {
		return "", err
	}
	helpers.SummaryFrom(ctx).SetOutcome("cancelled")
	return textCancelled, nil
}

// GoalURL links to a goal on the web frontend.
func (l *Library) GoalURL(id int64) string {
	return l.webHost + fmt.Sprintf(goalURLPath, id)
}

func (l *Library) transition(ctx context.Context, p model.Participant, to model.DialogState) error {
	if err := l.store.UpdateState(ctx, p.ID, to); err != nil {
		return fmt.Errorf("set state %s: %w", to, err)
	}
	helpers.SummaryFrom(ctx).SetTransition(string(p.State), string(to))
	return nil
}

func (l *Library) activeGoals(ctx context.Context, p model.Participant, act policy.Action) ([]model.Goal, error) {
	userID, err := account(p)
	if err != nil {
		return nil, err
	}
	if _, err := l.store.ArchiveOverdue(ctx, l.now()); err != nil {
		return nil, fmt.Errorf("archive overdue: %w", err)
	}
	goals, err := l.store.GoalsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	grant, err := l.policy.For(ctx, userID)
	if err != nil {
		return nil, err
	}
	return policy.Filter(grant, goals, act, func(g model.Goal) policy.Resource { return policy.GoalResource(g) }), nil
}

func (l *Library) writableCategories(ctx context.Context, p model.Participant) ([]model.Category, error) {
	userID, err := account(p)
	if err != nil {
		return nil, err
	}
	cats, err := l.store.CategoriesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	grant, err := l.policy.For(ctx, userID)
	if err != nil {
		return nil, err
	}
	return policy.Filter(grant, cats, policy.Write, func(c model.Category) policy.Resource { return policy.CategoryResource(c) }), nil
}

func account(p model.Participant) (int64, error) {
	if p.UserID == nil {
		return 0, ErrNotLinked
	}
	return *p.UserID, nil
}

func firstCategory(cats []model.Category, title string) (model.Category, bool) {
	for _, c := range cats {
		if c.Title == title {
			return c, true
		}
	}
	return model.Category{}, false
}

func categoryByID(cats []model.Category, id int64) (model.Category, bool) {
	for _, c := range cats {
		if c.ID == id {
			return c, true
		}
	}
	return model.Category{}, false
}

func renderGoals(goals []model.Goal) string {
	if len(goals) == 0 {
		return textNoGoals
	}
	lines := make([]string, len(goals))
	for i, g := range goals {
		lines[i] = fmt.Sprintf("%d: %s", i+1, g.Title)
	}
	return textGoalsHeader + strings.Join(lines, "\n")
}

func renderCategories(cats []model.Category) string {
	lines := make([]string, len(cats))
	for i, c := range cats {
		lines[i] = fmt.Sprintf("%d: %s", i+1, c.Title)
	}
	return textCategoriesHeader + strings.Join(lines, "\n")
}
