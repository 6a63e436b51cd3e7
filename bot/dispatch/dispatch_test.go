package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/goalbot/bot/actions"
	"github.com/m3rciful/goalbot/bot/model"
	"github.com/m3rciful/goalbot/bot/storage"
	"github.com/m3rciful/goalbot/bot/storage/memory"
	"github.com/m3rciful/goalbot/core/telegram"
	"github.com/m3rciful/goalbot/core/telegram/session"

	tele "gopkg.in/telebot.v4"
)

const userID = 11

type harness struct {
	store    *memory.Store
	sessions *session.MemoryStore
	handle   tele.HandlerFunc
	board    int64
	nextID   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := telegram.NewRegistry()
	if err := RegisterCommands(reg); err != nil {
		t.Fatalf("register commands: %v", err)
	}
	h := &harness{
		store:    memory.New(),
		sessions: session.NewMemoryStore(time.Minute),
	}
	lib := actions.New(h.store, h.sessions, actions.Options{
		WebHost: "https://goals.example.com",
		Now:     func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) },
	})
	d := New(h.store, lib, reg)
	h.handle = telegram.Wrap(d.Handle, telegram.DefaultMiddlewares()...)
	h.board = h.store.AddBoard("personal")
	h.store.AddMember(h.board, userID, model.RoleOwner)
	return h
}

func (h *harness) send(t *testing.T, chatID int64, text string) string {
	t.Helper()
	h.nextID++
	reply, err := telegram.HandleUpdate(context.Background(), nil, h.handle, tele.Update{
		ID: h.nextID,
		Message: &tele.Message{
			ID:     h.nextID,
			Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
			Sender: &tele.User{ID: chatID, FirstName: "Ann", Username: "ann"},
			Text:   text,
		},
	})
	if err != nil {
		t.Fatalf("send %q: %v", text, err)
	}
	return reply
}

func (h *harness) participant(t *testing.T, chatID int64) model.Participant {
	t.Helper()
	p, err := h.store.ByChatID(context.Background(), chatID)
	if err != nil {
		t.Fatalf("participant %d: %v", chatID, err)
	}
	return p
}

// confirmed registers chatID and links it to userID.
func (h *harness) confirmed(t *testing.T, chatID int64) {
	t.Helper()
	h.send(t, chatID, "hi")
	if _, err := h.store.LinkByCode(context.Background(), h.participant(t, chatID).Code(), userID); err != nil {
		t.Fatalf("link: %v", err)
	}
}

func (h *harness) expectState(t *testing.T, chatID int64, want model.DialogState) {
	t.Helper()
	if got := h.participant(t, chatID).State; got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func TestFirstMessageCreatesParticipant(t *testing.T) {
	h := newHarness(t)
	reply := h.send(t, 500, "/start")

	p := h.participant(t, 500)
	if p.State != model.StateAdded || p.Code() == "" {
		t.Fatalf("unexpected participant %+v", p)
	}
	if !strings.Contains(reply, p.Code()) || !strings.HasPrefix(reply, "Привет Ann.") {
		t.Fatalf("greeting must carry the code: %q", reply)
	}
	if h.store.ParticipantCount() != 1 {
		t.Fatalf("participants = %d", h.store.ParticipantCount())
	}
}

func TestAddedStateReissuesCode(t *testing.T) {
	h := newHarness(t)
	h.send(t, 1, "hello")
	codes := map[string]bool{h.participant(t, 1).Code(): true}

	for i := 0; i < 2; i++ {
		reply := h.send(t, 1, "/goals")
		code := h.participant(t, 1).Code()
		if codes[code] {
			t.Fatalf("code %q was not regenerated", code)
		}
		codes[code] = true
		if !strings.Contains(reply, code) || !strings.HasPrefix(reply, "Пожалуйста подтвердите") {
			t.Fatalf("unexpected reply %q", reply)
		}
	}
	if h.store.ParticipantCount() != 1 {
		t.Fatalf("participants = %d", h.store.ParticipantCount())
	}
	h.expectState(t, 1, model.StateAdded)
}

func TestConfirmedUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.confirmed(t, 1)
	for _, text := range []string{"hello", "/GOALS", "/cancel", "/goals extra", " /goals"} {
		if reply := h.send(t, 1, text); reply != actions.TextUnknownCommand {
			t.Fatalf("%q: reply %q", text, reply)
		}
		h.expectState(t, 1, model.StateConfirmed)
	}
}

func TestCreateGoalScenario(t *testing.T) {
	h := newHarness(t)
	h.confirmed(t, 1)
	cat := h.store.AddCategory(h.board, userID, "Дом")

	reply := h.send(t, 1, "/create")
	if reply != "Введите название категории:\n1: Дом" {
		t.Fatalf("category list: %q", reply)
	}
	h.expectState(t, 1, model.StateWaitCategory)

	for _, bad := range []string{"дом", "Работа"} {
		if reply := h.send(t, 1, bad); reply != "Категория указана неверно, попробуйте еще раз, пожалуйста" {
			t.Fatalf("invalid category %q: %q", bad, reply)
		}
		h.expectState(t, 1, model.StateWaitCategory)
	}

	if reply := h.send(t, 1, "Дом"); reply != "Категория Дом сохранена успешно, введите имя цели" {
		t.Fatalf("select: %q", reply)
	}
	h.expectState(t, 1, model.StateWaitTitle)

	if reply := h.send(t, 1, "   "); reply != "Название цели не может быть пустым" {
		t.Fatalf("empty title: %q", reply)
	}
	h.expectState(t, 1, model.StateWaitTitle)
	if h.store.GoalCount() != 0 {
		t.Fatal("empty title must not create a goal")
	}

	reply = h.send(t, 1, "Buy milk")
	h.expectState(t, 1, model.StateConfirmed)
	goals, _ := h.store.GoalsForUser(context.Background(), userID)
	if len(goals) != 1 || goals[0].Title != "Buy milk" || goals[0].CategoryID != cat || goals[0].UserID != userID {
		t.Fatalf("unexpected goals %+v", goals)
	}
	want := fmt.Sprintf("Цель успешно создана и доступна по ссылке: https://goals.example.com/categories/goals?goal=%d", goals[0].ID)
	if reply != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}
}

func TestRemoveRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.confirmed(t, 1)
	cat := h.store.AddCategory(h.board, userID, "home")
	h.store.AddGoal(model.Goal{CategoryID: cat, UserID: userID, Title: "Walk"})
	h.store.AddGoal(model.Goal{CategoryID: cat, UserID: userID, Title: "Old", Status: model.StatusArchived})
	h.store.AddGoal(model.Goal{CategoryID: cat, UserID: userID, Title: "Read"})

	reply := h.send(t, 1, "/remove")
	if reply != "Введите имя цели:\nСписок ваших целей:\n1: Walk\n2: Read" {
		t.Fatalf("remove prompt: %q", reply)
	}
	h.expectState(t, 1, model.StateRemoveGoal)

	if reply := h.send(t, 1, "walk"); reply != "Не могу найти вашу цель с именем walk, проверьте данные" {
		t.Fatalf("no match: %q", reply)
	}
	h.expectState(t, 1, model.StateRemoveGoal)

	if reply := h.send(t, 1, "Walk"); reply != "Цель Walk успешно удалена" {
		t.Fatalf("remove: %q", reply)
	}
	h.expectState(t, 1, model.StateConfirmed)

	if reply := h.send(t, 1, "/goals"); reply != "Список ваших целей:\n1: Read" {
		t.Fatalf("goals after removal: %q", reply)
	}
}

func TestRemoveArchivesEveryMatch(t *testing.T) {
	h := newHarness(t)
	h.confirmed(t, 1)
	cat := h.store.AddCategory(h.board, userID, "home")
	h.store.AddGoal(model.Goal{CategoryID: cat, UserID: userID, Title: "Walk"})
	h.store.AddGoal(model.Goal{CategoryID: cat, UserID: userID, Title: "Read"})
	h.store.AddGoal(model.Goal{CategoryID: cat, UserID: userID, Title: "Walk"})

	if reply := h.send(t, 1, "/remove"); reply != "Введите имя цели:\nСписок ваших целей:\n1: Walk\n2: Read\n3: Walk" {
		t.Fatalf("remove prompt: %q", reply)
	}
	if reply := h.send(t, 1, "Walk"); reply != "Цель Walk успешно удалена" {
		t.Fatalf("remove: %q", reply)
	}
	if reply := h.send(t, 1, "/goals"); reply != "Список ваших целей:\n1: Read" {
		t.Fatalf("goals after removal: %q", reply)
	}
}

func TestCancelFromEveryWaitState(t *testing.T) {
	for _, state := range []model.DialogState{model.StateWaitCategory, model.StateWaitTitle, model.StateRemoveGoal} {
		t.Run(string(state), func(t *testing.T) {
			h := newHarness(t)
			h.confirmed(t, 1)
			cat := h.store.AddCategory(h.board, userID, "home")
			ctx := context.Background()
			p := h.participant(t, 1)
			h.sessions.Set(ctx, 1, session.Selection{CategoryID: cat, Title: "home"})
			h.store.UpdateState(ctx, p.ID, state)

			if reply := h.send(t, 1, "/cancel"); reply != "Запрос отменен успешно" {
				t.Fatalf("cancel: %q", reply)
			}
			h.expectState(t, 1, model.StateConfirmed)
			if _, ok, _ := h.sessions.Get(ctx, 1); ok {
				t.Fatal("selection must be cleared")
			}

			// A stale wait_title must not reuse the dropped selection.
			h.store.UpdateState(ctx, p.ID, model.StateWaitTitle)
			reply := h.send(t, 1, "Buy milk")
			if h.store.GoalCount() != 0 {
				t.Fatal("goal created from a cancelled selection")
			}
			if !strings.Contains(reply, "1: home") {
				t.Fatalf("expected category prompt, got %q", reply)
			}
			h.expectState(t, 1, model.StateWaitCategory)
		})
	}
}

func TestUnverifiedParticipantIsTreatedAsAdded(t *testing.T) {
	h := newHarness(t)
	h.send(t, 1, "hi")
	p := h.participant(t, 1)
	h.store.UpdateState(context.Background(), p.ID, model.StateWaitCategory)

	reply := h.send(t, 1, "Дом")
	if !strings.HasPrefix(reply, "Пожалуйста подтвердите") {
		t.Fatalf("unexpected reply %q", reply)
	}
	h.expectState(t, 1, model.StateAdded)
}

func TestNonMessageUpdateIsIgnored(t *testing.T) {
	h := newHarness(t)
	reply, err := telegram.HandleUpdate(context.Background(), nil, h.handle, tele.Update{ID: 1})
	if err != nil || reply != "" {
		t.Fatalf("reply=%q err=%v", reply, err)
	}
	if h.store.ParticipantCount() != 0 {
		t.Fatal("non-message update must not create participants")
	}
}

type brokenParticipants struct{ storage.Participants }

func (brokenParticipants) ByChatID(context.Context, int64) (model.Participant, error) {
	return model.Participant{}, errors.New("db down")
}

func TestStorageErrorsSurface(t *testing.T) {
	d := New(brokenParticipants{}, nil, telegram.NewRegistry())
	_, err := telegram.HandleUpdate(context.Background(), nil, d.Handle, tele.Update{ID: 1, Message: &tele.Message{Chat: &tele.Chat{ID: 1}}})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected storage error, got %v", err)
	}
}

type racingActions struct {
	Actions
	winner model.Participant
	calls  []string
}

func (r *racingActions) Register(context.Context, actions.Chat) (model.Participant, string, bool, error) {
	r.calls = append(r.calls, "register")
	return r.winner, "", false, nil
}

func (r *racingActions) ListGoals(context.Context, model.Participant) (string, error) {
	r.calls = append(r.calls, "goals")
	return "goals", nil
}

func TestConcurrentRegistrationDispatchesExisting(t *testing.T) {
	reg := telegram.NewRegistry()
	RegisterCommands(reg)
	uid := int64(userID)
	acts := &racingActions{winner: model.Participant{ID: 1, ChatID: 1, State: model.StateConfirmed, UserID: &uid}}
	d := New(memory.New(), acts, reg)

	reply, err := telegram.HandleUpdate(context.Background(), nil, d.Handle, tele.Update{ID: 1, Message: &tele.Message{Chat: &tele.Chat{ID: 1}, Text: "/goals"}})
	if err != nil || reply != "goals" {
		t.Fatalf("reply=%q err=%v", reply, err)
	}
	if strings.Join(acts.calls, ",") != "register,goals" {
		t.Fatalf("calls = %v", acts.calls)
	}
}

func TestCommandString(t *testing.T) {
	if CommandRemove.String() != "/remove" || CommandNone.String() != "none" {
		t.Fatal("command names")
	}
	reg := telegram.NewRegistry()
	RegisterCommands(reg)
	if got := len(reg.ListCommands(true)); got != 3 {
		t.Fatalf("visible commands = %d, want 3", got)
	}
}
