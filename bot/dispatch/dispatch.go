// Package dispatch routes each inbound message to an action based on the
// participant's dialog state and the command it carries.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/goalbot/bot/actions"
	"github.com/m3rciful/goalbot/bot/model"
	"github.com/m3rciful/goalbot/bot/storage"
	"github.com/m3rciful/goalbot/core/telegram"
	"github.com/m3rciful/goalbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Actions is what the dispatcher can ask the bot to do. *actions.Library implements it.
type Actions interface {
	Register(ctx context.Context, chat actions.Chat) (model.Participant, string, bool, error)
	Confirm(ctx context.Context, p model.Participant) (string, error)
	ListGoals(ctx context.Context, p model.Participant) (string, error)
	ListCategories(ctx context.Context, p model.Participant) (string, error)
	SelectCategory(ctx context.Context, p model.Participant, text string) (string, error)
	CreateGoal(ctx context.Context, p model.Participant, title string) (string, error)
	StartRemove(ctx context.Context, p model.Participant) (string, error)
	RemoveGoal(ctx context.Context, p model.Participant, title string) (string, error)
	Cancel(ctx context.Context, p model.Participant) (string, error)
}

var _ Actions = (*actions.Library)(nil)

// Dispatcher is the conversation state machine.
type Dispatcher struct {
	participants storage.Participants
	actions      Actions
	registry     *telegram.Registry
}

// New builds a Dispatcher. reg must already hold the commands from RegisterCommands.
func New(participants storage.Participants, acts Actions, reg *telegram.Registry) *Dispatcher {
	return &Dispatcher{participants: participants, actions: acts, registry: reg}
}

// Handle is a tele.HandlerFunc that sends the reply for the current message.
func (d *Dispatcher) Handle(c tele.Context) error {
	if c.Message() == nil || c.Chat() == nil {
		return nil
	}
	reply, err := d.handle(c)
	if err != nil {
		return err
	}
	return helpers.SendText(c, reply)
}

func (d *Dispatcher) handle(c tele.Context) (string, error) {
	p, err := helpers.CurrentUser[model.Participant](c, d.participants)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		ctx := helpers.WithHandler(c, "register")
		chat := actions.Chat{ChatID: c.Chat().ID}
		if u := c.Sender(); u != nil {
			chat.Username, chat.FirstName = u.Username, u.FirstName
		}
		var (
			reply   string
			created bool
		)
		p, reply, created, err = d.actions.Register(ctx, chat)
		if err != nil {
			return "", err
		}
		if created {
			return reply, nil
		}
	case err != nil:
		return "", fmt.Errorf("dispatch: load participant: %w", err)
	}
	return d.dispatch(c, p, c.Text())
}

func (d *Dispatcher) dispatch(c tele.Context, p model.Participant, text string) (string, error) {
	helpers.SummaryFrom(helpers.BuildContext(c)).SetTransition(string(p.State), string(p.State))

	state := p.State
	if !p.Verified() {
		// Dialog states past added require a linked account.
		state = model.StateAdded
	}
	switch state {
	case model.StateAdded:
		return d.actions.Confirm(helpers.WithHandler(c, "confirm"), p)
	case model.StateConfirmed:
		return d.command(c, p, text)
	default:
		return d.step(c, p, text)
	}
}

// command handles an idle participant.
func (d *Dispatcher) command(c tele.Context, p model.Participant, text string) (string, error) {
	switch parseCommand(d.registry, text) {
	case CommandGoals:
		return d.actions.ListGoals(helpers.WithHandler(c, "goals"), p)
	case CommandCreate:
		return d.actions.ListCategories(helpers.WithHandler(c, "create"), p)
	case CommandRemove:
		return d.actions.StartRemove(helpers.WithHandler(c, "remove"), p)
	default:
		ctx := helpers.WithHandler(c, "unknown_command")
		helpers.SummaryFrom(ctx).SetOutcome("rejected")
		return actions.TextUnknownCommand, nil
	}
}

// step handles free text in the middle of a dialog.
func (d *Dispatcher) step(c tele.Context, p model.Participant, text string) (string, error) {
	if parseCommand(d.registry, text) == CommandCancel {
		return d.actions.Cancel(helpers.WithHandler(c, "cancel"), p)
	}
	switch p.State {
	case model.StateWaitCategory:
		return d.actions.SelectCategory(helpers.WithHandler(c, "select_category"), p, text)
	case model.StateWaitTitle:
		return d.actions.CreateGoal(helpers.WithHandler(c, "create_goal"), p, text)
	case model.StateRemoveGoal:
		return d.actions.RemoveGoal(helpers.WithHandler(c, "remove_goal"), p, text)
	default:
		ctx := helpers.WithHandler(c, "unknown_request")
		helpers.SummaryFrom(ctx).SetOutcome("rejected")
		return actions.TextUnknownRequest, nil
	}
}
