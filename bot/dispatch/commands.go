package dispatch

import (
	"github.com/m3rciful/goalbot/core/telegram"
	"github.com/m3rciful/goalbot/core/telegram/commands"
)

// Command is a chat command understood by the bot.
type Command int

const (
	CommandNone Command = iota
	CommandGoals
	CommandCreate
	CommandRemove
	CommandCancel
)

var commandNames = map[Command]string{
	CommandGoals:  "/goals",
	CommandCreate: "/create",
	CommandRemove: "/remove",
	CommandCancel: "/cancel",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "none"
}

// RegisterCommands adds the bot commands to reg. /cancel is hidden from the
// menu because it only makes sense in the middle of a dialog.
func RegisterCommands(reg *telegram.Registry) error {
	defs := []struct {
		cmd  Command
		meta commands.Command
	}{
		{CommandGoals, commands.Command{Description: "Список целей"}},
		{CommandCreate, commands.Command{Description: "Создать цель"}},
		{CommandRemove, commands.Command{Description: "Удалить цель"}},
		{CommandCancel, commands.Command{Description: "Отменить запрос", Hidden: true}},
	}
	for _, d := range defs {
		if err := reg.RegisterCommand(commandNames[d.cmd], d.meta); err != nil {
			return err
		}
	}
	return nil
}

// parseCommand resolves text through reg. Matching is exact and case sensitive.
func parseCommand(reg *telegram.Registry, text string) Command {
	if _, ok := reg.LookupCommand(text); !ok {
		return CommandNone
	}
	for cmd, name := range commandNames {
		if name == text {
			return cmd
		}
	}
	return CommandNone
}
